package local

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	dir := t.TempDir()
	b, err := New(filepath.Join(dir, "objects"), filepath.Join(dir, "index"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestPutGetRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	want := []byte("hello registry")
	n, err := b.Put(ctx, "space/model/weights.bin", bytes.NewReader(want))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len(want)) {
		t.Errorf("Put returned %d bytes, want %d", n, len(want))
	}

	r, err := b.Get(ctx, "space/model/weights.bin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExistsAndRm(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if ok, _ := b.Exists(ctx, "a/b.bin"); ok {
		t.Fatal("expected object to not exist yet")
	}
	if _, err := b.Put(ctx, "a/b.bin", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ok, _ := b.Exists(ctx, "a/b.bin"); !ok {
		t.Fatal("expected object to exist after Put")
	}
	if err := b.Rm(ctx, "a/b.bin"); err != nil {
		t.Fatalf("Rm: %v", err)
	}
	if ok, _ := b.Exists(ctx, "a/b.bin"); ok {
		t.Fatal("expected object to be gone after Rm")
	}
}

func TestFindInfoUnderPrefix(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for _, p := range []string{"space/a/1.bin", "space/a/2.bin", "space/b/1.bin"} {
		if _, err := b.Put(ctx, p, bytes.NewReader([]byte("data"))); err != nil {
			t.Fatalf("Put(%s): %v", p, err)
		}
	}

	infos, err := b.FindInfo(ctx, "space/a/")
	if err != nil {
		t.Fatalf("FindInfo: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d entries under space/a/, want 2", len(infos))
	}
}

func TestCopy(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	if _, err := b.Put(ctx, "src.bin", bytes.NewReader([]byte("payload"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Copy(ctx, "src.bin", "dst.bin"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	r, err := b.Get(ctx, "dst.bin")
	if err != nil {
		t.Fatalf("Get dst: %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != "payload" {
		t.Errorf("dst content = %q, want %q", got, "payload")
	}
}

func TestMultipartUploadRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	uploadID, err := b.CreateMultipartUpload(ctx, "big.bin")
	if err != nil {
		t.Fatalf("CreateMultipartUpload: %v", err)
	}

	var etags []string
	for i, chunk := range [][]byte{[]byte("part-zero-"), []byte("part-one--")} {
		etag, err := b.UploadPart(ctx, "big.bin", uploadID, i, chunk)
		if err != nil {
			t.Fatalf("UploadPart(%d): %v", i, err)
		}
		etags = append(etags, etag)
	}

	if err := b.CompleteMultipartUpload(ctx, "big.bin", uploadID, etags); err != nil {
		t.Fatalf("CompleteMultipartUpload: %v", err)
	}

	r, err := b.Get(ctx, "big.bin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != "part-zero-part-one--" {
		t.Errorf("assembled content = %q", got)
	}
}
