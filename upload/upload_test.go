package upload

import (
	"bytes"
	"context"
	"testing"
	"time"
)

type fakeStatusErr struct{ code int }

func (e fakeStatusErr) StatusCode() int { return e.code }
func (e fakeStatusErr) Error() string   { return "fake status error" }

type fakeBackend struct {
	parts       map[int][]byte
	failUntil   map[int]int // part -> number of failures before success
	failStatus  int
	completed   bool
	aborted     bool
	etagsAtDone []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{parts: map[int][]byte{}, failUntil: map[int]int{}}
}

func (f *fakeBackend) UploadPart(_ context.Context, _, _ string, partNumber int, data []byte) (string, error) {
	if remaining, ok := f.failUntil[partNumber]; ok && remaining > 0 {
		f.failUntil[partNumber]--
		return "", fakeStatusErr{code: f.failStatus}
	}
	cp := append([]byte(nil), data...)
	f.parts[partNumber] = cp
	return "etag", nil
}

func (f *fakeBackend) CompleteMultipartUpload(_ context.Context, _, _ string, etags []string) error {
	f.completed = true
	f.etagsAtDone = etags
	return nil
}

func (f *fakeBackend) AbortMultipartUpload(_ context.Context, _, _ string) error {
	f.aborted = true
	return nil
}

func TestUploadAllSingleSmallChunk(t *testing.T) {
	backend := newFakeBackend()
	sess := NewSession(backend, "models/a/weights.bin", "upload-1")

	data := bytes.Repeat([]byte{0x42}, 100)
	if err := sess.UploadAll(context.Background(), bytes.NewReader(data)); err != nil {
		t.Fatalf("UploadAll: %v", err)
	}

	if sess.State() != Completed {
		t.Errorf("State = %v, want Completed", sess.State())
	}
	if !backend.completed {
		t.Error("expected CompleteMultipartUpload to be called")
	}
	if got := backend.parts[0]; !bytes.Equal(got, data) {
		t.Errorf("part 0 = %d bytes, want %d bytes matching input", len(got), len(data))
	}
}

func TestUploadAllMultipleChunks(t *testing.T) {
	backend := newFakeBackend()
	sess := NewSession(backend, "models/a/weights.bin", "upload-1")

	data := bytes.Repeat([]byte{0x07}, ChunkSize*2+10)
	if err := sess.UploadAll(context.Background(), bytes.NewReader(data)); err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if len(backend.parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(backend.parts))
	}
	if len(backend.parts[2]) != 10 {
		t.Errorf("final part = %d bytes, want 10", len(backend.parts[2]))
	}
	if sess.LastOKIndex() != 2 {
		t.Errorf("LastOKIndex = %d, want 2", sess.LastOKIndex())
	}
}

func TestUploadPartRetriesOn5xx(t *testing.T) {
	sleep = func(time.Duration) {}
	defer func() { sleep = time.Sleep }()

	backend := newFakeBackend()
	backend.failStatus = 503
	backend.failUntil[0] = 2 // fails twice, succeeds on third try

	sess := NewSession(backend, "p", "u")
	data := bytes.Repeat([]byte{1}, 10)
	if err := sess.UploadAll(context.Background(), bytes.NewReader(data)); err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if sess.State() != Completed {
		t.Errorf("State = %v, want Completed", sess.State())
	}
}

func TestUploadPartFatalOn4xx(t *testing.T) {
	backend := newFakeBackend()
	backend.failStatus = 403
	backend.failUntil[0] = 100 // always fails

	sess := NewSession(backend, "p", "u")
	data := bytes.Repeat([]byte{1}, 10)
	err := sess.UploadAll(context.Background(), bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected error on 4xx failure")
	}
	if sess.State() != Aborted {
		t.Errorf("State = %v, want Aborted", sess.State())
	}
	if backend.parts[0] != nil {
		t.Error("expected the failing part to never be recorded as uploaded")
	}
}

func TestSessionResumesFromLastOKIndex(t *testing.T) {
	backend := newFakeBackend()
	sess := NewSession(backend, "p", "u")
	sess.lastOK = 0 // simulate part 0 already uploaded in a prior attempt

	data := bytes.Repeat([]byte{9}, ChunkSize*2)
	if err := sess.UploadAll(context.Background(), bytes.NewReader(data)); err != nil {
		t.Fatalf("UploadAll: %v", err)
	}
	if _, ok := backend.parts[0]; ok {
		t.Error("expected part 0 to be skipped on resume")
	}
	if _, ok := backend.parts[1]; !ok {
		t.Error("expected part 1 to be uploaded on resume")
	}
}
