// Package local implements objstore.FileSystem against the local disk, for
// single-node deployments and tests. A badger index tracks object
// metadata (size, mtime, content digest) alongside the on-disk bytes so
// Find/FindInfo don't need a filesystem walk, the same pattern OPA's OCI
// downloader uses an oci.Store index to avoid re-reading blobs layer by
// layer.
package local

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	digest "github.com/opencontainers/go-digest"

	"github.com/opsml/registry/objstore"
	"github.com/opsml/registry/opsmlerr"
)

// Backend is an objstore.FileSystem rooted at a directory on local disk.
type Backend struct {
	root  string
	index *badger.DB
}

type indexEntry struct {
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Digest       string    `json:"digest"`
}

// New opens (creating if needed) a local backend rooted at root, with its
// object index stored in indexDir.
func New(root, indexDir string) (*Backend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.StorageErr, err, "create storage root %s", root)
	}
	opts := badger.DefaultOptions(indexDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.StorageErr, err, "open local storage index at %s", indexDir)
	}
	return &Backend{root: root, index: db}, nil
}

func (b *Backend) Close() error {
	return b.index.Close()
}

var _ objstore.FileSystem = (*Backend)(nil)

func (b *Backend) diskPath(path string) string {
	return filepath.Join(b.root, filepath.FromSlash(path))
}

func (b *Backend) Find(ctx context.Context, prefix string) ([]string, error) {
	infos, err := b.FindInfo(ctx, prefix)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(infos))
	for i, info := range infos {
		paths[i] = info.Path
	}
	return paths, nil
}

func (b *Backend) FindInfo(_ context.Context, prefix string) ([]objstore.FileInfo, error) {
	var out []objstore.FileInfo
	err := b.index.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		seekPrefix := []byte(prefix)
		for it.Seek(seekPrefix); it.ValidForPrefix(seekPrefix); it.Next() {
			key := string(it.Item().KeyCopy(nil))
			var entry indexEntry
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &entry)
			}); err != nil {
				return err
			}
			out = append(out, objstore.FileInfo{
				Path:         key,
				Size:         entry.Size,
				LastModified: entry.LastModified,
			})
		}
		return nil
	})
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.StorageErr, err, "list local index under %s", prefix)
	}
	return out, nil
}

func (b *Backend) Get(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(b.diskPath(path))
	if os.IsNotExist(err) {
		return nil, opsmlerr.New(opsmlerr.NotFound, "object %s not found", path)
	}
	if err != nil {
		return nil, opsmlerr.Wrap(opsmlerr.StorageErr, err, "open %s", path)
	}
	return f, nil
}

func (b *Backend) Put(_ context.Context, path string, r io.Reader) (int64, error) {
	full := b.diskPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, opsmlerr.Wrap(opsmlerr.StorageErr, err, "create parent dirs for %s", path)
	}

	f, err := os.Create(full)
	if err != nil {
		return 0, opsmlerr.Wrap(opsmlerr.StorageErr, err, "create %s", path)
	}
	defer f.Close()

	digester := digest.Canonical.Digester()
	n, err := io.Copy(io.MultiWriter(f, digester.Hash()), r)
	if err != nil {
		return 0, opsmlerr.Wrap(opsmlerr.StorageErr, err, "write %s", path)
	}

	entry := indexEntry{Size: n, LastModified: time.Now(), Digest: digester.Digest().String()}
	raw, err := json.Marshal(entry)
	if err != nil {
		return 0, opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal index entry for %s", path)
	}
	if err := b.index.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), raw)
	}); err != nil {
		return 0, opsmlerr.Wrap(opsmlerr.StorageErr, err, "index %s", path)
	}
	return n, nil
}

func (b *Backend) Rm(_ context.Context, path string) error {
	if err := os.Remove(b.diskPath(path)); err != nil && !os.IsNotExist(err) {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "remove %s", path)
	}
	if err := b.index.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(path))
	}); err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "unindex %s", path)
	}
	return nil
}

func (b *Backend) Copy(ctx context.Context, src, dst string) error {
	r, err := b.Get(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = b.Put(ctx, dst, r)
	return err
}

func (b *Backend) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(b.diskPath(path))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, opsmlerr.Wrap(opsmlerr.StorageErr, err, "stat %s", path)
	}
	return true, nil
}

// GeneratePresignedURL returns a file:// URL; local backends have no real
// signing authority, so the ttl and method arguments are ignored beyond
// validating method is one this backend can honor.
func (b *Backend) GeneratePresignedURL(_ context.Context, path string, _ time.Duration, method string) (string, error) {
	if strings.ToUpper(method) != "GET" && strings.ToUpper(method) != "PUT" {
		return "", opsmlerr.New(opsmlerr.InvalidRequest, "unsupported presign method %q", method)
	}
	return "file://" + b.diskPath(path), nil
}

// CreateMultipartUpload has no backend-native multipart concept on local
// disk; it returns path itself as the upload id, and upload.Session writes
// parts directly to a staging file keyed by that id.
func (b *Backend) CreateMultipartUpload(_ context.Context, path string) (string, error) {
	return path, nil
}

func (b *Backend) stagingPath(uploadID string, partNumber int) string {
	return filepath.Join(b.root, ".multipart", filepath.FromSlash(uploadID), strconv.Itoa(partNumber))
}

// UploadPart writes one part to a staging area under the upload id, giving
// Backend the github.com/opsml/registry/upload.PartUploader shape.
func (b *Backend) UploadPart(_ context.Context, _, uploadID string, partNumber int, data []byte) (string, error) {
	stage := b.stagingPath(uploadID, partNumber)
	if err := os.MkdirAll(filepath.Dir(stage), 0o755); err != nil {
		return "", opsmlerr.Wrap(opsmlerr.StorageErr, err, "create staging dir for part %d", partNumber)
	}
	if err := os.WriteFile(stage, data, 0o644); err != nil {
		return "", opsmlerr.Wrap(opsmlerr.StorageErr, err, "write staged part %d", partNumber)
	}
	return digest.FromBytes(data).String(), nil
}

// CompleteMultipartUpload concatenates staged parts in order into the
// final object path and removes the staging directory.
func (b *Backend) CompleteMultipartUpload(ctx context.Context, path, uploadID string, etags []string) error {
	full := b.diskPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "create parent dirs for %s", path)
	}
	out, err := os.Create(full)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "create %s", path)
	}
	defer out.Close()

	digester := digest.Canonical.Digester()
	var total int64
	for i := range etags {
		part, err := os.Open(b.stagingPath(uploadID, i))
		if err != nil {
			return opsmlerr.Wrap(opsmlerr.StorageErr, err, "open staged part %d", i)
		}
		n, err := io.Copy(io.MultiWriter(out, digester.Hash()), part)
		part.Close()
		if err != nil {
			return opsmlerr.Wrap(opsmlerr.StorageErr, err, "assemble part %d", i)
		}
		total += n
	}

	entry := indexEntry{Size: total, LastModified: time.Now(), Digest: digester.Digest().String()}
	raw, err := json.Marshal(entry)
	if err != nil {
		return opsmlerr.Wrap(opsmlerr.InternalErr, err, "marshal index entry for %s", path)
	}
	if err := b.index.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), raw)
	}); err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "index %s", path)
	}

	return os.RemoveAll(filepath.Join(b.root, ".multipart", filepath.FromSlash(uploadID)))
}

// AbortMultipartUpload discards any staged parts for uploadID.
func (b *Backend) AbortMultipartUpload(_ context.Context, _, uploadID string) error {
	if err := os.RemoveAll(filepath.Join(b.root, ".multipart", filepath.FromSlash(uploadID))); err != nil {
		return opsmlerr.Wrap(opsmlerr.StorageErr, err, "remove staged parts for %s", uploadID)
	}
	return nil
}
