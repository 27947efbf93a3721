// Package upload implements the chunked, resumable multipart uploader
// (spec.md §4.6): a Session walks a file's bytes in fixed-size chunks,
// uploading each part in order against an objstore.FileSystem-initiated
// multipart upload, retrying transient backend failures the way OPA's
// download package retries a bundle fetch.
package upload

import (
	"context"
	"io"

	"github.com/opsml/registry/opsmlerr"
)

// ChunkSize is the part size used for every chunk but (possibly) the last:
// min(file_size, ChunkSize).
const ChunkSize = 8 * 1024 * 1024 // 8MiB

// State is a Session's lifecycle stage.
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "not_started"
	}
}

// PartUploader abstracts the backend-specific "upload this byte range as
// part N of upload ID U" operation. Concrete objstore backends implement
// this alongside their FileSystem methods.
type PartUploader interface {
	UploadPart(ctx context.Context, path, uploadID string, partNumber int, data []byte) (etag string, err error)
	CompleteMultipartUpload(ctx context.Context, path, uploadID string, etags []string) error
	AbortMultipartUpload(ctx context.Context, path, uploadID string) error
}

// Session tracks one resumable upload's progress so a caller can resume
// after a crash or network interruption by re-issuing chunks starting at
// LastOKIndex+1.
type Session struct {
	backend    PartUploader
	path       string
	uploadID   string
	state      State
	lastOK     int
	etags      []string
	maxRetries int
}

// NewSession begins a multipart upload for path against backend, using an
// uploadID already obtained from objstore.FileSystem.CreateMultipartUpload.
func NewSession(backend PartUploader, path, uploadID string) *Session {
	return &Session{
		backend:    backend,
		path:       path,
		uploadID:   uploadID,
		state:      NotStarted,
		lastOK:     -1,
		maxRetries: 5,
	}
}

// State returns the session's current lifecycle stage.
func (s *Session) State() State { return s.state }

// LastOKIndex returns the highest part index successfully uploaded, or -1
// if none have succeeded yet.
func (s *Session) LastOKIndex() int { return s.lastOK }

// UploadAll reads r in ChunkSize parts and uploads each sequentially,
// resuming from LastOKIndex()+1 if this Session already made progress.
// A 5xx-class failure on a part is retried up to maxRetries times with
// exponential backoff; a 4xx-class failure is fatal and returned with the
// offending part number attached via opsmlerr.WithPart.
func (s *Session) UploadAll(ctx context.Context, r io.Reader) error {
	s.state = InProgress
	buf := make([]byte, ChunkSize)
	part := s.lastOK + 1

	// Skip bytes already accounted for by a prior, interrupted attempt.
	if part > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(part)*int64(ChunkSize)); err != nil {
			s.state = Aborted
			return opsmlerr.Wrap(opsmlerr.UploadErr, err, "seek past previously uploaded parts")
		}
	}

	for {
		n, readErr := io.ReadFull(r, buf)
		if n == 0 {
			break
		}

		etag, err := s.uploadPartWithRetry(ctx, part, buf[:n])
		if err != nil {
			s.state = Aborted
			return err
		}
		s.etags = append(s.etags, etag)
		s.lastOK = part
		part++

		if readErr == io.ErrUnexpectedEOF || readErr == io.EOF {
			break
		}
		if readErr != nil {
			s.state = Aborted
			return opsmlerr.Wrap(opsmlerr.UploadErr, readErr, "read chunk %d", part)
		}
	}

	if err := s.backend.CompleteMultipartUpload(ctx, s.path, s.uploadID, s.etags); err != nil {
		s.state = Aborted
		return opsmlerr.Wrap(opsmlerr.UploadErr, err, "complete multipart upload for %s", s.path)
	}
	s.state = Completed
	return nil
}

func (s *Session) uploadPartWithRetry(ctx context.Context, part int, data []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		etag, err := s.backend.UploadPart(ctx, s.path, s.uploadID, part, data)
		if err == nil {
			return etag, nil
		}
		if !isRetryable(err) {
			return "", opsmlerr.WithPart(opsmlerr.Wrap(opsmlerr.UploadErr, err, "upload part %d", part), part)
		}
		lastErr = err
		if attempt < s.maxRetries-1 {
			sleep(backoffDelay(attempt))
		}
	}
	return "", opsmlerr.WithPart(opsmlerr.Wrap(opsmlerr.UploadErr, lastErr, "upload part %d exhausted retries", part), part)
}

// Abort releases any backend-side resources for an interrupted upload.
func (s *Session) Abort(ctx context.Context) error {
	if err := s.backend.AbortMultipartUpload(ctx, s.path, s.uploadID); err != nil {
		return opsmlerr.Wrap(opsmlerr.UploadErr, err, "abort multipart upload for %s", s.path)
	}
	s.state = Aborted
	return nil
}
