package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opsml/registry/opsmlerr"
	"github.com/opsml/registry/upload"
)

// handleUploadStart implements the server-mint half of the chunked
// uploader's session lifecycle (spec.md §4.6 step 1): it opens a backend
// multipart upload for the requested path and hands the caller an opaque
// session id to drive the rest of the transfer against.
func (s *Server) handleUploadStart(w http.ResponseWriter, r *http.Request) {
	if s.objects == nil || s.partUploader == nil {
		writeError(w, opsmlerr.New(opsmlerr.StorageErr, "object store not configured"))
		return
	}
	var req uploadInitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Path == "" {
		writeError(w, opsmlerr.New(opsmlerr.InvalidRequest, "path is required"))
		return
	}

	uploadID, err := s.objects.CreateMultipartUpload(r.Context(), req.Path)
	if err != nil {
		writeError(w, opsmlerr.Wrap(opsmlerr.StorageErr, err, "create multipart upload for %s", req.Path))
		return
	}

	sess := upload.NewSession(s.partUploader, req.Path, uploadID)
	s.mu.Lock()
	s.uploads[uploadID] = &uploadSession{session: sess, path: req.Path}
	if s.metrics != nil {
		s.metrics.ActiveUploads.Inc()
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, uploadInitResponse{SessionID: uploadID})
}

func (s *Server) lookupUpload(sessionID string) (*uploadSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.uploads[sessionID]
	return us, ok
}

// handleUploadChunk streams the request body through the session's
// chunked uploader (spec.md §4.6 steps 2-3). The client posts the whole
// file in one request; Session.UploadAll does the chunking, per-part
// retry, and resume-from-LastOKIndex bookkeeping internally.
func (s *Server) handleUploadChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	us, ok := s.lookupUpload(sessionID)
	if !ok {
		writeError(w, opsmlerr.New(opsmlerr.NotFound, "no upload session %s", sessionID))
		return
	}

	err := us.session.UploadAll(r.Context(), r.Body)
	if s.metrics != nil {
		s.metrics.ActiveUploads.Dec()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.UploadBytes.WithLabelValues("default").Add(float64(r.ContentLength))
	}

	writeJSON(w, http.StatusOK, uploadStatusResponse{State: us.session.State().String(), LastOKIndex: us.session.LastOKIndex()})
}

// handleUploadComplete exists for clients that prefer an explicit
// complete step; since Session.UploadAll already completes the backend
// multipart upload once the body is fully consumed, this is a status
// readback rather than a second RPC to the backend.
func (s *Server) handleUploadComplete(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	us, ok := s.lookupUpload(sessionID)
	if !ok {
		writeError(w, opsmlerr.New(opsmlerr.NotFound, "no upload session %s", sessionID))
		return
	}
	s.mu.Lock()
	delete(s.uploads, sessionID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, uploadStatusResponse{State: us.session.State().String(), LastOKIndex: us.session.LastOKIndex()})
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	us, ok := s.lookupUpload(sessionID)
	if !ok {
		writeError(w, opsmlerr.New(opsmlerr.NotFound, "no upload session %s", sessionID))
		return
	}
	writeJSON(w, http.StatusOK, uploadStatusResponse{State: us.session.State().String(), LastOKIndex: us.session.LastOKIndex()})
}
