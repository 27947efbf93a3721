package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/opsml/registry/audit"
	"github.com/opsml/registry/auth"
	"github.com/opsml/registry/catalog"
	"github.com/opsml/registry/keystore"
	"github.com/opsml/registry/metrics"
	"github.com/opsml/registry/objstore"
	"github.com/opsml/registry/servicecard"
	"github.com/opsml/registry/telemetry"
	"github.com/opsml/registry/upload"
)

// Server wires the catalog, keystore, object store, uploader,
// service-card engine, telemetry store, and auth components into one
// gorilla/mux router, following the teacher's With-option construction
// pattern (see server/server.go's WithStore/WithAuthentication etc.).
type Server struct {
	router *mux.Router

	catalog      *catalog.Store
	keys         keystore.Store
	masterKey    *keystore.MasterKey
	objects      objstore.FileSystem
	partUploader upload.PartUploader
	services     *servicecard.Engine
	telemetry    *telemetry.Store
	users        *auth.Store
	tokens       *auth.TokenIssuer
	audit        audit.Sink
	metrics      *metrics.Recorder
	accessTTL    time.Duration
	refreshTTL   time.Duration

	mu      sync.Mutex
	uploads map[string]*uploadSession
}

type uploadSession struct {
	session *upload.Session
	path    string
}

// New returns an unconfigured Server. Call the With* methods to populate
// its collaborators, then Router to obtain the http.Handler to serve.
func New() *Server {
	return &Server{
		audit:      audit.NoOpSink{},
		accessTTL:  15 * time.Minute,
		refreshTTL: 30 * 24 * time.Hour,
		uploads:    map[string]*uploadSession{},
	}
}

func (s *Server) WithCatalog(c *catalog.Store) *Server { s.catalog = c; return s }
func (s *Server) WithKeyStore(k keystore.Store) *Server { s.keys = k; return s }
func (s *Server) WithMasterKey(m *keystore.MasterKey) *Server { s.masterKey = m; return s }

// WithObjectStore sets the object store backend. If fs also implements
// upload.PartUploader (every concrete backend in package objstore does),
// it is used for chunked-upload part operations too, unless overridden by
// WithPartUploader.
func (s *Server) WithObjectStore(fs objstore.FileSystem) *Server {
	s.objects = fs
	if pu, ok := fs.(upload.PartUploader); ok {
		s.partUploader = pu
	}
	return s
}

func (s *Server) WithPartUploader(pu upload.PartUploader) *Server { s.partUploader = pu; return s }

func (s *Server) WithServiceEngine(e *servicecard.Engine) *Server { s.services = e; return s }
func (s *Server) WithTelemetry(t *telemetry.Store) *Server { s.telemetry = t; return s }
func (s *Server) WithUsers(u *auth.Store) *Server          { s.users = u; return s }
func (s *Server) WithTokenIssuer(t *auth.TokenIssuer) *Server { s.tokens = t; return s }
func (s *Server) WithAuditSink(a audit.Sink) *Server       { s.audit = a; return s }
func (s *Server) WithMetrics(m *metrics.Recorder) *Server  { s.metrics = m; return s }

func (s *Server) WithTokenTTLs(access, refresh time.Duration) *Server {
	s.accessTTL, s.refreshTTL = access, refresh
	return s
}

// Router builds and returns the server's http.Handler. Call once, after
// every With* option has been applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.instrument("health", s.handleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/opsml/api/card", s.instrument("card", s.handleCardExists)).Methods(http.MethodGet)
	r.HandleFunc("/opsml/api/card/list", s.instrument("card_list", s.handleCardList)).Methods(http.MethodGet)
	r.HandleFunc("/opsml/api/card/create", s.instrument("card_create", s.handleCardCreate)).Methods(http.MethodPost)
	r.HandleFunc("/opsml/api/card/update", s.instrument("card_update", s.handleCardUpdate)).Methods(http.MethodPost)
	r.HandleFunc("/opsml/api/card/delete", s.instrument("card_delete", s.handleCardDelete)).Methods(http.MethodDelete)
	r.HandleFunc("/opsml/api/card/load", s.instrument("card_load", s.handleCardLoad)).Methods(http.MethodGet)
	r.HandleFunc("/opsml/api/card/registry/stats", s.instrument("card_stats", s.handleRegistryStats)).Methods(http.MethodGet)
	r.HandleFunc("/opsml/api/card/registry/page", s.instrument("card_page", s.handleRegistryPage)).Methods(http.MethodGet)
	r.HandleFunc("/opsml/api/card/registry/version/page", s.instrument("card_version_page", s.handleVersionPage)).Methods(http.MethodGet)
	r.HandleFunc("/opsml/api/card/spaces", s.instrument("card_spaces", s.handleSpaces)).Methods(http.MethodGet)
	r.HandleFunc("/opsml/api/card/space/description", s.instrument("card_space_description", s.handleSpaceDescriptionPut)).Methods(http.MethodPost)
	r.HandleFunc("/opsml/api/card/readme", s.instrument("card_readme_put", s.handleReadmePut)).Methods(http.MethodPost)
	r.HandleFunc("/opsml/api/card/readme", s.instrument("card_readme_get", s.handleReadmeGet)).Methods(http.MethodGet)

	r.HandleFunc("/opsml/api/auth/api/login", s.instrument("login", s.handleLogin)).Methods(http.MethodPost)
	r.HandleFunc("/opsml/api/auth/api/refresh", s.instrument("refresh", s.handleRefresh)).Methods(http.MethodPost)

	r.HandleFunc("/opsml/api/run/metrics", s.instrument("metrics_put", s.handleMetricsPut)).Methods(http.MethodPut)
	r.HandleFunc("/opsml/api/run/metrics", s.instrument("metrics_get", s.handleMetricsGet)).Methods(http.MethodPost)
	r.HandleFunc("/opsml/api/run/parameters", s.instrument("parameters_put", s.handleParametersPut)).Methods(http.MethodPut)
	r.HandleFunc("/opsml/api/run/parameters", s.instrument("parameters_get", s.handleParametersGet)).Methods(http.MethodPost)
	r.HandleFunc("/opsml/api/run/hardware/metrics", s.instrument("hardware_put", s.handleHardwarePut)).Methods(http.MethodPut)
	r.HandleFunc("/opsml/api/run/hardware/metrics", s.instrument("hardware_get", s.handleHardwareGet)).Methods(http.MethodGet)

	r.HandleFunc("/opsml/api/upload/start", s.instrument("upload_start", s.handleUploadStart)).Methods(http.MethodPost)
	r.HandleFunc("/opsml/api/upload/{session_id}", s.instrument("upload_chunk", s.handleUploadChunk)).Methods(http.MethodPut)
	r.HandleFunc("/opsml/api/upload/{session_id}/complete", s.instrument("upload_complete", s.handleUploadComplete)).Methods(http.MethodPost)
	r.HandleFunc("/opsml/api/upload/{session_id}", s.instrument("upload_status", s.handleUploadStatus)).Methods(http.MethodGet)

	s.router = r
	return r
}

// instrument wraps h with request-duration/count metrics keyed by route,
// following the teacher's instrumentHandler (server/server.go) pattern
// but against metrics.Recorder rather than OPA's internal metrics.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		status := http.StatusText(sw.status)
		s.metrics.RequestDuration.WithLabelValues(route, r.Method, status).Observe(time.Since(start).Seconds())
		s.metrics.RequestTotal.WithLabelValues(route, r.Method, status).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
