package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/fentz26/listsync/internal/auth"
	"github.com/fentz26/listsync/internal/notify"
	"github.com/fentz26/listsync/internal/reconcile"
	"github.com/gorilla/mux"
)

// Version is the daemon version reported by /health. Overridden at build time
// with -ldflags "-X github.com/fentz26/listsync/internal/controlplane.Version=...".
var Version = "0.1.0-dev"

// Options configures the HTTP server.
type Options struct {
	Addr         string
	TokenSecret  string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server provides the HTTP API for listsync.
type Server struct {
	service *Service
	hub     *notify.Hub
	opts    Options
	logger  *slog.Logger
	router  *mux.Router
	server  *http.Server
	now     func() time.Time
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, hub *notify.Hub, opts Options, logger *slog.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		service: service,
		hub:     hub,
		opts:    opts,
		logger:  logger.With("component", "http"),
		now:     time.Now,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth)

	api := r.NewRoute().Subrouter()
	api.Use(s.authenticate)
	api.Methods(http.MethodPost).Path("/sync/batch").HandlerFunc(s.handleSyncBatch)
	api.Methods(http.MethodGet).Path("/sync/audit").HandlerFunc(s.handleListAudit)
	api.Methods(http.MethodGet).Path("/relations").HandlerFunc(s.handleListRelations)
	api.Methods(http.MethodPost).Path("/relations").HandlerFunc(s.handleCreateRelation)
	api.Methods(http.MethodGet).Path("/relations/{id}").HandlerFunc(s.handleGetRelation)
	api.Methods(http.MethodPost).Path("/relations/{id}/share").HandlerFunc(s.handleShareRelation)
	api.Methods(http.MethodGet).Path("/ws").HandlerFunc(s.handleWebsocket)

	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	s.logger.Info("starting listsync daemon", "addr", s.opts.Addr, "version", Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// --- Middleware ---

type ctxKey int

const userIDKey ctxKey = iota

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("handled", "method", r.Method, "path", r.URL.Path, "duration", m.Duration, "status", m.Code, "bytes", m.Written)
	})
}

// authenticate accepts a bearer token in the Authorization header or, for
// websocket clients that cannot set headers, in the token query parameter.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			claims auth.Claims
			err    error
		)
		if header := r.Header.Get("Authorization"); header != "" {
			claims, err = auth.ParseBearer(header, s.opts.TokenSecret, s.now())
		} else {
			claims, err = auth.Parse(r.URL.Query().Get("token"), s.opts.TokenSecret, s.now())
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		user, err := s.service.Authenticate(r.Context(), claims.UserID)
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "unknown user")
			return
		}
		if err != nil {
			s.logger.Error("authenticate", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, user.ID)))
	})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	health := s.service.Health(r.Context())
	status := http.StatusOK
	if !health.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleSyncBatch(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	ops, err := reconcile.ParseBatch(body)
	if err != nil {
		if errors.Is(err, reconcile.ErrMalformedBatch) {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		s.logger.Error("parse batch", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, s.service.SyncBatch(r.Context(), userIDFrom(r.Context()), ops))
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.service.ListAudit(r.Context(), userIDFrom(r.Context()), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListRelations(w http.ResponseWriter, r *http.Request) {
	relations, err := s.service.ListRelations(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, relations)
}

func (s *Server) handleCreateRelation(w http.ResponseWriter, r *http.Request) {
	var req CreateRelationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	rel, err := s.service.CreateRelation(r.Context(), userIDFrom(r.Context()), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

func (s *Server) handleGetRelation(w http.ResponseWriter, r *http.Request) {
	rel, err := s.service.GetRelation(r.Context(), userIDFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (s *Server) handleShareRelation(w http.ResponseWriter, r *http.Request) {
	var req ShareRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	perm, err := s.service.ShareRelation(r.Context(), userIDFrom(r.Context()), mux.Vars(r)["id"], req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, perm)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "notifications are disabled")
		return
	}
	s.hub.Serve(w, r, userIDFrom(r.Context()))
}

// --- Helpers ---

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return nil, false
	}
	return body, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrAlreadyShared):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
