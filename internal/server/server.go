// Package server provides the HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bryan-buckman/tripahead/internal/database"
	"github.com/bryan-buckman/tripahead/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON bodies and OPML uploads.
const maxBodyBytes = 4 << 20

// Server is the main HTTP server.
type Server struct {
	store  database.Store
	log    *zap.Logger
	router chi.Router

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

// New creates a new server.
func New(store database.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{store: store, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", s.handleCreateUser)
		r.Get("/", s.handleListUsers)
	})

	r.Route("/trips", func(r chi.Router) {
		r.Post("/", s.handleCreateTrip)
		r.Get("/", s.handleListTrips)

		r.Route("/{tripID}", func(r chi.Router) {
			r.Get("/", s.handleGetTrip)
			r.Put("/", s.handleUpdateTrip)
			r.Delete("/", s.handleDeleteTrip)

			r.Get("/activities", s.handleListActivities)
			r.Post("/activities", s.handleCreateActivity)
			r.Get("/activities/search", s.handleSearchActivities)
			r.Patch("/activities/{activityID}", s.handleMoveActivity)
			r.Delete("/activities/{activityID}", s.handleDeleteActivity)

			r.Get("/days", s.handleListDays)
			r.Post("/days", s.handleAddDay)
			r.Put("/days/{day}", s.handleUpdateDayTitle)
			r.Delete("/days/{day}", s.handleRemoveDay)

			r.Get("/outline.opml", s.handleExportOutline)
			r.Post("/outline.opml", s.handleImportOutline)
		})
	})

	r.Put("/activities/{activityID}", s.handleUpdateActivity)

	s.router = r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.http = srv
	s.mu.Unlock()

	s.log.Info("server starting", zap.String("addr", addr), zap.String("database", s.store.DatabaseType()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.log.Info("server shutting down")
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": s.store.DatabaseType(),
	})
}

// --- Helpers ---

type errorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps the model error taxonomy onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: verr.Message, Missing: verr.Missing})
	case errors.Is(err, model.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: err.Error()})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Details: err.Error()})
	case errors.Is(err, model.ErrCapacityExceeded):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "capacity exceeded", Details: err.Error()})
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Details: err.Error()})
	}
}

// decodeJSON reads a JSON body into v. An empty body is accepted when
// optional is true.
func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return &model.ValidationError{Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

func pathInt(r *http.Request, name string) (int64, error) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || n < 1 {
		return 0, &model.ValidationError{Message: "invalid " + name}
	}
	return n, nil
}
