// Package httpapi exposes an editor.Editor over HTTP with a chi router.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mesh-intelligence/canvas/pkg/editor"
	"github.com/mesh-intelligence/canvas/pkg/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server serves the site editing API.
type Server struct {
	editor *editor.Editor
	logger *slog.Logger
	router *chi.Mux
}

// New builds the router. A nil logger means slog.Default().
func New(ed *editor.Editor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{editor: ed, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/element-types", s.handleElementTypes)
	r.Route("/sites", func(r chi.Router) {
		r.Get("/", s.handleListSites)
		r.Post("/", s.handleCreateSite)
		r.Route("/{siteID}", func(r chi.Router) {
			r.Get("/", s.handleGetSite)
			r.Patch("/", s.handleUpdateSite)
			r.Delete("/", s.handleDeleteSite)
			r.Put("/published", s.handleSetPublished)
			r.Get("/tree", s.handleTree)
			r.Post("/rows", s.handleAddRow)
			r.Post("/rows/{rowID}/columns", s.handleAddColumn)
			r.Post("/columns/{colID}/elements", s.handleAddElement)
			r.Patch("/elements/{elementID}", s.handleUpdateElement)
			r.Delete("/elements/{elementID}", s.handleDeleteElement)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// logRequests logs one line per request through slog.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps error categories to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidArgument):
		code = http.StatusBadRequest
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// decodeBody decodes a JSON body into v. Failures wrap ErrInvalidArgument.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", types.ErrInvalidArgument, err)
	}
	return nil
}
