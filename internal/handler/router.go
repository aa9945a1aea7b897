// Package handler exposes the flux HTTP API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the HTTP-level settings of the router
type RouterConfig struct {
	CORSOrigins  []string
	MaxBodyBytes int64
}

// NewRouter mounts the API routes behind the standard middleware chain
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Sentry)
	r.Use(AccessLog)
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(MaxBodyBytes(cfg.MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, &apiError{status: http.StatusNotFound, code: CodeNotFound, message: "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, &apiError{status: http.StatusMethodNotAllowed, code: CodeMethodNotAllowed, message: "method not allowed"})
	})

	r.Get("/", h.Index)
	r.Get("/docs", h.Docs)
	r.Get("/health", h.Health)
	r.Get("/search", h.Search)
	r.Get("/answer", h.Answer)
	r.Get("/contents", h.Contents)

	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", h.CreateConversation)
		r.Get("/", h.ListConversations)
		r.Get("/{id}", h.GetConversation)
		r.Delete("/{id}", h.DeleteConversation)
		r.Post("/{id}/messages", h.AddMessage)
	})

	return r
}
