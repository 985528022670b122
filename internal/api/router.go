package api

import (
	"net/http"

	"github.com/agentoven/agent-runtime/internal/api/handlers"
	"github.com/agentoven/agent-runtime/internal/api/middleware"
	"github.com/agentoven/agent-runtime/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/version", h.Version)

	r.Post("/chat", h.Chat)
	r.Post("/learn", h.Learn)

	r.Route("/feedbacks", func(r chi.Router) {
		r.Get("/", h.ListFeedbacks)
		r.Delete("/", h.DeleteFeedbacks)
	})

	r.Route("/collections/{agent_name}", func(r chi.Router) {
		r.Delete("/", h.DropCollection)
	})

	return r
}
