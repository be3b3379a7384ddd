// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/klasshub/faq-engine/cmd/faq-engine-api/handlers"
	"github.com/klasshub/faq-engine/cmd/faq-engine-api/middleware"
	"github.com/klasshub/faq-engine/internal/config"
	"github.com/klasshub/faq-engine/internal/monitoring"
	"github.com/klasshub/faq-engine/internal/observability"
	"github.com/klasshub/faq-engine/internal/retrieval"
	"github.com/klasshub/faq-engine/internal/store"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, chatStore *store.ChatStore, pipeline *retrieval.Pipeline, audit *monitoring.AuditStore, backend *store.RedisBackend) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(chimiddleware.Timeout(cfg.Server.ReadTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"faq-engine"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := backend.Client().Ping(req.Context()).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	chatHandler := handlers.NewChatHandler(logger, chatStore, pipeline, audit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/chat", func(r chi.Router) {
			r.Post("/", chatHandler.Save)
			r.Get("/{id}", chatHandler.Get)
			r.Post("/similar", chatHandler.Similar)
			r.Post("/search", chatHandler.Search)
		})
	})

	return r
}
