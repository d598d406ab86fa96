// Package api exposes the operator and webhook surface: message submission,
// suppression management, warm-up control, region health, and the tracking
// redirect endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/dispatch-engine/internal/compose"
	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/feedback"
	"github.com/ignite/dispatch-engine/internal/queue"
	"github.com/ignite/dispatch-engine/internal/region"
	"github.com/ignite/dispatch-engine/internal/suppression"
	"github.com/ignite/dispatch-engine/internal/warmup"
)

// Sender runs the dispatch pipeline for one message.
type Sender interface {
	Send(ctx context.Context, msg *domain.Message) domain.Outcome
}

// RegionChecker reports the health of every configured region.
type RegionChecker interface {
	CheckAll(ctx context.Context) []region.Health
}

// Server holds the HTTP handlers' dependencies.
type Server struct {
	sender       Sender
	suppressions *suppression.Store
	warmups      *warmup.Manager
	feedback     *feedback.Processor
	regions      RegionChecker
	retry        *queue.RetryQueue
	composer     *compose.Composer
}

// NewServer wires the HTTP surface.
func NewServer(
	sender Sender,
	suppressions *suppression.Store,
	warmups *warmup.Manager,
	feedback *feedback.Processor,
	regions RegionChecker,
	retry *queue.RetryQueue,
	composer *compose.Composer,
) *Server {
	return &Server{
		sender:       sender,
		suppressions: suppressions,
		warmups:      warmups,
		feedback:     feedback,
		regions:      regions,
		retry:        retry,
		composer:     composer,
	}
}

// Router builds the route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/messages", s.handleSendMessage)
		r.Get("/queue", s.handleQueueStatus)
		r.Get("/regions", s.handleRegions)

		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", s.handleListSuppressions)
			r.Post("/", s.handleAddSuppression)
			r.Get("/{email}", s.handleGetSuppression)
			r.Delete("/{email}", s.handleRemoveSuppression)
		})

		r.Route("/warmup", func(r chi.Router) {
			r.Get("/", s.handleListWarmups)
			r.Post("/", s.handleStartWarmup)
			r.Get("/{ip}", s.handleWarmupStatus)
			r.Get("/{ip}/history", s.handleWarmupHistory)
			r.Post("/{ip}/pause", s.handlePauseWarmup)
			r.Post("/{ip}/resume", s.handleResumeWarmup)
		})
	})

	r.Post("/webhooks/ses", s.handleSESWebhook)

	r.Route("/track", func(r chi.Router) {
		r.Get("/open/{data}/{sig}", s.handleTrackOpen)
		r.Get("/click/{data}/{sig}", s.handleTrackClick)
		r.Get("/unsubscribe/{data}/{sig}", s.handleUnsubscribe)
		r.Post("/unsubscribe/{data}/{sig}", s.handleUnsubscribe)
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
