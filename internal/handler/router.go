package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/claytonlow/twilio-deepgram/internal/bridge"
	"github.com/claytonlow/twilio-deepgram/internal/middleware"
)

// NewRouter wires every HTTP route the service exposes.
func NewRouter(h *Handlers, b *bridge.Bridge, logger *zap.Logger, internalToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", h.Root)
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/twilio", b.ServeTelephony)
	r.Post("/voice", h.Voice)
	r.Get("/phone-numbers", h.PhoneNumbers)
	r.Post("/flowise/chat/{chatId}", h.FlowiseChat)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(internalToken))
		b.InternalRoutes(r)
	})

	return r
}
