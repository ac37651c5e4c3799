// Package httpapi exposes the instance registry as a JSON HTTP API.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"msgharness/internal/instance"
	"msgharness/internal/metrics"
)

const defaultMaxBodyBytes int64 = 32 << 20

// Option mutates router configuration.
type Option func(*Handler)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(handler *Handler) {
		if logger != nil {
			handler.logger = logger
		}
	}
}

// WithMetrics injects HTTP collectors and the gatherer served on /metrics.
func WithMetrics(collectors *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(handler *Handler) {
		if collectors != nil {
			handler.metrics = collectors
		}
		if gatherer != nil {
			handler.gatherer = gatherer
		}
	}
}

// WithMaxBodyBytes bounds request bodies. File and image uploads travel inline.
func WithMaxBodyBytes(limit int64) Option {
	return func(handler *Handler) {
		if limit > 0 {
			handler.maxBodyBytes = limit
		}
	}
}

// Handler holds the dependencies shared by every route.
type Handler struct {
	registry     *instance.Registry
	validate     *validator.Validate
	logger       *slog.Logger
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	maxBodyBytes int64
}

// NewRouter builds the API router over registry.
func NewRouter(registry *instance.Registry, options ...Option) http.Handler {
	h := &Handler{
		registry:     registry,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       slog.Default(),
		gatherer:     prometheus.NewRegistry(),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, option := range options {
		option(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.NewNop()
	}

	r := chi.NewRouter()
	r.Use(h.observe)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(h.logRequests)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Put("/instance", h.CreateInstance)
		r.Get("/instances", h.ListInstances)

		r.Route("/instance/{instanceID}", func(r chi.Router) {
			r.Get("/", h.GetInstance)
			r.Delete("/", h.DeleteInstance)
			r.Get("/fingerprint", h.GetFingerprint)
			r.Post("/getMessages", h.GetMessages)

			r.Post("/sendText", h.SendText)
			r.Post("/sendEditedText", h.SendEditedText)
			r.Post("/sendLocation", h.SendLocation)
			r.Post("/sendPing", h.SendPing)
			r.Post("/sendImage", h.SendImage)
			r.Post("/sendFile", h.SendFile)
			r.Post("/sendReaction", h.SendReaction)
			r.Post("/sendConfirmationDelivered", h.SendConfirmationDelivered)
			r.Post("/sendConfirmationRead", h.SendConfirmationRead)
			r.Post("/deleteLocal", h.DeleteLocal)
			r.Post("/deleteEveryone", h.DeleteEveryone)
			r.Post("/clear", h.ClearConversation)
		})
	})

	return r
}
