// Package web provides the HTTP API for bulk attendee booking.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/bulkbook/internal/config"
	"github.com/JonMunkholm/bulkbook/internal/core"
	"github.com/JonMunkholm/bulkbook/internal/history"
	mw "github.com/JonMunkholm/bulkbook/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HistoryStore is the read side of submission history.
type HistoryStore interface {
	List(ctx context.Context, opts history.ListOptions) ([]core.SubmissionRecord, error)
	Get(ctx context.Context, id string) (core.SubmissionRecord, error)
}

// MetricsHandler serves metrics and records request measurements.
type MetricsHandler interface {
	mw.RequestRecorder
	Handler() http.Handler
	UpdateImportLimiter(core.LimiterStatus)
}

// Server is the HTTP server for the bulk-booking API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	history HistoryStore
	metrics MetricsHandler

	router        *chi.Mux
	server        *http.Server
	generalLimits *rateLimiter
	uploadLimits  *rateLimiter
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithHistory enables the submission history endpoints.
func WithHistory(store HistoryStore) Option {
	return func(s *Server) {
		s.history = store
	}
}

// WithMetrics enables request instrumentation and the metrics endpoint.
func WithMetrics(m MetricsHandler) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Rate.Enabled {
		s.generalLimits = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.uploadLimits = newRateLimiter(cfg.Rate.UploadLimit, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(mw.Instrument(s.metrics))
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.generalLimits != nil {
		s.router.Use(s.generalLimits.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))
		r.Use(withRequestMetadata)

		r.Get("/quantity-options", s.handleQuantityOptions)
		r.Get("/template", s.handleTemplate)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/count", s.handleSetCount)
			r.Post("/next", s.handleNext)
			r.Post("/back", s.handleBack)
			r.Post("/close", s.handleClose)
			r.Patch("/attendees/{index}", s.handleUpdateAttendee)
			r.Post("/copy-category", s.handleCopyCategory)
			r.Get("/export", s.handleExport)

			r.Group(func(r chi.Router) {
				if s.uploadLimits != nil {
					r.Use(s.uploadLimits.middleware)
				}
				r.Post("/import", s.handleImport)
				r.Post("/submit", s.handleSubmit)
			})
		})

		if s.history != nil {
			r.Get("/history", s.handleListHistory)
			r.Get("/history/{id}", s.handleGetHistory)
		}
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.generalLimits.stop()
	s.uploadLimits.stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			next.ServeHTTP(w, r)
		})
	}
}
