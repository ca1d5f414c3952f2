// Package api exposes the metadata source registry over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

// SourcePrefix is where the source endpoints live. Source route bundles are
// mounted separately under provider.RoutePrefix.
const SourcePrefix = "/api/sources"

// Request headers identifying the caller
const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
)

// SettingsUpdater persists per-source settings changes
type SettingsUpdater interface {
	SetAuxSearchEnabled(ctx context.Context, name string, enabled bool) error
	SetUseProxy(ctx context.Context, name string, useProxy bool) error
	SetDisplayOrder(ctx context.Context, name string, order int) error
}

// ServerOption configures the server
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
	log         *zap.SugaredLogger
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithLogger sets the logger used for request and error logging
func WithLogger(log *zap.SugaredLogger) ServerOption {
	return func(cfg *serverConfig) {
		cfg.log = log
	}
}

// NewServer creates the HTTP router for registry and the route bundles of its
// loaded sources.
func NewServer(registry *provider.Registry, settings SettingsUpdater, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	h := &handlers{registry: registry, settings: settings, log: cfg.log}
	r.Get("/healthz", h.health)
	r.Get("/api/aliases", h.aliases)
	r.Route(SourcePrefix, func(r chi.Router) {
		r.Get("/", h.listSources)
		r.Post("/reload", h.reload)
		r.Route("/{name}", func(r chi.Router) {
			r.Patch("/", h.updateSource)
			r.Get("/config", h.sourceConfig)
			r.Get("/search", h.search)
			r.Get("/details/{id}", h.details)
			r.Post("/actions/{action}", h.action)
		})
	})

	registry.MountRoutes(r)
	return r
}

// LoggingMiddleware logs every request at debug level
func LoggingMiddleware(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
