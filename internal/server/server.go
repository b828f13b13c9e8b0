// Package server exposes the operations HTTP surface: health and metrics
// probes plus the authenticated admin API for runtime settings.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openlearnhq/coursegate/internal/config"
	"github.com/openlearnhq/coursegate/internal/ratelimit"
	"github.com/openlearnhq/coursegate/internal/store"
	"github.com/openlearnhq/coursegate/pkg/health"
	"github.com/openlearnhq/coursegate/pkg/httpmiddleware"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

// Rebuilder tears down and recreates the bot connection from current
// credentials. Satisfied by *botmanager.Manager.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Invalidator drops cached content listings. Satisfied by *catalog.Catalog.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// ActivityRecorder appends audit entries for admin actions.
type ActivityRecorder interface {
	Record(ctx context.Context, kind, description, actorID string)
}

// Deps are the server's collaborators. Manager, Catalog, Activity and the
// limiters are optional.
type Deps struct {
	Config     config.ServerConfig
	RateLimit  config.RateLimitConfig
	Settings   store.SettingsStore
	Activities store.ActivityStore
	Manager    Rebuilder
	Catalog    Invalidator
	Recorder   ActivityRecorder
	Health     *health.Checker
	Logger     logger.Logger
}

// Server is the operations HTTP server.
type Server struct {
	cfg        config.ServerConfig
	settings   store.SettingsStore
	activities store.ActivityStore
	manager    Rebuilder
	catalog    Invalidator
	recorder   ActivityRecorder
	health     *health.Checker
	log        logger.Logger

	apiLimiter  *ratelimit.Limiter
	authLimiter *ratelimit.Limiter
	httpServer  *http.Server
}

// New creates the operations server.
func New(deps Deps) (*Server, error) {
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Server{
		cfg:        deps.Config,
		settings:   deps.Settings,
		activities: deps.Activities,
		manager:    deps.Manager,
		catalog:    deps.Catalog,
		recorder:   deps.Recorder,
		health:     deps.Health,
		log:        deps.Logger.WithFields(logger.StringField("component", "server")),
	}

	if deps.RateLimit.APIPerMinute > 0 {
		s.apiLimiter = ratelimit.New(deps.RateLimit.APIPerMinute, time.Minute)
	}
	if deps.RateLimit.LoginAttempts > 0 {
		s.authLimiter = ratelimit.New(deps.RateLimit.LoginAttempts, deps.RateLimit.LoginWindow)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       deps.Config.IdleTimeout,
	}
	return s, nil
}

// router assembles the middleware stack and routes.
func (s *Server) router() chi.Router {
	r := chi.NewRouter()

	mwConfig := httpmiddleware.DefaultConfig()
	mwConfig.Logger = s.log
	mwConfig.EnableLogging = true
	if s.cfg.RequestTimeout > 0 {
		mwConfig.Timeout = s.cfg.RequestTimeout
	}
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		corsConfig := httpmiddleware.DefaultCORSConfig()
		corsConfig.AllowedOrigins = s.cfg.CORSAllowedOrigins
		mwConfig.CORS = &corsConfig
	}
	httpmiddleware.ApplyToRouter(r, mwConfig)

	if s.health != nil {
		r.Get("/healthz", s.health.Handler())
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.rateLimitMiddleware)
		api.Use(s.authMiddleware)

		api.Get("/settings/{name}", s.handleGetSetting)
		api.Put("/settings/{name}", s.handlePutSetting)
		api.Get("/activity", s.handleListActivity)
		api.Post("/cache/invalidate", s.handleInvalidateCache)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if s.apiLimiter != nil {
			s.apiLimiter.Close()
		}
		if s.authLimiter != nil {
			s.authLimiter.Close()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logger.StringField("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.log.Info("shutting down http server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// Handler exposes the assembled router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
