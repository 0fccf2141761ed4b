package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/arnnvv/peeple/logging"
	"github.com/arnnvv/peeple/match"
)

// server bundles what the handlers share.
type server struct {
	cfg      *Config
	store    match.Store
	engine   *match.Engine
	auth     *tokenAuth
	hub      *Hub
	metrics  *Metrics
	upgrader websocket.Upgrader
}

func newServer(cfg *Config, store match.Store, reg *prometheus.Registry, opts ...match.Option) *server {
	hub := newHub()
	metrics := NewMetrics(reg)
	opts = append([]match.Option{
		match.WithNotifier(notifiers{hub, metrics}),
		match.WithPageSizes(cfg.Feed.DefaultPageSize, cfg.Feed.MaxPageSize),
	}, opts...)
	engine := match.NewEngine(store, opts...)
	return &server{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		auth:     newTokenAuth(cfg.jwtKey(), cfg.Auth.TokenTTL),
		hub:      hub,
		metrics:  metrics,
		upgrader: newUpgrader(cfg.CORS.Origins),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(logging.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)
	r.Use(withCORS(s.cfg.CORS.Origins))

	// Health check endpoint for Docker
	r.Get("/health", healthHandler(s.store))
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Websocket clients may authenticate with ?token=, so this sits outside the auth group.
	r.Get("/ws/matches", wsMatchesHandler(s.hub, s.auth, s.upgrader))

	r.Group(func(r chi.Router) {
		r.Use(s.auth.authenticate)
		r.Use(DataLoaderMiddleware(s.store))

		r.Get("/me", meHandler(s.store))
		r.Get("/users/{id}", userHandler(s.store))
		r.Get("/feed", feedHandler(s.engine, s.metrics))
		r.With(swipeLimiter(s.cfg.RateLimit.SwipesPerMinute)).
			Post("/swipes", swipeHandler(s.engine, s.metrics))
		r.Get("/matches", matchesHandler(s.engine, s.hub))
		r.Delete("/matches/{peerID}", unmatchHandler(s.engine))
	})
	return r
}

// swipeLimiter caps swipes per authenticated user. Zero disables it.
func swipeLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return currentUserID(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate_limited")
		}),
	)
}

func healthHandler(store match.Store) http.HandlerFunc {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := store.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("cannot load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Caller: cfg.Log.Caller})
	if cfg.Auth.JWTSecret == "" {
		logging.Warn().Msg("auth.jwt_secret not set, using the development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("cannot open store")
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srv := newServer(cfg, store, reg)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", cfg.Server.Port).Str("environment", cfg.Server.Environment).Msg("starting Peeple match backend")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
