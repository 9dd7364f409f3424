// Package app holds the start-up and shutdown plumbing shared by the
// docsearch services: environment and config loading, logging, the metrics
// server, the HTTP middleware chain and graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
)

// Service is one running docsearch process.
type Service struct {
	Name    string
	Config  *config.Config
	Metrics *metrics.Metrics
	Health  *health.Checker

	closers []func(context.Context) error
}

// Bootstrap loads .env (if present) and the config at configPath, installs
// the default logger and starts the metrics server when enabled.
func Bootstrap(name, configPath string) (*Service, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	s := &Service{Name: name, Config: cfg, Health: health.NewChecker()}
	if cfg.Metrics.Enabled {
		s.Metrics = metrics.New(prometheus.DefaultRegisterer)
		s.OnClose(metrics.StartServer(cfg.Metrics.Port, s.Metrics))
	}
	slog.Info("service starting", "service", name, "config", configPath)
	return s, nil
}

// OnClose registers fn to run at shutdown, in reverse registration order.
func (s *Service) OnClose(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// Close runs the registered closers.
func (s *Service) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Server.ShutdownTimeout)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			slog.Error("shutdown step failed", "service", s.Name, "error", err)
		}
	}
	slog.Info("service stopped", "service", s.Name)
}

// Handler wraps mux in the standard middleware chain and mounts the health
// endpoints.
func (s *Service) Handler(mux *http.ServeMux) http.Handler {
	s.Health.RegisterRoutes(mux)
	var chain http.Handler = mux
	chain = middleware.Timeout(s.Config.Server.RequestTimeout)(chain)
	if n := s.Config.Server.WriteRateLimit; n > 0 {
		chain = middleware.RateLimit(middleware.NewLimiter(n, time.Minute))(chain)
	}
	chain = middleware.Metrics(s.Metrics)(chain)
	chain = middleware.CORS(s.Config.Server.CORSOrigins)(chain)
	chain = middleware.RequestID(chain)
	return chain
}

// ListenAndServe serves h on the configured port until ctx is cancelled and
// then shuts down gracefully.
func (s *Service) ListenAndServe(ctx context.Context, h http.Handler) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Config.Server.Port),
		Handler:      h,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "service", s.Name, "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received", "service", s.Name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// OpenIndex opens the engine described by the config and registers its
// health check and shutdown.
func (s *Service) OpenIndex() (*indexer.Engine, error) {
	engine, err := indexer.Open(s.Config.Index, indexer.WithMetrics(s.Metrics))
	if err != nil {
		return nil, err
	}
	s.OnClose(func(context.Context) error { return engine.Close() })
	s.Health.Register("index", func(context.Context) health.ComponentHealth {
		st := engine.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents", st.Generation, st.Documents),
		}
	})
	return engine, nil
}

// SearchOptions returns the searcher options for this service: metrics and,
// when caching is enabled and Redis answers, the query cache. A Redis
// outage at start-up disables caching rather than failing.
func (s *Service) SearchOptions(ctx context.Context) []searcher.Option {
	opts := []searcher.Option{searcher.WithMetrics(s.Metrics)}
	if !s.Config.Search.CacheEnabled {
		return opts
	}
	client, err := pkgredis.NewClient(ctx, s.Config.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		return opts
	}
	s.OnClose(func(context.Context) error { return client.Close() })
	s.Health.RegisterOptional("redis", health.Ping(client.Ping))
	slog.Info("search cache enabled", "addr", s.Config.Redis.Addr, "ttl", s.Config.Redis.CacheTTL)
	return append(opts, searcher.WithCache(cache.New[searcher.Response](client, s.Config.Redis.CacheTTL, s.Metrics)))
}

// Refresh starts the engine's refresh loop when it is read-only, so a
// searcher process follows commits made by the indexer service.
func (s *Service) Refresh(ctx context.Context, engine *indexer.Engine) {
	if !s.Config.Index.ReadOnly || s.Config.Index.RefreshInterval <= 0 {
		return
	}
	engine.StartRefreshLoop(ctx, s.Config.Index.RefreshInterval)
	slog.Info("index refresh loop started", "interval", s.Config.Index.RefreshInterval)
}
