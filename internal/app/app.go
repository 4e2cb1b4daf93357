package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/geo-challenges/internal/challenge/external"
	"github.com/gokatarajesh/geo-challenges/internal/config"
	"github.com/gokatarajesh/geo-challenges/internal/importer"
	"github.com/gokatarajesh/geo-challenges/internal/logging"
	"github.com/gokatarajesh/geo-challenges/internal/server"
	"github.com/gokatarajesh/geo-challenges/internal/store"
	ws "github.com/gokatarajesh/geo-challenges/pkg/http/ws"
)

// Application aggregates shared infrastructure (store, importer, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis *redis.Client
	store store.Store
	jobs  *importer.Jobs
	http  *http.Server
}

// New bootstraps logger, store, fetch client, importer and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, cfg.LogLevel)
	logger.Info().Str("store_backend", cfg.Store.Backend).Msg("starting application bootstrap")

	st, redisClient, err := NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := NewImporter(cfg, st, logger)
	wsHub := ws.NewHub(logger)
	jobs := importer.NewJobs(svc, wsHub, logger)

	httpHandler := importer.NewHTTPHandler(svc, jobs, logger)
	wsHandler := importer.NewWSHandler(wsHub, jobs, logger)
	apiServer := server.NewHTTPServer(cfg, logger, st, httpHandler, wsHandler.HandleWebSocket)

	return &Application{
		cfg:    cfg,
		logger: logger,
		redis:  redisClient,
		store:  st,
		jobs:   jobs,
		http:   apiServer,
	}, nil
}

// NewStore opens the configured backend. The Redis client is nil for the
// memory backend.
func NewStore(ctx context.Context, cfg *config.App, logger zerolog.Logger) (store.Store, *redis.Client, error) {
	if cfg.Store.Backend == config.BackendMemory {
		logger.Warn().Msg("using in-memory challenge store; records are lost on exit")
		return store.NewMemoryStore(), nil, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return store.NewRedisStore(redisClient, cfg.Redis.KeyPrefix, logger), redisClient, nil
}

// NewImporter builds the fetch client and orchestrator. A request-scoped
// token wins over the configured cookie.
func NewImporter(cfg *config.App, st store.Store, logger zerolog.Logger) *importer.Service {
	tokens := external.ChainTokens(external.ContextToken{}, external.StaticToken(cfg.GeoGuessr.NCFAToken))
	client := external.NewGeoGuessrClient(cfg.GeoGuessr.BaseURL, tokens, &http.Client{Timeout: cfg.GeoGuessr.HTTPTimeout})
	return importer.NewService(st, client, logger, importer.ServiceOptions{
		Policy: importer.Policy{
			BatchSize:  cfg.Import.BatchSize,
			BatchDelay: cfg.Import.BatchDelay,
			Stagger:    cfg.Import.Stagger,
		},
	})
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}
	if err := a.jobs.Close(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("import jobs did not stop in time")
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
