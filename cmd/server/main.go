package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/exp/slog"

	"possync/internal/app/server/api"
	"possync/internal/app/server/config"
	"possync/internal/domain/entity"
	"possync/internal/infrastructure/storage/postgres"
	"possync/internal/infrastructure/storage/redis"
	"possync/internal/utils/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logger.NewWithLevel(cfg.Env, cfg.Logger.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	storage, err := postgres.New(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer storage.Close()

	var cache entity.IdempotencyCache
	if cfg.Redis.URL != "" {
		client, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		idem := redis.NewIdempotencyCache(client, cfg.Redis.TTL)
		defer idem.Close()
		cache = idem
		log.Info("idempotency cache enabled", "ttl", cfg.Redis.TTL)
	}

	repo := postgres.NewEntityRepository(storage.Pool(), log)
	srv := &http.Server{
		Addr:    cfg.Server.RunAddress,
		Handler: api.New(repo, cache, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", "address", cfg.Server.RunAddress, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
