package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"salepoint/backend/internal/cache"
	"salepoint/backend/internal/config"
	"salepoint/backend/internal/httpapi"
	"salepoint/backend/internal/service"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/store/memory"
	pgstore "salepoint/backend/internal/store/postgres"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("invalid security configuration", "error", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(startCtx, cfg.DatabaseURL)
		if err != nil {
			sugar.Fatalw("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback", "error", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		sugar.Infow("repository ready", "kind", "postgres")
	} else {
		repo = memory.NewSeeded()
		sugar.Infow("repository ready", "kind", "in-memory")
	}

	stockCache := cache.StockCache(cache.NoopStockCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisStockCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(startCtx); err != nil {
			sugar.Warnw("redis unavailable, using noop cache", "error", err)
		} else {
			stockCache = redisCache
			closers = append(closers, redisCache.Close)
			sugar.Infow("cache ready", "kind", "redis")
		}
	} else {
		sugar.Infow("cache ready", "kind", "noop")
	}

	svc := service.New(repo, stockCache, sugar, service.Options{
		GuardWindow:      cfg.CommitGuardWindow,
		StockCheckTTL:    cfg.StockCacheTTL,
		RetryAttempts:    cfg.RetryAttempts,
		RetryBaseBackoff: cfg.RetryBaseBackoff,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, sugar)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("salepoint backend listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			sugar.Warnw("close error", "error", err)
		}
	}
	sugar.Info("server stopped")
}
