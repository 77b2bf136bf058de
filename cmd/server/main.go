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

	"comptoir/backend/internal/cache"
	"comptoir/backend/internal/config"
	"comptoir/backend/internal/httpapi"
	"comptoir/backend/internal/loyalty"
	"comptoir/backend/internal/service"
	"comptoir/backend/internal/store"
	"comptoir/backend/internal/store/memory"
	pgstore "comptoir/backend/internal/store/postgres"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		sugar.Fatalw("invalid security configuration", "error", err)
	}

	loyaltyCfg := loyalty.Config{
		SilverThreshold: cfg.LoyaltySilverThreshold,
		GoldThreshold:   cfg.LoyaltyGoldThreshold,
		RatePercent:     cfg.LoyaltyRatePercent,
	}
	if err := loyaltyCfg.Validate(); err != nil {
		sugar.Fatalw("invalid loyalty configuration", "error", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(startCtx, cfg.DatabaseURL)
		if err != nil {
			sugar.Fatalw("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", "error", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		sugar.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		sugar.Info("repository: in-memory")
	}

	statsCache := cache.StatsCache(cache.NewNoop())
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisStatsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Duration(cfg.StatsTTLSeconds)*time.Second)
		if err := redisCache.Ping(startCtx); err != nil {
			sugar.Warnw("redis unavailable, using noop stats cache", "error", err)
		} else {
			statsCache = redisCache
			closers = append(closers, redisCache.Close)
			sugar.Info("stats cache: redis")
		}
	} else {
		sugar.Info("stats cache: noop")
	}

	svc := service.New(repo, statsCache, sugar, loyaltyCfg, cfg.StoreID)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, sugar, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
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
		sugar.Infow("backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("terminated with error", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			sugar.Warnw("close error", "error", err)
		}
	}

	sugar.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
