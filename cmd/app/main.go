// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"discount-code-service/internal/config"
	"discount-code-service/internal/domain/ports/repository"
	"discount-code-service/internal/infra/api"
	pg "discount-code-service/internal/infra/db/postgres"
	"discount-code-service/internal/infra/logging"
	"discount-code-service/internal/infra/metrics"
	red "discount-code-service/internal/infra/redis"
	"discount-code-service/internal/infra/sched"
	"discount-code-service/internal/usecase"
)

// Set via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting discount code service")

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if err := pg.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema bootstrap")
	}

	// ---- Repositories ----
	var codeRepo repository.DiscountCodeRepository = pg.NewDiscountCodeRepo(pool)
	var rateLimiter *red.RateLimiter

	// ---- Redis (optional) ----
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()

		codeRepo = pg.NewDiscountCodeRepoCacheDecorator(codeRepo, redisClient, cfg.Redis.TTL, logger)
		if cfg.RateLimit.Enabled {
			rateLimiter = red.NewRateLimiter(redisClient)
		}
		logger.Info().Dur("ttl", cfg.Redis.TTL).Bool("rate_limit", rateLimiter != nil).Msg("redis enabled")
	} else if cfg.RateLimit.Enabled {
		logger.Warn().Msg("rate_limit.enabled is set but redis.url is empty; rate limiting disabled")
	}

	// ---- Use cases ----
	txManager := pg.NewTxManager(pool)
	codeUC := usecase.NewDiscountCodeUseCase(codeRepo, txManager, cfg.Codes.MaxGenerationAttempts, logger)

	// ---- HTTP ----
	srv := api.NewServer(codeUC, pool.Ping, logger)
	router := api.NewRouter(srv, api.RouterOptions{
		CORSOrigins: cfg.API.CORSOrigins,
		Timeout:     cfg.API.Timeout,
		RateLimiter: rateLimiter,
		RateLimit:   cfg.RateLimit.Limit,
		RateWindow:  cfg.RateLimit.Window,
		Metrics:     true,
		Logger:      logger,
	})
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ---- Pool stats worker ----
	statsWorker := sched.NewPoolStatsWorker(cfg.Metrics.PoolStatsInterval, sched.PgxPoolStats(pool), logger)
	go func() { _ = statsWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-serveErr:
		logger.Error().Err(err).Msg("http server error")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
		os.Exit(1)
	}
	logger.Info().Msg("stopped")
}
