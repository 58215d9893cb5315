package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"geekbudget/internal/amqp"
	"geekbudget/internal/cache"
	"geekbudget/internal/cli"
	apphttp "geekbudget/internal/http"
	"geekbudget/internal/log"
	"geekbudget/internal/services"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(nil, log.ComponentApp)
	cfg := cli.MustLoadConfig(logger)
	logger = cli.SetupLogger(cfg, log.ComponentApp)

	ctx := context.Background()
	be, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// Budget changes are announced only when a broker is configured.
	var (
		publisher  services.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewViewService(be.Store, publisher, services.ViewServiceConfig{
		CacheSize:           cfg.ViewCacheSize,
		CacheTTL:            cfg.ViewCacheTTL,
		DefaultWindowMonths: cfg.DefaultWindowMonths,
		DefaultCurrency:     cfg.DefaultCurrency,
	}, logger)

	caches := cache.NewManager(logger)
	for _, c := range svc.Caches() {
		caches.Register(c)
	}
	caches.StartCleanup(cacheCleanupInterval)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              be.Ready,
	}, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting geekbudget server", "port", cfg.Port, "backend", cfg.DataBackend, log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
