package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bushels/PipeVault-sub014/internal/config"
	"github.com/Bushels/PipeVault-sub014/internal/infra"
	"github.com/Bushels/PipeVault-sub014/internal/router"
	"github.com/Bushels/PipeVault-sub014/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	// Circuit breaker guarding the downstream notification webhook. Shared by
	// the worker pool, the DLQ redrive cron and the health endpoint.
	notifyCB := infra.NewCircuitBreaker(infra.NotifyCBConfig())

	var notifier infra.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = infra.NewWebhookNotifier(cfg.NotifyWebhookURL, notifyCB)
	} else {
		notifier = infra.LogNotifier{}
		log.Warn().Msg("NOTIFY_WEBHOOK_URL not set — lifecycle events will only be logged")
	}

	// Goroutine worker pool for async lifecycle notifications. Handlers are
	// wired here (composition root) so the pool has full access to infra deps.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerHandlers := &worker.WorkerHandlers{
		Notify: worker.NewNotifyWorker(notifier),
	}
	worker.StartWorkerPool(ctx, rdb, workerHandlers, cfg.WorkerPoolSize)
	worker.StartRedriveCron(ctx, rdb, notifyCB)

	r := router.New(cfg, db, rdb, notifyCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("PipeVault backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
