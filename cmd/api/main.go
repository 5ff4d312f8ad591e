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

	"trace-go/internal/app"
	"trace-go/internal/config"
	"trace-go/internal/logger"
	"trace-go/internal/server"
)

func main() {
	log := logger.New()
	log.Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log.Component("app"))
	if err != nil {
		log.WithError(err).Fatal("failed to initialise")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.WithError(err).Warn("shutdown incomplete")
		}
	}()

	if cfg.SeedDatasetPath != "" {
		if _, err := app.Seed(ctx, a.Store, cfg.SeedDatasetPath, a.Location, true, log.Component("seed")); err != nil {
			log.WithError(err).WithField("dataset_path", cfg.SeedDatasetPath).Error("failed to seed store")
		}
	}
	if n, err := a.Store.Count(ctx); err == nil {
		log.WithField("records", n).Info("record store ready")
	}

	api := server.New(a.Pipeline, a.Processor, a.Store, server.Options{
		UploadDir:     cfg.UploadDir,
		MaxAudioBytes: cfg.MaxAudioBytes,
		MaxVideoBytes: cfg.MaxVideoBytes,
		Location:      a.Location,
		Metrics:       a.Metrics.Handler(),
		Cleanup:       a.Metrics,
	}, log.Entry)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		// Queries stream for as long as transcription and synthesis take.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server terminated")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("graceful shutdown failed")
		}
	}
}
