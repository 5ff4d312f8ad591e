// Package app wires configuration into the running stages shared by the API
// server and tracectl.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"trace-go/internal/ai"
	"trace-go/internal/composer"
	"trace-go/internal/config"
	"trace-go/internal/dataset"
	"trace-go/internal/extractor"
	"trace-go/internal/gemini"
	"trace-go/internal/metrics"
	"trace-go/internal/pipeline"
	"trace-go/internal/processor"
	"trace-go/internal/speech"
	"trace-go/internal/store"
	"trace-go/internal/telemetry"
	"trace-go/internal/transcription"
	"trace-go/internal/types"
)

type App struct {
	Config    *config.Config
	Location  *time.Location
	Store     *store.SQLite
	Metrics   *metrics.Metrics
	Pipeline  *pipeline.Orchestrator
	Processor *processor.Processor

	shutdown telemetry.Shutdown
	log      *logrus.Entry
}

// OpenStore opens the record store and resolves the configured timezone. It
// needs no backend credentials.
func OpenStore(cfg *config.Config) (*store.SQLite, *time.Location, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return db, loc, nil
}

// Build opens the store, connects the AI backend and assembles the pipeline
// and the video processor.
func Build(ctx context.Context, cfg *config.Config, log *logrus.Entry) (*App, error) {
	if err := cfg.RequireBackend(); err != nil {
		return nil, err
	}

	db, loc, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:      cfg.GeminiAPIKey,
		TTSModel:    cfg.TTSModel,
		Voice:       cfg.TTSVoice,
		RetryWindow: cfg.BackendRetryWindow,
	}, log)
	if err != nil {
		_ = shutdown(ctx)
		_ = db.Close()
		return nil, err
	}

	m := metrics.New()
	audioPoll := ai.PollConfig{Interval: cfg.AudioPollInterval, MaxAttempts: cfg.AudioPollAttempts}
	videoPoll := ai.PollConfig{Interval: cfg.VideoPollInterval, MaxAttempts: cfg.VideoPollAttempts}

	orchestrator := pipeline.New(pipeline.Deps{
		Transcriber: transcription.New(client, cfg.TranscriptionModel, audioPoll, m, log),
		Extractor:   extractor.New(client, cfg.QueryModel, m, log),
		Records:     db,
		Responder:   composer.New(client, cfg.QueryModel, loc, log),
		Synthesizer: speech.New(client, m, log),
		Metrics:     m,
		Location:    loc,
		Log:         log,
	})

	return &App{
		Config:    cfg,
		Location:  loc,
		Store:     db,
		Metrics:   m,
		Pipeline:  orchestrator,
		Processor: processor.New(client, db, cfg.VideoModel, videoPoll, m, log),
		shutdown:  shutdown,
		log:       log.WithField("component", "app"),
	}, nil
}

// Close flushes telemetry and closes the store.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.shutdown(ctx), a.Store.Close())
}

type seedStore interface {
	Count(ctx context.Context) (int, error)
	Insert(ctx context.Context, rec types.AnalysisRecord) (string, error)
}

// Seed loads the workbook at path into the store and returns how many records
// were inserted. With onlyIfEmpty it does nothing when records already exist.
func Seed(ctx context.Context, db seedStore, path string, loc *time.Location, onlyIfEmpty bool, log *logrus.Entry) (int, error) {
	if onlyIfEmpty {
		n, err := db.Count(ctx)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			log.WithField("records", n).Debug("store already populated, skipping seed")
			return 0, nil
		}
	}

	records, err := dataset.LoadRecords(path, loc)
	if err != nil {
		return 0, fmt.Errorf("seed from %s: %w", path, err)
	}
	for i, rec := range records {
		if _, err := db.Insert(ctx, rec); err != nil {
			return i, fmt.Errorf("seed record %d: %w", i+1, err)
		}
	}
	log.WithFields(logrus.Fields{"path": path, "records": len(records)}).Info("store seeded")
	return len(records), nil
}
