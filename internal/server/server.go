// Package server exposes the voice query pipeline and video analysis over
// HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"trace-go/internal/logger"
	"trace-go/internal/media"
	"trace-go/internal/pipeline"
	"trace-go/internal/processor"
	"trace-go/internal/types"
)

type QueryRunner interface {
	Run(ctx context.Context, req pipeline.Request, emitter pipeline.Emitter) (*types.QueryResult, error)
}

type VideoProcessor interface {
	ProcessFile(ctx context.Context, u media.Upload) (processor.VideoResult, error)
}

type RecordReader interface {
	ListAll(ctx context.Context) ([]types.AnalysisRecord, error)
}

// CleanupRecorder counts local temp files that could not be removed.
type CleanupRecorder interface {
	RecordCleanupFailure()
}

type Options struct {
	UploadDir     string
	MaxAudioBytes int64
	MaxVideoBytes int64
	Location      *time.Location
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	Cleanup CleanupRecorder
}

type Server struct {
	queries QueryRunner
	videos  VideoProcessor
	records RecordReader
	opts    Options
	log     *logrus.Entry
}

func New(queries QueryRunner, videos VideoProcessor, records RecordReader, opts Options, log *logrus.Entry) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	return &Server{
		queries: queries,
		videos:  videos,
		records: records,
		opts:    opts,
		log:     log.WithField("component", "http"),
	}
}

// Handler builds the chi router with every route wired.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(cors)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex())
	r.Get("/health", s.handleHealth())
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Post("/analyze", s.handleAnalyze())
	r.Route("/api", func(r chi.Router) {
		r.Post("/query", s.handleQuery())
		r.Get("/records", s.handleListRecords())
		r.Get("/records/summary", s.handleRecordSummary())
	})
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := logger.RequestID(r)
		r.Header.Set(logger.RequestIDHeader, id)
		w.Header().Set(logger.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// cors allows any origin, matching the browser and glasses clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+logger.RequestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.WithRequest(s.log, r).WithFields(logrus.Fields{
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request completed")
	})
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Success: false, Error: msg})
}
