package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"trace-go/internal/logger"
	"trace-go/internal/media"
	"trace-go/internal/pipeline"
)

// sseWriter streams pipeline events as server-sent events, flushing each one.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &sseWriter{w: w, flusher: f}, true
}

func (s *sseWriter) Emit(event pipeline.Event, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Server) handleQuery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithRequest(s.log, r).WithField("handler", "query")

		upload, ok := s.receive(w, r, "audio", media.Audio, s.opts.MaxAudioBytes)
		if !ok {
			return
		}
		defer s.discard(log, upload)

		log.WithFields(map[string]interface{}{
			"file": upload.OriginalName,
			"size": upload.SizeLabel(),
			"mime": upload.MimeType,
		}).Info("audio received")

		stream, ok := newSSEWriter(w)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		// A query runs to completion even if the client disconnects.
		ctx := context.WithoutCancel(r.Context())
		_, _ = s.queries.Run(ctx, pipeline.Request{
			AudioPath:   upload.Path,
			MimeType:    upload.MimeType,
			DisplayName: upload.OriginalName,
		}, stream)
	}
}
