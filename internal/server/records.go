package server

import (
	"context"
	"net/http"
	"strconv"

	"trace-go/internal/dataset"
	"trace-go/internal/logger"
	"trace-go/internal/media"
	"trace-go/internal/types"
)

const defaultSummaryTop = 10

type RecordsResponse struct {
	Success bool                   `json:"success"`
	Count   int                    `json:"count"`
	Records []types.AnalysisRecord `json:"records"`
}

func (s *Server) handleListRecords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.records.ListAll(r.Context())
		if err != nil {
			logger.WithRequest(s.log, r).WithError(err).Error("list records failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(records) {
			records = records[:limit]
		}
		writeJSON(w, http.StatusOK, RecordsResponse{Success: true, Count: len(records), Records: records})
	}
}

func (s *Server) handleRecordSummary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.records.ListAll(r.Context())
		if err != nil {
			logger.WithRequest(s.log, r).WithError(err).Error("list records failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		top := defaultSummaryTop
		if n, err := strconv.Atoi(r.URL.Query().Get("top")); err == nil && n > 0 {
			top = n
		}
		writeJSON(w, http.StatusOK, dataset.Summarize(records, top, s.opts.Location))
	}
}

func (s *Server) handleAnalyze() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithRequest(s.log, r).WithField("handler", "analyze")

		upload, ok := s.receive(w, r, "video", media.Video, s.opts.MaxVideoBytes)
		if !ok {
			return
		}
		defer s.discard(log, upload)

		log.WithField("file", upload.OriginalName).WithField("size", upload.SizeLabel()).Info("video received")

		// Analysis and remote cleanup finish even if the client disconnects.
		res, err := s.videos.ProcessFile(context.WithoutCancel(r.Context()), upload)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, res)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
