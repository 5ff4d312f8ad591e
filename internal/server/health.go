package server

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "Trace API", Timestamp: time.Now().UTC()})
	}
}

type IndexResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		endpoints := map[string]string{
			"POST /analyze":            "Upload and analyze one video",
			"POST /api/query":          "Upload audio query and get AI response",
			"GET /api/records":         "List stored analysis records",
			"GET /api/records/summary": "Summarize stored analysis records",
			"GET /health":              "Check server status",
		}
		if s.opts.Metrics != nil {
			endpoints["GET /metrics"] = "Prometheus metrics"
		}
		writeJSON(w, http.StatusOK, IndexResponse{Message: "Trace API", Version: "1.0.0", Endpoints: endpoints})
	}
}
