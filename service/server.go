// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poiesic/datakiln/fetch"
	"github.com/poiesic/datakiln/ingest"
)

// maxRequestBody bounds the ingest request body, not the fetched content.
const maxRequestBody = 1 << 20

// Server handles ingest requests over HTTP.
type Server struct {
	ingestor *ingest.Ingestor
	metrics  *Metrics
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewServer creates a Server around an ingestor.
func NewServer(ingestor *ingest.Ingestor, opts ...Option) (*Server, error) {
	if ingestor == nil {
		return nil, ErrIngestorRequired
	}

	s := &Server{
		ingestor: ingestor,
		metrics:  NewMetrics(),
		logger:   slog.Default().With("component", "ingest-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the HTTP routing for the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	return mux
}

type ingestRequest struct {
	URL     string `json:"url"`
	License string `json:"license"`
	Source  string `json:"source"`
}

type ingestResponse struct {
	AssetID   string `json:"asset_id"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	s.metrics.Requests.Inc()

	var req ingestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.metrics.Failure.Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.URL == "" {
		s.metrics.Failure.Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return
	}

	asset, existed, err := s.ingestor.Ingest(r.Context(), ingest.Request{
		URL:     req.URL,
		License: req.License,
		Source:  req.Source,
	})
	if err != nil {
		s.metrics.Failure.Inc()
		s.logger.Warn("ingest failed", "url", req.URL, "error", err)
		writeJSON(w, ingestStatus(err), errorResponse{Error: err.Error()})
		return
	}

	if existed {
		s.metrics.Duplicates.Inc()
	} else {
		s.metrics.Success.Inc()
	}
	writeJSON(w, http.StatusOK, ingestResponse{
		AssetID:   string(asset.ID),
		Duplicate: existed,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ingestStatus maps an ingest failure to an HTTP status. Source fetch
// failures keep their upstream class: a 4xx from the origin is the
// caller's problem, anything transient is a gateway error.
func ingestStatus(err error) int {
	var fetchErr *fetch.FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.StatusCode >= 400 && fetchErr.StatusCode < 500 {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}
	if errors.Is(err, ingest.ErrEmptyURL) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
