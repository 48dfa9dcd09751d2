// Package server exposes the text scanners over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/auditerr"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/cases"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/engine"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/hash"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/metrics"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/report"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/suite"
	"github.com/ogulcanaydogan/llm-audit-gate/pkg/types"
)

const maxBodyBytes = 10 * 1024 * 1024 // 10 MB

var scanners = map[string]bool{
	suite.PII:       true,
	suite.Injection: true,
	suite.Toxicity:  true,
}

type ScanRequest struct {
	Scanner string `json:"scanner"`
	Text    string `json:"text"`
}

type ScanResponse struct {
	Passed   bool          `json:"passed"`
	ExitCode int           `json:"exit_code"`
	Cached   bool          `json:"cached"`
	Verdict  types.Verdict `json:"verdict"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	cfg     Config
	engine  *engine.Engine
	cache   *verdictCache
	group   singleflight.Group
	metrics *metrics.Recorder
	logger  *zap.Logger
	now     func() time.Time
}

func New(cfg Config, eng *engine.Engine, rec *metrics.Recorder, logger *zap.Logger) *Server {
	if eng == nil {
		eng = engine.New(engine.WithLogger(logger), engine.WithMetrics(rec))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		engine:  eng,
		cache:   newVerdictCache(time.Duration(cfg.CacheTTLSeconds) * time.Second),
		metrics: rec,
		logger:  logger.With(zap.String("component", "server")),
		now:     time.Now,
	}
}

// Routes mounts the scan, health and metrics endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/scan", http.HandlerFunc(s.handleScan))
	mux.Handle("GET /healthz", HealthHandler())
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// HealthHandler returns an HTTP handler for liveness and readiness probes.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
		return
	}
	var req ScanRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode scan request: %w", err))
		return
	}
	if !scanners[req.Scanner] {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown scanner %q", req.Scanner))
		return
	}

	v, cached, err := s.scan(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if auditerr.IsDetector(err) {
			status = http.StatusBadGateway
		}
		s.logger.Error("scan failed", zap.String("scanner", req.Scanner), zap.Error(err))
		writeError(w, status, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ScanResponse{
		Passed:   v.Passed,
		ExitCode: report.ExitCode(v),
		Cached:   cached,
		Verdict:  v,
	})
}

func (s *Server) scan(ctx context.Context, req ScanRequest) (types.Verdict, bool, error) {
	key := req.Scanner + ":" + hash.Sum([]byte(req.Text))
	if v, ok := s.cache.get(key, s.now()); ok {
		s.metrics.CacheLookup(true)
		return v, true, nil
	}
	s.metrics.CacheLookup(false)

	res, err, _ := s.group.Do(key, func() (any, error) {
		// Another in-flight request may already have filled the cache.
		if v, ok := s.cache.get(key, s.now()); ok {
			return v, nil
		}
		plan, err := suite.Scan(req.Scanner, s.cfg.Detectors, cases.Single{Input: req.Text},
			suite.ScanOptions{ToxicityCeiling: s.cfg.ToxicityCeiling})
		if err != nil {
			return nil, err
		}
		v, err := s.engine.Run(context.WithoutCancel(ctx), plan)
		if err != nil {
			return nil, err
		}
		s.cache.put(key, v, s.now())
		return v, nil
	})
	if err != nil {
		return types.Verdict{}, false, err
	}
	return res.(types.Verdict), false, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}
