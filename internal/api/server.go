// Package api implements the webhook HTTP API that triggers
// directive runs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/dirigent/internal/config"
	"github.com/nugget/dirigent/internal/directive"
	"github.com/nugget/dirigent/internal/driver"
	"github.com/nugget/dirigent/internal/usage"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Runner executes directive runs. Satisfied by *driver.Driver.
type Runner interface {
	Run(ctx context.Context, req driver.Request) (*driver.Result, error)
}

// SessionStats tracks aggregate usage since process start.
type SessionStats struct {
	TotalRuns         int64   `json:"total_runs"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	EstimatedCostUSD  float64 `json:"estimated_cost_usd"`
	mu                sync.Mutex
}

// Record adds one run's usage to the session totals.
func (s *SessionStats) Record(inputTokens, outputTokens int, costUSD float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalRuns++
	s.TotalInputTokens += int64(inputTokens)
	s.TotalOutputTokens += int64(outputTokens)
	s.EstimatedCostUSD += costUSD
}

// Snapshot returns a copy of the current totals.
func (s *SessionStats) Snapshot() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStats{
		TotalRuns:         s.TotalRuns,
		TotalInputTokens:  s.TotalInputTokens,
		TotalOutputTokens: s.TotalOutputTokens,
		EstimatedCostUSD:  s.EstimatedCostUSD,
	}
}

// Server is the webhook HTTP server.
type Server struct {
	address string
	port    int
	store   *directive.Store
	runner  Runner
	usage   *usage.Store
	pricing map[string]config.PricingEntry
	model   string
	version string
	logger  *slog.Logger
	server  *http.Server
	stats   *SessionStats
}

// NewServer creates the webhook server. usageStore may be nil to
// disable persistence.
func NewServer(address string, port int, store *directive.Store, runner Runner, usageStore *usage.Store, pricing map[string]config.PricingEntry, model, version string, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		store:   store,
		runner:  runner,
		usage:   usageStore,
		pricing: pricing,
		model:   model,
		version: version,
		logger:  logger,
		stats:   &SessionStats{},
	}
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /webhooks", s.handleWebhookList)
	mux.HandleFunc("POST /webhook/{slug}", s.handleWebhook)
	mux.HandleFunc("GET /stats", s.handleStats)
	return s.withLogging(mux)
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: directive runs hold the connection for
		// many completion round trips.
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting webhook server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"service": "dirigent",
		"version": s.version,
		"status":  "running",
		"endpoints": map[string]string{
			"webhook": "POST /webhook/{slug}",
			"list":    "GET /webhooks",
			"stats":   "GET /stats",
		},
	}, s.logger)
}

func (s *Server) handleWebhookList(w http.ResponseWriter, r *http.Request) {
	directives, err := s.store.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	webhooks := make(map[string]any, len(directives))
	for _, d := range directives {
		webhooks[d.Name] = map[string]any{
			"title":       d.Title,
			"description": d.Description,
			"tools":       d.Tools,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"webhooks": webhooks}, s.logger)
}

// webhookPayload is the optional request body for a webhook trigger.
// Input data is either the "data" field or, absent that, the whole
// body object.
type webhookPayload map[string]any

func (p webhookPayload) input() map[string]any {
	if data, ok := p["data"].(map[string]any); ok {
		return data
	}
	return p
}

func (p webhookPayload) maxTurns() int {
	if v, ok := p["max_turns"].(float64); ok && v >= 0 {
		return int(v)
	}
	return -1
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	// An empty body is a valid trigger; a malformed one is not.
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	d, err := s.store.Load(slug)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown webhook slug: %s", slug))
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.NewString()
	result, err := s.runner.Run(r.Context(), driver.Request{
		Directive:  d,
		Input:      payload.input(),
		TurnBudget: payload.maxTurns(),
		RunID:      runID,
	})
	if err != nil {
		var cerr *driver.CompletionEndpointError
		if errors.As(err, &cerr) {
			s.writeError(w, http.StatusBadGateway, cerr.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.recordUsage(r.Context(), runID, d.Name, result)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"status":       "success",
		"slug":         slug,
		"run_id":       runID,
		"directive":    d.Name,
		"state":        result.State,
		"response":     result.Response,
		"thinking":     result.Thinking,
		"conversation": result.Transcript,
		"usage":        result.Usage,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}, s.logger)
}

// recordUsage updates session totals and, when persistence is
// enabled, appends a run record.
func (s *Server) recordUsage(ctx context.Context, runID, directiveName string, result *driver.Result) {
	cost := usage.ComputeCost(s.model, result.Usage.InputTokens, result.Usage.OutputTokens, s.pricing)
	s.stats.Record(result.Usage.InputTokens, result.Usage.OutputTokens, cost)

	if s.usage == nil {
		return
	}
	err := s.usage.Record(ctx, usage.Record{
		RunID:        runID,
		Directive:    directiveName,
		Model:        s.model,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		Turns:        result.Usage.Turns,
		Termination:  string(result.State),
		CostUSD:      cost,
	})
	if err != nil {
		s.logger.Warn("usage record failed", "run_id", runID, "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.stats.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, snap, s.logger)
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"detail": detail}, s.logger)
}
