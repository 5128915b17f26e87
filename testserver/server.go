// Package testserver provides a mock ledger gateway for local runs and tests.
// It accepts the same envelopes the gateway submitter sends, checks their
// shape and answers with a transaction ID.
package testserver

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"healthbench/internal/workload"
)

// Options tunes the server's behaviour. Every field can be overridden per
// request with the "delay" (milliseconds) and "failRate" (percent) query
// parameters.
type Options struct {
	// Delay is added before every response.
	Delay time.Duration
	// Jitter adds a random extra delay in [0, Jitter).
	Jitter time.Duration
	// FailRate is the percentage of requests answered with a 500.
	FailRate int
}

// Stats counts what the server has seen.
type Stats struct {
	Invokes  int64 `json:"invokes"`
	Queries  int64 `json:"queries"`
	Rejected int64 `json:"rejected"`
	Failed   int64 `json:"failed"`
}

// status is the last report accepted for the reporting node.
type status struct {
	Severity   int    `json:"severity"`
	StatusHash string `json:"statusHash"`
	Details    string `json:"details"`
	TxID       string `json:"txId"`
}

type envelope struct {
	ID       string   `json:"id"`
	Contract string   `json:"contract"`
	Verb     string   `json:"verb"`
	Args     []string `json:"args"`
}

// Server is a mock NodeHealthMonitor gateway.
type Server struct {
	mux  *http.ServeMux
	opts Options

	invokes  atomic.Int64
	queries  atomic.Int64
	rejected atomic.Int64
	failed   atomic.Int64

	mu     sync.RWMutex
	latest *status
}

// NewServer creates a new test server with all endpoints configured.
func NewServer(opts Options) *Server {
	s := &Server{
		mux:  http.NewServeMux(),
		opts: opts,
	}
	s.registerHandlers()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Stats returns a snapshot of the request counters.
func (s *Server) Stats() Stats {
	return Stats{
		Invokes:  s.invokes.Load(),
		Queries:  s.queries.Load(),
		Rejected: s.rejected.Load(),
		Failed:   s.failed.Load(),
	}
}

func (s *Server) registerHandlers() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/invoke", s.handleInvoke)
	s.mux.HandleFunc("/query", s.handleQuery)
	s.mux.HandleFunc("/stats", s.handleStats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Stats())
}

// handleInvoke accepts reportStatus and records it as the latest status.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	s.invokes.Add(1)
	env, ok := s.accept(w, r, workload.VerbReportStatus)
	if !ok {
		return
	}

	st, err := parseReport(env.Args)
	if err != nil {
		s.reject(w, err)
		return
	}
	st.TxID = uuid.NewString()

	s.mu.Lock()
	s.latest = &st
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"txId": st.TxID})
}

// handleQuery answers getLatestStatus with the last accepted report, or a
// null result when none has been recorded yet.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.queries.Add(1)
	env, ok := s.accept(w, r, workload.VerbGetLatestStatus)
	if !ok {
		return
	}

	if len(env.Args) != 1 {
		s.reject(w, fmt.Errorf("getLatestStatus takes 1 argument, got %d", len(env.Args)))
		return
	}
	if err := workload.ValidateAddress(env.Args[0]); err != nil {
		s.reject(w, err)
		return
	}

	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"txId":   uuid.NewString(),
		"result": latest,
	})
}

// accept applies delay and failure injection, then decodes the envelope and
// checks it targets verb. It writes the response itself when it returns false.
func (s *Server) accept(w http.ResponseWriter, r *http.Request, verb string) (envelope, bool) {
	var env envelope
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return env, false
	}

	q := r.URL.Query()
	if !sleep(r.Context(), s.delay(q.Get("delay"))) {
		return env, false
	}

	if rand.IntN(100) < s.failRate(q.Get("failRate")) {
		s.failed.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "simulated failure"})
		return env, false
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusInternalServerError)
		return env, false
	}
	if err := json.Unmarshal(body, &env); err != nil {
		s.rejectStatus(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return env, false
	}
	if env.Contract != workload.HealthMonitorContract {
		s.rejectStatus(w, http.StatusNotFound, fmt.Errorf("unknown contract %q", env.Contract))
		return env, false
	}
	if env.Verb != verb {
		s.rejectStatus(w, http.StatusBadRequest, fmt.Errorf("verb %q not served on %s", env.Verb, r.URL.Path))
		return env, false
	}
	return env, true
}

// sleep waits d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Server) delay(override string) time.Duration {
	d := s.opts.Delay
	if ms, err := strconv.Atoi(override); err == nil && ms >= 0 {
		d = time.Duration(ms) * time.Millisecond
	}
	if s.opts.Jitter > 0 {
		d += rand.N(s.opts.Jitter)
	}
	return d
}

func (s *Server) failRate(override string) int {
	rate := s.opts.FailRate
	if n, err := strconv.Atoi(override); err == nil && n >= 0 && n <= 100 {
		rate = n
	}
	return rate
}

// reject answers with 200 and an "error" field, the way a ledger reports a
// transaction it refused to execute.
func (s *Server) reject(w http.ResponseWriter, err error) {
	s.rejectStatus(w, http.StatusOK, err)
}

func (s *Server) rejectStatus(w http.ResponseWriter, code int, err error) {
	s.rejected.Add(1)
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// parseReport checks reportStatus arguments: a severity of 0, 1 or 2, a
// 0x-prefixed 32-byte hash and a details string.
func parseReport(args []string) (status, error) {
	if len(args) != 3 {
		return status{}, fmt.Errorf("reportStatus takes 3 arguments, got %d", len(args))
	}

	severity, err := strconv.Atoi(args[0])
	if err != nil || severity < int(workload.SeverityOK) || severity > int(workload.SeverityCritical) {
		return status{}, fmt.Errorf("invalid severity %q", args[0])
	}

	hash, ok := strings.CutPrefix(args[1], "0x")
	if !ok {
		return status{}, fmt.Errorf("invalid status hash %q: missing 0x prefix", args[1])
	}
	raw, err := hex.DecodeString(hash)
	if err != nil || len(raw) != 32 {
		return status{}, fmt.Errorf("invalid status hash %q: want 32 hex-encoded bytes", args[1])
	}

	return status{Severity: severity, StatusHash: args[1], Details: args[2]}, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
