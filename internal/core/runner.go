package core

import (
	"context"
	"errors"
)

// ErrMaxIterationsReached indicates the runner hit its transaction budget.
var ErrMaxIterationsReached = errors.New("max iterations reached")

// NullReporter discards all events (used during warmup).
var NullReporter Reporter = nullReporter{}

type nullReporter struct{}

func (nullReporter) Report(Event) {}

// RunnerConfig controls execution behavior.
type RunnerConfig struct {
	Round         int
	Label         string
	MaxIterations int   // 0 = unlimited
	WarmupIters   int   // iterations before events count (per-worker)
	Clock         Clock // nil = RealClock
}

// Runner drives one worker's transactions and reports one Event per call.
// A Runner is NOT safe for concurrent use; each worker goroutine must have its own Runner.
type Runner struct {
	tx        Transactor
	reporter  Reporter
	workerID  int
	config    RunnerConfig
	clock     Clock
	iteration int
}

// NewRunner creates a Runner for a single worker.
func NewRunner(tx Transactor, reporter Reporter, workerID int, config RunnerConfig) *Runner {
	clock := config.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Runner{
		tx:       tx,
		reporter: reporter,
		workerID: workerID,
		config:   config,
		clock:    clock,
	}
}

// RunIteration submits one transaction.
// Returns nil on success, ErrMaxIterationsReached when the budget is spent, or
// the transaction's error unchanged.
func (r *Runner) RunIteration(ctx context.Context) error {
	if r.config.MaxIterations > 0 && r.iteration >= r.config.MaxIterations {
		return ErrMaxIterationsReached
	}

	rep := r.reporter
	if r.iteration < r.config.WarmupIters {
		rep = NullReporter
	}

	start := r.clock.Now()
	err := r.tx.SubmitTransaction(ctx)
	r.iteration++

	event := Event{
		WorkerID:  r.workerID,
		Round:     r.config.Round,
		Label:     r.config.Label,
		Timestamp: start,
		Duration:  r.clock.Since(start),
		Success:   err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	rep.Report(event)

	return err
}

// Iteration returns the number of transactions submitted so far.
func (r *Runner) Iteration() int {
	return r.iteration
}

// IsWarmup returns true if still in warmup phase.
func (r *Runner) IsWarmup() bool {
	return r.iteration < r.config.WarmupIters
}
