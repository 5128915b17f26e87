// Package coordinator runs benchmark rounds: it spawns one goroutine per
// worker, paces them with a shared rate limiter and stops them when the
// round's duration or transaction budget is spent.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"healthbench/internal/config"
	"healthbench/internal/core"
	"healthbench/internal/progress"
	"healthbench/internal/ratelimit"
	"healthbench/internal/workload"
)

const (
	// rateTickInterval is how often a dynamic rate controller is re-applied.
	rateTickInterval = 100 * time.Millisecond
)

// Factories resolves workload names. *workload.Registry satisfies it.
type Factories interface {
	Lookup(name string) (workload.Factory, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithProgress prints round transitions through p.
func WithProgress(p *progress.Progress) Option {
	return func(c *Coordinator) { c.progress = p }
}

// WithClock sets the clock used for timing transactions and rate schedules.
func WithClock(clock core.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithTickInterval overrides how often dynamic rates are re-applied.
func WithTickInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// WithPause waits d between consecutive rounds.
func WithPause(d time.Duration) Option {
	return func(c *Coordinator) { c.pause = d }
}

type Coordinator struct {
	reporter     core.Reporter
	factories    Factories
	submitter    workload.Submitter
	logger       *logrus.Logger
	progress     *progress.Progress
	clock        core.Clock
	tickInterval time.Duration
	pause        time.Duration
	activeCount  atomic.Int32
}

func NewCoordinator(reporter core.Reporter, factories Factories, submitter workload.Submitter, logger *logrus.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		reporter:     reporter,
		factories:    factories,
		submitter:    submitter,
		logger:       logger,
		clock:        core.RealClock{},
		tickInterval: rateTickInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RoundStats describes how a round ran. Outcome counts live in the collector.
type RoundStats struct {
	Index     int
	Label     string
	Workers   int
	Submitted int // including warmup
	Elapsed   time.Duration
}

// ActiveWorkers returns the number of worker goroutines currently running.
func (c *Coordinator) ActiveWorkers() int {
	return int(c.activeCount.Load())
}

// Run executes rounds in order, pausing between them. It stops at the first
// round that cannot be set up or when ctx is canceled, returning the stats
// gathered so far.
func (c *Coordinator) Run(ctx context.Context, rounds []config.Round) ([]RoundStats, error) {
	all := make([]RoundStats, 0, len(rounds))
	for i, round := range rounds {
		if i > 0 && c.pause > 0 {
			if err := c.wait(ctx, c.pause); err != nil {
				return all, fmt.Errorf("pause before round %d (%s): %w", i, round.Label, err)
			}
		}
		c.printf("Round %d/%d: %s (workload: %s, workers: %d)", i+1, len(rounds), round.Label, round.Workload, round.Workers)
		if c.progress != nil {
			c.progress.SetRound(round.Label)
		}

		stats, err := c.RunRound(ctx, i, round)
		if err != nil {
			if ctx.Err() != nil {
				all = append(all, stats)
			}
			return all, fmt.Errorf("round %d (%s): %w", i, round.Label, err)
		}
		all = append(all, stats)
	}
	return all, nil
}

// RunRound executes a single round with the given index. Every worker's
// module is built before any transaction is sent, so a factory error aborts
// the round cleanly.
func (c *Coordinator) RunRound(ctx context.Context, index int, round config.Round) (RoundStats, error) {
	stats := RoundStats{Index: index, Label: round.Label, Workers: round.Workers}
	log := c.logger.WithFields(logrus.Fields{"round": index, "label": round.Label})

	factory, err := c.factories.Lookup(round.Workload)
	if err != nil {
		return stats, err
	}

	modules := make([]workload.Module, round.Workers)
	for w := range modules {
		m, err := factory(workload.Init{
			WorkerIndex:  w,
			TotalWorkers: round.Workers,
			RoundIndex:   index,
			Arguments:    round.Arguments,
			Submitter:    c.submitter,
		})
		if err != nil {
			return stats, fmt.Errorf("creating module for worker %d: %w", w, err)
		}
		modules[w] = m
	}

	// roundCtx bounds the round; transactions run on ctx so the one in
	// flight when the round ends still completes and is counted.
	var roundCtx context.Context
	var cancel context.CancelFunc
	if round.TxDuration > 0 {
		roundCtx, cancel = context.WithTimeout(ctx, round.TxDuration)
	} else {
		roundCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	schedule := ratelimit.NewScheduleWithClock(round.RateControl, round.TxDuration, c.clock)
	limiter := ratelimit.NewRateLimiter(schedule.InitialTPS())
	budgets := SplitBudget(round.TxNumber, round.Workers)

	log.WithFields(logrus.Fields{
		"workload": round.Workload,
		"workers":  round.Workers,
		"tps":      schedule.InitialTPS(),
	}).Info("round started")

	start := c.clock.Now()
	var wg sync.WaitGroup
	var submitted atomic.Int64

	for w, module := range modules {
		if budgets != nil && budgets[w] == 0 {
			continue
		}
		cfg := core.RunnerConfig{
			Round:       index,
			Label:       round.Label,
			WarmupIters: round.Warmup,
			Clock:       c.clock,
		}
		if budgets != nil {
			cfg.MaxIterations = budgets[w] + round.Warmup
		}

		wg.Add(1)
		c.activeCount.Add(1)
		go func(id int, runner *core.Runner) {
			defer func() {
				submitted.Add(int64(runner.Iteration()))
				c.activeCount.Add(-1)
				wg.Done()
			}()
			defer c.recoverPanic(id, index, round.Label)
			c.work(ctx, roundCtx, runner, limiter, log.WithField("worker", id))
		}(w, core.NewRunner(module, c.reporter, w, cfg))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-done:
			break loop
		case <-ticker.C:
			if schedule.Dynamic() {
				limiter.SetRate(schedule.CurrentTPS())
			}
		}
	}

	stats.Submitted = int(submitted.Load())
	stats.Elapsed = c.clock.Since(start)
	log.WithFields(logrus.Fields{
		"submitted": stats.Submitted,
		"elapsed":   stats.Elapsed.Round(time.Millisecond),
	}).Info("round finished")

	return stats, ctx.Err()
}

// wait blocks for d or until ctx is done.
func (c *Coordinator) wait(ctx context.Context, d time.Duration) error {
	c.logger.WithField("pause", d).Debug("pausing between rounds")
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// work drives one worker until its budget is spent or roundCtx is done. A
// failed transaction has already been reported by the runner, so the worker
// carries on.
func (c *Coordinator) work(ctx, roundCtx context.Context, runner *core.Runner, limiter *ratelimit.RateLimiter, log *logrus.Entry) {
	for {
		if roundCtx.Err() != nil {
			return
		}
		if err := limiter.Wait(roundCtx); err != nil {
			return
		}
		err := runner.RunIteration(ctx)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrMaxIterationsReached):
			return
		case ctx.Err() != nil:
			return
		default:
			log.WithError(err).Debug("transaction failed")
		}
	}
}

// recoverPanic recovers from panics in worker goroutines and reports them as failed events.
func (c *Coordinator) recoverPanic(workerID, round int, label string) {
	if r := recover(); r != nil {
		c.logger.WithFields(logrus.Fields{"round": round, "worker": workerID}).Errorf("worker panic: %v", r)
		c.reporter.Report(core.Event{
			WorkerID:  workerID,
			Round:     round,
			Label:     label,
			Timestamp: c.clock.Now(),
			Success:   false,
			Error:     fmt.Sprintf("panic: %v", r),
		})
	}
}

func (c *Coordinator) printf(format string, args ...any) {
	if c.progress != nil {
		c.progress.Printf(format, args...)
		return
	}
	c.logger.Infof(format, args...)
}

// SplitBudget divides total transactions across workers as evenly as
// possible, giving the remainder to the lowest indexes. A total of 0 means
// unlimited and yields nil.
func SplitBudget(total, workers int) []int {
	if total <= 0 || workers <= 0 {
		return nil
	}
	budgets := make([]int, workers)
	for w := range budgets {
		budgets[w] = total / workers
		if w < total%workers {
			budgets[w]++
		}
	}
	return budgets
}
