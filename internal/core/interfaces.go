// Package core defines the types shared by the benchmark driver: the event a
// worker reports per transaction and the per-worker iteration runner.
package core

import (
	"context"
	"time"
)

// Event represents the outcome of a single submitted transaction.
type Event struct {
	WorkerID  int
	Round     int
	Label     string // round label, e.g. "reportStatus"
	Timestamp time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// Transactor is anything that submits one transaction per call. Workload
// modules satisfy it.
type Transactor interface {
	SubmitTransaction(ctx context.Context) error
}

// TransactorFunc adapts a function to the Transactor interface.
type TransactorFunc func(ctx context.Context) error

func (f TransactorFunc) SubmitTransaction(ctx context.Context) error {
	return f(ctx)
}

// Reporter is the interface workers use to send events to the Collector.
type Reporter interface {
	Report(Event)
}
