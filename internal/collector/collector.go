// Package collector aggregates transaction events into per-round results.
package collector

import (
	"sync"
	"sync/atomic"
	"time"

	"healthbench/internal/core"
)

// DefaultBufferSize is the event channel capacity used by NewCollector.
const DefaultBufferSize = 10000

// Option configures a Collector.
type Option func(*Collector)

// WithInstruments mirrors every reported event into Prometheus instruments.
func WithInstruments(i *Instruments) Option {
	return func(c *Collector) { c.instruments = i }
}

// WithBufferSize overrides the event channel capacity.
func WithBufferSize(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// Collector receives events from workers and keeps them for reporting.
// Live counters are updated on Report, so Summary stays accurate even when
// the buffer overflows and events are dropped.
type Collector struct {
	events      []core.Event
	ch          chan core.Event
	done        chan struct{}
	mu          sync.Mutex
	closeOnce   sync.Once
	bufferSize  int
	instruments *Instruments

	startTime time.Time
	endTime   atomic.Pointer[time.Time]

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewCollector creates a Collector and starts its collection goroutine.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		done:       make(chan struct{}),
		bufferSize: DefaultBufferSize,
		startTime:  time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make([]core.Event, 0, c.bufferSize)
	c.ch = make(chan core.Event, c.bufferSize)
	go c.collect()
	return c
}

func (c *Collector) collect() {
	for event := range c.ch {
		c.mu.Lock()
		c.events = append(c.events, event)
		c.mu.Unlock()
	}
	close(c.done)
}

// Report records an event. Safe for concurrent use; never blocks.
func (c *Collector) Report(event core.Event) {
	c.submitted.Add(1)
	if event.Success {
		c.succeeded.Add(1)
	} else {
		c.failed.Add(1)
	}
	c.instruments.Observe(event)

	select {
	case c.ch <- event:
	default:
		c.dropped.Add(1)
		c.instruments.drop()
	}
}

// Close stops accepting events and waits for buffered ones to be stored.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		now := time.Now()
		c.endTime.Store(&now)
		close(c.ch)
		<-c.done
	})
}

// Events returns a copy of collected events.
func (c *Collector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]core.Event, len(c.events))
	copy(result, c.events)
	return result
}

// DroppedEvents returns how many events did not fit in the buffer.
func (c *Collector) DroppedEvents() int64 {
	return c.dropped.Load()
}

// Duration returns the time from creation to Close, or to now if still open.
func (c *Collector) Duration() time.Duration {
	if end := c.endTime.Load(); end != nil {
		return end.Sub(c.startTime)
	}
	return time.Since(c.startTime)
}

// Summary is a live snapshot of the whole run.
type Summary struct {
	Submitted int64
	Succeeded int64
	Failed    int64
	Elapsed   time.Duration
	TPS       float64
}

// Summary returns the counters accumulated so far.
func (c *Collector) Summary() Summary {
	s := Summary{
		Submitted: c.submitted.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Elapsed:   c.Duration(),
	}
	if s.Elapsed > 0 {
		s.TPS = float64(s.Submitted) / s.Elapsed.Seconds()
	}
	return s
}

// Results computes per-round results from the stored events.
func (c *Collector) Results() []RoundResult {
	return ComputeRounds(c.Events())
}
