package ratelimit

import (
	"time"

	"healthbench/internal/config"
	"healthbench/internal/core"
)

// Schedule computes the target send rate of a round over time.
type Schedule struct {
	control   config.RateControl
	duration  time.Duration
	startTime time.Time
	clock     core.Clock
}

// NewSchedule creates a Schedule with a real clock.
func NewSchedule(control config.RateControl, duration time.Duration) *Schedule {
	return NewScheduleWithClock(control, duration, core.RealClock{})
}

// NewScheduleWithClock creates a Schedule with a custom clock (for testing).
func NewScheduleWithClock(control config.RateControl, duration time.Duration, clock core.Clock) *Schedule {
	return &Schedule{
		control:   control,
		duration:  duration,
		startTime: clock.Now(),
		clock:     clock,
	}
}

func (s *Schedule) Elapsed() time.Duration {
	return s.clock.Since(s.startTime)
}

// InitialTPS is the rate at the start of the round.
func (s *Schedule) InitialTPS() float64 {
	if s.control.Type == config.RateLinear {
		return s.control.StartingTPS
	}
	return s.control.TPS
}

// CurrentTPS returns the rate for the elapsed time. linear-rate interpolates
// from StartingTPS to FinishingTPS and holds FinishingTPS once the round's
// duration has passed.
func (s *Schedule) CurrentTPS() float64 {
	if s.control.Type != config.RateLinear {
		return s.control.TPS
	}
	if s.duration <= 0 {
		return s.control.FinishingTPS
	}
	progress := float64(s.Elapsed()) / float64(s.duration)
	if progress > 1 {
		progress = 1
	}
	delta := s.control.FinishingTPS - s.control.StartingTPS
	return s.control.StartingTPS + delta*progress
}

// Dynamic reports whether the rate changes during the round.
func (s *Schedule) Dynamic() bool {
	return s.control.Type == config.RateLinear && s.control.StartingTPS != s.control.FinishingTPS
}
