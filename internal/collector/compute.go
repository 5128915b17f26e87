package collector

import (
	"sort"
	"time"

	"healthbench/internal/core"
)

// RoundResult is one row of the performance report.
type RoundResult struct {
	Round      int
	Name       string
	Succ       int
	Fail       int
	SendRate   float64
	Latency    DurationMetrics
	Throughput float64
}

// Total is the number of transactions submitted in the round.
func (r RoundResult) Total() int {
	return r.Succ + r.Fail
}

// DurationMetrics contains latency statistics.
type DurationMetrics struct {
	Min time.Duration
	Max time.Duration
	Avg time.Duration
}

// ComputeRounds groups events by round index and computes a result for each,
// ordered by index. Pure function.
func ComputeRounds(events []core.Event) []RoundResult {
	byRound := make(map[int][]core.Event)
	for _, e := range events {
		byRound[e.Round] = append(byRound[e.Round], e)
	}

	indexes := make([]int, 0, len(byRound))
	for idx := range byRound {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	results := make([]RoundResult, 0, len(indexes))
	for _, idx := range indexes {
		results = append(results, ComputeRound(idx, byRound[idx]))
	}
	return results
}

// ComputeRound computes the report row for the events of a single round.
//
// Send rate is submissions over the span between the first and last submit.
// Throughput is successes over the span from the first submit to the last
// completion. A zero span yields a zero rate.
func ComputeRound(round int, events []core.Event) RoundResult {
	r := RoundResult{Round: round}
	if len(events) == 0 {
		return r
	}
	r.Name = events[0].Label

	firstSubmit := events[0].Timestamp
	lastSubmit := events[0].Timestamp
	lastDone := events[0].Timestamp.Add(events[0].Duration)
	durations := make([]time.Duration, 0, len(events))

	for _, e := range events {
		if e.Success {
			r.Succ++
		} else {
			r.Fail++
		}
		durations = append(durations, e.Duration)

		if e.Timestamp.Before(firstSubmit) {
			firstSubmit = e.Timestamp
		}
		if e.Timestamp.After(lastSubmit) {
			lastSubmit = e.Timestamp
		}
		if done := e.Timestamp.Add(e.Duration); done.After(lastDone) {
			lastDone = done
		}
	}

	if span := lastSubmit.Sub(firstSubmit); span > 0 {
		r.SendRate = float64(r.Total()) / span.Seconds()
	}
	if span := lastDone.Sub(firstSubmit); span > 0 {
		r.Throughput = float64(r.Succ) / span.Seconds()
	}

	r.Latency = ComputeDurationMetrics(durations)
	return r
}

// ComputeDurationMetrics calculates latency statistics for durations.
func ComputeDurationMetrics(durations []time.Duration) DurationMetrics {
	if len(durations) == 0 {
		return DurationMetrics{}
	}

	m := DurationMetrics{Min: durations[0], Max: durations[0]}
	var total time.Duration
	for _, d := range durations {
		total += d
		m.Min = min(m.Min, d)
		m.Max = max(m.Max, d)
	}
	m.Avg = total / time.Duration(len(durations))
	return m
}
