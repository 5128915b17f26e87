package collector

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Report is everything a finished run prints.
type Report struct {
	RunID    string
	Name     string
	Duration time.Duration
	Rounds   []RoundResult
	Dropped  int64
}

// reportColumns is the performance table layout, one row per round.
var reportColumns = []string{
	"Name",
	"Succ",
	"Fail",
	"Send Rate (TPS)",
	"Max Latency (s)",
	"Min Latency (s)",
	"Avg Latency (s)",
	"Throughput (TPS)",
}

func (r RoundResult) cells() []string {
	return []string{
		r.Name,
		strconv.Itoa(r.Succ),
		strconv.Itoa(r.Fail),
		formatRate(r.SendRate),
		formatSeconds(r.Latency.Max),
		formatSeconds(r.Latency.Min),
		formatSeconds(r.Latency.Avg),
		formatRate(r.Throughput),
	}
}

// FormatText writes the report as a human-readable table.
func FormatText(w io.Writer, rep *Report) {
	if len(rep.Rounds) == 0 {
		fmt.Fprintln(w, "No events collected")
		return
	}

	fmt.Fprintln(w, "")
	if rep.Name != "" {
		fmt.Fprintf(w, "Healthbench - %s\n", rep.Name)
	} else {
		fmt.Fprintln(w, "Healthbench")
	}
	if rep.RunID != "" {
		fmt.Fprintf(w, "Run:      %s\n", rep.RunID)
	}
	fmt.Fprintf(w, "Duration: %s\n", FormatDuration(rep.Duration))
	fmt.Fprintln(w, "")

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(reportColumns))
	for i, c := range reportColumns {
		header[i] = c
	}
	t.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, len(reportColumns)-1)
	for n := 2; n <= len(reportColumns); n++ {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)

	for _, r := range rep.Rounds {
		cells := r.cells()
		row := make(table.Row, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		t.AppendRow(row)
	}
	t.Render()

	if rep.Dropped > 0 {
		fmt.Fprintf(w, "\nWarning: %s events dropped from the report buffer\n", formatNumber(int(rep.Dropped)))
	}
}

type jsonRound struct {
	Round      int     `json:"round"`
	Name       string  `json:"name"`
	Succ       int     `json:"succ"`
	Fail       int     `json:"fail"`
	SendRate   float64 `json:"sendRate"`
	MaxLatency float64 `json:"maxLatency"`
	MinLatency float64 `json:"minLatency"`
	AvgLatency float64 `json:"avgLatency"`
	Throughput float64 `json:"throughput"`
}

// FormatJSON writes the report as indented JSON. Latencies are in seconds.
func FormatJSON(w io.Writer, rep *Report) {
	output := struct {
		RunID    string      `json:"runId,omitempty"`
		Name     string      `json:"name,omitempty"`
		Duration string      `json:"duration"`
		Dropped  int64       `json:"dropped"`
		Rounds   []jsonRound `json:"rounds"`
	}{
		RunID:    rep.RunID,
		Name:     rep.Name,
		Duration: rep.Duration.Round(time.Millisecond).String(),
		Dropped:  rep.Dropped,
		Rounds:   make([]jsonRound, 0, len(rep.Rounds)),
	}

	for _, r := range rep.Rounds {
		output.Rounds = append(output.Rounds, jsonRound{
			Round:      r.Round,
			Name:       r.Name,
			Succ:       r.Succ,
			Fail:       r.Fail,
			SendRate:   r.SendRate,
			MaxLatency: r.Latency.Max.Seconds(),
			MinLatency: r.Latency.Min.Seconds(),
			AvgLatency: r.Latency.Avg.Seconds(),
			Throughput: r.Throughput,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}

// FormatCSV writes the report in the caliper_performance_metrics.csv layout,
// with a trailing "Test Type" column holding the run name.
func FormatCSV(w io.Writer, rep *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, reportColumns...), "Test Type")); err != nil {
		return err
	}
	for _, r := range rep.Rounds {
		if err := cw.Write(append(r.cells(), rep.Name)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 2, 64)
}

func formatRate(tps float64) string {
	return strconv.FormatFloat(tps, 'f', 1, 64)
}

func formatNumber(n int) string {
	if n < 1000 {
		return strconv.Itoa(n)
	}
	return fmt.Sprintf("%s,%03d", formatNumber(n/1000), n%1000)
}
