package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfig_FullBenchmark(t *testing.T) {
	content := `
name: node-health-monitor
log:
  level: debug
  format: json
metrics:
  listen: ":9464"
submitter:
  type: gateway
  gateway:
    url: "http://localhost:8080"
    timeout: 5s
rounds:
  - label: report
    workload: reportStatus
    workers: 4
    txDuration: 30s
    rateControl:
      type: fixed-rate
      tps: 100
  - workload: getLatestStatus
    workers: 2
    txNumber: 500
    warmup: 10
    arguments:
      nodeAddress: "0x0000000000000000000000000000000000000001"
`
	cfg := loadConfigFromString(t, content)

	if cfg.Name != "node-health-monitor" {
		t.Errorf("expected name 'node-health-monitor', got %q", cfg.Name)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Metrics.Listen != ":9464" {
		t.Errorf("expected metrics listen :9464, got %q", cfg.Metrics.Listen)
	}
	if cfg.Submitter.Type != SubmitterGateway {
		t.Errorf("expected gateway submitter, got %q", cfg.Submitter.Type)
	}
	if cfg.Submitter.Gateway.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Submitter.Gateway.Timeout)
	}
	if len(cfg.Rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(cfg.Rounds))
	}

	want := Round{
		Label:       "report",
		Workload:    "reportStatus",
		Workers:     4,
		TxDuration:  30 * time.Second,
		RateControl: RateControl{Type: RateFixed, TPS: 100},
	}
	if diff := cmp.Diff(want, cfg.Rounds[0]); diff != "" {
		t.Errorf("round 0 mismatch (-want +got):\n%s", diff)
	}

	second := cfg.Rounds[1]
	if second.Label != "getLatestStatus" {
		t.Errorf("expected label to default to workload name, got %q", second.Label)
	}
	if second.RateControl.Type != RateFixed {
		t.Errorf("expected default rate controller fixed-rate, got %q", second.RateControl.Type)
	}
	if second.TxNumber != 500 || second.Warmup != 10 {
		t.Errorf("unexpected txNumber/warmup: %d/%d", second.TxNumber, second.Warmup)
	}
	if second.Arguments["nodeAddress"] != "0x0000000000000000000000000000000000000001" {
		t.Errorf("unexpected arguments: %v", second.Arguments)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfigFromString(t, `
rounds:
  - workload: reportStatus
    workers: 1
    txNumber: 10
`)

	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Submitter.Type != SubmitterDryRun {
		t.Errorf("expected dryrun default, got %q", cfg.Submitter.Type)
	}
	if cfg.Submitter.Gateway.Timeout != 30*time.Second {
		t.Errorf("expected gateway timeout default 30s, got %v", cfg.Submitter.Gateway.Timeout)
	}
	wantHealth := HealthConfig{Path: "/health", Attempts: 10, Interval: 3 * time.Second}
	if diff := cmp.Diff(wantHealth, cfg.Submitter.Health); diff != "" {
		t.Errorf("health defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.Pause != 0 {
		t.Errorf("expected no pause by default, got %v", cfg.Pause)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadConfig_LinearRate(t *testing.T) {
	cfg := loadConfigFromString(t, `
rounds:
  - workload: reportStatus
    workers: 2
    txDuration: 1m
    rateControl:
      type: linear-rate
      startingTps: 10
      finishingTps: 50
`)

	rc := cfg.Rounds[0].RateControl
	if rc.Type != RateLinear || rc.StartingTPS != 10 || rc.FinishingTPS != 50 {
		t.Errorf("unexpected rate control: %+v", rc)
	}
}

func TestValidate(t *testing.T) {
	valid := Round{Label: "r", Workload: "reportStatus", Workers: 1, TxNumber: 1, RateControl: RateControl{Type: RateFixed}}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown submitter", func(c *Config) { c.Submitter.Type = "grpc" }, "unknown submitter type"},
		{"gateway without url", func(c *Config) { c.Submitter.Type = SubmitterGateway }, "gateway.url"},
		{"kafka without topic", func(c *Config) {
			c.Submitter.Type = SubmitterKafka
			c.Submitter.Kafka.Brokers = []string{"localhost:9092"}
		}, "brokers and topic"},
		{"no rounds", func(c *Config) { c.Rounds = nil }, "at least one round"},
		{"no workers", func(c *Config) { c.Rounds[0].Workers = 0 }, "workers must be >= 1"},
		{"no budget", func(c *Config) { c.Rounds[0].TxNumber = 0 }, "txDuration or txNumber"},
		{"no workload", func(c *Config) { c.Rounds[0].Workload = "" }, "workload is required"},
		{"unknown rate", func(c *Config) { c.Rounds[0].RateControl.Type = "maximum-rate" }, "unknown rate controller"},
		{"linear without duration", func(c *Config) { c.Rounds[0].RateControl.Type = RateLinear }, "linear-rate needs txDuration"},
		{"empty sweep", func(c *Config) { c.Sweep = &Sweep{} }, "sweep.tps"},
		{"negative sweep", func(c *Config) { c.Sweep = &Sweep{TPS: []float64{-1}} }, "positive"},
		{"per-round tps only", func(c *Config) {
			c.Sweep = &Sweep{Repeat: 2}
			c.Rounds[0].Sweep = &RoundSweep{TPS: []float64{10}}
		}, ""},
		{"negative per-round tps", func(c *Config) {
			c.Sweep = &Sweep{TPS: []float64{10}}
			c.Rounds[0].Sweep = &RoundSweep{TPS: []float64{0}}
		}, "positive"},
		{"per-round tps without sweep", func(c *Config) { c.Rounds[0].Sweep = &RoundSweep{TPS: []float64{10}} }, "top-level sweep"},
		{"negative pause", func(c *Config) { c.Pause = -time.Second }, "pause"},
		{"negative health attempts", func(c *Config) { c.Submitter.Health.Attempts = -1 }, "attempts"},
		{"health disabled", func(c *Config) { c.Submitter.Health = HealthConfig{Disabled: true, Attempts: -1} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Submitter: SubmitterConfig{Type: SubmitterDryRun},
				Rounds:    []Round{valid},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExpand_NoSweep(t *testing.T) {
	cfg := &Config{Rounds: []Round{{Label: "a"}, {Label: "b"}}}
	if diff := cmp.Diff(cfg.Rounds, cfg.Expand()); diff != "" {
		t.Errorf("expected rounds unchanged (-want +got):\n%s", diff)
	}
}

func TestExpand_Sweep(t *testing.T) {
	cfg := &Config{
		Rounds: []Round{{
			Label:       "open",
			Workload:    "reportStatus",
			Workers:     2,
			TxDuration:  time.Minute,
			RateControl: RateControl{Type: RateLinear, StartingTPS: 1, FinishingTPS: 2},
		}},
		Sweep: &Sweep{TPS: []float64{60, 80}, Repeat: 2},
	}

	rounds := cfg.Expand()

	var labels []string
	for _, r := range rounds {
		labels = append(labels, r.Label)
		if r.RateControl.Type != RateFixed {
			t.Errorf("%s: expected fixed-rate, got %q", r.Label, r.RateControl.Type)
		}
		if r.Workers != 2 || r.TxDuration != time.Minute {
			t.Errorf("%s: base round fields not carried over", r.Label)
		}
	}
	want := []string{"open-tps60-run1", "open-tps80-run1", "open-tps60-run2", "open-tps80-run2"}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if rounds[1].RateControl.TPS != 80 {
		t.Errorf("expected tps 80 for second round, got %v", rounds[1].RateControl.TPS)
	}
}

func TestExpand_RepetitionOuterWithPerRoundTPS(t *testing.T) {
	cfg := &Config{
		Rounds: []Round{
			{Label: "open", Workload: "reportStatus", Workers: 1, TxNumber: 10},
			{Label: "query", Workload: "getLatestStatus", Workers: 1, TxNumber: 10, Sweep: &RoundSweep{TPS: []float64{200, 400}}},
		},
		Sweep: &Sweep{TPS: []float64{60}, Repeat: 2},
	}

	var got []string
	for _, r := range cfg.Expand() {
		got = append(got, r.Label)
		if r.Sweep != nil {
			t.Errorf("%s: expanded round should not carry a sweep", r.Label)
		}
	}
	want := []string{
		"open-tps60-run1", "query-tps200-run1", "query-tps400-run1",
		"open-tps60-run2", "query-tps200-run2", "query-tps400-run2",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("expansion order mismatch (-want +got):\n%s", diff)
	}
	if cfg.Rounds[1].Sweep == nil {
		t.Error("Expand must not modify the configured rounds")
	}
}

func TestLoadConfig_SweepHealthAndPause(t *testing.T) {
	cfg := loadConfigFromString(t, `
pause: 10s
submitter:
  type: gateway
  gateway: {url: "http://localhost:8080"}
  health: {attempts: 5, interval: 1s}
rounds:
  - workload: reportStatus
    workers: 1
    txNumber: 10
  - workload: getLatestStatus
    workers: 1
    txNumber: 10
    sweep: {tps: [100, 200]}
sweep:
  tps: [10, 20]
  repeat: 3
`)

	if cfg.Pause != 10*time.Second {
		t.Errorf("pause = %v, want 10s", cfg.Pause)
	}
	wantHealth := HealthConfig{Path: "/health", Attempts: 5, Interval: time.Second}
	if diff := cmp.Diff(wantHealth, cfg.Submitter.Health); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{100, 200}, cfg.Rounds[1].Sweep.TPS); diff != "" {
		t.Errorf("per-round tps mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if got := len(cfg.Expand()); got != 12 {
		t.Errorf("expected 3 repetitions x 4 rounds, got %d", got)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpFile := createTempFile(t, `
rounds:
  - label: "Invalid
    workers: [[[invalid
`)

	_, err := LoadConfig(tmpFile)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

// Helper functions

func loadConfigFromString(t *testing.T, content string) *Config {
	t.Helper()
	tmpFile := createTempFile(t, content)

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func createTempFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return tmpFile
}

func TestShippedConfigsValidate(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "configs", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Skip("no shipped configs")
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			cfg, err := LoadConfig(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}
}
