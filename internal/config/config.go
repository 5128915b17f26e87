// Package config handles YAML configuration parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Submitter types.
const (
	SubmitterGateway = "gateway"
	SubmitterKafka   = "kafka"
	SubmitterDryRun  = "dryrun"
)

// Rate controller types, named after the Caliper controllers they mirror.
const (
	RateFixed  = "fixed-rate"
	RateLinear = "linear-rate"
)

// Config is the root configuration structure.
type Config struct {
	Name      string          `yaml:"name"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Submitter SubmitterConfig `yaml:"submitter"`
	Rounds    []Round         `yaml:"rounds"`
	Sweep     *Sweep          `yaml:"sweep,omitempty"`
	// Pause is waited between consecutive rounds so connections can drain.
	Pause time.Duration `yaml:"pause"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// MetricsConfig controls the Prometheus endpoint. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// SubmitterConfig selects and configures the request transport.
type SubmitterConfig struct {
	Type    string        `yaml:"type"`
	Gateway GatewayConfig `yaml:"gateway"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	DryRun  DryRunConfig  `yaml:"dryrun"`
	Health  HealthConfig  `yaml:"health"`
}

// HealthConfig controls the reachability check run before the first round.
type HealthConfig struct {
	Disabled bool          `yaml:"disabled"`
	Path     string        `yaml:"path"` // gateway only
	Attempts int           `yaml:"attempts"`
	Interval time.Duration `yaml:"interval"`
}

// GatewayConfig points at an HTTP relay in front of the ledger.
type GatewayConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// KafkaConfig configures the topic requests are published to.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	RequiredAcks string        `yaml:"required_acks"` // "none", "one", "all"
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DryRunConfig writes requests as JSON lines. Empty Path means stdout.
type DryRunConfig struct {
	Path string `yaml:"path"`
}

// Round is one benchmark round: a single workload repeated by Workers
// concurrent workers for TxDuration or until TxNumber transactions are sent.
type Round struct {
	Label       string         `yaml:"label"`
	Workload    string         `yaml:"workload"`
	Workers     int            `yaml:"workers"`
	TxDuration  time.Duration  `yaml:"txDuration"`
	TxNumber    int            `yaml:"txNumber"`
	Warmup      int            `yaml:"warmup"`
	RateControl RateControl    `yaml:"rateControl"`
	Arguments   map[string]any `yaml:"arguments,omitempty"`
	Sweep       *RoundSweep    `yaml:"sweep,omitempty"`
}

// RoundSweep overrides the sweep's TPS list for one round.
type RoundSweep struct {
	TPS []float64 `yaml:"tps"`
}

// RateControl describes how the send rate evolves during a round.
type RateControl struct {
	Type         string  `yaml:"type"`
	TPS          float64 `yaml:"tps"`
	StartingTPS  float64 `yaml:"startingTps"`
	FinishingTPS float64 `yaml:"finishingTps"`
}

// Sweep repeats the whole round list Repeat times, running each round once
// per TPS value. A round's own sweep.tps replaces TPS for that round.
type Sweep struct {
	TPS    []float64 `yaml:"tps"`
	Repeat int       `yaml:"repeat"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Submitter.Type == "" {
		c.Submitter.Type = SubmitterDryRun
	}
	if c.Submitter.Gateway.Timeout == 0 {
		c.Submitter.Gateway.Timeout = 30 * time.Second
	}
	h := &c.Submitter.Health
	if h.Path == "" {
		h.Path = "/health"
	}
	if h.Attempts == 0 {
		h.Attempts = 10
	}
	if h.Interval == 0 {
		h.Interval = 3 * time.Second
	}
	for i := range c.Rounds {
		r := &c.Rounds[i]
		if r.Label == "" {
			r.Label = r.Workload
		}
		if r.RateControl.Type == "" {
			r.RateControl.Type = RateFixed
		}
	}
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Submitter.Type {
	case SubmitterGateway:
		if c.Submitter.Gateway.URL == "" {
			errs = append(errs, errors.New("submitter.gateway.url is required"))
		}
	case SubmitterKafka:
		if len(c.Submitter.Kafka.Brokers) == 0 || c.Submitter.Kafka.Topic == "" {
			errs = append(errs, errors.New("submitter.kafka needs brokers and topic"))
		}
	case SubmitterDryRun:
	default:
		errs = append(errs, fmt.Errorf("unknown submitter type %q", c.Submitter.Type))
	}

	if len(c.Rounds) == 0 {
		errs = append(errs, errors.New("at least one round is required"))
	}
	for i, r := range c.Rounds {
		if err := r.validate(); err != nil {
			errs = append(errs, fmt.Errorf("round %d (%s): %w", i, r.Label, err))
		}
	}

	if !c.Submitter.Health.Disabled {
		if c.Submitter.Health.Attempts < 0 {
			errs = append(errs, errors.New("submitter.health.attempts must be >= 0"))
		}
		if c.Submitter.Health.Interval < 0 {
			errs = append(errs, errors.New("submitter.health.interval must be >= 0"))
		}
	}
	if c.Pause < 0 {
		errs = append(errs, errors.New("pause must be >= 0"))
	}

	if c.Sweep != nil {
		errs = append(errs, checkTPSList("sweep.tps", c.Sweep.TPS)...)
		if len(c.Sweep.TPS) == 0 {
			for i, r := range c.Rounds {
				if r.Sweep == nil || len(r.Sweep.TPS) == 0 {
					errs = append(errs, fmt.Errorf("sweep.tps must not be empty: round %d (%s) has no tps list of its own", i, r.Label))
				}
			}
		}
	}
	for i, r := range c.Rounds {
		if r.Sweep == nil {
			continue
		}
		if c.Sweep == nil {
			errs = append(errs, fmt.Errorf("round %d (%s): sweep.tps needs a top-level sweep", i, r.Label))
		}
		errs = append(errs, checkTPSList(fmt.Sprintf("round %d (%s) sweep.tps", i, r.Label), r.Sweep.TPS)...)
	}

	return errors.Join(errs...)
}

func checkTPSList(name string, list []float64) []error {
	var errs []error
	for _, tps := range list {
		if tps <= 0 {
			errs = append(errs, fmt.Errorf("%s values must be positive, got %v", name, tps))
		}
	}
	return errs
}

func (r Round) validate() error {
	var errs []error
	if r.Workload == "" {
		errs = append(errs, errors.New("workload is required"))
	}
	if r.Workers < 1 {
		errs = append(errs, errors.New("workers must be >= 1"))
	}
	if r.TxDuration <= 0 && r.TxNumber <= 0 {
		errs = append(errs, errors.New("one of txDuration or txNumber is required"))
	}
	if r.Warmup < 0 {
		errs = append(errs, errors.New("warmup must be >= 0"))
	}

	switch r.RateControl.Type {
	case RateFixed:
		if r.RateControl.TPS < 0 {
			errs = append(errs, errors.New("rateControl.tps must be >= 0"))
		}
	case RateLinear:
		if r.TxDuration <= 0 {
			errs = append(errs, errors.New("linear-rate needs txDuration"))
		}
		if r.RateControl.StartingTPS <= 0 || r.RateControl.FinishingTPS <= 0 {
			errs = append(errs, errors.New("linear-rate tps values must be > 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rate controller %q", r.RateControl.Type))
	}

	return errors.Join(errs...)
}

// Expand returns the rounds to run. Without a sweep it is Rounds itself. With
// one, repetitions are the outer loop: each repetition runs every round once
// per value of its TPS list at a fixed rate.
func (c *Config) Expand() []Round {
	if c.Sweep == nil {
		return c.Rounds
	}

	repeat := c.Sweep.Repeat
	if repeat < 1 {
		repeat = 1
	}

	var rounds []Round
	for run := 1; run <= repeat; run++ {
		for _, base := range c.Rounds {
			for _, tps := range c.tpsList(base) {
				r := base
				r.Label = fmt.Sprintf("%s-tps%g-run%d", base.Label, tps, run)
				r.RateControl = RateControl{Type: RateFixed, TPS: tps}
				r.Sweep = nil
				rounds = append(rounds, r)
			}
		}
	}
	return rounds
}

func (c *Config) tpsList(r Round) []float64 {
	if r.Sweep != nil && len(r.Sweep.TPS) > 0 {
		return r.Sweep.TPS
	}
	return c.Sweep.TPS
}
