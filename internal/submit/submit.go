// Package submit delivers workload requests to the system under test. Each
// transport is a thin pass-through: it encodes the request, sends it once and
// reports the outcome as an error. Retries and connection management belong
// to whatever sits behind the transport.
package submit

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"healthbench/internal/config"
	"healthbench/internal/workload"
)

// ErrRejected matches every *RejectedError.
var ErrRejected = errors.New("request rejected")

// RejectedError reports a request the ledger side refused.
type RejectedError struct {
	Verb   string
	Status int // HTTP status, 0 when not applicable
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s rejected (status %d): %s", e.Verb, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s rejected: %s", e.Verb, e.Reason)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Submitter is a workload.Submitter that holds resources until closed.
type Submitter interface {
	workload.Submitter
	io.Closer
}

// Envelope is the wire form of a request for every transport.
type Envelope struct {
	ID string `json:"id"`
	workload.Request
	SubmittedAt time.Time `json:"submittedAt"`
}

// NewEnvelope wraps req with a fresh ID and the current time.
func NewEnvelope(req workload.Request) Envelope {
	return Envelope{
		ID:          uuid.NewString(),
		Request:     req,
		SubmittedAt: time.Now().UTC(),
	}
}

// Options carries settings that come from the command line, not the config file.
type Options struct {
	// Verbose enables request/response dumps for the gateway transport.
	Verbose bool
	// Debug receives the dumps. Defaults to stderr.
	Debug io.Writer
	// Stdout receives dryrun output when no path is configured.
	Stdout io.Writer
}

// New builds the transport selected by cfg.Type.
func New(cfg config.SubmitterConfig, logger *logrus.Logger, opts Options) (Submitter, error) {
	log := logger.WithField("submitter", cfg.Type)

	switch cfg.Type {
	case config.SubmitterGateway:
		var debug *DebugLogger
		if opts.Verbose {
			out := opts.Debug
			if out == nil {
				out = os.Stderr
			}
			debug = NewDebugLogger(out)
		}
		g, err := NewGateway(cfg.Gateway, &http.Client{Timeout: cfg.Gateway.Timeout}, debug)
		if err != nil {
			return nil, err
		}
		if cfg.Health.Path != "" {
			g.healthPath = "/" + strings.TrimLeft(cfg.Health.Path, "/")
		}
		log.WithField("url", cfg.Gateway.URL).Info("gateway submitter ready")
		return g, nil

	case config.SubmitterKafka:
		k, err := NewKafka(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"brokers": cfg.Kafka.Brokers, "topic": cfg.Kafka.Topic}).Info("kafka submitter ready")
		return k, nil

	case config.SubmitterDryRun:
		if cfg.DryRun.Path == "" {
			out := opts.Stdout
			if out == nil {
				out = os.Stdout
			}
			log.Info("dryrun submitter writing to stdout")
			return NewDryRun(out), nil
		}
		d, err := OpenDryRun(cfg.DryRun.Path)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.DryRun.Path).Info("dryrun submitter ready")
		return d, nil

	default:
		return nil, fmt.Errorf("unknown submitter type %q", cfg.Type)
	}
}
