package workload

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Module produces and submits one transaction per call.
type Module interface {
	SubmitTransaction(ctx context.Context) error
}

// StatusReporter reports a randomized health status on every call.
type StatusReporter struct {
	workerID  int
	submitter Submitter
	entropy   io.Reader
}

// NewStatusReporter creates a reporter for the given worker. Randomness comes
// from crypto/rand.
func NewStatusReporter(workerID int, submitter Submitter) *StatusReporter {
	return NewStatusReporterWithEntropy(workerID, submitter, rand.Reader)
}

// NewStatusReporterWithEntropy creates a reporter reading randomness from
// entropy (for testing).
func NewStatusReporterWithEntropy(workerID int, submitter Submitter, entropy io.Reader) *StatusReporter {
	return &StatusReporter{
		workerID:  workerID,
		submitter: submitter,
		entropy:   entropy,
	}
}

// Build constructs a fresh reportStatus request without submitting it.
func (r *StatusReporter) Build() (Request, error) {
	report, err := newHealthReport(r.entropy, r.workerID)
	if err != nil {
		return Request{}, fmt.Errorf("building %s request: %w", VerbReportStatus, err)
	}
	return Request{
		Contract: HealthMonitorContract,
		Verb:     VerbReportStatus,
		Args:     report.Args(),
	}, nil
}

// SubmitTransaction builds a request and returns the submitter's result as is.
func (r *StatusReporter) SubmitTransaction(ctx context.Context) error {
	req, err := r.Build()
	if err != nil {
		return err
	}
	return r.submitter.Submit(ctx, req)
}

// StatusReader queries the latest status of a fixed node.
type StatusReader struct {
	address   string
	submitter Submitter
}

// NewStatusReader creates a reader for DefaultNodeAddress.
func NewStatusReader(submitter Submitter) *StatusReader {
	return &StatusReader{address: DefaultNodeAddress, submitter: submitter}
}

// NewStatusReaderForAddress creates a reader for address, which must be a
// 0x-prefixed 20-byte hex string.
func NewStatusReaderForAddress(address string, submitter Submitter) (*StatusReader, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	return &StatusReader{address: address, submitter: submitter}, nil
}

// Address returns the node address the reader queries.
func (r *StatusReader) Address() string {
	return r.address
}

// Build constructs the getLatestStatus request.
func (r *StatusReader) Build() Request {
	return Request{
		Contract: HealthMonitorContract,
		Verb:     VerbGetLatestStatus,
		Args:     []string{r.address},
	}
}

func (r *StatusReader) SubmitTransaction(ctx context.Context) error {
	return r.submitter.Submit(ctx, r.Build())
}

// ValidateAddress checks that s is "0x" followed by 40 hex digits.
func ValidateAddress(s string) error {
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("invalid node address %q: missing 0x prefix", s)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return fmt.Errorf("invalid node address %q: %w", s, err)
	}
	if len(raw) != 20 {
		return fmt.Errorf("invalid node address %q: want 20 bytes, got %d", s, len(raw))
	}
	return nil
}
