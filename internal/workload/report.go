package workload

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

// Severity is the health code recorded by the contract.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
)

// severityLevels is the number of valid severity codes.
const severityLevels = 3

// statusHashSize is the length in bytes of a report fingerprint.
const statusHashSize = 32

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// HealthReport is the payload of a single reportStatus call.
type HealthReport struct {
	Severity   Severity
	StatusHash string
	Details    string
}

// Args renders the report in the contract's positional order.
func (h HealthReport) Args() []string {
	return []string{strconv.Itoa(int(h.Severity)), h.StatusHash, h.Details}
}

// newHealthReport draws a random severity and status hash from entropy.
func newHealthReport(entropy io.Reader, workerID int) (HealthReport, error) {
	severity, err := drawSeverity(entropy)
	if err != nil {
		return HealthReport{}, fmt.Errorf("drawing severity: %w", err)
	}

	var buf [statusHashSize]byte
	if _, err := io.ReadFull(entropy, buf[:]); err != nil {
		return HealthReport{}, fmt.Errorf("drawing status hash: %w", err)
	}

	return HealthReport{
		Severity:   severity,
		StatusHash: "0x" + hex.EncodeToString(buf[:]),
		Details:    fmt.Sprintf("Worker %d status report - severity %d", workerID, int(severity)),
	}, nil
}

// drawSeverity reads bytes until one falls below the largest multiple of
// severityLevels, so every code is equally likely.
func drawSeverity(entropy io.Reader) (Severity, error) {
	const limit = 256 - 256%severityLevels
	var b [1]byte
	for {
		if _, err := io.ReadFull(entropy, b[:]); err != nil {
			return 0, err
		}
		if int(b[0]) < limit {
			return Severity(int(b[0]) % severityLevels), nil
		}
	}
}
