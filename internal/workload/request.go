// Package workload builds the transactions sent to the NodeHealthMonitor
// contract. Each module produces one request per invocation and hands it to a
// Submitter; it never interprets the result.
package workload

import "context"

const (
	// HealthMonitorContract names the target contract.
	HealthMonitorContract = "NodeHealthMonitor"

	// VerbReportStatus is the write entry point: (severity, statusHash, details).
	VerbReportStatus = "reportStatus"

	// VerbGetLatestStatus is the read entry point: (nodeAddress).
	VerbGetLatestStatus = "getLatestStatus"

	// DefaultNodeAddress is the node every reader queries unless overridden.
	DefaultNodeAddress = "0x0000000000000000000000000000000000000001"
)

// Request is the envelope handed to a Submitter. Args are positional and
// always strings, in the order the contract entry point declares them.
type Request struct {
	Contract string   `json:"contract"`
	Verb     string   `json:"verb"`
	Args     []string `json:"args"`
}

// ReadOnly reports whether the request targets a query entry point.
func (r Request) ReadOnly() bool {
	return r.Verb == VerbGetLatestStatus
}

// Submitter transmits a request to the system under test.
type Submitter interface {
	Submit(ctx context.Context, req Request) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, req Request) error

func (f SubmitterFunc) Submit(ctx context.Context, req Request) error {
	return f(ctx, req)
}
