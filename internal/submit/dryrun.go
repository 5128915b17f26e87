package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"healthbench/internal/workload"
)

// DryRun writes each request as one JSON line instead of sending it.
type DryRun struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

// NewDryRun writes envelopes to w. Close does not close w.
func NewDryRun(w io.Writer) *DryRun {
	return &DryRun{enc: json.NewEncoder(w)}
}

// OpenDryRun creates (or truncates) path and writes envelopes to it.
func OpenDryRun(path string) (*DryRun, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening dryrun output: %w", err)
	}
	return &DryRun{enc: json.NewEncoder(f), closer: f}, nil
}

func (d *DryRun) Submit(ctx context.Context, req workload.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enc.Encode(NewEnvelope(req)); err != nil {
		return fmt.Errorf("writing %s request: %w", req.Verb, err)
	}
	return nil
}

func (d *DryRun) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}
