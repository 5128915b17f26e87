package workload

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownWorkload is returned when no factory is registered under a name.
var ErrUnknownWorkload = errors.New("unknown workload")

// Init is what the driver hands a factory when it creates a worker's module.
type Init struct {
	WorkerIndex  int
	TotalWorkers int
	RoundIndex   int
	Arguments    map[string]any
	Submitter    Submitter
}

// Factory creates the module for one worker.
type Factory func(init Init) (Module, error)

// Registry maps workload names to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. It panics on an empty or duplicate name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" || f == nil {
		panic("workload: Register with empty name or nil factory")
	}
	if _, dup := r.factories[name]; dup {
		panic(fmt.Sprintf("workload: Register called twice for %q", name))
	}
	r.factories[name] = f
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorkload, name)
	}
	return f, nil
}

// Names returns the registered workload names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry holding the reportStatus and
// getLatestStatus workloads.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(VerbReportStatus, newStatusReporterModule)
	r.Register(VerbGetLatestStatus, newStatusReaderModule)
	return r
}

func newStatusReporterModule(init Init) (Module, error) {
	return NewStatusReporter(init.WorkerIndex, init.Submitter), nil
}

// newStatusReaderModule honours an optional "nodeAddress" round argument.
func newStatusReaderModule(init Init) (Module, error) {
	v, ok := init.Arguments["nodeAddress"]
	if !ok {
		return NewStatusReader(init.Submitter), nil
	}
	addr, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("nodeAddress must be a string, got %T", v)
	}
	return NewStatusReaderForAddress(addr, init.Submitter)
}
