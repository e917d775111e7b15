package engine

import (
	"sort"
	"sync"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/types"
)

// Registry tracks runs by identifier for the control API.
type Registry struct {
	mu   sync.RWMutex
	runs map[types.ID]*Run
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[types.ID]*Run)}
}

// Register adds a run.
func (reg *Registry) Register(run *Run) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.runs[run.ID()]; exists {
		return types.NewError(types.RUN_ALREADY_EXISTS, "run already registered: "+run.ID().String())
	}
	reg.runs[run.ID()] = run
	return nil
}

// Get looks up a run by id.
func (reg *Registry) Get(id types.ID) (*Run, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	run, ok := reg.runs[id]
	if !ok {
		return nil, types.NewError(types.RUN_NOT_FOUND, "run not found: "+id.String())
	}
	return run, nil
}

// List returns all runs ordered by id for stable output.
func (reg *Registry) List() []*Run {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Run, 0, len(reg.runs))
	for _, run := range reg.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
