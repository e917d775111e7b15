package engine

import (
	"sync"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
)

// RunContext holds the mutable state shared between the executor, hook
// actions, and assertion evaluation for a single run. All accessors are
// safe for concurrent use; snapshot methods return copies so condition
// evaluation never sees partial writes.
type RunContext struct {
	mu          sync.RWMutex
	vars        map[string]orchestration.Value
	metrics     map[string]float64
	outcomes    map[string]bool
	results     []*StepResult
	lastSuccess bool
}

// NewRunContext seeds a context with the orchestration's declared variables.
// The last-step flag starts true so previous_step_succeeded holds before any
// step has run.
func NewRunContext(def *orchestration.Orchestration) *RunContext {
	rc := &RunContext{
		vars:        make(map[string]orchestration.Value),
		metrics:     make(map[string]float64),
		outcomes:    make(map[string]bool),
		lastSuccess: true,
	}
	for _, v := range def.Variables {
		rc.vars[v.Name] = v.Value
	}
	return rc
}

// SetVariable creates or overwrites a variable.
func (rc *RunContext) SetVariable(name string, value orchestration.Value) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.vars[name] = value
}

// Variable returns a variable and whether it exists.
func (rc *RunContext) Variable(name string) (orchestration.Value, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	v, ok := rc.vars[name]
	return v, ok
}

// RecordMetric creates or overwrites a named metric.
func (rc *RunContext) RecordMetric(name string, value float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.metrics[name] = value
}

// RecordStepResult appends a step result. Completed and failed steps also
// register an outcome used by step_succeeded and step_failed assertions and
// update the last-step flag read by previous_step conditions; skipped steps
// leave both untouched, so they never count as the previous step.
func (rc *RunContext) RecordStepResult(res *StepResult) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.results = append(rc.results, res)
	switch res.Status {
	case StepStatusCompleted:
		rc.outcomes[res.StepID] = true
		rc.lastSuccess = true
	case StepStatusFailed:
		rc.outcomes[res.StepID] = false
		rc.lastSuccess = false
	}
}

// Snapshot returns the evaluation state with copied variable and metric maps.
func (rc *RunContext) Snapshot() orchestration.EvalState {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	vars := make(map[string]orchestration.Value, len(rc.vars))
	for k, v := range rc.vars {
		vars[k] = v
	}
	metrics := make(map[string]float64, len(rc.metrics))
	for k, v := range rc.metrics {
		metrics[k] = v
	}
	return orchestration.EvalState{
		Vars:              vars,
		Metrics:           metrics,
		LastStepSucceeded: rc.lastSuccess,
	}
}

// Outcomes returns a copy of the per-step success map.
func (rc *RunContext) Outcomes() orchestration.StepOutcomes {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	out := make(orchestration.StepOutcomes, len(rc.outcomes))
	for k, v := range rc.outcomes {
		out[k] = v
	}
	return out
}

// StepResults returns the ordered step results recorded so far.
func (rc *RunContext) StepResults() []*StepResult {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	out := make([]*StepResult, len(rc.results))
	copy(out, rc.results)
	return out
}
