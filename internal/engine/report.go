package engine

import (
	"time"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/types"
)

// Report summarizes a finished run. It is only produced when the
// orchestration enables reporting.
type Report struct {
	OrchestrationName    string             `json:"orchestrationName"`
	RunID                types.ID           `json:"runId"`
	StartTime            time.Time          `json:"startTime"`
	EndTime              time.Time          `json:"endTime"`
	TotalDurationSeconds float64            `json:"totalDurationSeconds"`
	Status               RunStatus          `json:"status"`
	Success              bool               `json:"success"`
	StepResults          []StepResult       `json:"stepResults"`
	AssertionResults     []AssertionResult  `json:"assertionResults"`
	FailedSteps          []string           `json:"failedSteps"`
	FinalVariables       map[string]any     `json:"finalVariables"`
	FinalMetrics         map[string]float64 `json:"finalMetrics"`
	Errors               []string           `json:"errors,omitempty"`
}

// buildReportLocked assembles the report. Callers must hold r.mu.
func (r *Run) buildReportLocked(terminal RunStatus, assertionResults []AssertionResult) *Report {
	state := r.rctx.Snapshot()
	finalVars := make(map[string]any, len(state.Vars))
	for name, v := range state.Vars {
		finalVars[name] = v.Interface()
	}

	stepResults := r.rctx.StepResults()
	steps := make([]StepResult, 0, len(stepResults))
	for _, sr := range stepResults {
		steps = append(steps, *sr)
	}

	failed := make([]string, len(r.failedSteps))
	copy(failed, r.failedSteps)
	errs := make([]string, len(r.hookFailures))
	copy(errs, r.hookFailures)

	return &Report{
		OrchestrationName:    r.def.Name,
		RunID:                r.id,
		StartTime:            r.startedAt,
		EndTime:              r.finishedAt,
		TotalDurationSeconds: r.finishedAt.Sub(r.startedAt).Seconds(),
		Status:               terminal,
		Success:              terminal == RunStatusCompleted,
		StepResults:          steps,
		AssertionResults:     assertionResults,
		FailedSteps:          failed,
		FinalVariables:       finalVars,
		FinalMetrics:         state.Metrics,
		Errors:               errs,
	}
}
