package engine

import "time"

// StepResult records the outcome of one step instance. A step that runs in
// several iterations produces one result per iteration.
type StepResult struct {
	StepID    string     `json:"stepId"`
	Name      string     `json:"name"`
	Iteration int        `json:"iteration"`
	Status    StepStatus `json:"status"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	// DurationSeconds is the observed wall-clock duration, not the
	// configured one.
	DurationSeconds float64 `json:"durationSeconds"`

	Error      string             `json:"error,omitempty"`
	Assertions []AssertionResult  `json:"assertions,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// AssertionResult records one assertion check.
type AssertionResult struct {
	Description string `json:"description"`
	Passed      bool   `json:"passed"`
}
