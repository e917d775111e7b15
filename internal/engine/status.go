package engine

import "fmt"

// RunStatus represents the top-level state of an orchestration run.
type RunStatus string

const (
	// RunStatusIdle indicates the run has been created but not started.
	RunStatusIdle RunStatus = "idle"

	// RunStatusRunning indicates the run is executing its step sequence.
	RunStatusRunning RunStatus = "running"

	// RunStatusPaused indicates the run is suspended at a step boundary.
	RunStatusPaused RunStatus = "paused"

	// RunStatusCompleted indicates the run finished with every step and
	// assertion passing.
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed indicates a step or orchestration-level assertion
	// failed.
	RunStatusFailed RunStatus = "failed"

	// RunStatusStopped indicates the run was aborted by a stop command.
	RunStatusStopped RunStatus = "stopped"
)

// IsTerminal reports whether the status is final.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusStopped:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (s RunStatus) String() string {
	return string(s)
}

// StepStatus represents the state of a single step instance.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// ControlAction is an external command applied to a run.
type ControlAction string

const (
	ControlStart  ControlAction = "start"
	ControlStop   ControlAction = "stop"
	ControlPause  ControlAction = "pause"
	ControlResume ControlAction = "resume"
	ControlSkip   ControlAction = "skip"
)

// ParseControlAction validates a control action string from the wire.
func ParseControlAction(s string) (ControlAction, error) {
	switch ControlAction(s) {
	case ControlStart, ControlStop, ControlPause, ControlResume, ControlSkip:
		return ControlAction(s), nil
	}
	return "", fmt.Errorf("unknown control action %q", s)
}
