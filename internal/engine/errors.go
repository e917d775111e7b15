package engine

import "fmt"

// ControlError reports a control action that is not legal for the run's
// current status, such as resuming a run that is not paused.
type ControlError struct {
	Action ControlAction
	Status RunStatus
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("cannot %s run in status %s", e.Action, e.Status)
}

// ScenarioError wraps a failure reported by the scenario driver for a step.
type ScenarioError struct {
	StepID   string
	Scenario string
	Cause    error
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("scenario %q failed in step %s: %v", e.Scenario, e.StepID, e.Cause)
}

func (e *ScenarioError) Unwrap() error {
	return e.Cause
}
