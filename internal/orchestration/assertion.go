package orchestration

import "fmt"

// AssertionType identifies an assertion variant.
type AssertionType string

const (
	AssertVariableEquals AssertionType = "variable_equals"
	AssertMetricInRange  AssertionType = "metric_in_range"
	AssertStepSucceeded  AssertionType = "step_succeeded"
	AssertStepFailed     AssertionType = "step_failed"
	AssertCondition      AssertionType = "condition"
)

// StepOutcomes maps step ids to whether the step completed successfully.
// A step that has not executed has no entry.
type StepOutcomes map[string]bool

// Assertion is a post-hoc boolean check evaluated once at the point it is
// attached, either after a step finishes or after the whole run. A failing
// assertion fails the owning step or orchestration, never the engine.
type Assertion struct {
	Type AssertionType `json:"type" yaml:"type"`

	// variable_equals
	Variable string `json:"variable,omitempty" yaml:"variable,omitempty"`
	Expected Value  `json:"expected,omitzero" yaml:"expected,omitempty"`

	// metric_in_range
	Metric string  `json:"metric,omitempty" yaml:"metric,omitempty"`
	Min    float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max    float64 `json:"max,omitempty" yaml:"max,omitempty"`

	// step_succeeded and step_failed
	StepID string `json:"stepId,omitempty" yaml:"stepId,omitempty"`

	// condition
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Evaluate checks the assertion against the evaluation state and step outcome
// snapshot. Missing references evaluate to false rather than erroring.
func (a *Assertion) Evaluate(state EvalState, steps StepOutcomes) bool {
	switch a.Type {
	case AssertVariableEquals:
		v, ok := state.Vars[a.Variable]
		return ok && v.Equal(a.Expected)

	case AssertMetricInRange:
		v, ok := state.Metrics[a.Metric]
		return ok && v >= a.Min && v <= a.Max

	case AssertStepSucceeded:
		succeeded, ok := steps[a.StepID]
		return ok && succeeded

	case AssertStepFailed:
		succeeded, ok := steps[a.StepID]
		return ok && !succeeded

	case AssertCondition:
		if a.Condition == nil {
			return false
		}
		return a.Condition.Evaluate(state)
	}

	return false
}

// Describe returns a short human-readable description used in reports and
// step results.
func (a *Assertion) Describe() string {
	switch a.Type {
	case AssertVariableEquals:
		return fmt.Sprintf("variable %q equals %s", a.Variable, a.Expected.String())
	case AssertMetricInRange:
		return fmt.Sprintf("metric %q in [%g, %g]", a.Metric, a.Min, a.Max)
	case AssertStepSucceeded:
		return fmt.Sprintf("step %q succeeded", a.StepID)
	case AssertStepFailed:
		return fmt.Sprintf("step %q failed", a.StepID)
	case AssertCondition:
		return "condition holds"
	}
	return string(a.Type)
}

// Validate checks the assertion payload against its kind.
func (a *Assertion) Validate() error {
	switch a.Type {
	case AssertVariableEquals:
		if a.Variable == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAssertion,
				Message: "variable_equals assertion requires a variable",
			}
		}
		if a.Expected.IsZero() {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAssertion,
				Message: fmt.Sprintf("variable_equals assertion on %q requires an expected value", a.Variable),
			}
		}

	case AssertMetricInRange:
		if a.Metric == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAssertion,
				Message: "metric_in_range assertion requires a metric",
			}
		}
		if a.Min > a.Max {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAssertion,
				Message: fmt.Sprintf("metric_in_range assertion on %q has min %g greater than max %g", a.Metric, a.Min, a.Max),
			}
		}

	case AssertStepSucceeded, AssertStepFailed:
		if a.StepID == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAssertion,
				Message: fmt.Sprintf("%s assertion requires a stepId", a.Type),
			}
		}

	case AssertCondition:
		if a.Condition == nil {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAssertion,
				Message: "condition assertion requires a condition",
			}
		}
		return a.Condition.Validate()

	default:
		return &DefinitionError{
			Code:    DefinitionErrorInvalidAssertion,
			Message: fmt.Sprintf("unknown assertion type %q", a.Type),
		}
	}

	return nil
}
