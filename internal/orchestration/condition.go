package orchestration

import "fmt"

// ConditionType identifies a condition variant.
type ConditionType string

const (
	ConditionEquals             ConditionType = "equals"
	ConditionNotEquals          ConditionType = "not_equals"
	ConditionGreaterThan        ConditionType = "greater_than"
	ConditionLessThan           ConditionType = "less_than"
	ConditionGreaterThanOrEqual ConditionType = "greater_than_or_equal"
	ConditionLessThanOrEqual    ConditionType = "less_than_or_equal"
	ConditionExists             ConditionType = "exists"
	ConditionAnd                ConditionType = "and"
	ConditionOr                 ConditionType = "or"
	ConditionNot                ConditionType = "not"
	ConditionPreviousStepOK     ConditionType = "previous_step_succeeded"
	ConditionPreviousStepFailed ConditionType = "previous_step_failed"
	ConditionMetricThreshold    ConditionType = "metric_threshold"
)

// CompareOp is the comparison operator used by metric_threshold conditions.
type CompareOp string

const (
	CompareEquals             CompareOp = "equals"
	CompareNotEquals          CompareOp = "not_equals"
	CompareGreaterThan        CompareOp = "greater_than"
	CompareLessThan           CompareOp = "less_than"
	CompareGreaterThanOrEqual CompareOp = "greater_than_or_equal"
	CompareLessThanOrEqual    CompareOp = "less_than_or_equal"
)

// EvalState is the read-only state a condition tree evaluates against.
type EvalState struct {
	Vars    map[string]Value
	Metrics map[string]float64

	// LastStepSucceeded reflects the most recently executed step. Before
	// any step has run it is true; skipped steps leave it unchanged.
	LastStepSucceeded bool
}

// Condition is a tagged union over comparison, existence, logical, step
// outcome, and metric variants. Logical variants (and/or/not) hold nested
// conditions, forming a tree by construction; the wire format cannot express
// a cycle.
//
// Evaluation is total: a missing variable or metric reference resolves to
// false, never an error. This keeps the evaluator a pure function usable from
// hook gates, step gates, branch points, and assertions alike.
type Condition struct {
	Type ConditionType `json:"type" yaml:"type"`

	// Comparison and existence variants
	Variable string `json:"variable,omitempty" yaml:"variable,omitempty"`
	Value    Value  `json:"value,omitzero" yaml:"value,omitempty"`

	// metric_threshold variant
	Metric    string    `json:"metric,omitempty" yaml:"metric,omitempty"`
	Operator  CompareOp `json:"operator,omitempty" yaml:"operator,omitempty"`
	Threshold float64   `json:"threshold,omitempty" yaml:"threshold,omitempty"`

	// and/or variants
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// not variant
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Evaluate resolves the condition tree against the given state. It never
// errors on a validated tree; unknown references evaluate to false.
func (c *Condition) Evaluate(state EvalState) bool {
	switch c.Type {
	case ConditionEquals:
		v, ok := state.Vars[c.Variable]
		return ok && v.Equal(c.Value)

	case ConditionNotEquals:
		v, ok := state.Vars[c.Variable]
		return ok && !v.Equal(c.Value)

	case ConditionGreaterThan, ConditionLessThan, ConditionGreaterThanOrEqual, ConditionLessThanOrEqual:
		v, ok := state.Vars[c.Variable]
		if !ok {
			return false
		}
		return compareValues(v, c.Value, c.Type)

	case ConditionExists:
		_, ok := state.Vars[c.Variable]
		return ok

	case ConditionAnd:
		for i := range c.Conditions {
			if !c.Conditions[i].Evaluate(state) {
				return false
			}
		}
		return true

	case ConditionOr:
		for i := range c.Conditions {
			if c.Conditions[i].Evaluate(state) {
				return true
			}
		}
		return false

	case ConditionNot:
		if c.Condition == nil {
			return false
		}
		return !c.Condition.Evaluate(state)

	case ConditionPreviousStepOK:
		return state.LastStepSucceeded

	case ConditionPreviousStepFailed:
		return !state.LastStepSucceeded

	case ConditionMetricThreshold:
		value, ok := state.Metrics[c.Metric]
		if !ok {
			return false
		}
		return compareFloats(value, c.Threshold, c.Operator)
	}

	return false
}

// compareValues applies an ordered comparison between a variable value and a
// literal. Operands coerce to the numeric domain when both sides coerce;
// otherwise both sides must be strings. Mixed or incomparable operands
// evaluate to false.
func compareValues(left, right Value, op ConditionType) bool {
	ln, lok := left.AsNumber()
	rn, rok := right.AsNumber()
	if lok && rok {
		switch op {
		case ConditionGreaterThan:
			return ln > rn
		case ConditionLessThan:
			return ln < rn
		case ConditionGreaterThanOrEqual:
			return ln >= rn
		case ConditionLessThanOrEqual:
			return ln <= rn
		}
		return false
	}

	ls, lok := left.AsString()
	rs, rok := right.AsString()
	if !lok || !rok {
		return false
	}
	switch op {
	case ConditionGreaterThan:
		return ls > rs
	case ConditionLessThan:
		return ls < rs
	case ConditionGreaterThanOrEqual:
		return ls >= rs
	case ConditionLessThanOrEqual:
		return ls <= rs
	}
	return false
}

func compareFloats(value, threshold float64, op CompareOp) bool {
	switch op {
	case CompareEquals:
		return value == threshold
	case CompareNotEquals:
		return value != threshold
	case CompareGreaterThan:
		return value > threshold
	case CompareLessThan:
		return value < threshold
	case CompareGreaterThanOrEqual:
		return value >= threshold
	case CompareLessThanOrEqual:
		return value <= threshold
	}
	return false
}

// Validate checks the condition tree structurally. Payload requirements are
// enforced here, at submission time, so Evaluate never has to error.
func (c *Condition) Validate() error {
	switch c.Type {
	case ConditionEquals, ConditionNotEquals:
		if c.Variable == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidCondition,
				Message: fmt.Sprintf("%s condition requires a variable", c.Type),
			}
		}
		if c.Value.IsZero() {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidCondition,
				Message: fmt.Sprintf("%s condition requires a value", c.Type),
			}
		}

	case ConditionGreaterThan, ConditionLessThan, ConditionGreaterThanOrEqual, ConditionLessThanOrEqual:
		if c.Variable == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidCondition,
				Message: fmt.Sprintf("%s condition requires a variable", c.Type),
			}
		}
		if c.Value.IsZero() {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidCondition,
				Message: fmt.Sprintf("%s condition requires a value", c.Type),
			}
		}

	case ConditionExists:
		if c.Variable == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidCondition,
				Message: "exists condition requires a variable",
			}
		}

	case ConditionAnd, ConditionOr:
		if len(c.Conditions) == 0 {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidCondition,
				Message: fmt.Sprintf("%s condition requires at least one child condition", c.Type),
			}
		}
		for i := range c.Conditions {
			if err := c.Conditions[i].Validate(); err != nil {
				return err
			}
		}

	case ConditionNot:
		if c.Condition == nil {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidCondition,
				Message: "not condition requires a child condition",
			}
		}
		return c.Condition.Validate()

	case ConditionPreviousStepOK, ConditionPreviousStepFailed:
		// No payload.

	case ConditionMetricThreshold:
		if c.Metric == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidCondition,
				Message: "metric_threshold condition requires a metric name",
			}
		}
		if !validCompareOp(c.Operator) {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidCondition,
				Message: fmt.Sprintf("metric_threshold condition has unknown operator %q", c.Operator),
			}
		}

	default:
		return &DefinitionError{
			Code:    DefinitionErrorInvalidCondition,
			Message: fmt.Sprintf("unknown condition type %q", c.Type),
		}
	}

	return nil
}

func validCompareOp(op CompareOp) bool {
	switch op {
	case CompareEquals, CompareNotEquals, CompareGreaterThan, CompareLessThan,
		CompareGreaterThanOrEqual, CompareLessThanOrEqual:
		return true
	}
	return false
}
