// Package orchestration defines the declarative workflow model executed by
// the engine: variables, conditions, hooks, steps, conditional branch points,
// and assertions, plus structural validation and the JSON/YAML wire codecs.
//
// The model is consumed as a finalized, validated value. Mutating a
// definition never affects an in-flight run; the engine copies variable
// seeds into run-private state at start.
package orchestration

import "fmt"

// Variable is a named definition-time seed. Seeds are copied into the run's
// private variable store at start; the definition value is never mutated.
type Variable struct {
	Name  string `json:"name" yaml:"name"`
	Value Value  `json:"value" yaml:"value"`
}

// Orchestration is the declarative workflow definition.
//
// Within one iteration the execution order is fixed: the declared Steps in
// order, then the declared ConditionalSteps in order.
type Orchestration struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Variables []Variable `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Hooks holds orchestration-level hooks; only pre_orchestration and
	// post_orchestration types are valid here.
	Hooks []Hook `json:"hooks,omitempty" yaml:"hooks,omitempty"`

	Steps            []Step            `json:"steps,omitempty" yaml:"steps,omitempty"`
	ConditionalSteps []ConditionalStep `json:"conditionalSteps,omitempty" yaml:"conditionalSteps,omitempty"`

	Assertions []Assertion `json:"assertions,omitempty" yaml:"assertions,omitempty"`

	// MaxIterations repeats the whole sequence. Zero and one both mean a
	// single pass.
	MaxIterations int `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty"`

	EnableReporting bool     `json:"enableReporting,omitempty" yaml:"enableReporting,omitempty"`
	Tags            []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// EffectiveIterations normalizes MaxIterations to at least one pass.
func (o *Orchestration) EffectiveIterations() int {
	if o.MaxIterations < 1 {
		return 1
	}
	return o.MaxIterations
}

// SequenceLength is the number of top-level sequence elements per iteration:
// plain steps followed by conditional steps.
func (o *Orchestration) SequenceLength() int {
	return len(o.Steps) + len(o.ConditionalSteps)
}

// StepIDs returns every step id declared anywhere in the definition,
// including inside conditional branches, in declaration order.
func (o *Orchestration) StepIDs() []string {
	ids := make([]string, 0, len(o.Steps))
	for i := range o.Steps {
		ids = append(ids, o.Steps[i].ID)
	}
	for i := range o.ConditionalSteps {
		cs := &o.ConditionalSteps[i]
		ids = append(ids, cs.ID)
		for j := range cs.ThenSteps {
			ids = append(ids, cs.ThenSteps[j].ID)
		}
		for j := range cs.ElseSteps {
			ids = append(ids, cs.ElseSteps[j].ID)
		}
	}
	return ids
}

// Validate runs all structural checks on the definition and returns the first
// violation found. A definition that fails validation is rejected at
// submission time and never becomes a run.
func (o *Orchestration) Validate() error {
	if o.Name == "" {
		return &DefinitionError{
			Code:    DefinitionErrorEmpty,
			Message: "orchestration requires a name",
		}
	}
	if o.SequenceLength() == 0 {
		return &DefinitionError{
			Code:    DefinitionErrorEmpty,
			Message: "orchestration has no steps to execute",
		}
	}
	if o.MaxIterations < 0 {
		return &DefinitionError{
			Code:    DefinitionErrorInvalidStep,
			Message: "maxIterations must not be negative",
		}
	}

	seenVars := make(map[string]struct{}, len(o.Variables))
	for i := range o.Variables {
		v := &o.Variables[i]
		if v.Name == "" {
			return &DefinitionError{
				Code:    DefinitionErrorDuplicateVar,
				Message: "variable requires a name",
			}
		}
		if _, dup := seenVars[v.Name]; dup {
			return &DefinitionError{
				Code:    DefinitionErrorDuplicateVar,
				Message: fmt.Sprintf("duplicate variable name %q", v.Name),
			}
		}
		seenVars[v.Name] = struct{}{}
	}

	for i := range o.Hooks {
		if err := o.Hooks[i].Validate(HookPreOrchestration, HookPostOrchestration); err != nil {
			return err
		}
	}

	seenSteps := make(map[string]struct{})
	checkID := func(id string) error {
		if _, dup := seenSteps[id]; dup {
			return &DefinitionError{
				Code:    DefinitionErrorDuplicateStepID,
				Message: fmt.Sprintf("duplicate step id %q", id),
				StepID:  id,
			}
		}
		seenSteps[id] = struct{}{}
		return nil
	}

	for i := range o.Steps {
		if err := o.Steps[i].Validate(); err != nil {
			return err
		}
		if err := checkID(o.Steps[i].ID); err != nil {
			return err
		}
	}
	for i := range o.ConditionalSteps {
		cs := &o.ConditionalSteps[i]
		if err := cs.Validate(); err != nil {
			return err
		}
		if err := checkID(cs.ID); err != nil {
			return err
		}
		for j := range cs.ThenSteps {
			if err := checkID(cs.ThenSteps[j].ID); err != nil {
				return err
			}
		}
		for j := range cs.ElseSteps {
			if err := checkID(cs.ElseSteps[j].ID); err != nil {
				return err
			}
		}
	}

	// Step references in assertions must resolve to a declared step,
	// wherever the assertion is attached.
	checkRef := func(a *Assertion) error {
		if a.Type != AssertStepSucceeded && a.Type != AssertStepFailed {
			return nil
		}
		if _, ok := seenSteps[a.StepID]; !ok {
			return &DefinitionError{
				Code:    DefinitionErrorUnknownStepRef,
				Message: fmt.Sprintf("assertion references unknown step %q", a.StepID),
				StepID:  a.StepID,
			}
		}
		return nil
	}

	for i := range o.Assertions {
		a := &o.Assertions[i]
		if err := a.Validate(); err != nil {
			return err
		}
		if err := checkRef(a); err != nil {
			return err
		}
	}

	stepRefs := func(steps []Step) error {
		for i := range steps {
			for j := range steps[i].Assertions {
				if err := checkRef(&steps[i].Assertions[j]); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := stepRefs(o.Steps); err != nil {
		return err
	}
	for i := range o.ConditionalSteps {
		if err := stepRefs(o.ConditionalSteps[i].ThenSteps); err != nil {
			return err
		}
		if err := stepRefs(o.ConditionalSteps[i].ElseSteps); err != nil {
			return err
		}
	}

	return nil
}
