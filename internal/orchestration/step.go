package orchestration

import (
	"fmt"
	"time"
)

// Step is an atomic unit of work: it invokes an external fault scenario,
// bounded by pre/post hooks and followed by assertions. A step-level
// condition gates the whole step; when it evaluates false the step is
// skipped without running hooks or the scenario.
type Step struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Scenario string `json:"scenario" yaml:"scenario"`

	// DurationSeconds bounds the scenario wait. Zero means the step completes
	// as soon as the scenario reports completion.
	DurationSeconds int `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`

	// DelayBeforeSeconds delays the step start, before pre-hooks run.
	DelayBeforeSeconds int `json:"delayBeforeSeconds,omitempty" yaml:"delayBeforeSeconds,omitempty"`

	Condition  *Condition  `json:"condition,omitempty" yaml:"condition,omitempty"`
	PreHooks   []Hook      `json:"preHooks,omitempty" yaml:"preHooks,omitempty"`
	PostHooks  []Hook      `json:"postHooks,omitempty" yaml:"postHooks,omitempty"`
	Assertions []Assertion `json:"assertions,omitempty" yaml:"assertions,omitempty"`

	// Variables are step-local seed overrides applied when the step starts.
	Variables map[string]Value `json:"variables,omitempty" yaml:"variables,omitempty"`

	// ContinueOnFailure keeps the iteration going past a failed step instead
	// of aborting the remaining sequence elements.
	ContinueOnFailure bool `json:"continueOnFailure,omitempty" yaml:"continueOnFailure,omitempty"`
}

// Duration returns the configured wait bound, or zero when unset.
func (s *Step) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// DelayBefore returns the configured start delay, or zero when unset.
func (s *Step) DelayBefore() time.Duration {
	return time.Duration(s.DelayBeforeSeconds) * time.Second
}

// Validate checks the step structure.
func (s *Step) Validate() error {
	if s.ID == "" {
		return &DefinitionError{
			Code:    DefinitionErrorInvalidStep,
			Message: "step requires an id",
		}
	}
	if s.Scenario == "" {
		return &DefinitionError{
			Code:    DefinitionErrorInvalidStep,
			Message: "step requires a scenario",
			StepID:  s.ID,
		}
	}
	if s.DurationSeconds < 0 {
		return &DefinitionError{
			Code:    DefinitionErrorInvalidStep,
			Message: "duration_seconds must not be negative",
			StepID:  s.ID,
		}
	}
	if s.DelayBeforeSeconds < 0 {
		return &DefinitionError{
			Code:    DefinitionErrorInvalidStep,
			Message: "delayBeforeSeconds must not be negative",
			StepID:  s.ID,
		}
	}

	if s.Condition != nil {
		if err := s.Condition.Validate(); err != nil {
			return err
		}
	}

	for i := range s.PreHooks {
		if err := s.PreHooks[i].Validate(HookPreStep); err != nil {
			return err
		}
	}
	for i := range s.PostHooks {
		if err := s.PostHooks[i].Validate(HookPostStep); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := s.Assertions[i].Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ConditionalStep is a branch point: its condition is evaluated once against
// the current variable and metric snapshot and exactly one of the two branch
// sequences executes.
type ConditionalStep struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Condition Condition `json:"condition" yaml:"condition"`
	ThenSteps []Step    `json:"thenSteps,omitempty" yaml:"thenSteps,omitempty"`
	ElseSteps []Step    `json:"elseSteps,omitempty" yaml:"elseSteps,omitempty"`
}

// Validate checks the conditional step structure.
func (c *ConditionalStep) Validate() error {
	if c.ID == "" {
		return &DefinitionError{
			Code:    DefinitionErrorInvalidStep,
			Message: "conditional step requires an id",
		}
	}
	if err := c.Condition.Validate(); err != nil {
		return err
	}
	if len(c.ThenSteps) == 0 && len(c.ElseSteps) == 0 {
		return &DefinitionError{
			Code:    DefinitionErrorInvalidStep,
			Message: fmt.Sprintf("conditional step %q has no branch steps", c.ID),
			StepID:  c.ID,
		}
	}
	for i := range c.ThenSteps {
		if err := c.ThenSteps[i].Validate(); err != nil {
			return err
		}
	}
	for i := range c.ElseSteps {
		if err := c.ElseSteps[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
