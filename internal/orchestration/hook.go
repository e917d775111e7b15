package orchestration

import (
	"fmt"
	"log/slog"
)

// HookType identifies the lifecycle point a hook is attached to.
type HookType string

const (
	HookPreStep           HookType = "pre_step"
	HookPostStep          HookType = "post_step"
	HookPreOrchestration  HookType = "pre_orchestration"
	HookPostOrchestration HookType = "post_orchestration"
)

// ActionType identifies a hook action variant.
type ActionType string

const (
	ActionSetVariable  ActionType = "set_variable"
	ActionLog          ActionType = "log"
	ActionHTTPRequest  ActionType = "http_request"
	ActionCommand      ActionType = "command"
	ActionRecordMetric ActionType = "record_metric"
)

// LogLevel is the severity carried by log actions.
type LogLevel string

const (
	LogTrace LogLevel = "trace"
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// SlogLevel maps a hook log level onto slog. Trace has no slog equivalent and
// maps below debug.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogTrace:
		return slog.LevelDebug - 4
	case LogDebug:
		return slog.LevelDebug
	case LogInfo:
		return slog.LevelInfo
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// HookAction is a tagged union over the action kinds a hook may perform.
// Only the fields its kind requires are populated; validation enforces that
// at submission time.
type HookAction struct {
	Type ActionType `json:"type" yaml:"type"`

	// set_variable and record_metric: target name and value. record_metric
	// requires a numeric value.
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Value Value  `json:"value,omitzero" yaml:"value,omitempty"`

	// log
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
	Level   LogLevel `json:"level,omitempty" yaml:"level,omitempty"`

	// http_request
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	Body   string `json:"body,omitempty" yaml:"body,omitempty"`

	// command
	Command string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// Validate checks the action payload against its kind.
func (a *HookAction) Validate() error {
	switch a.Type {
	case ActionSetVariable:
		if a.Name == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAction,
				Message: "set_variable action requires a name",
			}
		}
		if a.Value.IsZero() {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAction,
				Message: fmt.Sprintf("set_variable action %q requires a value", a.Name),
			}
		}

	case ActionLog:
		if a.Message == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAction,
				Message: "log action requires a message",
			}
		}
		switch a.Level {
		case "", LogTrace, LogDebug, LogInfo, LogWarn, LogError:
		default:
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAction,
				Message: fmt.Sprintf("log action has unknown level %q", a.Level),
			}
		}

	case ActionHTTPRequest:
		if a.URL == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAction,
				Message: "http_request action requires a url",
			}
		}
		if a.Method == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAction,
				Message: "http_request action requires a method",
			}
		}

	case ActionCommand:
		if a.Command == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAction,
				Message: "command action requires a command",
			}
		}

	case ActionRecordMetric:
		if a.Name == "" {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAction,
				Message: "record_metric action requires a name",
			}
		}
		if _, ok := a.Value.AsNumber(); !ok {
			return &DefinitionError{
				Code:    DefinitionErrorInvalidAction,
				Message: fmt.Sprintf("record_metric action %q requires a numeric value", a.Name),
			}
		}

	default:
		return &DefinitionError{
			Code:    DefinitionErrorInvalidAction,
			Message: fmt.Sprintf("unknown action type %q", a.Type),
		}
	}

	return nil
}

// Hook is an ordered, optionally gated set of actions run at a defined
// lifecycle point. A hook with no condition always fires; a gated hook whose
// condition evaluates false is skipped entirely, actions included.
type Hook struct {
	Name      string       `json:"name" yaml:"name"`
	HookType  HookType     `json:"hookType" yaml:"hookType"`
	Actions   []HookAction `json:"actions" yaml:"actions"`
	Condition *Condition   `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// ShouldFire evaluates the hook's gate against the given state.
func (h *Hook) ShouldFire(state EvalState) bool {
	if h.Condition == nil {
		return true
	}
	return h.Condition.Evaluate(state)
}

// Validate checks the hook structure, restricted to the allowed lifecycle
// points in allowed.
func (h *Hook) Validate(allowed ...HookType) error {
	if h.Name == "" {
		return &DefinitionError{
			Code:    DefinitionErrorInvalidHook,
			Message: "hook requires a name",
		}
	}

	ok := false
	for _, t := range allowed {
		if h.HookType == t {
			ok = true
			break
		}
	}
	if !ok {
		return &DefinitionError{
			Code:    DefinitionErrorInvalidHook,
			Message: fmt.Sprintf("hook %q has type %q, which is not valid at this lifecycle point", h.Name, h.HookType),
		}
	}

	if len(h.Actions) == 0 {
		return &DefinitionError{
			Code:    DefinitionErrorInvalidHook,
			Message: fmt.Sprintf("hook %q has no actions", h.Name),
		}
	}
	for i := range h.Actions {
		if err := h.Actions[i].Validate(); err != nil {
			return err
		}
	}

	if h.Condition != nil {
		if err := h.Condition.Validate(); err != nil {
			return err
		}
	}

	return nil
}
