// Package events provides the execution event model and a per-run fan-out
// bus. Events published for a run preserve generation order for every
// subscriber; across runs no ordering is guaranteed.
package events

import (
	"time"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/types"
)

// EventType identifies the category of an execution event.
type EventType string

const (
	// EventStatusUpdate carries run-level progress: status, iteration,
	// cursor, and accumulated failed steps.
	EventStatusUpdate EventType = "status_update"

	// EventStepUpdate carries a single step status transition with timing
	// and, on failure, an error string.
	EventStepUpdate EventType = "step_update"

	// EventMetricsUpdate carries live scenario metrics for the active step.
	EventMetricsUpdate EventType = "metrics_update"
)

// Event is one message on the status stream. The wire form is {type, data};
// RunID and Timestamp route and order events internally and are not part of
// the stream payload.
type Event struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	RunID     types.ID  `json:"-"`
	Timestamp time.Time `json:"-"`
}

// StatusUpdate is the data payload of a status_update event.
type StatusUpdate struct {
	Status           string   `json:"status"`
	CurrentIteration int      `json:"currentIteration"`
	MaxIterations    int      `json:"maxIterations"`
	CurrentStep      int      `json:"currentStep"`
	TotalSteps       int      `json:"totalSteps"`
	Progress         float64  `json:"progress"`
	FailedSteps      []string `json:"failedSteps"`
}

// StepUpdate is the data payload of a step_update event. Duration is in
// seconds. Consumers must treat the stream as a snapshot-refresh feed; the
// same step may be reported again after a reconnect.
type StepUpdate struct {
	StepID    string             `json:"stepId"`
	Status    string             `json:"status"`
	StartTime *time.Time         `json:"startTime,omitempty"`
	EndTime   *time.Time         `json:"endTime,omitempty"`
	Duration  *float64           `json:"duration,omitempty"`
	Error     string             `json:"error,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// ScenarioMetrics is the fixed metric triple reported by a live scenario.
type ScenarioMetrics struct {
	RequestCount int64   `json:"requestCount"`
	ErrorRate    float64 `json:"errorRate"`
	AvgLatency   float64 `json:"avgLatency"`
}

// MetricsUpdate is the data payload of a metrics_update event.
type MetricsUpdate struct {
	StepID  string          `json:"stepId"`
	Metrics ScenarioMetrics `json:"metrics"`
}

// Filter selects which events a subscriber receives. Zero fields match
// everything.
type Filter struct {
	// RunID restricts delivery to a single run's events.
	RunID types.ID

	// Types restricts delivery to the listed event types.
	Types []EventType
}

// Matches reports whether an event passes the filter.
func (f Filter) Matches(event Event) bool {
	if !f.RunID.IsZero() && event.RunID != f.RunID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
