package engine

import (
	"context"
	"time"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/events"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
)

// ScenarioDriver launches the fault scenario named by a step. The engine
// treats scenarios as opaque: the driver decides what "running a scenario"
// means (traffic shaping, proxy reconfiguration, load generation).
type ScenarioDriver interface {
	Run(ctx context.Context, step *orchestration.Step) (ScenarioHandle, error)
}

// ScenarioHandle follows a running scenario. Done yields the scenario's
// terminal error (nil on success) and must fire exactly once. Metrics may
// return nil when the scenario produces no live metrics.
type ScenarioHandle interface {
	Done() <-chan error
	Metrics() <-chan events.ScenarioMetrics
}

// TimerDriver is the default driver. It treats every scenario as a no-op
// that succeeds after the step's configured duration, which makes dry runs
// and tests deterministic without touching real infrastructure.
type TimerDriver struct{}

func (TimerDriver) Run(ctx context.Context, step *orchestration.Step) (ScenarioHandle, error) {
	done := make(chan error, 1)
	go func() {
		d := step.Duration()
		if d <= 0 {
			done <- nil
			return
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			done <- nil
		case <-ctx.Done():
			done <- ctx.Err()
		}
	}()
	return timerHandle{done: done}, nil
}

type timerHandle struct {
	done chan error
}

func (h timerHandle) Done() <-chan error                     { return h.done }
func (h timerHandle) Metrics() <-chan events.ScenarioMetrics { return nil }
