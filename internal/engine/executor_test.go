package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/events"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
)

// recorderSink captures hook side effects instead of performing them.
type recorderSink struct {
	mu       sync.Mutex
	requests []string
	commands []string
	err      error
}

func (s *recorderSink) HTTPRequest(ctx context.Context, method, url, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, method+" "+url)
	return s.err
}

func (s *recorderSink) Command(ctx context.Context, name string, args []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, name)
	return s.err
}

func (s *recorderSink) commandCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.commands {
		if c == name {
			n++
		}
	}
	return n
}

// gateDriver blocks each scenario until the test releases it.
type gateDriver struct {
	mu    sync.Mutex
	gates map[string]chan error
}

func newGateDriver(stepIDs ...string) *gateDriver {
	d := &gateDriver{gates: make(map[string]chan error)}
	for _, id := range stepIDs {
		d.gates[id] = make(chan error, 1)
	}
	return d
}

func (d *gateDriver) Run(ctx context.Context, step *orchestration.Step) (ScenarioHandle, error) {
	d.mu.Lock()
	ch, ok := d.gates[step.ID]
	if !ok {
		ch = make(chan error, 1)
		d.gates[step.ID] = ch
	}
	d.mu.Unlock()
	return gateHandle{done: ch}, nil
}

func (d *gateDriver) release(stepID string, err error) {
	d.mu.Lock()
	ch := d.gates[stepID]
	d.mu.Unlock()
	ch <- err
}

type gateHandle struct {
	done chan error
}

func (h gateHandle) Done() <-chan error                     { return h.done }
func (h gateHandle) Metrics() <-chan events.ScenarioMetrics { return nil }

// failDriver fails every scenario with the given error.
type failDriver struct {
	err error
}

func (d failDriver) Run(ctx context.Context, step *orchestration.Step) (ScenarioHandle, error) {
	ch := make(chan error, 1)
	ch <- d.err
	return gateHandle{done: ch}, nil
}

// stepFailDriver fails the named step and completes every other one.
type stepFailDriver struct {
	failID string
}

func (d stepFailDriver) Run(ctx context.Context, step *orchestration.Step) (ScenarioHandle, error) {
	ch := make(chan error, 1)
	if step.ID == d.failID {
		ch <- errors.New("injected failure")
	} else {
		ch <- nil
	}
	return gateHandle{done: ch}, nil
}

// metricsDriver emits one metrics sample and then completes.
type metricsDriver struct {
	sample events.ScenarioMetrics
}

func (d metricsDriver) Run(ctx context.Context, step *orchestration.Step) (ScenarioHandle, error) {
	done := make(chan error, 1)
	metrics := make(chan events.ScenarioMetrics, 1)
	metrics <- d.sample
	close(metrics)
	done <- nil
	return metricsHandle{done: done, metrics: metrics}, nil
}

type metricsHandle struct {
	done    chan error
	metrics chan events.ScenarioMetrics
}

func (h metricsHandle) Done() <-chan error                     { return h.done }
func (h metricsHandle) Metrics() <-chan events.ScenarioMetrics { return h.metrics }

type testHarness struct {
	bus  *events.Bus
	exec *Executor
	sink *recorderSink
}

func newHarness(t *testing.T, opts ...ExecutorOption) *testHarness {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(func() { bus.Close() })

	sink := &recorderSink{}
	all := append([]ExecutorOption{WithActionSink(sink)}, opts...)
	return &testHarness{
		bus:  bus,
		exec: NewExecutor(bus, all...),
		sink: sink,
	}
}

// startRun subscribes to the run's events, starts it, and returns a drain
// function that waits for completion and returns everything published.
func (h *testHarness) startRun(t *testing.T, run *Run) func() []events.Event {
	t.Helper()
	ch, cleanup := h.bus.Subscribe(context.Background(), events.Filter{RunID: run.ID()}, 256)
	require.NoError(t, run.Control(ControlStart))
	return func() []events.Event {
		t.Helper()
		select {
		case <-run.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("run did not finish in time")
		}
		cleanup()
		var out []events.Event
		for e := range ch {
			out = append(out, e)
		}
		return out
	}
}

func stepUpdates(evs []events.Event, stepID string) []events.StepUpdate {
	var out []events.StepUpdate
	for _, e := range evs {
		if e.Type != events.EventStepUpdate {
			continue
		}
		u := e.Data.(events.StepUpdate)
		if u.StepID == stepID {
			out = append(out, u)
		}
	}
	return out
}

func statusSequence(evs []events.Event) []string {
	var out []string
	for _, e := range evs {
		if e.Type != events.EventStatusUpdate {
			continue
		}
		u := e.Data.(events.StatusUpdate)
		if len(out) == 0 || out[len(out)-1] != u.Status {
			out = append(out, u.Status)
		}
	}
	return out
}

func twoStepDefinition() *orchestration.Orchestration {
	return &orchestration.Orchestration{
		Name: "latency-drill",
		Steps: []orchestration.Step{
			{ID: "inject", Scenario: "latency"},
			{ID: "recover", Scenario: "restore"},
		},
	}
}

func TestRun_Completes(t *testing.T) {
	h := newHarness(t)
	run, err := h.exec.NewRun(twoStepDefinition())
	require.NoError(t, err)
	assert.Equal(t, RunStatusIdle, run.Status())

	drain := h.startRun(t, run)
	evs := drain()

	assert.Equal(t, RunStatusCompleted, run.Status())
	assert.True(t, run.Status().IsTerminal())

	for _, id := range []string{"inject", "recover"} {
		updates := stepUpdates(evs, id)
		require.Len(t, updates, 2, "step %s", id)
		assert.Equal(t, string(StepStatusRunning), updates[0].Status)
		assert.Equal(t, string(StepStatusCompleted), updates[1].Status)
		require.NotNil(t, updates[1].Duration)
	}

	seq := statusSequence(evs)
	assert.Equal(t, "running", seq[0])
	assert.Equal(t, "completed", seq[len(seq)-1])

	final := run.StatusSnapshot()
	assert.Equal(t, 2, final.CurrentStep)
	assert.Equal(t, 2, final.TotalSteps)
	assert.Equal(t, 1.0, final.Progress)
	assert.Empty(t, final.FailedSteps)
}

func TestRun_RejectsInvalidDefinition(t *testing.T) {
	h := newHarness(t)
	_, err := h.exec.NewRun(&orchestration.Orchestration{Name: "empty"})
	require.Error(t, err)
	var defErr *orchestration.DefinitionError
	assert.ErrorAs(t, err, &defErr)
}

func TestRun_StartTwiceConflicts(t *testing.T) {
	h := newHarness(t)
	run, err := h.exec.NewRun(twoStepDefinition())
	require.NoError(t, err)

	drain := h.startRun(t, run)
	err = run.Control(ControlStart)
	var ctrlErr *ControlError
	require.ErrorAs(t, err, &ctrlErr)
	drain()

	// Terminal runs reject further control.
	assert.Error(t, run.Control(ControlStop))
	assert.Error(t, run.Control(ControlPause))
}

func TestRun_GateSkippedStepPublishesSingleEvent(t *testing.T) {
	def := twoStepDefinition()
	def.Steps[0].Condition = &orchestration.Condition{
		Type:     orchestration.ConditionExists,
		Variable: "never-set",
	}

	h := newHarness(t)
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	evs := h.startRun(t, run)()

	updates := stepUpdates(evs, "inject")
	require.Len(t, updates, 1)
	assert.Equal(t, string(StepStatusSkipped), updates[0].Status)
	assert.Nil(t, updates[0].StartTime)

	// A gate skip is not a failure.
	assert.Equal(t, RunStatusCompleted, run.Status())
}

func TestRun_FailedAssertionFailsStepAndRun(t *testing.T) {
	def := twoStepDefinition()
	def.Variables = []orchestration.Variable{
		{Name: "mode", Value: orchestration.StringValue("normal")},
	}
	def.Steps[0].Assertions = []orchestration.Assertion{
		{Type: orchestration.AssertVariableEquals, Variable: "mode", Expected: orchestration.StringValue("degraded")},
	}

	h := newHarness(t)
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	evs := h.startRun(t, run)()

	assert.Equal(t, RunStatusFailed, run.Status())

	updates := stepUpdates(evs, "inject")
	require.Len(t, updates, 2)
	assert.Equal(t, string(StepStatusFailed), updates[1].Status)
	assert.Contains(t, updates[1].Error, "assertion failed")

	// The iteration aborts, so the second step never starts.
	assert.Empty(t, stepUpdates(evs, "recover"))
	assert.Equal(t, []string{"inject"}, run.StatusSnapshot().FailedSteps)
}

func TestRun_ContinueOnFailureKeepsIterationGoing(t *testing.T) {
	def := twoStepDefinition()
	def.Steps[0].ContinueOnFailure = true

	h := newHarness(t, WithScenarioDriver(failDriver{err: errors.New("proxy unreachable")}))
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	evs := h.startRun(t, run)()

	assert.Equal(t, RunStatusFailed, run.Status())
	// Both steps ran even though both failed.
	assert.Len(t, stepUpdates(evs, "inject"), 2)
	assert.Len(t, stepUpdates(evs, "recover"), 2)
	assert.Equal(t, []string{"inject", "recover"}, run.StatusSnapshot().FailedSteps)
}

func TestRun_FailedStepsAccumulateAcrossIterations(t *testing.T) {
	def := &orchestration.Orchestration{
		Name:          "flaky",
		MaxIterations: 3,
		Steps: []orchestration.Step{
			{ID: "inject", Scenario: "latency", ContinueOnFailure: true},
		},
	}

	h := newHarness(t, WithScenarioDriver(failDriver{err: errors.New("boom")}))
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	evs := h.startRun(t, run)()

	assert.Equal(t, RunStatusFailed, run.Status())
	assert.Equal(t, []string{"inject", "inject", "inject"}, run.StatusSnapshot().FailedSteps)

	// Each iteration produced its own running/failed pair.
	assert.Len(t, stepUpdates(evs, "inject"), 6)

	maxIteration := 0
	for _, e := range evs {
		if e.Type == events.EventStatusUpdate {
			if it := e.Data.(events.StatusUpdate).CurrentIteration; it > maxIteration {
				maxIteration = it
			}
		}
	}
	assert.Equal(t, 3, maxIteration)
}

func TestRun_IterationsAdvanceToCompletion(t *testing.T) {
	def := &orchestration.Orchestration{
		Name:          "steady",
		MaxIterations: 3,
		Steps: []orchestration.Step{
			{ID: "inject", Scenario: "latency"},
		},
	}

	h := newHarness(t)
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	evs := h.startRun(t, run)()

	assert.Equal(t, RunStatusCompleted, run.Status())
	assert.Empty(t, run.StatusSnapshot().FailedSteps)
	assert.Len(t, stepUpdates(evs, "inject"), 6)

	var iterations []int
	for _, e := range evs {
		if e.Type != events.EventStatusUpdate {
			continue
		}
		it := e.Data.(events.StatusUpdate).CurrentIteration
		if it == 0 {
			continue
		}
		if len(iterations) == 0 || iterations[len(iterations)-1] != it {
			iterations = append(iterations, it)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, iterations)

	seq := statusSequence(evs)
	assert.Equal(t, []string{"running", "completed"}, seq)
}

func TestRun_PreviousStepConditionsGateRecovery(t *testing.T) {
	failed := orchestration.Condition{Type: orchestration.ConditionPreviousStepFailed}
	succeeded := orchestration.Condition{Type: orchestration.ConditionPreviousStepOK}
	def := &orchestration.Orchestration{
		Name: "recovery-drill",
		Steps: []orchestration.Step{
			{ID: "inject", Scenario: "latency", ContinueOnFailure: true},
			{ID: "rollback", Scenario: "restore", Condition: &failed},
			{ID: "verify", Scenario: "probe", Condition: &failed},
			{ID: "audit", Scenario: "probe", Condition: &succeeded},
		},
	}

	h := newHarness(t, WithScenarioDriver(stepFailDriver{failID: "inject"}))
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	evs := h.startRun(t, run)()

	assert.Equal(t, RunStatusFailed, run.Status())
	assert.Equal(t, []string{"inject"}, run.StatusSnapshot().FailedSteps)

	// The failure opens the rollback gate.
	assert.Len(t, stepUpdates(evs, "inject"), 2)
	rollback := stepUpdates(evs, "rollback")
	require.Len(t, rollback, 2)
	assert.Equal(t, string(StepStatusCompleted), rollback[1].Status)

	// The rollback success closes the failure gate again.
	verify := stepUpdates(evs, "verify")
	require.Len(t, verify, 1)
	assert.Equal(t, string(StepStatusSkipped), verify[0].Status)

	// A gate skip does not count as the previous step.
	audit := stepUpdates(evs, "audit")
	require.Len(t, audit, 2)
	assert.Equal(t, string(StepStatusCompleted), audit[1].Status)
}

func TestRun_HooksRunInOrderAndMutateState(t *testing.T) {
	def := &orchestration.Orchestration{
		Name: "hooked",
		Hooks: []orchestration.Hook{
			{
				Name:     "announce",
				HookType: orchestration.HookPreOrchestration,
				Actions: []orchestration.HookAction{
					{Type: orchestration.ActionSetVariable, Name: "phase", Value: orchestration.StringValue("starting")},
				},
			},
			{
				Name:     "teardown",
				HookType: orchestration.HookPostOrchestration,
				Actions: []orchestration.HookAction{
					{Type: orchestration.ActionCommand, Command: "cleanup"},
				},
			},
		},
		Steps: []orchestration.Step{
			{
				ID:       "inject",
				Scenario: "latency",
				PreHooks: []orchestration.Hook{
					{
						Name:     "mark-start",
						HookType: orchestration.HookPreStep,
						Actions: []orchestration.HookAction{
							{Type: orchestration.ActionSetVariable, Name: "phase", Value: orchestration.StringValue("injecting")},
							{Type: orchestration.ActionRecordMetric, Name: "attempts", Value: orchestration.NumberValue(1)},
						},
					},
				},
				PostHooks: []orchestration.Hook{
					{
						Name:     "notify",
						HookType: orchestration.HookPostStep,
						Actions: []orchestration.HookAction{
							{Type: orchestration.ActionHTTPRequest, URL: "http://alerts.local/done", Method: "POST"},
						},
					},
				},
				Assertions: []orchestration.Assertion{
					{Type: orchestration.AssertVariableEquals, Variable: "phase", Expected: orchestration.StringValue("injecting")},
					{Type: orchestration.AssertMetricInRange, Metric: "attempts", Min: 1, Max: 1},
				},
			},
		},
	}

	h := newHarness(t)
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	h.startRun(t, run)()

	assert.Equal(t, RunStatusCompleted, run.Status())
	assert.Equal(t, 1, h.sink.commandCount("cleanup"))
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	assert.Equal(t, []string{"POST http://alerts.local/done"}, h.sink.requests)
}

func TestRun_GatedHookDoesNotFire(t *testing.T) {
	def := twoStepDefinition()
	def.Steps[0].PostHooks = []orchestration.Hook{
		{
			Name:     "only-on-flag",
			HookType: orchestration.HookPostStep,
			Condition: &orchestration.Condition{
				Type:     orchestration.ConditionExists,
				Variable: "flag",
			},
			Actions: []orchestration.HookAction{
				{Type: orchestration.ActionCommand, Command: "should-not-run"},
			},
		},
	}

	h := newHarness(t)
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	h.startRun(t, run)()

	assert.Equal(t, RunStatusCompleted, run.Status())
	assert.Equal(t, 0, h.sink.commandCount("should-not-run"))
}

func TestRun_HookFailureIsFailOpen(t *testing.T) {
	def := twoStepDefinition()
	def.EnableReporting = true
	def.Steps[0].PreHooks = []orchestration.Hook{
		{
			Name:     "flaky-webhook",
			HookType: orchestration.HookPreStep,
			Actions: []orchestration.HookAction{
				{Type: orchestration.ActionHTTPRequest, URL: "http://alerts.local/x", Method: "POST"},
			},
		},
	}

	h := newHarness(t)
	h.sink.err = errors.New("connection refused")
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	h.startRun(t, run)()

	// The hook failure is recorded but the run still completes.
	assert.Equal(t, RunStatusCompleted, run.Status())
	report := run.Report()
	require.NotNil(t, report)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "flaky-webhook")
}

func TestRun_ConditionalBranchExclusivity(t *testing.T) {
	def := &orchestration.Orchestration{
		Name: "branching",
		Variables: []orchestration.Variable{
			{Name: "mode", Value: orchestration.StringValue("fallback")},
		},
		ConditionalSteps: []orchestration.ConditionalStep{
			{
				ID: "decide",
				Condition: orchestration.Condition{
					Type:     orchestration.ConditionEquals,
					Variable: "mode",
					Value:    orchestration.StringValue("primary"),
				},
				ThenSteps: []orchestration.Step{{ID: "primary-probe", Scenario: "probe"}},
				ElseSteps: []orchestration.Step{{ID: "fallback-probe", Scenario: "probe"}},
			},
		},
	}

	h := newHarness(t)
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	evs := h.startRun(t, run)()

	assert.Equal(t, RunStatusCompleted, run.Status())
	assert.Empty(t, stepUpdates(evs, "primary-probe"))
	assert.Len(t, stepUpdates(evs, "fallback-probe"), 2)

	// The conditional occupies one cursor position.
	assert.Equal(t, 1, run.StatusSnapshot().TotalSteps)
	assert.Equal(t, 1, run.StatusSnapshot().CurrentStep)
}

func TestRun_PauseResumeAtBoundary(t *testing.T) {
	driver := newGateDriver("inject", "recover")
	h := newHarness(t, WithScenarioDriver(driver))
	run, err := h.exec.NewRun(twoStepDefinition())
	require.NoError(t, err)

	drain := h.startRun(t, run)

	// Pause while the first step is in flight; it must finish first.
	require.NoError(t, run.Control(ControlPause))
	driver.release("inject", nil)

	require.Eventually(t, func() bool {
		return run.Status() == RunStatusPaused
	}, 2*time.Second, 10*time.Millisecond)

	// Resume is only valid while paused; pause is only valid while running.
	assert.Error(t, run.Control(ControlPause))

	driver.release("recover", nil)
	require.NoError(t, run.Control(ControlResume))
	evs := drain()

	assert.Equal(t, RunStatusCompleted, run.Status())
	assert.Len(t, stepUpdates(evs, "inject"), 2)
	assert.Len(t, stepUpdates(evs, "recover"), 2)

	seq := statusSequence(evs)
	assert.Contains(t, seq, "paused")
	assert.Equal(t, "completed", seq[len(seq)-1])
}

func TestRun_StopInterruptsStepAndRunsCleanupOnce(t *testing.T) {
	driver := newGateDriver("inject", "recover")
	def := twoStepDefinition()
	def.EnableReporting = true
	def.Hooks = []orchestration.Hook{
		{
			Name:     "teardown",
			HookType: orchestration.HookPostOrchestration,
			Actions: []orchestration.HookAction{
				{Type: orchestration.ActionCommand, Command: "cleanup"},
			},
		},
	}

	h := newHarness(t, WithScenarioDriver(driver))
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	drain := h.startRun(t, run)

	// Wait until the first step is actually blocked in its scenario.
	require.Eventually(t, func() bool {
		return run.StatusSnapshot().Status == "running"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, run.Control(ControlStop))
	evs := drain()

	assert.Equal(t, RunStatusStopped, run.Status())
	assert.Equal(t, 1, h.sink.commandCount("cleanup"))

	// The interrupted step reports skipped; the second step never starts.
	updates := stepUpdates(evs, "inject")
	require.NotEmpty(t, updates)
	assert.Equal(t, string(StepStatusSkipped), updates[len(updates)-1].Status)
	assert.Empty(t, stepUpdates(evs, "recover"))

	report := run.Report()
	require.NotNil(t, report)
	assert.Equal(t, RunStatusStopped, report.Status)
	assert.False(t, report.Success)
}

func TestRun_SkipCommandSkipsOnlyActiveStep(t *testing.T) {
	driver := newGateDriver("inject", "recover")
	h := newHarness(t, WithScenarioDriver(driver))
	run, err := h.exec.NewRun(twoStepDefinition())
	require.NoError(t, err)

	// Skip before start is invalid.
	assert.Error(t, run.Control(ControlSkip))

	drain := h.startRun(t, run)

	// Skip only becomes valid once the step runner is actually in flight.
	require.Eventually(t, func() bool {
		return run.Control(ControlSkip) == nil
	}, 2*time.Second, 10*time.Millisecond)

	driver.release("recover", nil)
	evs := drain()

	assert.Equal(t, RunStatusCompleted, run.Status())
	updates := stepUpdates(evs, "inject")
	assert.Equal(t, string(StepStatusSkipped), updates[len(updates)-1].Status)
	assert.Len(t, stepUpdates(evs, "recover"), 2)
}

func TestRun_ScenarioMetricsFeedAssertions(t *testing.T) {
	def := &orchestration.Orchestration{
		Name: "metrics",
		Steps: []orchestration.Step{
			{
				ID:       "load",
				Scenario: "traffic",
				Assertions: []orchestration.Assertion{
					{Type: orchestration.AssertMetricInRange, Metric: "errorRate", Min: 0, Max: 0.1},
				},
			},
		},
	}

	h := newHarness(t, WithScenarioDriver(metricsDriver{
		sample: events.ScenarioMetrics{RequestCount: 1000, ErrorRate: 0.02, AvgLatency: 12.5},
	}))
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	evs := h.startRun(t, run)()

	assert.Equal(t, RunStatusCompleted, run.Status())

	sawMetrics := false
	for _, e := range evs {
		if e.Type == events.EventMetricsUpdate {
			sawMetrics = true
			u := e.Data.(events.MetricsUpdate)
			assert.Equal(t, "load", u.StepID)
			assert.Equal(t, int64(1000), u.Metrics.RequestCount)
		}
	}
	assert.True(t, sawMetrics, "expected a metrics_update event")
}

func TestRun_OrchestrationAssertionsDecideOutcome(t *testing.T) {
	def := twoStepDefinition()
	def.Assertions = []orchestration.Assertion{
		{Type: orchestration.AssertStepSucceeded, StepID: "inject"},
		{Type: orchestration.AssertStepFailed, StepID: "recover"},
	}
	def.EnableReporting = true

	h := newHarness(t)
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	h.startRun(t, run)()

	// Both steps completed, so the step_failed assertion fails the run.
	assert.Equal(t, RunStatusFailed, run.Status())

	report := run.Report()
	require.NotNil(t, report)
	require.Len(t, report.AssertionResults, 2)
	assert.True(t, report.AssertionResults[0].Passed)
	assert.False(t, report.AssertionResults[1].Passed)
}

func TestRun_ReportContents(t *testing.T) {
	def := twoStepDefinition()
	def.EnableReporting = true
	def.Variables = []orchestration.Variable{
		{Name: "region", Value: orchestration.StringValue("us-east-1")},
	}

	h := newHarness(t)
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)

	assert.Nil(t, run.Report(), "no report before the run finishes")
	h.startRun(t, run)()

	report := run.Report()
	require.NotNil(t, report)
	assert.Equal(t, "latency-drill", report.OrchestrationName)
	assert.Equal(t, run.ID(), report.RunID)
	assert.True(t, report.Success)
	assert.Equal(t, RunStatusCompleted, report.Status)
	require.Len(t, report.StepResults, 2)
	assert.Equal(t, "inject", report.StepResults[0].StepID)
	assert.Equal(t, StepStatusCompleted, report.StepResults[0].Status)
	assert.Equal(t, "us-east-1", report.FinalVariables["region"])
	assert.False(t, report.EndTime.Before(report.StartTime))
}

func TestRun_ReportDisabledByDefault(t *testing.T) {
	h := newHarness(t)
	run, err := h.exec.NewRun(twoStepDefinition())
	require.NoError(t, err)
	h.startRun(t, run)()

	assert.Equal(t, RunStatusCompleted, run.Status())
	assert.Nil(t, run.Report())
}

func TestRun_StepVariableSeedsApply(t *testing.T) {
	def := &orchestration.Orchestration{
		Name: "seeded",
		Steps: []orchestration.Step{
			{
				ID:       "inject",
				Scenario: "latency",
				Variables: map[string]orchestration.Value{
					"target": orchestration.StringValue("db-primary"),
				},
				Assertions: []orchestration.Assertion{
					{Type: orchestration.AssertVariableEquals, Variable: "target", Expected: orchestration.StringValue("db-primary")},
				},
			},
		},
	}

	h := newHarness(t)
	run, err := h.exec.NewRun(def)
	require.NoError(t, err)
	h.startRun(t, run)()
	assert.Equal(t, RunStatusCompleted, run.Status())
}

func TestParseControlAction(t *testing.T) {
	for _, valid := range []string{"start", "stop", "pause", "resume", "skip"} {
		a, err := ParseControlAction(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(a))
	}
	_, err := ParseControlAction("restart")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	h := newHarness(t)
	reg := NewRegistry()

	run, err := h.exec.NewRun(twoStepDefinition())
	require.NoError(t, err)

	require.NoError(t, reg.Register(run))
	assert.Error(t, reg.Register(run), "duplicate registration must fail")

	got, err := reg.Get(run.ID())
	require.NoError(t, err)
	assert.Same(t, run, got)

	_, err = reg.Get("no-such-id")
	require.Error(t, err)

	assert.Len(t, reg.List(), 1)
}

func TestScenarioError_Unwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := &ScenarioError{StepID: "inject", Scenario: "latency", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, fmt.Sprintf("scenario %q failed in step inject: %v", "latency", cause), err.Error())
}
