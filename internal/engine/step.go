package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/events"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
)

type stepOutcome int

const (
	stepOutcomeContinue stepOutcome = iota
	stepOutcomeStopRun
)

// runStep executes one step instance end to end: gate, delay, pre-hooks,
// scenario, assertions, post-hooks. A stop command interrupts the step
// immediately and skips its post-hooks; run-level cleanup still follows.
func (r *Run) runStep(ctx context.Context, step *orchestration.Step, iteration int) (*StepResult, stepOutcome) {
	logger := r.exec.logger.With(
		slog.String("run_id", r.id.String()),
		slog.String("step_id", step.ID),
		slog.Int("iteration", iteration),
	)

	if step.Condition != nil && !step.Condition.Evaluate(r.rctx.Snapshot()) {
		logger.Info("step skipped", slog.String("reason", "condition not met"))
		res := &StepResult{
			StepID:    step.ID,
			Name:      step.Name,
			Iteration: iteration,
			Status:    StepStatusSkipped,
		}
		r.rctx.RecordStepResult(res)
		r.publishStep(events.StepUpdate{
			StepID: step.ID,
			Status: string(StepStatusSkipped),
		})
		return res, stepOutcomeContinue
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx, span := r.exec.tracer.Start(ctx, "orchestration.step",
		trace.WithAttributes(
			attribute.String("step.id", step.ID),
			attribute.String("step.scenario", step.Scenario),
			attribute.Int("step.iteration", iteration),
		))
	defer span.End()

	skipCh := make(chan struct{})
	r.setActiveSkip(skipCh)
	defer r.clearActiveSkip()

	started := time.Now()
	res := &StepResult{
		StepID:    step.ID,
		Name:      step.Name,
		Iteration: iteration,
		Status:    StepStatusRunning,
		StartTime: &started,
	}
	logger.Info("step started", slog.String("scenario", step.Scenario))
	r.publishStep(events.StepUpdate{
		StepID:    step.ID,
		Status:    string(StepStatusRunning),
		StartTime: &started,
	})

	r.seedStepVariables(step)

	skipped := false
	if d := step.DelayBefore(); d > 0 {
		switch r.wait(ctx, d, skipCh) {
		case waitStop:
			return r.finalizeStep(logger, res, StepStatusSkipped, "run stopped", started, nil), stepOutcomeStopRun
		case waitSkipped:
			skipped = true
		}
	}

	if !skipped {
		if failures := r.hooks.run(ctx, step.PreHooks, orchestration.HookPreStep); len(failures) > 0 {
			r.recordHookFailures(failures)
		}
	}

	var scenarioErr error
	var lastMetrics *events.ScenarioMetrics
	if !skipped {
		var outcome scenarioOutcome
		outcome, scenarioErr, lastMetrics = r.runScenario(ctx, step, skipCh, logger)
		switch outcome {
		case scenarioStopped:
			return r.finalizeStep(logger, res, StepStatusSkipped, "run stopped", started, nil), stepOutcomeStopRun
		case scenarioSkipped:
			skipped = true
		}
	}

	status := StepStatusCompleted
	errMsg := ""
	var assertionResults []AssertionResult
	switch {
	case skipped:
		status = StepStatusSkipped
	case scenarioErr != nil:
		status = StepStatusFailed
		errMsg = (&ScenarioError{StepID: step.ID, Scenario: step.Scenario, Cause: scenarioErr}).Error()
	default:
		assertionResults = r.evaluateStepAssertions(step)
		for _, ar := range assertionResults {
			if !ar.Passed {
				status = StepStatusFailed
				errMsg = "assertion failed: " + ar.Description
				break
			}
		}
	}
	res.Assertions = assertionResults

	if failures := r.hooks.run(ctx, step.PostHooks, orchestration.HookPostStep); len(failures) > 0 {
		r.recordHookFailures(failures)
	}

	return r.finalizeStep(logger, res, status, errMsg, started, lastMetrics), stepOutcomeContinue
}

type scenarioOutcome int

const (
	scenarioDone scenarioOutcome = iota
	scenarioSkipped
	scenarioStopped
)

// runScenario launches the driver and waits for completion, the step's
// duration ceiling, a skip command, or a stop.
func (r *Run) runScenario(ctx context.Context, step *orchestration.Step, skipCh chan struct{}, logger *slog.Logger) (outcome scenarioOutcome, scenarioErr error, lastMetrics *events.ScenarioMetrics) {
	handle, err := r.exec.scenarios.Run(ctx, step)
	if err != nil {
		return scenarioDone, err, nil
	}

	var timeout <-chan time.Time
	if d := step.Duration(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}

	metricsCh := handle.Metrics()
	drainMetrics := func() {
		for {
			select {
			case m, ok := <-metricsCh:
				if !ok {
					return
				}
				lastMetrics = &m
				r.recordScenarioMetrics(step.ID, m)
			default:
				return
			}
		}
	}

	for {
		select {
		case err := <-handle.Done():
			if metricsCh != nil {
				drainMetrics()
			}
			return scenarioDone, err, lastMetrics
		case <-timeout:
			logger.Debug("step duration elapsed")
			return scenarioDone, nil, lastMetrics
		case m, ok := <-metricsCh:
			if !ok {
				metricsCh = nil
				continue
			}
			lastMetrics = &m
			r.recordScenarioMetrics(step.ID, m)
		case <-skipCh:
			logger.Info("step skipped", slog.String("reason", "skip command"))
			return scenarioSkipped, nil, lastMetrics
		case <-r.stopCh:
			return scenarioStopped, nil, lastMetrics
		}
	}
}

// recordScenarioMetrics folds a live sample into the run's metric snapshot
// under fixed names so conditions and assertions can reference them.
func (r *Run) recordScenarioMetrics(stepID string, m events.ScenarioMetrics) {
	r.rctx.RecordMetric("requestCount", float64(m.RequestCount))
	r.rctx.RecordMetric("errorRate", m.ErrorRate)
	r.rctx.RecordMetric("avgLatency", m.AvgLatency)
	r.publishMetrics(stepID, m)
}

type waitResult int

const (
	waitElapsed waitResult = iota
	waitSkipped
	waitStop
)

func (r *Run) wait(ctx context.Context, d time.Duration, skipCh chan struct{}) waitResult {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return waitElapsed
	case <-skipCh:
		return waitSkipped
	case <-r.stopCh:
		return waitStop
	case <-ctx.Done():
		return waitStop
	}
}

// seedStepVariables applies the step's variable overrides in name order so
// repeated runs behave identically.
func (r *Run) seedStepVariables(step *orchestration.Step) {
	if len(step.Variables) == 0 {
		return
	}
	names := make([]string, 0, len(step.Variables))
	for name := range step.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.rctx.SetVariable(name, step.Variables[name])
	}
}

func (r *Run) evaluateStepAssertions(step *orchestration.Step) []AssertionResult {
	if len(step.Assertions) == 0 {
		return nil
	}
	state := r.rctx.Snapshot()
	outcomes := r.rctx.Outcomes()
	results := make([]AssertionResult, 0, len(step.Assertions))
	for i := range step.Assertions {
		a := &step.Assertions[i]
		results = append(results, AssertionResult{
			Description: a.Describe(),
			Passed:      a.Evaluate(state, outcomes),
		})
	}
	return results
}

func (r *Run) finalizeStep(logger *slog.Logger, res *StepResult, status StepStatus, errMsg string, started time.Time, lastMetrics *events.ScenarioMetrics) *StepResult {
	ended := time.Now()
	duration := ended.Sub(started).Seconds()

	res.Status = status
	res.EndTime = &ended
	res.DurationSeconds = duration
	res.Error = errMsg
	r.rctx.RecordStepResult(res)

	update := events.StepUpdate{
		StepID:    res.StepID,
		Status:    string(status),
		StartTime: &started,
		EndTime:   &ended,
		Duration:  &duration,
		Error:     errMsg,
	}
	if lastMetrics != nil {
		update.Metrics = map[string]float64{
			"requestCount": float64(lastMetrics.RequestCount),
			"errorRate":    lastMetrics.ErrorRate,
			"avgLatency":   lastMetrics.AvgLatency,
		}
		res.Metrics = update.Metrics
	}
	r.publishStep(update)

	switch status {
	case StepStatusFailed:
		logger.Warn("step failed", slog.String("error", errMsg))
	default:
		logger.Info("step finished",
			slog.String("status", string(status)),
			slog.Float64("duration_seconds", duration))
	}
	return res
}

func (r *Run) setActiveSkip(ch chan struct{}) {
	r.mu.Lock()
	r.activeSkip = ch
	r.mu.Unlock()
}

func (r *Run) clearActiveSkip() {
	r.mu.Lock()
	r.activeSkip = nil
	r.mu.Unlock()
}
