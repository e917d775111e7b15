package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/events"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/types"
)

// cleanupTimeout bounds post_orchestration hook execution after a stop so
// a hung cleanup action cannot wedge the run forever.
const cleanupTimeout = 30 * time.Second

// Run is a single execution of an orchestration definition. Control
// commands arrive asynchronously; pause and stop take effect at step
// boundaries while skip interrupts the step in flight.
type Run struct {
	id   types.ID
	def  *orchestration.Orchestration
	exec *Executor
	rctx *RunContext

	hooks *hookRunner

	mu               sync.RWMutex
	status           RunStatus
	currentIteration int
	currentStep      int
	failedSteps      []string
	hookFailures     []string
	abortIteration   bool
	startedAt        time.Time
	finishedAt       time.Time
	activeSkip       chan struct{}
	report           *Report

	control  chan ControlAction
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// ID returns the run's identifier.
func (r *Run) ID() types.ID { return r.id }

// Definition returns the orchestration this run executes.
func (r *Run) Definition() *orchestration.Orchestration { return r.def }

// Done is closed when the run reaches a terminal status.
func (r *Run) Done() <-chan struct{} { return r.done }

// Status returns the current run status.
func (r *Run) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Report returns the execution report, or nil while the run is still
// active or when reporting is disabled.
func (r *Run) Report() *Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.report
}

// Control applies an external command to the run. It returns a
// *ControlError when the command is not legal for the current status.
//
// Pause and resume are accepted immediately but only take effect at the
// next step boundary. A pause accepted while the final step is in flight
// has no boundary left to act on and is discarded when the run finishes.
func (r *Run) Control(action ControlAction) error {
	r.mu.Lock()
	switch action {
	case ControlStart:
		if r.status != RunStatusIdle {
			defer r.mu.Unlock()
			return &ControlError{Action: action, Status: r.status}
		}
		r.status = RunStatusRunning
		r.startedAt = time.Now()
		r.mu.Unlock()
		go r.loop()
		return nil

	case ControlPause:
		if r.status != RunStatusRunning {
			defer r.mu.Unlock()
			return &ControlError{Action: action, Status: r.status}
		}
		r.mu.Unlock()
		r.control <- ControlPause
		return nil

	case ControlResume:
		if r.status != RunStatusPaused {
			defer r.mu.Unlock()
			return &ControlError{Action: action, Status: r.status}
		}
		r.mu.Unlock()
		r.control <- ControlResume
		return nil

	case ControlStop:
		if r.status.IsTerminal() || r.status == RunStatusIdle {
			defer r.mu.Unlock()
			return &ControlError{Action: action, Status: r.status}
		}
		r.mu.Unlock()
		r.stopOnce.Do(func() { close(r.stopCh) })
		return nil

	case ControlSkip:
		if r.status != RunStatusRunning || r.activeSkip == nil {
			defer r.mu.Unlock()
			return &ControlError{Action: action, Status: r.status}
		}
		close(r.activeSkip)
		r.activeSkip = nil
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	return &ControlError{Action: action, Status: r.Status()}
}

// StatusSnapshot assembles the wire-level status view.
func (r *Run) StatusSnapshot() events.StatusUpdate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statusUpdateLocked()
}

func (r *Run) statusUpdateLocked() events.StatusUpdate {
	total := r.def.SequenceLength()
	progress := 0.0
	if total > 0 {
		progress = float64(r.currentStep) / float64(total)
	}
	failed := make([]string, len(r.failedSteps))
	copy(failed, r.failedSteps)
	return events.StatusUpdate{
		Status:           string(r.status),
		CurrentIteration: r.currentIteration,
		MaxIterations:    r.def.EffectiveIterations(),
		CurrentStep:      r.currentStep,
		TotalSteps:       total,
		Progress:         progress,
		FailedSteps:      failed,
	}
}

func (r *Run) publishStatus() {
	r.mu.RLock()
	update := r.statusUpdateLocked()
	r.mu.RUnlock()
	r.exec.bus.Publish(events.Event{
		Type:      events.EventStatusUpdate,
		Data:      update,
		RunID:     r.id,
		Timestamp: time.Now(),
	})
}

func (r *Run) publishStep(update events.StepUpdate) {
	r.exec.bus.Publish(events.Event{
		Type:      events.EventStepUpdate,
		Data:      update,
		RunID:     r.id,
		Timestamp: time.Now(),
	})
}

func (r *Run) publishMetrics(stepID string, m events.ScenarioMetrics) {
	r.exec.bus.Publish(events.Event{
		Type:      events.EventMetricsUpdate,
		Data:      events.MetricsUpdate{StepID: stepID, Metrics: m},
		RunID:     r.id,
		Timestamp: time.Now(),
	})
}

type boundaryDecision int

const (
	boundaryContinue boundaryDecision = iota
	boundaryStop
)

// awaitBoundary drains pending control commands at a step boundary. A
// pause blocks here until resume or stop arrives.
func (r *Run) awaitBoundary() boundaryDecision {
	for {
		select {
		case <-r.stopCh:
			return boundaryStop
		default:
		}

		select {
		case cmd := <-r.control:
			if cmd != ControlPause {
				continue
			}
			r.setStatus(RunStatusPaused)
			r.publishStatus()
			r.exec.logger.Info("run paused", slog.String("run_id", r.id.String()))
			for {
				select {
				case <-r.stopCh:
					return boundaryStop
				case cmd2 := <-r.control:
					if cmd2 == ControlResume {
						r.setStatus(RunStatusRunning)
						r.publishStatus()
						r.exec.logger.Info("run resumed", slog.String("run_id", r.id.String()))
						return boundaryContinue
					}
				}
			}
		default:
			return boundaryContinue
		}
	}
}

func (r *Run) setStatus(s RunStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Run) beginIteration(n int) {
	r.mu.Lock()
	r.currentIteration = n
	r.currentStep = 0
	r.abortIteration = false
	r.mu.Unlock()
}

func (r *Run) advanceCursor() {
	r.mu.Lock()
	r.currentStep++
	r.mu.Unlock()
}

func (r *Run) recordFailedStep(stepID string) {
	r.mu.Lock()
	r.failedSteps = append(r.failedSteps, stepID)
	r.mu.Unlock()
}

// loop drives the run to a terminal status. It owns the status field
// while running; Control only mutates state through the channels.
func (r *Run) loop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-r.done:
		}
	}()

	ctx, span := r.exec.tracer.Start(ctx, "orchestration.run",
		trace.WithAttributes(
			attribute.String("run.id", r.id.String()),
			attribute.String("orchestration.name", r.def.Name),
		))
	defer span.End()

	logger := r.exec.logger.With(
		slog.String("run_id", r.id.String()),
		slog.String("orchestration", r.def.Name),
	)
	logger.Info("run started",
		slog.Int("iterations", r.def.EffectiveIterations()),
		slog.Int("sequence_length", r.def.SequenceLength()))
	r.publishStatus()

	if failures := r.hooks.run(ctx, r.def.Hooks, orchestration.HookPreOrchestration); len(failures) > 0 {
		r.recordHookFailures(failures)
	}

	stopped := r.runIterations(ctx, logger)

	// Cleanup hooks run exactly once, on every exit path, with a fresh
	// context so a stop cannot cancel them mid-flight.
	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), cleanupTimeout)
	if failures := r.hooks.run(cleanupCtx, r.def.Hooks, orchestration.HookPostOrchestration); len(failures) > 0 {
		r.recordHookFailures(failures)
	}
	cleanupCancel()

	assertionResults := r.evaluateRunAssertions()
	assertionsPassed := true
	for _, ar := range assertionResults {
		if !ar.Passed {
			assertionsPassed = false
		}
	}

	terminal := RunStatusCompleted
	switch {
	case stopped:
		terminal = RunStatusStopped
	case len(r.failedStepsSnapshot()) > 0 || !assertionsPassed:
		terminal = RunStatusFailed
	}

	r.finish(terminal, assertionResults)
	r.publishStatus()

	if terminal == RunStatusFailed {
		span.SetStatus(codes.Error, "run failed")
	}
	logger.Info("run finished",
		slog.String("status", string(terminal)),
		slog.Int("failed_steps", len(r.failedStepsSnapshot())))
	close(r.done)
}

// runIterations executes the full iteration loop and reports whether a
// stop command ended it early.
func (r *Run) runIterations(ctx context.Context, logger *slog.Logger) bool {
	iterations := r.def.EffectiveIterations()
	for it := 1; it <= iterations; it++ {
		r.beginIteration(it)
		r.publishStatus()
		logger.Debug("iteration started", slog.Int("iteration", it))

		abort := false
		for _, step := range r.def.Steps {
			if r.awaitBoundary() == boundaryStop {
				return true
			}
			if r.executeStep(ctx, step, it) == stepOutcomeStopRun {
				return true
			}
			r.advanceCursor()
			r.publishStatus()
			if r.iterationAborted() {
				abort = true
				break
			}
		}

		if !abort {
			for _, cond := range r.def.ConditionalSteps {
				if r.awaitBoundary() == boundaryStop {
					return true
				}
				if r.executeConditional(ctx, cond, it, logger) == stepOutcomeStopRun {
					return true
				}
				r.advanceCursor()
				r.publishStatus()
				if r.iterationAborted() {
					break
				}
			}
		}
	}
	return false
}

// executeConditional evaluates the branch gate and runs the chosen side.
// The whole conditional occupies one cursor position regardless of how
// many branch steps it contains.
func (r *Run) executeConditional(ctx context.Context, cond orchestration.ConditionalStep, iteration int, logger *slog.Logger) stepOutcome {
	state := r.rctx.Snapshot()
	branch := cond.ElseSteps
	taken := "else"
	if cond.Condition.Evaluate(state) {
		branch = cond.ThenSteps
		taken = "then"
	}
	logger.Debug("conditional branch selected",
		slog.String("conditional", cond.ID),
		slog.String("branch", taken),
		slog.Int("steps", len(branch)))

	for _, step := range branch {
		select {
		case <-r.stopCh:
			return stepOutcomeStopRun
		default:
		}
		if r.executeStep(ctx, step, iteration) == stepOutcomeStopRun {
			return stepOutcomeStopRun
		}
		if r.iterationAborted() {
			break
		}
	}
	return stepOutcomeContinue
}

// executeStep runs one step and folds its result into run state.
func (r *Run) executeStep(ctx context.Context, step orchestration.Step, iteration int) stepOutcome {
	res, outcome := r.runStep(ctx, &step, iteration)
	if res != nil && res.Status == StepStatusFailed {
		r.recordFailedStep(step.ID)
		if !step.ContinueOnFailure {
			r.markIterationAborted()
		}
	}
	return outcome
}

func (r *Run) iterationAborted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.abortIteration
}

func (r *Run) markIterationAborted() {
	r.mu.Lock()
	r.abortIteration = true
	r.mu.Unlock()
}

func (r *Run) failedStepsSnapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.failedSteps))
	copy(out, r.failedSteps)
	return out
}

func (r *Run) recordHookFailures(failures []string) {
	r.mu.Lock()
	r.hookFailures = append(r.hookFailures, failures...)
	r.mu.Unlock()
}

func (r *Run) evaluateRunAssertions() []AssertionResult {
	state := r.rctx.Snapshot()
	outcomes := r.rctx.Outcomes()
	results := make([]AssertionResult, 0, len(r.def.Assertions))
	for i := range r.def.Assertions {
		a := &r.def.Assertions[i]
		results = append(results, AssertionResult{
			Description: a.Describe(),
			Passed:      a.Evaluate(state, outcomes),
		})
	}
	return results
}

func (r *Run) finish(terminal RunStatus, assertionResults []AssertionResult) {
	r.mu.Lock()
	r.status = terminal
	r.finishedAt = time.Now()
	if r.def.EnableReporting {
		r.report = r.buildReportLocked(terminal, assertionResults)
	}
	r.mu.Unlock()
}
