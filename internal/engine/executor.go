package engine

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/events"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
	"github.com/SaaSy-Solutions/mockforge-sub008/internal/types"
)

// Executor builds runs from validated orchestration definitions. It is
// stateless across runs; per-run state lives on the Run it creates.
type Executor struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	bus       *events.Bus
	sink      ActionSink
	scenarios ScenarioDriver
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the structured logger for the executor and its runs.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer enables span creation around runs and steps.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithActionSink overrides the sink used for http_request and command
// hook actions.
func WithActionSink(sink ActionSink) ExecutorOption {
	return func(e *Executor) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithScenarioDriver overrides how step scenarios are launched.
func WithScenarioDriver(driver ScenarioDriver) ExecutorOption {
	return func(e *Executor) {
		if driver != nil {
			e.scenarios = driver
		}
	}
}

// NewExecutor creates an executor publishing to the given event bus.
func NewExecutor(bus *events.Bus, opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer("engine"),
		bus:       bus,
		scenarios: TimerDriver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sink == nil {
		e.sink = NewDefaultSink(e.logger, 0)
	}
	return e
}

// NewRun validates the definition and creates an idle run for it. The run
// does not execute until it receives a start command.
func (e *Executor) NewRun(def *orchestration.Orchestration) (*Run, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	id := types.NewID()
	rctx := NewRunContext(def)
	r := &Run{
		id:     id,
		def:    def,
		exec:   e,
		rctx:   rctx,
		status: RunStatusIdle,
		hooks: &hookRunner{
			logger: e.logger.With(slog.String("run_id", id.String())),
			sink:   e.sink,
			rctx:   rctx,
		},
		control: make(chan ControlAction, 8),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	return r, nil
}
