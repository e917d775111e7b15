package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SaaSy-Solutions/mockforge-sub008/internal/orchestration"
)

// hookRunner executes hook actions against the run context and the sink.
// Hooks fail open: an action error is logged and recorded but never stops
// the surrounding step or run.
type hookRunner struct {
	logger *slog.Logger
	sink   ActionSink
	rctx   *RunContext
}

// run executes every hook whose type matches and whose condition holds.
// It returns human-readable descriptions of any action failures.
func (h *hookRunner) run(ctx context.Context, hooks []orchestration.Hook, hookType orchestration.HookType) []string {
	var failures []string
	for i := range hooks {
		hook := &hooks[i]
		if hook.HookType != hookType {
			continue
		}
		if !hook.ShouldFire(h.rctx.Snapshot()) {
			h.logger.Debug("hook condition not met", slog.String("hook", hook.Name))
			continue
		}
		for j := range hook.Actions {
			if err := h.runAction(ctx, hook, &hook.Actions[j]); err != nil {
				desc := fmt.Sprintf("hook %q action %d: %v", hook.Name, j, err)
				h.logger.Warn("hook action failed",
					slog.String("hook", hook.Name),
					slog.String("action", string(hook.Actions[j].Type)),
					slog.String("error", err.Error()))
				failures = append(failures, desc)
			}
		}
	}
	return failures
}

func (h *hookRunner) runAction(ctx context.Context, hook *orchestration.Hook, action *orchestration.HookAction) error {
	switch action.Type {
	case orchestration.ActionSetVariable:
		h.rctx.SetVariable(action.Name, action.Value)
		return nil
	case orchestration.ActionLog:
		h.logger.Log(ctx, action.Level.SlogLevel(), action.Message, slog.String("hook", hook.Name))
		return nil
	case orchestration.ActionHTTPRequest:
		method := action.Method
		if method == "" {
			method = "GET"
		}
		return h.sink.HTTPRequest(ctx, method, action.URL, action.Body)
	case orchestration.ActionCommand:
		return h.sink.Command(ctx, action.Command, action.Args)
	case orchestration.ActionRecordMetric:
		n, ok := action.Value.AsNumber()
		if !ok {
			return fmt.Errorf("record_metric %q: value is not numeric", action.Name)
		}
		h.rctx.RecordMetric(action.Name, n)
		return nil
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}
