package caseflow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/recourse/internal/plan"
)

// Executor runs an approved plan's steps against the injected tools. It
// validates every step before invocation and records one result per step in
// order; a failed step never aborts its siblings.
type Executor struct {
	tools          Toolset
	refundCapMinor int
	logger         log.Logger
}

// NewExecutor creates an executor. refundCapMinor bounds refund step
// validation and must match the policy engine's cap.
func NewExecutor(tools Toolset, refundCapMinor int, logger log.Logger) *Executor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Executor{
		tools:          tools,
		refundCapMinor: refundCapMinor,
		logger:         logger,
	}
}

var errToolNotConfigured = errors.New("tool not configured")

// Execute runs every step of the plan and returns one result per step,
// preserving order. Whether execution is permitted at all is the workflow's
// decision; Execute itself only validates and dispatches.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan) []plan.Result {
	if p == nil {
		return nil
	}

	results := make([]plan.Result, 0, len(p.Steps))
	for i, step := range p.Steps {
		res := e.executeStep(ctx, step)
		if !res.OK {
			e.logger.Warn(ctx, "plan step failed",
				"ticket_id", p.TicketID,
				"step", i,
				"kind", string(step.Kind),
				"error", res.Err,
			)
		}
		results = append(results, res)
	}
	return results
}

func (e *Executor) executeStep(ctx context.Context, step plan.Step) plan.Result {
	res := plan.Result{Kind: step.Kind}

	if err := step.Validate(e.refundCapMinor); err != nil {
		res.Err = "invalid arguments: " + err.Error()
		return res
	}

	var (
		payload map[string]any
		err     error
	)
	switch step.Kind {
	case plan.KindRefund:
		if e.tools.Refunder == nil {
			err = errToolNotConfigured
			break
		}
		// One key per execution attempt; the provider dedups on it.
		res.IdempotencyKey = uuid.NewString()
		payload, err = e.tools.Refunder.Refund(ctx, *step.Refund, res.IdempotencyKey)
	case plan.KindNotify:
		if e.tools.Notifier == nil {
			err = errToolNotConfigured
			break
		}
		payload, err = e.tools.Notifier.Notify(ctx, *step.Notify)
	case plan.KindToggleFeature:
		if e.tools.FeatureToggler == nil {
			err = errToolNotConfigured
			break
		}
		payload, err = e.tools.FeatureToggler.ToggleFeature(ctx, *step.ToggleFeature)
	case plan.KindFileBug:
		if e.tools.BugFiler == nil {
			err = errToolNotConfigured
			break
		}
		payload, err = e.tools.BugFiler.FileBug(ctx, *step.FileBug)
	}

	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.OK = true
	res.Payload = payload
	return res
}
