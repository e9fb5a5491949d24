package caseflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/recourse/internal/fusion"
	"github.com/linnemanlabs/recourse/internal/policy"
)

// ErrCaseNotFound is returned by Resume for an unknown case ID.
var ErrCaseNotFound = errors.New("caseflow: case not found")

// stageOrder is the fixed pipeline. Drafting happens after the approval
// decision so the reply can reflect it; grounding verification follows the
// draft it checks. Only the approval stage may suspend.
var stageOrder = []Stage{
	StageIngest,
	StageClassify,
	StageRetrieve,
	StagePlan,
	StageApproval,
	StageDraft,
	StageVerify,
	StageExecute,
	StageExport,
	StageClose,
}

func nextStage(s Stage) Stage {
	for i, cur := range stageOrder {
		if cur == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return StageClose
}

// WorkflowDeps are the injected collaborators for a Workflow. Classifier,
// Retriever, Policy, Drafter, Executor, and Store are required; Exporter is
// optional.
type WorkflowDeps struct {
	Classifier Classifier
	Retriever  Retriever
	Policy     *policy.Engine
	Drafter    Drafter
	Executor   *Executor
	Exporter   Exporter
	Store      Store
	Fusion     fusion.Options
	Logger     log.Logger
	Hooks      WorkflowHooks
}

// Workflow drives one case through the stage pipeline. Within a case,
// stages run strictly sequentially; across cases a single Workflow is safe
// for concurrent use because all mutable state lives on the State passed in.
type Workflow struct {
	deps WorkflowDeps
}

// NewWorkflow validates dependencies and returns a ready workflow.
func NewWorkflow(deps WorkflowDeps) (*Workflow, error) {
	var missing []error
	if deps.Classifier == nil {
		missing = append(missing, errors.New("classifier is required"))
	}
	if deps.Retriever == nil {
		missing = append(missing, errors.New("retriever is required"))
	}
	if deps.Policy == nil {
		missing = append(missing, errors.New("policy engine is required"))
	}
	if deps.Drafter == nil {
		missing = append(missing, errors.New("drafter is required"))
	}
	if deps.Executor == nil {
		missing = append(missing, errors.New("executor is required"))
	}
	if deps.Store == nil {
		missing = append(missing, errors.New("store is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, fmt.Errorf("caseflow: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = log.Nop()
	}
	if deps.Fusion == (fusion.Options{}) {
		deps.Fusion = fusion.DefaultOptions()
	}
	return &Workflow{deps: deps}, nil
}

// Run executes the pipeline from the state's cursor until it completes,
// fails, or suspends at the approval stage. Suspension checkpoints the full
// state before returning control; the caller gets the suspended state back
// with no error.
func (w *Workflow) Run(ctx context.Context, st *State) (*State, error) {
	if st.Ticket == nil {
		return nil, errors.New("caseflow: state has no ticket")
	}
	if st.Cursor == "" {
		st.Cursor = StageIngest
	}
	st.Status = StatusInProgress
	return w.run(ctx, st)
}

// Resume loads the checkpoint for a suspended case, applies the external
// decision token, and continues from the stage after approval. Resuming a
// case that is not awaiting approval returns its current state unchanged, so
// repeated resume calls with the same decision are idempotent.
func (w *Workflow) Resume(ctx context.Context, caseID, token string) (*State, error) {
	st, ok, err := w.deps.Store.Load(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("load case %s: %w", caseID, err)
	}
	if !ok {
		return nil, ErrCaseNotFound
	}

	if st.Status != StatusAwaitingApproval {
		return st, nil
	}

	d := ParseDecision(token)
	if w.deps.Hooks.OnResume != nil {
		w.deps.Hooks.OnResume(d)
	}
	if d == DecisionPending {
		// Deferred: stay suspended, nothing recomputed.
		return st, nil
	}

	st.Decision = d
	st.Status = StatusInProgress
	st.Cursor = nextStage(StageApproval)
	// Commit the decision before any side effects so a crash mid-continue
	// resumes with the decision already applied.
	if err := w.deps.Store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("checkpoint case %s: %w", st.ID, err)
	}

	w.deps.Logger.Info(ctx, "workflow resumed",
		"case_id", st.ID,
		"decision", string(d),
	)
	return w.run(ctx, st)
}

func (w *Workflow) run(ctx context.Context, st *State) (*State, error) {
	L := w.deps.Logger.With("case_id", st.ID, "ticket_id", st.Ticket.ID)

	for {
		stage := st.Cursor
		start := time.Now()

		switch stage {
		case StageIngest:
			if st.Artifacts == nil {
				st.Artifacts = make(map[string]string)
			}

		case StageClassify:
			cls, err := w.deps.Classifier.Classify(ctx, st.Ticket.Text)
			if err != nil {
				return w.fail(ctx, L, st, stage, err)
			}
			st.Intents = append(st.Intents, cls.Intents...)
			st.Severity = cls.Severity

		case StageRetrieve:
			sparse, err := w.deps.Retriever.Sparse(ctx, st.Ticket.Text)
			if err != nil {
				return w.fail(ctx, L, st, stage, err)
			}
			dense, err := w.deps.Retriever.Dense(ctx, st.Ticket.Text)
			if err != nil {
				return w.fail(ctx, L, st, stage, err)
			}
			for _, c := range fusion.Merge(sparse, dense, w.deps.Fusion) {
				st.Retrieved = append(st.Retrieved, Chunk{
					DocID:  c.DocID,
					Source: c.Source,
					Text:   c.Text,
					Score:  c.Score,
				})
			}

		case StagePlan:
			p, missing := w.deps.Policy.Evaluate(st.Ticket)
			st.Plan = p
			st.MissingEvidence = missing
			if p == nil && len(missing) > 0 {
				L.Info(ctx, "evidence missing, no plan emitted", "missing", missing)
			}

		case StageApproval:
			if resolveApproval(st) == gateSuspend {
				st.Status = StatusAwaitingApproval
				if err := w.deps.Store.Save(ctx, st); err != nil {
					return nil, fmt.Errorf("checkpoint case %s: %w", st.ID, err)
				}
				if w.deps.Hooks.OnSuspend != nil {
					w.deps.Hooks.OnSuspend()
				}
				w.observeStage(stage, start)
				L.Info(ctx, "workflow suspended awaiting approval",
					"plan_steps", len(st.Plan.Steps),
				)
				return st, nil
			}

		case StageDraft:
			md, err := w.deps.Drafter.Draft(ctx, &DraftRequest{
				Ticket:          st.Ticket,
				Chunks:          st.Retrieved,
				Disposition:     DispositionOf(st),
				MissingEvidence: st.MissingEvidence,
			})
			if err != nil {
				return w.fail(ctx, L, st, stage, err)
			}
			citations := make([]string, 0, len(st.Retrieved))
			for _, c := range st.Retrieved {
				citations = append(citations, c.Source)
			}
			st.Draft = &Draft{
				TicketID:  st.Ticket.ID,
				Markdown:  md,
				Citations: citations,
			}

		case StageVerify:
			st.PolicyFlags = append(st.PolicyFlags, verifyGrounding(st.Draft)...)

		case StageExecute:
			if mayExecute(st) {
				results := w.deps.Executor.Execute(ctx, st.Plan)
				for _, r := range results {
					if w.deps.Hooks.OnToolResult != nil {
						w.deps.Hooks.OnToolResult(r.Kind, r.OK)
					}
				}
				st.Executed = append(st.Executed, results...)
			}

		case StageExport:
			if len(st.Executed) > 0 {
				// The checkpoint round-trip drops an empty artifacts map, so a
				// resumed case reaches this stage with a nil one.
				if st.Artifacts == nil {
					st.Artifacts = make(map[string]string)
				}
				st.Artifacts["report_json"] = "cases/" + st.ID + "/report.json"
				if w.deps.Exporter != nil {
					arts, err := w.deps.Exporter.Export(ctx, st)
					if err != nil {
						// Export is best-effort; the case output itself is
						// already durable in the checkpoint store.
						L.Warn(ctx, "case export failed", "error", err)
					}
					for k, v := range arts {
						st.Artifacts[k] = v
					}
				}
			}

		case StageClose:
			st.Status = StatusComplete
			st.CompletedAt = time.Now()
			if err := w.deps.Store.Save(ctx, st); err != nil {
				return nil, fmt.Errorf("checkpoint case %s: %w", st.ID, err)
			}
			w.observeStage(stage, start)
			if w.deps.Hooks.OnComplete != nil {
				w.deps.Hooks.OnComplete(st.Status, time.Since(st.CreatedAt).Seconds())
			}
			L.Info(ctx, "case complete",
				"executed_steps", len(st.Executed),
				"policy_flags", st.PolicyFlags,
				"missing_evidence", st.MissingEvidence,
			)
			return st, nil
		}

		w.observeStage(stage, start)
		st.Cursor = nextStage(stage)
	}
}

// mayExecute applies the execution gate: a plan runs when it was approved,
// or when it is escalation-only and therefore needs no approval.
func mayExecute(st *State) bool {
	if st.Plan == nil {
		return false
	}
	return st.Decision == DecisionApproved || st.Plan.EscalationOnly()
}

func (w *Workflow) fail(ctx context.Context, L log.Logger, st *State, stage Stage, err error) (*State, error) {
	st.Status = StatusFailed
	st.Err = fmt.Sprintf("%s: %v", stage, err)
	st.CompletedAt = time.Now()
	if saveErr := w.deps.Store.Save(ctx, st); saveErr != nil {
		L.Error(ctx, saveErr, "failed to checkpoint failed case")
	}
	if w.deps.Hooks.OnComplete != nil {
		w.deps.Hooks.OnComplete(st.Status, time.Since(st.CreatedAt).Seconds())
	}
	L.Error(ctx, err, "stage failed", "stage", string(stage))
	return st, fmt.Errorf("stage %s: %w", stage, err)
}

func (w *Workflow) observeStage(stage Stage, start time.Time) {
	if w.deps.Hooks.OnStage != nil {
		w.deps.Hooks.OnStage(stage, time.Since(start).Seconds())
	}
}
