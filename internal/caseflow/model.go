package caseflow

import (
	"time"

	"github.com/linnemanlabs/recourse/internal/plan"
	"github.com/linnemanlabs/recourse/internal/ticket"
)

// Status tracks where a case is in its lifecycle.
type Status string

const (
	// StatusInProgress means stages are running.
	StatusInProgress Status = "in_progress"

	// StatusAwaitingApproval means the workflow suspended at the approval
	// stage and is waiting for an out-of-band decision.
	StatusAwaitingApproval Status = "awaiting_approval"

	// StatusComplete means the case ran to the terminal stage.
	StatusComplete Status = "complete"

	// StatusFailed means a stage hit a fatal error.
	StatusFailed Status = "failed"
)

// Stage names one step of the pipeline. The cursor stored in a checkpoint is
// the stage the workflow enters next.
type Stage string

const (
	StageIngest   Stage = "ingest"
	StageClassify Stage = "classify"
	StageRetrieve Stage = "retrieve"
	StagePlan     Stage = "plan"
	StageApproval Stage = "approval"
	StageDraft    Stage = "draft"
	StageVerify   Stage = "verify"
	StageExecute  Stage = "execute"
	StageExport   Stage = "export"
	StageClose    Stage = "close"
)

// Decision is the tri-state human-in-the-loop outcome. The zero value is
// Pending, which is distinct from an explicit denial.
type Decision string

const (
	DecisionPending  Decision = ""
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
)

// Decided reports whether a human (or the auto-approve rule) has committed
// an outcome.
func (d Decision) Decided() bool { return d == DecisionApproved || d == DecisionDenied }

// Severity is the classifier's urgency estimate for a ticket.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityNormal Severity = "normal"
	SeverityHigh   Severity = "high"
)

// Chunk is one retrieved policy snippet. Produced only by the retrieve
// stage; read-only afterwards.
type Chunk struct {
	DocID  string  `json:"doc_id"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Span   *[2]int `json:"span,omitempty"`
}

// Draft is the grounded reply proposed for the customer.
type Draft struct {
	TicketID  string   `json:"ticket_id"`
	Markdown  string   `json:"markdown"`
	Citations []string `json:"citations,omitempty"`
}

// State is the single mutable aggregate threaded through all stages of one
// case. Slice fields accumulate across stage re-entries after a resume;
// scalar fields replace. It is checkpointed whenever the workflow suspends
// and at terminal stages, so it must round-trip through JSON.
type State struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Cursor Stage  `json:"cursor"`
	Err    string `json:"error,omitempty"`

	Ticket   *ticket.Ticket `json:"ticket"`
	Intents  []string       `json:"intents,omitempty"`
	Severity Severity       `json:"severity,omitempty"`

	Retrieved []Chunk `json:"retrieved,omitempty"`

	Plan            *plan.Plan `json:"plan,omitempty"`
	MissingEvidence []string   `json:"missing_evidence,omitempty"`
	Decision        Decision   `json:"decision,omitempty"`

	Draft       *Draft            `json:"draft,omitempty"`
	Executed    []plan.Result     `json:"executed,omitempty"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
	PolicyFlags []string          `json:"policy_flags,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// Disposition is what the drafting collaborator is told about the case
// outcome so the reply strikes the right tone.
type Disposition string

const (
	DispositionApproved  Disposition = "approved"
	DispositionDenied    Disposition = "denied"
	DispositionEscalated Disposition = "escalated"
	DispositionPending   Disposition = "pending"
)

// DispositionOf derives the drafting disposition from the current state.
func DispositionOf(st *State) Disposition {
	switch {
	case st.Plan != nil && st.Plan.EscalationOnly():
		return DispositionEscalated
	case st.Decision == DecisionApproved:
		return DispositionApproved
	case st.Decision == DecisionDenied:
		return DispositionDenied
	default:
		return DispositionPending
	}
}
