package caseflow

import (
	"context"

	"github.com/linnemanlabs/recourse/internal/fusion"
	"github.com/linnemanlabs/recourse/internal/plan"
	"github.com/linnemanlabs/recourse/internal/ticket"
)

// Classification is the typed contract of the intent classifier.
type Classification struct {
	Intents  []string `json:"intents"`
	Severity Severity `json:"severity"`
}

// Classifier labels ticket text with intents and a severity. A failure here
// is fatal to the classify stage; the workflow does not retry.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)
}

// Retriever supplies the two ranked candidate lists the workflow fuses. The
// index behind it is built elsewhere; the workflow only consumes rankings.
type Retriever interface {
	Sparse(ctx context.Context, query string) ([]fusion.Candidate, error)
	Dense(ctx context.Context, query string) ([]fusion.Candidate, error)
}

// DraftRequest carries everything the drafting collaborator may use. When
// evidence is missing the reply must ask for exactly those items and promise
// nothing; the collaborator is never asked to invent amounts beyond the
// ticket's own.
type DraftRequest struct {
	Ticket          *ticket.Ticket
	Chunks          []Chunk
	Disposition     Disposition
	MissingEvidence []string
}

// Drafter produces the customer-facing markdown reply. A failure is fatal to
// the draft stage.
type Drafter interface {
	Draft(ctx context.Context, req *DraftRequest) (string, error)
}

// Tool collaborator interfaces. The executor validates step arguments before
// calling these, so implementations may assume well-formed input.

// Refunder issues a refund through the payment provider. idempotencyKey is
// generated per step so a retried call cannot double-refund.
type Refunder interface {
	Refund(ctx context.Context, args plan.RefundArgs, idempotencyKey string) (map[string]any, error)
}

// Notifier delivers an escalation or status message. An empty recipient
// means the implementation's configured escalation contact.
type Notifier interface {
	Notify(ctx context.Context, args plan.NotifyArgs) (map[string]any, error)
}

// FeatureToggler flips a feature flag for a customer.
type FeatureToggler interface {
	ToggleFeature(ctx context.Context, args plan.ToggleFeatureArgs) (map[string]any, error)
}

// BugFiler opens an engineering issue.
type BugFiler interface {
	FileBug(ctx context.Context, args plan.FileBugArgs) (map[string]any, error)
}

// Toolset bundles the injected tool implementations. Nil members cause the
// corresponding step kinds to fail with a recorded error rather than panic.
type Toolset struct {
	Refunder       Refunder
	Notifier       Notifier
	FeatureToggler FeatureToggler
	BugFiler       BugFiler
}

// Exporter publishes the closed case to downstream consumers and returns
// artifact references to record on the state.
type Exporter interface {
	Export(ctx context.Context, st *State) (map[string]string, error)
}
