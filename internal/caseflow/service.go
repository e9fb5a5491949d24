package caseflow

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/recourse/internal/ticket"
)

// Service is the business boundary for case operations.
type Service struct {
	store    Store
	workflow *Workflow
	logger   log.Logger
	metrics  *Metrics
}

// NewService creates a new case service. metrics may be nil.
func NewService(store Store, workflow *Workflow, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		workflow: workflow,
		logger:   logger,
		metrics:  metrics,
	}
}

// Submit creates a case for the ticket and runs it until it completes,
// fails, or suspends for approval. The returned state tells the caller
// which of the three happened.
func (s *Service) Submit(ctx context.Context, t *ticket.Ticket) (*State, error) {
	if t == nil || t.Text == "" {
		s.countSubmit("rejected")
		return nil, errors.New("caseflow: ticket with text is required")
	}
	if t.ID == "" {
		s.countSubmit("rejected")
		return nil, errors.New("caseflow: ticket id is required")
	}

	st := &State{
		ID:        ulid.Make().String(),
		Status:    StatusInProgress,
		Cursor:    StageIngest,
		Ticket:    t,
		CreatedAt: time.Now(),
	}

	s.logger.Info(ctx, "case submitted",
		"case_id", st.ID,
		"ticket_id", t.ID,
		"channel", string(t.Channel),
	)

	st, err := s.workflow.Run(ctx, st)
	switch {
	case err != nil:
		s.countSubmit("failed")
	case st.Status == StatusAwaitingApproval:
		s.countSubmit("suspended")
	default:
		s.countSubmit("completed")
	}
	return st, err
}

// Decide resumes a suspended case with an external decision token
// (approve/deny/defer). It is safe to call repeatedly.
func (s *Service) Decide(ctx context.Context, caseID, token string) (*State, error) {
	return s.workflow.Resume(ctx, caseID, token)
}

// Get retrieves a case state by ID from the checkpoint store.
func (s *Service) Get(ctx context.Context, caseID string) (*State, bool, error) {
	return s.store.Load(ctx, caseID)
}

func (s *Service) countSubmit(result string) {
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues(result).Inc()
	}
}
