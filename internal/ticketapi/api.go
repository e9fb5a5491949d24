// Package ticketapi exposes the HTTP surface for submitting tickets and
// reviewing cases.
package ticketapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/recourse/internal/authmw"
	"github.com/linnemanlabs/recourse/internal/caseflow"
	"github.com/linnemanlabs/recourse/internal/ticket"
)

// CaseService defines the business operations ticketapi needs.
type CaseService interface {
	Submit(ctx context.Context, t *ticket.Ticket) (*caseflow.State, error)
	Decide(ctx context.Context, caseID, token string) (*caseflow.State, error)
	Get(ctx context.Context, caseID string) (*caseflow.State, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger        log.Logger
	svc           CaseService
	reviewerToken string
}

// New creates a new API handler. reviewerToken guards the decision
// endpoint; empty disables the guard.
func New(logger log.Logger, svc CaseService, reviewerToken string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("case service is required"))
	}
	return &API{
		logger:        logger,
		svc:           svc,
		reviewerToken: reviewerToken,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tickets", a.handleSubmitTicket)
		r.Get("/cases/{id}", a.handleGetCase)
		r.With(authmw.BearerToken(a.reviewerToken), authmw.Reviewer()).
			Post("/cases/{id}/decision", a.handleDecision)
	})
}

func (a *API) handleSubmitTicket(w http.ResponseWriter, r *http.Request) {
	var t ticket.Ticket
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if t.Text == "" {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
		return
	}
	switch t.Channel {
	case ticket.ChannelEmail, ticket.ChannelChat, ticket.ChannelSlack, ticket.ChannelForm:
	case "":
		t.Channel = ticket.ChannelForm
	default:
		http.Error(w, `{"error":"unknown channel"}`, http.StatusBadRequest)
		return
	}
	if t.ID == "" {
		t.ID = "tkt_" + ulid.Make().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("recourse.ticket.id", t.ID),
		attribute.String("recourse.ticket.channel", string(t.Channel)),
	)

	st, err := a.svc.Submit(r.Context(), &t)
	if err != nil {
		if st != nil && st.Status == caseflow.StatusFailed {
			// The case exists and recorded its failure; return it.
			span.SetAttributes(attribute.String("recourse.case.status", string(st.Status)))
			writeJSON(w, http.StatusAccepted, st)
			return
		}
		a.logger.Error(r.Context(), err, "ticket submission failed", "ticket_id", t.ID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(
		attribute.String("recourse.case.id", st.ID),
		attribute.String("recourse.case.status", string(st.Status)),
	)
	writeJSON(w, http.StatusAccepted, st)
}

func (a *API) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("recourse.case.id", id))

	st, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get case", "case_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("recourse.case.status", string(st.Status)))
	writeJSON(w, http.StatusOK, st)
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (a *API) handleDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}
	if req.Decision == "" {
		http.Error(w, `{"error":"decision is required"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("recourse.case.id", id),
		attribute.String("recourse.decision.token", req.Decision),
	)

	if who, ok := authmw.ReviewerFromContext(r.Context()); ok {
		a.logger.Info(r.Context(), "decision received",
			"case_id", id, "decision", req.Decision, "reviewer", who)
	}

	st, err := a.svc.Decide(r.Context(), id, req.Decision)
	if err != nil {
		if errors.Is(err, caseflow.ErrCaseNotFound) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		a.logger.Error(r.Context(), err, "decision failed", "case_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("recourse.case.status", string(st.Status)))
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
