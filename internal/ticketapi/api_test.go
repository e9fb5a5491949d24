package ticketapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/recourse/internal/caseflow"
	"github.com/linnemanlabs/recourse/internal/ticket"
)

type mockService struct {
	submitted  *ticket.Ticket
	submitResp *caseflow.State
	submitErr  error

	decidedCase  string
	decidedToken string
	decideResp   *caseflow.State
	decideErr    error

	getResp *caseflow.State
	getOK   bool
	getErr  error
}

func (m *mockService) Submit(_ context.Context, t *ticket.Ticket) (*caseflow.State, error) {
	m.submitted = t
	if m.submitErr != nil {
		return m.submitResp, m.submitErr
	}
	if m.submitResp != nil {
		return m.submitResp, nil
	}
	return &caseflow.State{ID: "case-1", Status: caseflow.StatusComplete, Ticket: t}, nil
}

func (m *mockService) Decide(_ context.Context, caseID, token string) (*caseflow.State, error) {
	m.decidedCase = caseID
	m.decidedToken = token
	if m.decideErr != nil {
		return nil, m.decideErr
	}
	if m.decideResp != nil {
		return m.decideResp, nil
	}
	return &caseflow.State{ID: caseID, Status: caseflow.StatusComplete}, nil
}

func (m *mockService) Get(_ context.Context, caseID string) (*caseflow.State, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	if !m.getOK {
		return nil, false, nil
	}
	return m.getResp, true, nil
}

func newRouter(svc CaseService, reviewerToken string) http.Handler {
	r := chi.NewRouter()
	New(log.Nop(), svc, reviewerToken).RegisterRoutes(r)
	return r
}

func TestSubmitTicket_Accepted(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	h := newRouter(svc, "")

	body := `{"text":"I was double charged","channel":"email","customer_id":"cus_1","meta":{"amount_minor":1500,"order_id":"A100"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body)
	}
	if svc.submitted == nil {
		t.Fatal("service never called")
	}
	if svc.submitted.ID == "" {
		t.Error("ticket id not generated")
	}
	if svc.submitted.CreatedAt.IsZero() {
		t.Error("created_at not defaulted")
	}
	if svc.submitted.Meta.AmountMinor != 1500 {
		t.Errorf("amount = %d, want 1500", svc.submitted.Meta.AmountMinor)
	}

	var st caseflow.State
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if st.ID != "case-1" {
		t.Errorf("case id = %q, want case-1", st.ID)
	}
}

func TestSubmitTicket_DefaultsChannel(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	h := newRouter(svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", strings.NewReader(`{"text":"help"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if svc.submitted.Channel != ticket.ChannelForm {
		t.Errorf("channel = %q, want form default", svc.submitted.Channel)
	}
}

func TestSubmitTicket_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing text", `{"channel":"email"}`},
		{"unknown channel", `{"text":"hi","channel":"carrier_pigeon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newRouter(&mockService{}, "")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestSubmitTicket_FailedCaseStillReturned(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		submitResp: &caseflow.State{ID: "case-f", Status: caseflow.StatusFailed, Err: "classify: model unavailable"},
		submitErr:  errors.New("classify: model unavailable"),
	}
	h := newRouter(svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (failed case is still a case)", rec.Code, http.StatusAccepted)
	}
	var st caseflow.State
	_ = json.NewDecoder(rec.Body).Decode(&st)
	if st.Status != caseflow.StatusFailed {
		t.Errorf("status = %q, want failed", st.Status)
	}
}

func TestSubmitTicket_ServiceError(t *testing.T) {
	t.Parallel()

	h := newRouter(&mockService{submitErr: errors.New("boom")}, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestGetCase_Found(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		getOK:   true,
		getResp: &caseflow.State{ID: "case-9", Status: caseflow.StatusAwaitingApproval},
	}
	h := newRouter(svc, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases/case-9", http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var st caseflow.State
	_ = json.NewDecoder(rec.Body).Decode(&st)
	if st.Status != caseflow.StatusAwaitingApproval {
		t.Errorf("status = %q, want awaiting_approval", st.Status)
	}
}

func TestGetCase_NotFound(t *testing.T) {
	t.Parallel()

	h := newRouter(&mockService{}, "")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases/missing", http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDecision_ResumesCase(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	h := newRouter(svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases/case-2/decision",
		strings.NewReader(`{"decision":"approve"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	if svc.decidedCase != "case-2" || svc.decidedToken != "approve" {
		t.Errorf("service called with %q/%q, want case-2/approve", svc.decidedCase, svc.decidedToken)
	}
}

func TestDecision_RequiresToken(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	h := newRouter(svc, "review-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases/case-2/decision",
		strings.NewReader(`{"decision":"approve"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d without bearer token", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/cases/case-2/decision",
		strings.NewReader(`{"decision":"approve"}`))
	req.Header.Set("Authorization", "Bearer review-secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d with valid token", rec.Code, http.StatusOK)
	}
}

func TestDecision_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing decision", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newRouter(&mockService{}, "")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cases/c/decision", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestDecision_UnknownCase(t *testing.T) {
	t.Parallel()

	h := newRouter(&mockService{decideErr: caseflow.ErrCaseNotFound}, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cases/nope/decision",
		strings.NewReader(`{"decision":"approve"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
