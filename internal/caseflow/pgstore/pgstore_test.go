package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/recourse/internal/caseflow"
	"github.com/linnemanlabs/recourse/internal/caseflow/pgstore"
	"github.com/linnemanlabs/recourse/internal/plan"
	"github.com/linnemanlabs/recourse/internal/ticket"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("RECOURSE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RECOURSE_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	st := &caseflow.State{
		ID:      "test-save-load-001",
		Status:  caseflow.StatusAwaitingApproval,
		Cursor:  caseflow.StageApproval,
		Ticket:  &ticket.Ticket{ID: "t-1", CustomerID: "cus_1", Text: "refund please"},
		Intents: []string{"billing"},
		Plan: &plan.Plan{
			TicketID: "t-1",
			Steps: []plan.Step{{
				Kind:   plan.KindRefund,
				Refund: &plan.RefundArgs{CustomerID: "cus_1", OrderID: "A100", AmountMinor: 3500, Reason: "duplicate charge"},
			}},
			RequiresApproval: true,
		},
		CreatedAt: now,
	}

	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := s.Load(ctx, st.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load returned ok=false, want true")
	}

	assertEqual(t, "ID", st.ID, got.ID)
	assertEqual(t, "Status", string(st.Status), string(got.Status))
	assertEqual(t, "Cursor", string(st.Cursor), string(got.Cursor))
	if got.Ticket == nil || got.Ticket.ID != "t-1" {
		t.Errorf("Ticket = %+v, want embedded ticket t-1", got.Ticket)
	}
	if got.Plan == nil || !got.Plan.RequiresApproval {
		t.Fatalf("Plan = %+v, want approval-gated plan", got.Plan)
	}
	if got.Plan.Steps[0].Refund.AmountMinor != 3500 {
		t.Errorf("AmountMinor = %d, want 3500", got.Plan.Steps[0].Refund.AmountMinor)
	}
}

func TestLoadMissing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.Load(context.Background(), "nonexistent-id")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Error("Load returned ok=true for nonexistent ID")
	}
}

func TestUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	st := &caseflow.State{
		ID:        "test-upsert-001",
		Status:    caseflow.StatusAwaitingApproval,
		Cursor:    caseflow.StageApproval,
		Ticket:    &ticket.Ticket{ID: "t-up", Text: "help"},
		CreatedAt: now,
	}
	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save initial: %v", err)
	}

	st.Status = caseflow.StatusComplete
	st.Decision = caseflow.DecisionApproved
	st.Cursor = caseflow.StageClose
	st.CompletedAt = now.Add(time.Minute)

	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	got, ok, err := s.Load(ctx, st.ID)
	if err != nil {
		t.Fatalf("Load after upsert: %v", err)
	}
	if !ok {
		t.Fatal("Load returned ok=false after upsert")
	}

	assertEqual(t, "Status", string(caseflow.StatusComplete), string(got.Status))
	assertEqual(t, "Decision", string(caseflow.DecisionApproved), string(got.Decision))
	assertEqual(t, "Cursor", string(caseflow.StageClose), string(got.Cursor))
}

func TestListAwaitingApproval(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	older := &caseflow.State{
		ID:        "test-queue-older",
		Status:    caseflow.StatusAwaitingApproval,
		Cursor:    caseflow.StageApproval,
		Ticket:    &ticket.Ticket{ID: "t-q1", Text: "a"},
		CreatedAt: now.Add(-time.Hour),
	}
	newer := &caseflow.State{
		ID:        "test-queue-newer",
		Status:    caseflow.StatusAwaitingApproval,
		Cursor:    caseflow.StageApproval,
		Ticket:    &ticket.Ticket{ID: "t-q2", Text: "b"},
		CreatedAt: now,
	}
	done := &caseflow.State{
		ID:        "test-queue-done",
		Status:    caseflow.StatusComplete,
		Cursor:    caseflow.StageClose,
		Ticket:    &ticket.Ticket{ID: "t-q3", Text: "c"},
		CreatedAt: now,
	}
	for _, st := range []*caseflow.State{newer, older, done} {
		if err := s.Save(ctx, st); err != nil {
			t.Fatalf("Save %s: %v", st.ID, err)
		}
	}

	ids, err := s.ListAwaitingApproval(ctx, 100)
	if err != nil {
		t.Fatalf("ListAwaitingApproval: %v", err)
	}

	posOlder, posNewer := -1, -1
	for i, id := range ids {
		switch id {
		case older.ID:
			posOlder = i
		case newer.ID:
			posNewer = i
		case done.ID:
			t.Error("completed case listed in approval queue")
		}
	}
	if posOlder == -1 || posNewer == -1 {
		t.Fatalf("queue = %v, want both suspended cases listed", ids)
	}
	if posOlder > posNewer {
		t.Errorf("queue orders newer before older: %v", ids)
	}
}

func assertEqual[T comparable](t *testing.T, field string, want, got T) {
	t.Helper()
	if want != got {
		t.Errorf("%s: got %v, want %v", field, got, want)
	}
}
