package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/linnemanlabs/recourse/internal/caseflow"
	"github.com/linnemanlabs/recourse/internal/caseflow/redisstore"
	"github.com/linnemanlabs/recourse/internal/ticket"
)

func openStore(t *testing.T) *redisstore.Store {
	t.Helper()
	url := os.Getenv("RECOURSE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("RECOURSE_TEST_REDIS_URL not set, skipping integration test")
	}
	s, err := redisstore.New(context.Background(), url, time.Hour)
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	st := &caseflow.State{
		ID:        "test-redis-001",
		Status:    caseflow.StatusAwaitingApproval,
		Cursor:    caseflow.StageApproval,
		Ticket:    &ticket.Ticket{ID: "t-r1", Text: "refund please"},
		Intents:   []string{"billing"},
		CreatedAt: time.Now().UTC(),
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
	if got.Status != caseflow.StatusAwaitingApproval {
		t.Errorf("Status = %q, want awaiting_approval", got.Status)
	}
	if got.Ticket == nil || got.Ticket.ID != "t-r1" {
		t.Errorf("Ticket = %+v, want embedded ticket", got.Ticket)
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

func TestSaveOverwrites(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	st := &caseflow.State{ID: "test-redis-up", Status: caseflow.StatusAwaitingApproval}
	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save initial: %v", err)
	}
	st.Status = caseflow.StatusComplete
	st.Decision = caseflow.DecisionDenied
	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	got, ok, err := s.Load(ctx, st.ID)
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if got.Status != caseflow.StatusComplete || got.Decision != caseflow.DecisionDenied {
		t.Errorf("state = %q/%q, want complete/denied", got.Status, got.Decision)
	}
}
