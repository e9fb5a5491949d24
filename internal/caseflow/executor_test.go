package caseflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/recourse/internal/plan"
)

// mockRefunder records calls and returns a canned receipt or error.
type mockRefunder struct {
	calls []plan.RefundArgs
	keys  []string
	err   error
}

func (m *mockRefunder) Refund(_ context.Context, args plan.RefundArgs, key string) (map[string]any, error) {
	m.calls = append(m.calls, args)
	m.keys = append(m.keys, key)
	if m.err != nil {
		return nil, m.err
	}
	return map[string]any{"refund_id": "rf_123", "amount_minor": args.AmountMinor}, nil
}

type mockNotifier struct {
	calls []plan.NotifyArgs
	err   error
}

func (m *mockNotifier) Notify(_ context.Context, args plan.NotifyArgs) (map[string]any, error) {
	m.calls = append(m.calls, args)
	if m.err != nil {
		return nil, m.err
	}
	return map[string]any{"delivered": true}, nil
}

const execTestCap = 5000

func TestExecute_RefundSuccess(t *testing.T) {
	t.Parallel()

	refunder := &mockRefunder{}
	ex := NewExecutor(Toolset{Refunder: refunder}, execTestCap, log.Nop())

	results := ex.Execute(context.Background(), refundPlan(false))

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	r := results[0]
	if !r.OK {
		t.Fatalf("ok = false, err = %q", r.Err)
	}
	if r.Kind != plan.KindRefund {
		t.Errorf("kind = %q, want refund", r.Kind)
	}
	if r.IdempotencyKey == "" {
		t.Error("idempotency key not set on refund result")
	}
	if len(refunder.keys) != 1 || refunder.keys[0] != r.IdempotencyKey {
		t.Errorf("refunder key = %v, want same key as result %q", refunder.keys, r.IdempotencyKey)
	}
	if refunder.calls[0].AmountMinor != 1500 {
		t.Errorf("amount = %d, want 1500", refunder.calls[0].AmountMinor)
	}
}

func TestExecute_FailureDoesNotAbortSiblings(t *testing.T) {
	t.Parallel()

	refunder := &mockRefunder{err: errors.New("provider timeout")}
	notifier := &mockNotifier{}
	ex := NewExecutor(Toolset{Refunder: refunder, Notifier: notifier}, execTestCap, log.Nop())

	p := refundPlan(false)
	p.Steps = append(p.Steps, plan.Step{
		Kind:   plan.KindNotify,
		Notify: &plan.NotifyArgs{Channel: "email", Message: "refund attempted"},
	})

	results := ex.Execute(context.Background(), p)

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (execution continues past failure)", len(results))
	}
	if results[0].OK {
		t.Error("refund result ok = true, want false")
	}
	if !strings.Contains(results[0].Err, "provider timeout") {
		t.Errorf("refund err = %q, want provider error recorded", results[0].Err)
	}
	if !results[1].OK {
		t.Errorf("notify result ok = false, err = %q", results[1].Err)
	}
	if len(notifier.calls) != 1 {
		t.Errorf("notifier calls = %d, want 1", len(notifier.calls))
	}
}

func TestExecute_SchemaValidationFailure(t *testing.T) {
	t.Parallel()

	refunder := &mockRefunder{}
	ex := NewExecutor(Toolset{Refunder: refunder}, execTestCap, log.Nop())

	p := refundPlan(false)
	p.Steps[0].Refund.AmountMinor = execTestCap + 500 // over cap

	results := ex.Execute(context.Background(), p)

	if results[0].OK {
		t.Error("ok = true for over-cap refund, want validation failure")
	}
	if !strings.Contains(results[0].Err, "invalid arguments") {
		t.Errorf("err = %q, want invalid arguments", results[0].Err)
	}
	if len(refunder.calls) != 0 {
		t.Errorf("refunder invoked %d times despite validation failure", len(refunder.calls))
	}
}

func TestExecute_MissingToolRecordsError(t *testing.T) {
	t.Parallel()

	ex := NewExecutor(Toolset{}, execTestCap, log.Nop())

	results := ex.Execute(context.Background(), refundPlan(false))

	if results[0].OK {
		t.Error("ok = true without a configured refunder")
	}
	if !strings.Contains(results[0].Err, "not configured") {
		t.Errorf("err = %q, want tool not configured", results[0].Err)
	}
}

func TestExecute_NilPlan(t *testing.T) {
	t.Parallel()

	ex := NewExecutor(Toolset{}, execTestCap, log.Nop())
	if results := ex.Execute(context.Background(), nil); results != nil {
		t.Errorf("results = %v, want nil for nil plan", results)
	}
}
