// Package tools holds the side-effecting implementations behind the
// case executor: the payment provider, the escalation notifier, and
// the flag/bug effectors.
package tools

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/recourse/internal/plan"
)

// SandboxRefunder issues refunds against an in-memory ledger. It honors
// idempotency keys the way a real payment provider does: replaying a
// key returns the original receipt instead of moving money twice.
type SandboxRefunder struct {
	logger log.Logger

	mu       sync.Mutex
	receipts map[string]map[string]any // idempotency key -> receipt
}

// NewSandboxRefunder creates a sandbox payment provider.
func NewSandboxRefunder(logger log.Logger) *SandboxRefunder {
	if logger == nil {
		logger = log.Nop()
	}
	return &SandboxRefunder{
		logger:   logger,
		receipts: make(map[string]map[string]any),
	}
}

// Refund records the refund and returns a receipt. Replayed keys return
// the stored receipt with replayed=true.
func (r *SandboxRefunder) Refund(ctx context.Context, args plan.RefundArgs, idempotencyKey string) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if receipt, ok := r.receipts[idempotencyKey]; ok {
		cp := copyReceipt(receipt)
		cp["replayed"] = true
		return cp, nil
	}

	receipt := map[string]any{
		"refund_id":    "rf_" + ulid.Make().String(),
		"customer_id":  args.CustomerID,
		"order_id":     args.OrderID,
		"amount_minor": args.AmountMinor,
		"reason":       args.Reason,
		"issued_at":    time.Now().UTC().Format(time.RFC3339),
	}
	r.receipts[idempotencyKey] = receipt

	r.logger.Info(ctx, "sandbox refund issued",
		"refund_id", receipt["refund_id"],
		"order_id", args.OrderID,
		"amount_minor", args.AmountMinor,
	)
	return copyReceipt(receipt), nil
}

func copyReceipt(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
