// Package policy decides what a case is allowed to do about money. It
// computes the evidence a refund request must carry, screens for hard block
// conditions, and tiers the requested amount into auto-refund, human
// approval, or escalation.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linnemanlabs/recourse/internal/plan"
	"github.com/linnemanlabs/recourse/internal/ticket"
)

// Evidence keys a refund request can be asked for.
const (
	EvidenceOrderID         = "order_id"
	EvidenceExplanation     = "explanation"
	EvidenceReturnInitiated = "return_initiated"
	EvidencePhoto           = "photo"
)

// Block reason codes routed to escalation. These are policy outcomes, not
// errors.
const (
	BlockOutsideWindow     = "outside_window"
	BlockNonRefundable     = "nonrefundable"
	BlockDigitalDelivered  = "digital_delivered"
	BlockChargebackOpen    = "chargeback_open"
	BlockHighRisk          = "high_risk"
	BlockPaymentMethod     = "payment_method"
	BlockRefundRateLimited = "refund_rate_limited"
	BlockManualHold        = "manual_hold"
)

const (
	defaultFraudThreshold  = 80
	defaultRefundRateLimit = 3
)

// Config holds the externally supplied thresholds, all in integer minor
// units. The tiers must nest: low <= medium <= cap.
type Config struct {
	// CapMinor is the hard policy cap. No refund step ever exceeds it.
	CapMinor int
	// LowMinor bounds the auto-refund tier (amount <= low).
	LowMinor int
	// MediumMinor bounds the human-approval tier (low < amount <= medium).
	MediumMinor int
	// ExplanationThresholdMinor is the amount at which an explanation
	// becomes required evidence.
	ExplanationThresholdMinor int
	// ExplanationMinChars is the minimum ticket-text length accepted in
	// place of an explicit explanation.
	ExplanationMinChars int
	// PhotoThresholdMinor is the amount at which photo evidence becomes
	// required for physical or flagged items. Per-ticket overrides win.
	PhotoThresholdMinor int
}

// DefaultConfig returns the production defaults: $50 cap, $20 auto tier,
// $10 explanation threshold, $20 photo threshold.
func DefaultConfig() Config {
	return Config{
		CapMinor:                  5000,
		LowMinor:                  2000,
		MediumMinor:               5000,
		ExplanationThresholdMinor: 1000,
		ExplanationMinChars:       0,
		PhotoThresholdMinor:       2000,
	}
}

// Validate checks threshold ordering. Misconfigured tiers are a startup
// error, never discovered mid-case.
func (c Config) Validate() error {
	var errs []error
	if c.CapMinor <= 0 {
		errs = append(errs, fmt.Errorf("refund cap %d must be positive", c.CapMinor))
	}
	if c.LowMinor <= 0 {
		errs = append(errs, fmt.Errorf("low threshold %d must be positive", c.LowMinor))
	}
	if c.LowMinor > c.MediumMinor {
		errs = append(errs, fmt.Errorf("low threshold %d exceeds medium threshold %d", c.LowMinor, c.MediumMinor))
	}
	if c.MediumMinor > c.CapMinor {
		errs = append(errs, fmt.Errorf("medium threshold %d exceeds refund cap %d", c.MediumMinor, c.CapMinor))
	}
	if c.ExplanationMinChars < 0 {
		errs = append(errs, fmt.Errorf("explanation min chars %d must not be negative", c.ExplanationMinChars))
	}
	return errors.Join(errs...)
}

// Engine evaluates tickets against the refund policy. It is pure and
// reentrant; one instance serves all cases.
type Engine struct {
	cfg Config
}

// NewEngine creates a policy engine with validated configuration.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("policy config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Blocks screens ticket metadata for conditions that forbid automated
// refunds outright. It returns the first matching reason code; evaluation
// order is fixed so the same ticket always reports the same reason.
func Blocks(m ticket.Meta) (bool, string) {
	if m.OutsideWindow {
		return true, BlockOutsideWindow
	}
	if m.NonRefundable || m.GiftCard {
		return true, BlockNonRefundable
	}
	if m.DigitalItemDelivered && !m.EvidenceOfNonDelivery {
		return true, BlockDigitalDelivered
	}
	if m.ChargebackOpen {
		return true, BlockChargebackOpen
	}
	threshold := m.FraudThreshold
	if threshold <= 0 {
		threshold = defaultFraudThreshold
	}
	if m.FraudScore >= threshold {
		return true, BlockHighRisk
	}
	switch m.PaymentMethod {
	case "wire", "crypto":
		return true, BlockPaymentMethod
	}
	limit := m.RefundRateLimit
	if limit <= 0 {
		limit = defaultRefundRateLimit
	}
	if m.RecentRefundCount >= limit {
		return true, BlockRefundRateLimited
	}
	if m.ManualReviewHold {
		return true, BlockManualHold
	}
	return false, ""
}

// RequiredEvidence computes the evidence set for a request, deterministically
// from amount and metadata. Keys are de-duplicated with order preserved.
func (e *Engine) RequiredEvidence(amountMinor int, m ticket.Meta) []string {
	var needs []string
	needs = append(needs, EvidenceOrderID)

	explanationRequired := amountMinor >= e.cfg.ExplanationThresholdMinor
	// A physical item already on its way back with photo proof attached
	// does not additionally need a written explanation.
	if m.PhysicalItem && m.ReturnStatus.ReturnUnderway() && m.HasImages() {
		explanationRequired = false
	}
	if explanationRequired {
		needs = append(needs, EvidenceExplanation)
	}

	if m.PhysicalItem || m.RequiresReturn {
		needs = append(needs, EvidenceReturnInitiated)
	}

	photoThreshold := m.PhotoThresholdMinor
	if photoThreshold <= 0 {
		photoThreshold = e.cfg.PhotoThresholdMinor
	}
	if amountMinor >= photoThreshold && (m.EvidenceRequired || m.PhysicalItem) {
		needs = append(needs, EvidencePhoto)
	}

	seen := make(map[string]bool, len(needs))
	uniq := needs[:0]
	for _, k := range needs {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	return uniq
}

// missingEvidence returns the required keys the ticket does not satisfy.
// Ticket text long enough to count as an explanation satisfies that key even
// without an explicit metadata field.
func (e *Engine) missingEvidence(required []string, m ticket.Meta, text string) []string {
	trimmed := strings.TrimSpace(text)
	has := map[string]bool{
		EvidenceOrderID:         m.OrderID != "",
		EvidenceExplanation:     m.Explanation != "" || (trimmed != "" && len(trimmed) >= e.cfg.ExplanationMinChars),
		EvidencePhoto:           m.HasImages(),
		EvidenceReturnInitiated: m.ReturnStatus.ReturnUnderway(),
	}
	var missing []string
	for _, k := range required {
		if !has[k] {
			missing = append(missing, k)
		}
	}
	return missing
}

// Evaluate runs the full decision procedure for a ticket and returns either
// a plan with no missing evidence, or no plan with the exact evidence to
// request from the customer. Evaluation order is fixed: cap, block guard,
// evidence, tier.
func (e *Engine) Evaluate(t *ticket.Ticket) (*plan.Plan, []string) {
	amount := t.Meta.AmountMinor
	if amount < 1 {
		amount = 1
	}

	if amount > e.cfg.CapMinor {
		return e.escalationPlan(t, fmt.Sprintf("requested amount %d exceeds policy cap %d", amount, e.cfg.CapMinor)), nil
	}

	if blocked, reason := Blocks(t.Meta); blocked {
		return e.escalationPlan(t, "refund blocked by policy: "+reason), nil
	}

	required := e.RequiredEvidence(amount, t.Meta)
	if missing := e.missingEvidence(required, t.Meta, t.Text); len(missing) > 0 {
		return nil, missing
	}

	switch {
	case amount <= e.cfg.LowMinor:
		return e.refundPlan(t, amount, false), nil
	case amount <= e.cfg.MediumMinor:
		return e.refundPlan(t, amount, true), nil
	default:
		// Unreachable with default thresholds (medium == cap) but the
		// boundary is kept symmetric for configurations where medium < cap.
		return e.escalationPlan(t, fmt.Sprintf("amount %d above approval tier", amount)), nil
	}
}

func (e *Engine) refundPlan(t *ticket.Ticket, amountMinor int, requiresApproval bool) *plan.Plan {
	if amountMinor > e.cfg.CapMinor {
		amountMinor = e.cfg.CapMinor
	}
	customer := t.CustomerID
	if customer == "" {
		customer = "unknown"
	}
	return &plan.Plan{
		TicketID: t.ID,
		Steps: []plan.Step{{
			Kind: plan.KindRefund,
			Refund: &plan.RefundArgs{
				CustomerID:  customer,
				OrderID:     t.Meta.OrderID,
				AmountMinor: amountMinor,
				Reason:      "policy goodwill",
			},
			Guard:     fmt.Sprintf("amount_minor <= %d", e.cfg.CapMinor),
			Rationale: "within refund window and cap",
		}},
		RequiresApproval: requiresApproval,
	}
}

func (e *Engine) escalationPlan(t *ticket.Ticket, reason string) *plan.Plan {
	return &plan.Plan{
		TicketID: t.ID,
		Steps: []plan.Step{{
			Kind: plan.KindNotify,
			Notify: &plan.NotifyArgs{
				Channel: "email",
				Subject: "ticket " + t.ID + " escalated",
				Message: reason,
			},
			Guard:     "escalation only, no funds move",
			Rationale: reason,
		}},
		RequiresApproval: false,
	}
}
