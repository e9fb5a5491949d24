// Package plan defines the action plan a case proposes and the results of
// executing it. The tool set is closed and known at compile time, so steps
// are tagged variants with per-kind argument structs rather than a
// string-keyed bag.
package plan

import (
	"errors"
	"fmt"
)

// Kind identifies which tool a step invokes.
type Kind string

const (
	KindRefund        Kind = "refund"
	KindNotify        Kind = "notify"
	KindToggleFeature Kind = "toggle_feature"
	KindFileBug       Kind = "file_bug"
)

// RefundArgs are the arguments for a refund step. AmountMinor is in integer
// minor units and must stay within 1..cap; the cap is enforced again at
// validation time so a mis-built plan never reaches the payment provider.
type RefundArgs struct {
	CustomerID  string `json:"customer_id"`
	OrderID     string `json:"order_id"`
	AmountMinor int    `json:"amount_minor"`
	Reason      string `json:"reason"`
}

// NotifyArgs are the arguments for a notify step. An empty Recipient means
// the executor's configured escalation contact.
type NotifyArgs struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient,omitempty"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// ToggleFeatureArgs are the arguments for a toggle_feature step.
type ToggleFeatureArgs struct {
	Flag       string `json:"flag"`
	Enabled    bool   `json:"enabled"`
	CustomerID string `json:"customer_id,omitempty"`
}

// FileBugArgs are the arguments for a file_bug step.
type FileBugArgs struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Severity string `json:"severity,omitempty"`
}

// Step is one tool invocation in a plan. Exactly one argument struct must be
// set and it must match Kind. Guard is a human-readable precondition shown
// to approvers; Rationale explains why the step was proposed.
type Step struct {
	Kind          Kind               `json:"kind"`
	Refund        *RefundArgs        `json:"refund,omitempty"`
	Notify        *NotifyArgs        `json:"notify,omitempty"`
	ToggleFeature *ToggleFeatureArgs `json:"toggle_feature,omitempty"`
	FileBug       *FileBugArgs       `json:"file_bug,omitempty"`
	Guard         string             `json:"guard,omitempty"`
	Rationale     string             `json:"rationale,omitempty"`
}

// Validate checks the step's arguments against its kind's schema.
// refundCapMinor bounds refund amounts; it comes from policy configuration.
func (s Step) Validate(refundCapMinor int) error {
	switch s.Kind {
	case KindRefund:
		if s.Refund == nil {
			return errors.New("refund step missing refund args")
		}
		a := s.Refund
		if a.CustomerID == "" {
			return errors.New("refund: customer_id is required")
		}
		if a.OrderID == "" {
			return errors.New("refund: order_id is required")
		}
		if a.AmountMinor < 1 || a.AmountMinor > refundCapMinor {
			return fmt.Errorf("refund: amount_minor %d out of range 1..%d", a.AmountMinor, refundCapMinor)
		}
		if a.Reason == "" {
			return errors.New("refund: reason is required")
		}
	case KindNotify:
		if s.Notify == nil {
			return errors.New("notify step missing notify args")
		}
		if s.Notify.Channel == "" {
			return errors.New("notify: channel is required")
		}
		if s.Notify.Message == "" {
			return errors.New("notify: message is required")
		}
	case KindToggleFeature:
		if s.ToggleFeature == nil {
			return errors.New("toggle_feature step missing toggle_feature args")
		}
		if s.ToggleFeature.Flag == "" {
			return errors.New("toggle_feature: flag is required")
		}
	case KindFileBug:
		if s.FileBug == nil {
			return errors.New("file_bug step missing file_bug args")
		}
		if s.FileBug.Title == "" {
			return errors.New("file_bug: title is required")
		}
	default:
		return fmt.Errorf("unknown tool kind %q", s.Kind)
	}
	return nil
}

// Plan is an ordered set of steps proposed for one ticket. A case holds at
// most one plan at a time.
type Plan struct {
	TicketID         string `json:"ticket_id"`
	Steps            []Step `json:"steps"`
	RequiresApproval bool   `json:"requires_approval"`
}

// HasRefund reports whether any step moves money.
func (p *Plan) HasRefund() bool {
	if p == nil {
		return false
	}
	for _, s := range p.Steps {
		if s.Kind == KindRefund {
			return true
		}
	}
	return false
}

// EscalationOnly reports whether the plan contains no refund step. Such
// plans run without approval because they only route the case to a human.
func (p *Plan) EscalationOnly() bool {
	return p != nil && len(p.Steps) > 0 && !p.HasRefund()
}

// Result records the outcome of executing one step. Failed steps stay in the
// result set; execution never aborts siblings.
type Result struct {
	Kind           Kind           `json:"kind"`
	OK             bool           `json:"ok"`
	Payload        map[string]any `json:"payload,omitempty"`
	Err            string         `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}
