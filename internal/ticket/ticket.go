// Package ticket defines the immutable support-ticket input model.
package ticket

import "time"

// Channel identifies where a ticket came from.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
	ChannelSlack Channel = "slack"
	ChannelForm  Channel = "form"
)

// Ticket is the raw customer request. It is created once at ingestion and
// never mutated afterwards; every later stage reads it through the case state.
type Ticket struct {
	ID         string    `json:"id"`
	Channel    Channel   `json:"channel"`
	CreatedAt  time.Time `json:"created_at"`
	CustomerID string    `json:"customer_id,omitempty"`
	Text       string    `json:"text"`
	Meta       Meta      `json:"meta"`
}

// ReturnStatus tracks where a physical return is in its lifecycle.
type ReturnStatus string

const (
	ReturnNone      ReturnStatus = ""
	ReturnInitiated ReturnStatus = "initiated"
	ReturnReceived  ReturnStatus = "received"
)

// ReturnUnderway reports whether a return has at least been started.
func (s ReturnStatus) ReturnUnderway() bool {
	return s == ReturnInitiated || s == ReturnReceived
}

// Meta carries the structured facts attached to a ticket. The original
// intake format was a free-form key/value bag; named fields avoid the silent
// key-typo bugs that came with it. Anything the intake pipeline sends that we
// do not model yet lands in Extra.
type Meta struct {
	// Refund request facts. Amounts are integer minor units (cents).
	AmountMinor int      `json:"amount_minor,omitempty"`
	OrderID     string   `json:"order_id,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Images      []string `json:"images,omitempty"`

	// Evidence shape of the purchased item.
	PhysicalItem     bool         `json:"physical_item,omitempty"`
	RequiresReturn   bool         `json:"requires_return,omitempty"`
	ReturnStatus     ReturnStatus `json:"return_status,omitempty"`
	EvidenceRequired bool         `json:"evidence_required,omitempty"`

	// PhotoThresholdMinor overrides the configured photo threshold for this
	// ticket when positive (set by intake for high-risk SKUs).
	PhotoThresholdMinor int `json:"photo_threshold_minor,omitempty"`

	// Policy-block signals.
	OutsideWindow         bool   `json:"outside_window,omitempty"`
	NonRefundable         bool   `json:"nonrefundable,omitempty"`
	GiftCard              bool   `json:"gift_card,omitempty"`
	DigitalItemDelivered  bool   `json:"digital_item_delivered,omitempty"`
	EvidenceOfNonDelivery bool   `json:"evidence_of_non_delivery,omitempty"`
	ChargebackOpen        bool   `json:"chargeback_open,omitempty"`
	FraudScore            int    `json:"fraud_score,omitempty"`
	FraudThreshold        int    `json:"fraud_threshold,omitempty"`
	PaymentMethod         string `json:"payment_method,omitempty"`
	RecentRefundCount     int    `json:"recent_refund_count,omitempty"`
	RefundRateLimit       int    `json:"refund_rate_limit,omitempty"`
	ManualReviewHold      bool   `json:"manual_review_hold,omitempty"`

	// Extra is the escape hatch for intake fields we do not model yet.
	Extra map[string]string `json:"extra,omitempty"`
}

// HasImages reports whether at least one image is attached.
func (m Meta) HasImages() bool { return len(m.Images) > 0 }
