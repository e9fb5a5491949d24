package caseflow

import "strings"

// Decision tokens accepted on resume. Anything else maps to Pending.
const (
	TokenApprove = "approve"
	TokenDeny    = "deny"
	TokenDefer   = "defer"
)

// ParseDecision maps an external decision token to the tri-state Decision.
// Unknown tokens are treated as a deferral, never as a denial.
func ParseDecision(token string) Decision {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case TokenApprove, "approved", "yes", "y":
		return DecisionApproved
	case TokenDeny, "denied", "no", "n":
		return DecisionDenied
	default:
		return DecisionPending
	}
}

// gateOutcome is the approval gate's verdict for the current pass.
type gateOutcome int

const (
	gateProceed gateOutcome = iota
	gateSuspend
)

// resolveApproval applies the gate rules in order:
//
//  1. No plan: nothing to approve, decision stays Pending.
//  2. Auto-approve: a no-approval plan that moves money commits Approved
//     without suspending.
//  3. Escalation-only plans leave the decision Pending; execution proceeds
//     anyway because escalation needs no sign-off.
//  4. A plan requiring approval proceeds if a decision was already committed
//     (this is a resumed pass), otherwise suspends for a human.
//
// It mutates only st.Decision.
func resolveApproval(st *State) gateOutcome {
	p := st.Plan
	if p == nil {
		return gateProceed
	}

	if !p.RequiresApproval {
		if p.HasRefund() {
			st.Decision = DecisionApproved
		}
		return gateProceed
	}

	if st.Decision.Decided() {
		return gateProceed
	}
	return gateSuspend
}
