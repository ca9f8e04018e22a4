package domain

import "time"

// PaymentStep identifies the position inside the payment sub-flow.
type PaymentStep string

const (
	// StepAwaitingNumber means the bot asked for a mobile-money number.
	StepAwaitingNumber PaymentStep = "awaiting_number"
	// StepAwaitingConfirmation means a valid number was collected and the
	// bot asked for a yes/no confirmation.
	StepAwaitingConfirmation PaymentStep = "awaiting_confirmation"
)

// PaymentState is the nested payment sub-flow state. Its presence on a
// Session pre-empts normal tree navigation.
type PaymentState struct {
	Step PaymentStep `json:"step"`
	// Phone is the candidate mobile-money number, set once validated.
	Phone string `json:"phone,omitempty"`
}

// Session is the per-sender conversational state. One instance exists per
// distinct sender identifier; it is persisted after every inbound message
// and never cached across requests.
type Session struct {
	// CurrentNodeID references a node in the immutable decision tree.
	CurrentNodeID string `json:"current_node_id"`

	// History is the stack of previously visited node IDs, most recent
	// last. "back" pops it.
	History []string `json:"history,omitempty"`

	// LastTemplates are the template IDs most recently sent, re-sent when
	// an unpaid user owes a menu selection.
	LastTemplates []string `json:"last_templates,omitempty"`

	// Payment, when non-nil, means the payment sub-flow is active.
	Payment *PaymentState `json:"payment,omitempty"`

	// PaidUntil gates the AI fallback: set to now+30d on settlement.
	PaidUntil *time.Time `json:"paid_until,omitempty"`

	// PendingQuestion is the message that triggered payment entry, kept so
	// it can be answered once payment completes.
	PendingQuestion string `json:"pending_question,omitempty"`
}

// NewSession creates a fresh session at the tree root.
func NewSession(rootID string) *Session {
	return &Session{CurrentNodeID: rootID}
}

// Reset returns the session to the root with empty history and no payment
// sub-flow, as "start over" demands.
func (s *Session) Reset(rootID string) {
	s.CurrentNodeID = rootID
	s.History = nil
	s.LastTemplates = nil
	s.Payment = nil
	s.PendingQuestion = ""
}

// Paid reports whether the paid-access window is open at the given instant.
func (s *Session) Paid(now time.Time) bool {
	return s.PaidUntil != nil && now.Before(*s.PaidUntil)
}

// Push records the current node on the back-stack before descending.
func (s *Session) Push(nodeID string) {
	s.History = append(s.History, nodeID)
}

// Pop removes and returns the most recently visited node ID. The second
// return is false when the user is already at the beginning.
func (s *Session) Pop() (string, bool) {
	if len(s.History) == 0 {
		return "", false
	}
	last := s.History[len(s.History)-1]
	s.History = s.History[:len(s.History)-1]
	return last, true
}
