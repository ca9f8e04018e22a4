package ports

import "context"

// Messenger delivers outbound messages. Sends are fire-and-forget from the
// engine's point of view: failures are logged by the caller, never retried
// and never surfaced to the user.
type Messenger interface {
	// SendText delivers a free-text message.
	SendText(ctx context.Context, recipient, text string) error

	// SendTemplate delivers one or more pre-approved templates in order,
	// filling the display-name variable.
	SendTemplate(ctx context.Context, recipient, displayName string, templateIDs []string) error
}

// Generator produces a free-form AI reply for paid users.
type Generator interface {
	// Generate builds a reply from the message, recent conversation
	// history and optional retrieval context. Implementations return a
	// user-safe fallback string instead of propagating provider errors.
	Generate(ctx context.Context, message string, history []HistoryTurn, retrieved []string) (string, error)
}

// HistoryTurn is the minimal history shape the Generator consumes.
type HistoryTurn struct {
	Role string
	Text string
}

// Retriever fetches similar past content to ground the Generator's reply.
// It is optional: a nil Retriever degrades to history-only prompts.
type Retriever interface {
	// Context returns relevant snippets for the query, best match first.
	Context(ctx context.Context, sender, query string, limit int) ([]string, error)
}

// InitiateResult is the outcome of starting a mobile-money payment.
type InitiateResult struct {
	// PollURL is where the settlement status can be checked.
	PollURL string
}

// PaymentStatus is a point-in-time settlement check result.
type PaymentStatus struct {
	// Paid is true once the money has settled.
	Paid bool
	// Status is the gateway's raw status word, lowercased
	// (e.g. "sent", "paid", "cancelled", "failed", "awaiting delivery").
	Status string
}

// PaymentGateway starts mobile-money payments and reports their settlement.
type PaymentGateway interface {
	// Initiate pushes a payment prompt to the payer's phone.
	Initiate(ctx context.Context, accountRef, payerPhone string, amount float64) (InitiateResult, error)

	// CheckStatus polls a previously returned poll URL.
	CheckStatus(ctx context.Context, pollURL string) (PaymentStatus, error)
}
