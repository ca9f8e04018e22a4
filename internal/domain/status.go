package domain

// Status tags the outcome of handling one inbound message. Every handler
// path returns exactly one of these; they surface in the webhook response
// body and in metrics.
type Status string

const (
	StatusInitialTemplateSent Status = "initial_template_sent"
	StatusRestarted           Status = "restarted"
	StatusBackToPrevious      Status = "back_to_previous"
	StatusNoPreviousState     Status = "no_previous_state"
	StatusTemplateSent        Status = "template_sent"
	StatusMessageProcessed    Status = "message_processed"
	StatusInvalidInput        Status = "invalid_input"
	StatusError               Status = "error"

	// Payment sub-flow outcomes.
	StatusAwaitingPaymentMethod  Status = "awaiting_payment_method"
	StatusEndOfTreePaymentPrompt Status = "end_of_tree_payment_prompt"
	StatusAwaitingNumber         Status = "awaiting_number"
	StatusInvalidNumber          Status = "invalid_number"
	StatusAwaitingConfirmation   Status = "awaiting_confirmation"
	StatusInvalidConfirmation    Status = "invalid_confirmation"
	StatusRestartedPayment       Status = "restarted_payment"
	StatusPaymentInitiated       Status = "payment_initiated"
	StatusPaymentFailed          Status = "payment_failed"
)
