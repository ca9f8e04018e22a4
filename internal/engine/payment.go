package engine

import (
	"context"
	"fmt"
	"strings"

	"zivai/internal/domain"
)

const (
	paymentWelcomeText = "Welcome to our payment system!\nNote: We currently support only EcoCash payments.\n\nPlease enter your EcoCash number (e.g., 0771234567):"
	invalidNumberText  = "Invalid number. Enter a valid Zimbabwean EcoCash number (e.g., 0771234567):"
	retryNumberText    = "Let's try again. Please enter your EcoCash number (e.g., 0771234567):"
	yesOrNoText        = "Please reply 'yes' to confirm or 'no' to restart."
)

// validNumberPrefixes are the mobile-money prefixes accepted for payment.
var validNumberPrefixes = []string{"077", "078", "071"}

// validPaymentNumber checks a candidate EcoCash number: exactly ten digits
// with an accepted prefix.
func validPaymentNumber(number string) bool {
	if len(number) != 10 {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	for _, p := range validNumberPrefixes {
		if strings.HasPrefix(number, p) {
			return true
		}
	}
	return false
}

// enterPaymentFlow puts the session into the payment sub-flow, remembering
// the message that triggered it so it can be answered after settlement.
func (e *Engine) enterPaymentFlow(ctx context.Context, in Inbound, sess *domain.Session) {
	sess.Payment = &domain.PaymentState{Step: domain.StepAwaitingNumber}
	sess.PendingQuestion = in.Body
	e.saveSession(ctx, in.Sender, sess)
}

// handlePayment advances the nested payment state machine. It owns the turn
// completely: whatever it returns is the webhook's outcome.
func (e *Engine) handlePayment(ctx context.Context, in Inbound, message string, sess *domain.Session) domain.Status {
	switch sess.Payment.Step {
	case domain.StepAwaitingNumber:
		return e.handleAwaitingNumber(ctx, in, message, sess)
	case domain.StepAwaitingConfirmation:
		return e.handleAwaitingConfirmation(ctx, in, message, sess)
	default:
		// Unknown step from an older deployment: collect the number again.
		sess.Payment = &domain.PaymentState{Step: domain.StepAwaitingNumber}
		e.saveSession(ctx, in.Sender, sess)
		e.sendText(ctx, in.Sender, paymentWelcomeText)
		return domain.StatusAwaitingNumber
	}
}

func (e *Engine) handleAwaitingNumber(ctx context.Context, in Inbound, message string, sess *domain.Session) domain.Status {
	if !validPaymentNumber(message) {
		e.sendText(ctx, in.Sender, invalidNumberText)
		return domain.StatusInvalidNumber
	}

	sess.Payment.Phone = message
	sess.Payment.Step = domain.StepAwaitingConfirmation
	e.saveSession(ctx, in.Sender, sess)

	e.sendText(ctx, in.Sender, fmt.Sprintf(
		"Confirm payment info:\nEcoCash Number: %s\nAmount: USD %.2f\n\nReply 'yes' to confirm or 'no' to restart.",
		message, e.amount))
	return domain.StatusAwaitingConfirmation
}

func (e *Engine) handleAwaitingConfirmation(ctx context.Context, in Inbound, message string, sess *domain.Session) domain.Status {
	switch message {
	case "yes":
		phone := sess.Payment.Phone
		res, err := e.payments.Initiate(ctx, in.Sender, phone, e.amount)
		if err != nil {
			// Sub-state is retained so the user can just reply "yes" again.
			e.logger.Error("payment initiation failed", "sender", in.Sender, "error", err)
			e.sendText(ctx, in.Sender, fmt.Sprintf(
				"Failed to initiate payment: %v\nPlease try again or contact support.", err))
			return domain.StatusPaymentFailed
		}

		// Clear the sub-flow but keep the pending question for after
		// settlement.
		sess.Payment = nil
		e.saveSession(ctx, in.Sender, sess)

		e.sendText(ctx, in.Sender, fmt.Sprintf(
			"Payment request sent to %s via EcoCash.\nPlease complete the payment on your phone.", phone))
		e.poller.Start(in.Sender, res.PollURL)
		return domain.StatusPaymentInitiated

	case "no":
		// Declining does not abandon the flow, it re-collects the number.
		sess.Payment = &domain.PaymentState{Step: domain.StepAwaitingNumber}
		e.saveSession(ctx, in.Sender, sess)
		e.sendText(ctx, in.Sender, retryNumberText)
		return domain.StatusRestartedPayment

	default:
		e.sendText(ctx, in.Sender, yesOrNoText)
		return domain.StatusInvalidConfirmation
	}
}
