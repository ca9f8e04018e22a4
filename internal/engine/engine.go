// Package engine implements the conversation state machine: tree traversal,
// navigation commands, the payment sub-flow and the paid AI fallback.
//
// Each inbound message is one unit of work. The engine reads the sender's
// session from the store, decides the next state and the single outbound
// action, persists the session and returns a tagged status. Delivery
// failures are logged and swallowed; from the state machine's point of view
// the message has already been processed.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"zivai/internal/domain"
	"zivai/internal/logging"
	"zivai/internal/ports"
	"zivai/internal/tree"
)

// defaultPaymentTemplate is the payment-method menu sent on sub-flow entry.
const defaultPaymentTemplate = "HX9a38645ef48259d6bb3556f74236e980"

// defaultTriggerWords cause an unpaid user's free text to enter the payment
// sub-flow.
var defaultTriggerWords = []string{"pay", "payment", "subscribe", "access"}

const (
	alreadyAtBeginningText = "You're already at the beginning. Type 'Start Over' to restart."
	invalidMessageText     = "Please respond with a valid message."
	chooseOptionText       = "Please choose one of the menu options to continue."
	premiumPitchText       = "To get personalized AI responses and continue our conversation, please subscribe to our premium service."
)

// Inbound is one webhook message.
type Inbound struct {
	Sender string // stable sender identifier (e.g. "whatsapp:+2637...")
	Name   string // display name, used to fill template variables
	Body   string // raw message text
}

// Engine is the conversation state machine.
type Engine struct {
	tree      *tree.Tree
	store     ports.SessionStore
	messenger ports.Messenger
	generator ports.Generator
	payments  ports.PaymentGateway
	retriever ports.Retriever
	poller    *Poller

	amount          float64
	paymentTemplate string
	triggerWords    []string

	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source. Used by tests to exercise the
// paid-access expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRetriever enables vector-retrieval context for AI replies.
func WithRetriever(r ports.Retriever) Option {
	return func(e *Engine) { e.retriever = r }
}

// WithAmount sets the subscription price.
func WithAmount(amount float64) Option {
	return func(e *Engine) { e.amount = amount }
}

// WithPaymentTemplate overrides the payment-method menu template.
func WithPaymentTemplate(id string) Option {
	return func(e *Engine) { e.paymentTemplate = id }
}

// WithTriggerWords overrides the payment trigger-word set.
func WithTriggerWords(words []string) Option {
	return func(e *Engine) { e.triggerWords = words }
}

// WithPoller overrides the settlement poller. Tests use this to shrink the
// poll interval.
func WithPoller(p *Poller) Option {
	return func(e *Engine) { e.poller = p }
}

// New wires the state machine to its collaborators.
func New(t *tree.Tree, store ports.SessionStore, messenger ports.Messenger, generator ports.Generator, payments ports.PaymentGateway, opts ...Option) *Engine {
	e := &Engine{
		tree:            t,
		store:           store,
		messenger:       messenger,
		generator:       generator,
		payments:        payments,
		amount:          0.10,
		paymentTemplate: defaultPaymentTemplate,
		triggerWords:    defaultTriggerWords,
		logger:          logging.NewNop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.poller == nil {
		e.poller = NewPoller(store, messenger, payments, WithPollerLogger(e.logger), WithPollerClock(e.now))
	}
	return e
}

// Poller returns the settlement poller, so the host can drain it on
// shutdown.
func (e *Engine) Poller() *Poller { return e.poller }

// Handle processes one inbound message and returns the outcome tag.
// Transition order is fixed: bootstrap, history log, "start over", "back",
// payment pre-emption, keyword match, free-form handling.
func (e *Engine) Handle(ctx context.Context, in Inbound) domain.Status {
	if in.Sender == "" || strings.TrimSpace(in.Body) == "" {
		if in.Sender != "" {
			e.sendText(ctx, in.Sender, invalidMessageText)
		}
		return domain.StatusInvalidInput
	}

	message := strings.ToLower(strings.TrimSpace(in.Body))
	log := e.logger.With("sender", in.Sender)

	sess, err := e.store.Load(ctx, in.Sender)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		// Degraded store: treat the sender as new rather than failing the
		// webhook. The session will be rewritten on the next save.
		log.Error("session load failed", "error", err)
	}

	// First contact: create the session at the root and send the opening
	// templates. The bootstrap message itself is not logged to history.
	if sess == nil || err != nil {
		root := e.tree.Root()
		sess = domain.NewSession(root.ID)
		e.saveSession(ctx, in.Sender, sess)
		e.sendTemplates(ctx, in, root.Templates)
		return domain.StatusInitialTemplateSent
	}

	if err := e.store.AppendHistory(ctx, in.Sender, domain.RoleUser, message); err != nil {
		log.Warn("history append failed", "error", err)
	}

	if message == "start over" {
		root := e.tree.Root()
		sess.Reset(root.ID)
		e.saveSession(ctx, in.Sender, sess)
		e.sendTemplates(ctx, in, root.Templates)
		return domain.StatusRestarted
	}

	if message == "back" {
		prevID, ok := sess.Pop()
		if !ok {
			e.sendText(ctx, in.Sender, alreadyAtBeginningText)
			return domain.StatusNoPreviousState
		}
		prev, err := e.tree.Node(prevID)
		if err != nil {
			// Stale node ID from an older tree deployment: restart.
			log.Warn("history references unknown node, restarting", "node", prevID)
			return e.restart(ctx, in, sess)
		}
		sess.CurrentNodeID = prev.ID
		e.saveSession(ctx, in.Sender, sess)
		e.sendTemplates(ctx, in, prev.Templates)
		return domain.StatusBackToPrevious
	}

	// An active payment sub-flow pre-empts tree navigation entirely.
	if sess.Payment != nil {
		return e.handlePayment(ctx, in, message, sess)
	}

	node, err := e.tree.Node(sess.CurrentNodeID)
	if err != nil {
		log.Warn("session references unknown node, restarting", "node", sess.CurrentNodeID)
		return e.restart(ctx, in, sess)
	}

	// Ordered keyword match, first declared wins.
	if t, ok := node.Match(message); ok {
		sess.Push(node.ID)
		sess.CurrentNodeID = t.To.ID
		sess.LastTemplates = t.To.Templates
		e.saveSession(ctx, in.Sender, sess)
		e.sendTemplates(ctx, in, t.To.Templates)
		return domain.StatusTemplateSent
	}

	// No keyword match: free-form handling, gated by paid access.
	if sess.Paid(e.now()) {
		return e.handleFreeform(ctx, in, message)
	}

	if containsAny(message, e.triggerWords) {
		e.enterPaymentFlow(ctx, in, sess)
		e.sendTemplates(ctx, in, []string{e.paymentTemplate})
		return domain.StatusAwaitingPaymentMethod
	}

	// End of tree: an unpaid user with nowhere left to navigate gets the
	// monetization prompt instead of the generic menu nudge.
	if node.Leaf() {
		e.enterPaymentFlow(ctx, in, sess)
		e.sendText(ctx, in.Sender, premiumPitchText)
		e.sendTemplates(ctx, in, []string{e.paymentTemplate})
		return domain.StatusEndOfTreePaymentPrompt
	}

	if len(sess.LastTemplates) > 0 {
		e.sendTemplates(ctx, in, sess.LastTemplates)
	} else {
		e.sendText(ctx, in.Sender, chooseOptionText)
	}
	return domain.StatusMessageProcessed
}

// restart resets the session to the root. Used when a persisted node ID no
// longer exists in the loaded tree.
func (e *Engine) restart(ctx context.Context, in Inbound, sess *domain.Session) domain.Status {
	root := e.tree.Root()
	sess.Reset(root.ID)
	e.saveSession(ctx, in.Sender, sess)
	e.sendTemplates(ctx, in, root.Templates)
	return domain.StatusRestarted
}

// handleFreeform answers a paid user's unmatched message with the AI
// generator, grounded on recent history and optional retrieval context.
func (e *Engine) handleFreeform(ctx context.Context, in Inbound, message string) domain.Status {
	log := e.logger.With("sender", in.Sender)

	history, err := e.store.History(ctx, in.Sender)
	if err != nil {
		log.Warn("history fetch failed", "error", err)
	}
	turns := make([]ports.HistoryTurn, 0, len(history))
	for _, h := range history {
		turns = append(turns, ports.HistoryTurn{Role: string(h.Role), Text: h.Text})
	}

	var retrieved []string
	if e.retriever != nil {
		retrieved, err = e.retriever.Context(ctx, in.Sender, message, 3)
		if err != nil {
			log.Warn("retrieval context failed", "error", err)
		}
	}

	reply, err := e.generator.Generate(ctx, message, turns, retrieved)
	if err != nil {
		// Generators are expected to return their own fallback text, but
		// guard anyway so the user always hears back.
		log.Error("generation failed", "error", err)
		reply = "Sorry, I encountered an error while processing your request."
	}

	e.sendText(ctx, in.Sender, sanitizeReply(reply))
	if err := e.store.AppendHistory(ctx, in.Sender, domain.RoleAssistant, reply); err != nil {
		log.Warn("history append failed", "error", err)
	}
	return domain.StatusMessageProcessed
}

// saveSession persists and logs failures. A lost save degrades to a stale
// session on the next message rather than an error reply now.
func (e *Engine) saveSession(ctx context.Context, sender string, sess *domain.Session) {
	if err := e.store.Save(ctx, sender, sess); err != nil {
		e.logger.Error("session save failed", "sender", sender, "error", err)
	}
}

func (e *Engine) sendText(ctx context.Context, recipient, text string) {
	if err := e.messenger.SendText(ctx, recipient, text); err != nil {
		e.logger.Error("text send failed", "recipient", recipient, "error", err)
	}
}

func (e *Engine) sendTemplates(ctx context.Context, in Inbound, templateIDs []string) {
	if len(templateIDs) == 0 {
		return
	}
	if err := e.messenger.SendTemplate(ctx, in.Sender, in.Name, templateIDs); err != nil {
		e.logger.Error("template send failed", "recipient", in.Sender, "error", err)
	}
}

func containsAny(message string, words []string) bool {
	for _, w := range words {
		if strings.Contains(message, w) {
			return true
		}
	}
	return false
}

// markdownMarks matches the emphasis, heading and code markers the LLM tends
// to emit; WhatsApp renders them literally, so they are stripped.
var markdownMarks = regexp.MustCompile("[#*_`]+")

func sanitizeReply(s string) string {
	return strings.TrimSpace(markdownMarks.ReplaceAllString(s, ""))
}
