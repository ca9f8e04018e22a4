package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zivai/internal/domain"
	"zivai/internal/logging"
	"zivai/internal/observability"
	"zivai/internal/ports"
)

const (
	// pollInterval and pollAttempts bound the settlement check to a
	// two-minute ceiling.
	pollInterval = 10 * time.Second
	pollAttempts = 12

	// paidAccessDuration is the subscription window opened on settlement.
	paidAccessDuration = 30 * 24 * time.Hour
)

const (
	paymentSuccessText      = "Payment successful! Thank you for your purchase. You now have full access for 30 days."
	paymentCancelledText    = "Payment cancelled."
	paymentAwaitingText     = "Payment received, waiting for delivery confirmation."
	paymentNotConfirmedText = "Payment not confirmed yet. Please check your EcoCash menu to complete it manually."
)

// Poller watches initiated payments until they settle. Each task runs
// detached from the webhook request that started it and reports its outcome
// with exactly one outbound message, unless it is cancelled first.
//
// Tasks are keyed by sender: starting a new poll for a sender cancels the
// stale one, so a user who restarts the payment flow never receives two
// settlement messages.
type Poller struct {
	store     ports.SessionStore
	messenger ports.Messenger
	payments  ports.PaymentGateway

	interval time.Duration
	attempts int
	paidFor  time.Duration

	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	active map[string]*pollTask
	wg     sync.WaitGroup
}

type pollTask struct {
	cancel context.CancelFunc
}

// PollerOption configures the Poller.
type PollerOption func(*Poller)

// WithPollerLogger sets the structured logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

// WithPollerClock overrides the time source.
func WithPollerClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

// WithPollerSchedule overrides the interval and attempt budget. Tests use
// this to avoid real ten-second waits.
func WithPollerSchedule(interval time.Duration, attempts int) PollerOption {
	return func(p *Poller) {
		p.interval = interval
		p.attempts = attempts
	}
}

// NewPoller creates a settlement poller.
func NewPoller(store ports.SessionStore, messenger ports.Messenger, payments ports.PaymentGateway, opts ...PollerOption) *Poller {
	p := &Poller{
		store:     store,
		messenger: messenger,
		payments:  payments,
		interval:  pollInterval,
		attempts:  pollAttempts,
		paidFor:   paidAccessDuration,
		logger:    logging.NewNop(),
		now:       time.Now,
		active:    make(map[string]*pollTask),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches a settlement watch for the sender, replacing any watch
// still running for them. It returns immediately; the task lives on a
// background context, not the webhook request's.
func (p *Poller) Start(sender, pollURL string) {
	ctx, cancel := context.WithCancel(context.Background())
	task := &pollTask{cancel: cancel}

	p.mu.Lock()
	if prev, ok := p.active[sender]; ok {
		prev.cancel()
	}
	p.active[sender] = task
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.finish(sender, task)
		p.run(ctx, sender, pollURL)
	}()
}

// finish clears the sender's slot unless a newer task already claimed it.
func (p *Poller) finish(sender string, task *pollTask) {
	task.cancel()
	p.mu.Lock()
	if p.active[sender] == task {
		delete(p.active, sender)
	}
	p.mu.Unlock()
}

// Drain waits for every in-flight poll task to finish. Called on shutdown.
func (p *Poller) Drain() {
	p.mu.Lock()
	for _, task := range p.active {
		task.cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context, sender, pollURL string) {
	log := p.logger.With("sender", sender, "poll_url", pollURL)

	for i := 0; i < p.attempts; i++ {
		status, err := p.payments.CheckStatus(ctx, pollURL)
		if err != nil {
			log.Warn("settlement check failed", "attempt", i+1, "error", err)
		} else if message, outcome, terminal := p.evaluate(ctx, sender, status); terminal {
			log.Info("settlement poll finished", "outcome", outcome, "attempts", i+1)
			observability.PaymentPollsTotal.WithLabelValues(outcome).Inc()
			p.send(ctx, sender, message)
			return
		}

		select {
		case <-ctx.Done():
			// Superseded by a newer payment flow: say nothing, the new
			// task owns the conversation now.
			log.Info("settlement poll cancelled")
			observability.PaymentPollsTotal.WithLabelValues("cancelled_poll").Inc()
			return
		case <-time.After(p.interval):
		}
	}

	log.Info("settlement poll exhausted", "attempts", p.attempts)
	observability.PaymentPollsTotal.WithLabelValues("unconfirmed").Inc()
	p.send(ctx, sender, paymentNotConfirmedText)
}

// evaluate maps a gateway status onto the user-facing outcome. The paid
// outcome also opens the 30-day access window on the session.
func (p *Poller) evaluate(ctx context.Context, sender string, status ports.PaymentStatus) (message, outcome string, terminal bool) {
	switch {
	case status.Paid:
		p.markPaid(ctx, sender)
		return paymentSuccessText, "paid", true
	case status.Status == "cancelled":
		return paymentCancelledText, "cancelled", true
	case status.Status == "failed" || status.Status == "reversed":
		return fmt.Sprintf("Payment failed. Status: %s", status.Status), "failed", true
	case status.Status == "awaiting delivery":
		// Treated as terminal even though the money has not fully
		// settled; the gateway will not report further progress soon.
		return paymentAwaitingText, "awaiting_delivery", true
	default:
		return "", "", false
	}
}

func (p *Poller) markPaid(ctx context.Context, sender string) {
	sess, err := p.store.Load(ctx, sender)
	if err != nil {
		p.logger.Error("session load failed while marking paid", "sender", sender, "error", err)
		sess = domain.NewSession("")
	}
	until := p.now().Add(p.paidFor)
	sess.PaidUntil = &until
	if err := p.store.Save(ctx, sender, sess); err != nil {
		p.logger.Error("session save failed while marking paid", "sender", sender, "error", err)
	}
}

func (p *Poller) send(ctx context.Context, sender, text string) {
	if err := p.messenger.SendText(ctx, sender, text); err != nil {
		p.logger.Error("settlement message send failed", "sender", sender, "error", err)
	}
}
