package engine_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zivai/internal/domain"
	"zivai/internal/engine"
	"zivai/internal/ports"
	"zivai/internal/tree"
)

// testTreeYAML is a small tree exercising every engine branch:
// two sibling keywords that can both match one message, a nested node and
// two leaves.
const testTreeYAML = `
root:
  templates: T-ROOT
  next:
    - keyword: plan
      node:
        templates: T-PLAN
        next:
          - keyword: deep
            node: {templates: T-DEEP}
    - keyword: premium
      node: {templates: T-PREMIUM}
`

func mustTree(t *testing.T) *tree.Tree {
	t.Helper()
	tr, err := tree.Parse([]byte(testTreeYAML))
	require.NoError(t, err)
	return tr
}

// fakeStore is an in-memory ports.SessionStore. Sessions round-trip through
// JSON so unpersisted mutations never leak between calls, the way a real
// store behaves.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string][]byte
	history  map[string][]domain.HistoryEntry
	loadErr  error
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string][]byte),
		history:  make(map[string][]domain.HistoryEntry),
	}
}

func (s *fakeStore) Load(ctx context.Context, sender string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	data, ok := s.sessions[sender]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *fakeStore) Save(ctx context.Context, sender string, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.sessions[sender] = data
	s.saves++
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sender)
	delete(s.history, sender)
	return nil
}

func (s *fakeStore) Paid(ctx context.Context, sender string) (bool, error) {
	sess, err := s.Load(ctx, sender)
	if err != nil {
		return false, nil
	}
	return sess.Paid(time.Now()), nil
}

func (s *fakeStore) AppendHistory(ctx context.Context, sender string, role domain.Role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append(s.history[sender], domain.HistoryEntry{Role: role, Text: text, Timestamp: time.Now()})
	if len(entries) > domain.HistoryLimit {
		entries = entries[len(entries)-domain.HistoryLimit:]
	}
	s.history[sender] = entries
	return nil
}

func (s *fakeStore) History(ctx context.Context, sender string) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.HistoryEntry, len(s.history[sender]))
	copy(out, s.history[sender])
	return out, nil
}

// mustSession reads a persisted session back out of the fake store.
func (s *fakeStore) mustSession(t *testing.T, sender string) *domain.Session {
	t.Helper()
	sess, err := s.Load(context.Background(), sender)
	require.NoError(t, err)
	return sess
}

type sentText struct {
	To   string
	Text string
}

type sentTemplate struct {
	To        string
	Name      string
	Templates []string
}

// fakeMessenger records every outbound send.
type fakeMessenger struct {
	mu        sync.Mutex
	texts     []sentText
	templates []sentTemplate
	err       error
}

func (m *fakeMessenger) SendText(ctx context.Context, recipient, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.texts = append(m.texts, sentText{To: recipient, Text: text})
	return nil
}

func (m *fakeMessenger) SendTemplate(ctx context.Context, recipient, displayName string, templateIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.templates = append(m.templates, sentTemplate{To: recipient, Name: displayName, Templates: templateIDs})
	return nil
}

func (m *fakeMessenger) sentTexts() []sentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentText, len(m.texts))
	copy(out, m.texts)
	return out
}

func (m *fakeMessenger) sentTemplates() []sentTemplate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentTemplate, len(m.templates))
	copy(out, m.templates)
	return out
}

// fakeGenerator returns a canned reply and records what it was asked.
type fakeGenerator struct {
	reply      string
	called     bool
	gotMessage string
	gotHistory []ports.HistoryTurn
	gotContext []string
}

func (g *fakeGenerator) Generate(ctx context.Context, message string, history []ports.HistoryTurn, retrieved []string) (string, error) {
	g.called = true
	g.gotMessage = message
	g.gotHistory = history
	g.gotContext = retrieved
	return g.reply, nil
}

// fakeGateway scripts payment initiation and settlement statuses.
type fakeGateway struct {
	mu          sync.Mutex
	initiateErr error
	pollURL     string
	initiated   []struct {
		Ref    string
		Phone  string
		Amount float64
	}
	statuses []ports.PaymentStatus
	checks   int
}

func (g *fakeGateway) Initiate(ctx context.Context, accountRef, payerPhone string, amount float64) (ports.InitiateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initiateErr != nil {
		return ports.InitiateResult{}, g.initiateErr
	}
	g.initiated = append(g.initiated, struct {
		Ref    string
		Phone  string
		Amount float64
	}{accountRef, payerPhone, amount})
	url := g.pollURL
	if url == "" {
		url = "https://paynow.test/poll/1"
	}
	return ports.InitiateResult{PollURL: url}, nil
}

// CheckStatus returns the scripted statuses in order, repeating the last
// one once the script runs out.
func (g *fakeGateway) CheckStatus(ctx context.Context, pollURL string) (ports.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	if len(g.statuses) == 0 {
		return ports.PaymentStatus{Status: "sent"}, nil
	}
	idx := g.checks - 1
	if idx >= len(g.statuses) {
		idx = len(g.statuses) - 1
	}
	return g.statuses[idx], nil
}

// fixture bundles an engine with its collaborators.
type fixture struct {
	engine    *engine.Engine
	store     *fakeStore
	messenger *fakeMessenger
	generator *fakeGenerator
	gateway   *fakeGateway
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()
	f := &fixture{
		store:     newFakeStore(),
		messenger: &fakeMessenger{},
		generator: &fakeGenerator{reply: "a helpful answer"},
		gateway:   &fakeGateway{},
	}
	// A millisecond schedule keeps tests that happen to start a settlement
	// poll from sitting on real ten-second waits.
	poller := engine.NewPoller(f.store, f.messenger, f.gateway,
		engine.WithPollerSchedule(time.Millisecond, 2))
	f.engine = engine.New(mustTree(t), f.store, f.messenger, f.generator, f.gateway,
		append([]engine.Option{engine.WithPoller(poller)}, opts...)...)
	t.Cleanup(f.engine.Poller().Drain)
	return f
}
