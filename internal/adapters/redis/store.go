// Package redis implements the session store on Redis. Sessions are JSON
// blobs with a TTL; the conversation log is a capped list per sender.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"zivai/internal/domain"
)

const defaultTTL = 24 * time.Hour

// Store implements ports.SessionStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the idle expiration for sessions and history.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client. Tests pass a
// miniredis-backed client here.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "zivai:",
		ttl:    defaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) sessionKey(sender string) string { return s.prefix + "session:" + sender }
func (s *Store) historyKey(sender string) string { return s.prefix + "history:" + sender }

// Load retrieves the session for a sender.
func (s *Store) Load(ctx context.Context, sender string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.sessionKey(sender)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Save persists the session. A paid session must outlive the idle TTL, so
// its expiry is pushed past paid_until.
func (s *Store) Save(ctx context.Context, sender string, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := s.ttl
	if sess.PaidUntil != nil {
		if paid := sess.PaidUntil.Sub(s.now()); paid > ttl {
			ttl = paid
		}
	}

	if err := s.client.Set(ctx, s.sessionKey(sender), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes the session and its conversation log.
func (s *Store) Delete(ctx context.Context, sender string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.sessionKey(sender))
	pipe.Del(ctx, s.historyKey(sender))
	_, err := pipe.Exec(ctx)
	return err
}

// Paid reports whether the sender's paid-access window is open.
func (s *Store) Paid(ctx context.Context, sender string) (bool, error) {
	sess, err := s.Load(ctx, sender)
	if err != nil {
		if err == domain.ErrSessionNotFound {
			return false, nil
		}
		return false, err
	}
	return sess.Paid(s.now()), nil
}

// AppendHistory pushes one conversation turn, trimming to the most recent
// domain.HistoryLimit entries.
func (s *Store) AppendHistory(ctx context.Context, sender string, role domain.Role, text string) error {
	entry, err := json.Marshal(domain.HistoryEntry{
		Role:      role,
		Text:      text,
		Timestamp: s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	key := s.historyKey(sender)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, entry)
	pipe.LTrim(ctx, key, 0, domain.HistoryLimit-1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// History returns the conversation log, oldest first.
func (s *Store) History(ctx context.Context, sender string) ([]domain.HistoryEntry, error) {
	vals, err := s.client.LRange(ctx, s.historyKey(sender), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	// LPUSH stores newest first; reverse into chronological order.
	entries := make([]domain.HistoryEntry, 0, len(vals))
	for i := len(vals) - 1; i >= 0; i-- {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(vals[i]), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
