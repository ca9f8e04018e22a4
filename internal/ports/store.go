package ports

import (
	"context"

	"zivai/internal/domain"
)

// SessionStore persists per-sender state between webhook calls. It is the
// single source of truth: the engine never caches sessions in memory, so a
// multi-instance deployment stays consistent.
type SessionStore interface {
	// Load retrieves the session for a sender.
	// Returns domain.ErrSessionNotFound for first contact.
	Load(ctx context.Context, sender string) (*domain.Session, error)

	// Save persists the session for a sender.
	Save(ctx context.Context, sender string, s *domain.Session) error

	// Delete removes the session.
	Delete(ctx context.Context, sender string) error

	// Paid reports whether the sender's paid-access window is open.
	Paid(ctx context.Context, sender string) (bool, error)

	// AppendHistory adds one entry to the sender's conversation log,
	// trimming it to the most recent domain.HistoryLimit entries.
	AppendHistory(ctx context.Context, sender string, role domain.Role, text string) error

	// History returns the conversation log, oldest first.
	History(ctx context.Context, sender string) ([]domain.HistoryEntry, error)
}
