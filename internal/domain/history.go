package domain

import "time"

// Role labels who produced a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryLimit caps the conversation log per sender. Older entries are
// discarded; the log exists only as LLM context, never as navigation state.
const HistoryLimit = 20

// HistoryEntry is one turn of the conversation log.
type HistoryEntry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
