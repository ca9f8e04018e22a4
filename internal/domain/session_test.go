package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_BackStack(t *testing.T) {
	s := NewSession("root")

	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push("root")
	s.Push("root/a")

	id, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, "root/a", id)

	id, ok = s.Pop()
	assert.True(t, ok)
	assert.Equal(t, "root", id)

	_, ok = s.Pop()
	assert.False(t, ok)
}

func TestSession_Reset(t *testing.T) {
	until := time.Now().Add(time.Hour)
	s := &Session{
		CurrentNodeID:   "root/a/b",
		History:         []string{"root", "root/a"},
		LastTemplates:   []string{"HX1"},
		Payment:         &PaymentState{Step: StepAwaitingNumber},
		PaidUntil:       &until,
		PendingQuestion: "how much?",
	}

	s.Reset("root")

	assert.Equal(t, "root", s.CurrentNodeID)
	assert.Empty(t, s.History)
	assert.Empty(t, s.LastTemplates)
	assert.Nil(t, s.Payment)
	assert.Empty(t, s.PendingQuestion)

	// Restarting the conversation does not forfeit paid access.
	assert.NotNil(t, s.PaidUntil)
}

func TestSession_Paid(t *testing.T) {
	now := time.Now()
	s := NewSession("root")

	assert.False(t, s.Paid(now))

	until := now.Add(time.Minute)
	s.PaidUntil = &until
	assert.True(t, s.Paid(now))
	assert.False(t, s.Paid(until))
	assert.False(t, s.Paid(until.Add(time.Second)))
}

func TestNode_Match(t *testing.T) {
	child := &Node{ID: "root/plan"}
	other := &Node{ID: "root/premium"}
	n := &Node{
		ID: "root",
		Transitions: []Transition{
			{Keyword: "plan", To: child},
			{Keyword: "premium", To: other},
		},
	}

	tr, ok := n.Match("the plan please")
	assert.True(t, ok)
	assert.Equal(t, child, tr.To)

	// Case-insensitive substring match.
	tr, ok = n.Match("i want premium")
	assert.True(t, ok)
	assert.Equal(t, other, tr.To)

	// First declared wins when several keywords occur.
	tr, ok = n.Match("premium plan")
	assert.True(t, ok)
	assert.Equal(t, child, tr.To)

	_, ok = n.Match("nothing relevant")
	assert.False(t, ok)

	assert.False(t, n.Leaf())
	assert.True(t, child.Leaf())
}
