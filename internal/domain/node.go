package domain

// Node is a single position in the conversation decision tree.
//
// Nodes are built once at startup and never mutated afterwards. Subtrees may
// be shared by reference between branches (the same *Node reachable from
// several parents), so the graph is a DAG rather than a strict tree.
type Node struct {
	// ID is a stable identifier, useful for logging and for session
	// persistence (sessions store node IDs, never node values).
	ID string

	// Templates holds the provider template identifiers to send when the
	// user arrives at this node, in send order.
	Templates []string

	// Transitions are the outgoing keyword edges, in declaration order.
	// Matching is first-match-wins, so order is significant.
	Transitions []Transition
}

// Transition is a keyword-labelled edge to a child node.
type Transition struct {
	// Keyword is the trigger phrase. Matching is a case-insensitive
	// substring test against the user's message.
	Keyword string

	// To is the child node. Shared subtrees alias the same pointer.
	To *Node
}

// Match returns the first transition whose keyword occurs in the message,
// in declaration order. The message must already be trimmed and lowercased.
func (n *Node) Match(message string) (*Transition, bool) {
	for i := range n.Transitions {
		if containsFold(message, n.Transitions[i].Keyword) {
			return &n.Transitions[i], true
		}
	}
	return nil, false
}

// Leaf reports whether the node has no outgoing transitions. For an unpaid
// user this is where the tree runs out into the payment prompt.
func (n *Node) Leaf() bool {
	return len(n.Transitions) == 0
}
