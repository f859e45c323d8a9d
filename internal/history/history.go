package history

// Role identifies the speaker of a conversational turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message in a conversation. Immutable once appended.
type Turn struct {
	Role Role
	Text string
}

// History is a bounded FIFO of turns belonging to one connection.
// It remembers at most pairs*2 turns; appending beyond capacity evicts
// the oldest turn. Not safe for concurrent use: a history is owned by
// exactly one connection goroutine for its whole lifetime.
type History struct {
	turns []Turn
	cap   int
}

const defaultPairs = 10

// New creates a history remembering the given number of exchange pairs.
func New(pairs int) *History {
	if pairs <= 0 {
		pairs = defaultPairs
	}
	return &History{cap: pairs * 2}
}

// Append adds a turn, evicting the oldest one when at capacity.
func (h *History) Append(role Role, text string) {
	if len(h.turns) >= h.cap {
		copy(h.turns, h.turns[1:])
		h.turns = h.turns[:len(h.turns)-1]
	}
	h.turns = append(h.turns, Turn{Role: role, Text: text})
}

// Turns returns a snapshot copy of the current turns in arrival order.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len reports the number of stored turns.
func (h *History) Len() int { return len(h.turns) }

// Cap reports the maximum number of stored turns.
func (h *History) Cap() int { return h.cap }

// Last returns the most recent turn, if any.
func (h *History) Last() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}
