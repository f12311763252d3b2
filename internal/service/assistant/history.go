package assistant

import (
	"sync"

	"docchat/internal/models"
)

// History is the single process-wide conversation, replayed in insertion order.
type History struct {
	mu       sync.Mutex
	turns    []models.ChatTurn
	maxTurns int
}

// NewHistory keeps at most maxTurns turns; zero keeps everything.
func NewHistory(maxTurns int) *History {
	if maxTurns < 0 {
		maxTurns = 0
	}
	return &History{maxTurns: maxTurns}
}

func (h *History) Append(turn models.ChatTurn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	if h.maxTurns == 0 || len(h.turns) <= h.maxTurns {
		return
	}
	drop := len(h.turns) - h.maxTurns
	// never start the replay with a model turn
	for drop < len(h.turns)-1 && h.turns[drop].Role == models.RoleModel {
		drop++
	}
	h.turns = append([]models.ChatTurn(nil), h.turns[drop:]...)
}

// Snapshot returns a copy safe to hand to a backend call.
func (h *History) Snapshot() []models.ChatTurn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.ChatTurn(nil), h.turns...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) Reset() {
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()
}
