package assistant

import (
	"testing"

	"docchat/internal/models"
)

func TestHistoryUnbounded(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 50; i++ {
		h.Append(models.UserTurn("u"))
	}
	if h.Len() != 50 {
		t.Fatalf("expected 50 turns, got %d", h.Len())
	}
}

func TestHistoryCapDropsOldestAndLeadingModel(t *testing.T) {
	h := NewHistory(3)
	h.Append(models.UserTurn("u1"))
	h.Append(models.ModelTurn("m1"))
	h.Append(models.UserTurn("u2"))
	h.Append(models.ModelTurn("m2"))

	got := h.Snapshot()
	// dropping u1 would leave m1 at the head, so it goes too
	want := []models.ChatTurn{models.UserTurn("u2"), models.ModelTurn("m2")}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("turn %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestHistorySnapshotIsCopy(t *testing.T) {
	h := NewHistory(0)
	h.Append(models.UserTurn("original"))
	snap := h.Snapshot()
	snap[0] = models.UserTurn("mutated")
	if h.Snapshot()[0].Text != "original" {
		t.Fatalf("snapshot aliases history")
	}
}
