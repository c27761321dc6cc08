package store

import (
	"testing"
	"time"

	"chatpdf-backend/models"
)

func turnPair(docID, question, answer string, at time.Time) []models.ConversationTurn {
	return []models.ConversationTurn{
		{ID: question + "-id", DocumentID: docID, Role: models.RoleUser, Text: question, CreatedAt: at},
		{ID: answer + "-id", DocumentID: docID, Role: models.RoleAssistant, Text: answer, CreatedAt: at.Add(time.Millisecond)},
	}
}

func TestNewExchangeHoldsBothTurns(t *testing.T) {
	now := time.Now()
	turns := turnPair("doc-1", "q1", "a1", now)

	ex := newExchange(turns)

	if ex.ID != turns[0].ID {
		t.Errorf("exchange id must come from the first turn, got %q", ex.ID)
	}
	if ex.DocumentID != "doc-1" {
		t.Errorf("unexpected document id %q", ex.DocumentID)
	}
	if !ex.CreatedAt.Equal(now) {
		t.Error("exchange timestamp must come from the first turn")
	}
	if len(ex.Turns) != 2 {
		t.Fatalf("expected both turns in one document, got %d", len(ex.Turns))
	}
	if ex.Turns[0].Role != models.RoleUser || ex.Turns[1].Role != models.RoleAssistant {
		t.Error("turn order within the exchange must be question then answer")
	}
}

func TestFlattenExchangesPreservesOrder(t *testing.T) {
	base := time.Now()
	exchanges := []exchange{
		newExchange(turnPair("doc-1", "q1", "a1", base)),
		newExchange(turnPair("doc-1", "q2", "a2", base.Add(time.Minute))),
	}

	turns := flattenExchanges(exchanges)
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	want := []string{"q1", "a1", "q2", "a2"}
	for i, text := range want {
		if turns[i].Text != text {
			t.Errorf("turn %d: expected %q, got %q", i, text, turns[i].Text)
		}
	}
}

func TestFlattenExchangesEmpty(t *testing.T) {
	if turns := flattenExchanges(nil); len(turns) != 0 {
		t.Errorf("expected no turns, got %d", len(turns))
	}
}

func TestTailTurns(t *testing.T) {
	base := time.Now()
	turns := flattenExchanges([]exchange{
		newExchange(turnPair("doc-1", "q1", "a1", base)),
		newExchange(turnPair("doc-1", "q2", "a2", base.Add(time.Minute))),
		newExchange(turnPair("doc-1", "q3", "a3", base.Add(2*time.Minute))),
	})

	// An odd window keeps the newest turns, dropping the oldest
	tail := tailTurns(turns, 3)
	if len(tail) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(tail))
	}
	if tail[0].Text != "a2" || tail[2].Text != "a3" {
		t.Errorf("unexpected window %q..%q", tail[0].Text, tail[2].Text)
	}

	// A window larger than the transcript returns everything
	if got := tailTurns(turns, 100); len(got) != len(turns) {
		t.Errorf("expected all %d turns, got %d", len(turns), len(got))
	}
}
