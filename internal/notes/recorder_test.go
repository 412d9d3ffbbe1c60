package notes

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/eleven-am/voice-companion/internal/session"
	"github.com/eleven-am/voice-companion/internal/shared"
)

func waitForTurns(t *testing.T, store *Store, url string, want int) *Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := store.Get(context.Background(), url)
		if err == nil && len(rec.Turns) >= want {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("notes for %s never reached %d turns", url, want)
	return nil
}

func TestRecorderAppendsTurnsToActivePage(t *testing.T) {
	store := setupTestNotesStore(t)
	rec := NewRecorder(store, nil)
	rec.SetActiveURL("https://example.com/lesson")

	rec.onMessage(session.Message{Role: shared.RoleUser, Text: "question"})
	rec.onMessage(session.Message{Role: shared.RoleAgent, Text: "answer"})

	got := waitForTurns(t, store, "https://example.com/lesson", 2)
	roles := map[shared.Role]bool{}
	for _, turn := range got.Turns {
		roles[turn.Role] = true
	}
	if !roles[shared.RoleUser] || !roles[shared.RoleAgent] {
		t.Fatalf("turns missing a role: %+v", got.Turns)
	}
}

func TestRecorderIgnoresMessagesWithoutActivePage(t *testing.T) {
	store := setupTestNotesStore(t)
	rec := NewRecorder(store, nil)

	rec.onMessage(session.Message{Role: shared.RoleUser, Text: "lost"})
	time.Sleep(30 * time.Millisecond)

	if rec.ActiveURL() != "" {
		t.Fatalf("active url = %q, want empty", rec.ActiveURL())
	}
}

func TestRecorderRepointsOnNewPage(t *testing.T) {
	store := setupTestNotesStore(t)
	rec := NewRecorder(store, nil)

	rec.SetActiveURL("https://a.example")
	rec.onMessage(session.Message{Role: shared.RoleUser, Text: "about a"})
	waitForTurns(t, store, "https://a.example", 1)

	rec.SetActiveURL("https://b.example")
	rec.onMessage(session.Message{Role: shared.RoleUser, Text: "about b"})
	got := waitForTurns(t, store, "https://b.example", 1)
	if got.Turns[0].Text != "about b" {
		t.Fatalf("turn = %+v", got.Turns[0])
	}

	a, err := store.Get(context.Background(), "https://a.example")
	if err != nil {
		t.Fatalf("Get a: %v", err)
	}
	if len(a.Turns) != 1 {
		t.Fatalf("old page gained turns: %d", len(a.Turns))
	}
}

func TestRecorderPreservesTurnOrder(t *testing.T) {
	store := setupTestNotesStore(t)
	rec := NewRecorder(store, nil)
	rec.SetActiveURL("https://example.com/order")

	const turns = 20
	for i := 0; i < turns; i++ {
		rec.onMessage(session.Message{Role: shared.RoleUser, Text: fmt.Sprintf("turn %d", i)})
	}

	got := waitForTurns(t, store, "https://example.com/order", turns)
	for i, turn := range got.Turns {
		if want := fmt.Sprintf("turn %d", i); turn.Text != want {
			t.Fatalf("turn %d = %q, want %q", i, turn.Text, want)
		}
	}
}

func TestRecorderDetachFlushesQueuedTurns(t *testing.T) {
	store := setupTestNotesStore(t)
	rec := NewRecorder(store, nil)
	rec.SetActiveURL("https://example.com/flush")

	for i := 0; i < 5; i++ {
		rec.onMessage(session.Message{Role: shared.RoleUser, Text: fmt.Sprintf("turn %d", i)})
	}
	rec.Detach()

	got, err := store.Get(context.Background(), "https://example.com/flush")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Turns) != 5 {
		t.Fatalf("detach flushed %d of 5 turns", len(got.Turns))
	}
}
