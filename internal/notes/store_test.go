package notes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eleven-am/voice-companion/internal/shared"
)

func setupTestNotesStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return store
}

func TestStore_GetUnknownURL(t *testing.T) {
	store := setupTestNotesStore(t)

	_, err := store.Get(context.Background(), "https://example.com/none")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ResetClearsExistingNotes(t *testing.T) {
	store := setupTestNotesStore(t)
	ctx := context.Background()
	url := "https://example.com/article"

	if _, err := store.SetSummary(ctx, url, "old summary"); err != nil {
		t.Fatalf("SetSummary: %v", err)
	}
	if _, err := store.AppendTurn(ctx, url, shared.RoleUser, "what is this?"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	rec, err := store.Reset(ctx, url)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if rec.Summary != "" || len(rec.Turns) != 0 {
		t.Fatalf("reset record not empty: %+v", rec)
	}

	got, err := store.Get(ctx, url)
	if err != nil {
		t.Fatalf("Get after reset: %v", err)
	}
	if got.Summary != "" || len(got.Turns) != 0 {
		t.Fatalf("persisted record not empty: %+v", got)
	}
}

func TestStore_SetSummaryTrims(t *testing.T) {
	store := setupTestNotesStore(t)

	rec, err := store.SetSummary(context.Background(), "https://example.com", "  a summary \n")
	if err != nil {
		t.Fatalf("SetSummary: %v", err)
	}
	if rec.Summary != "a summary" {
		t.Fatalf("summary = %q", rec.Summary)
	}
}

func TestStore_AppendTurn(t *testing.T) {
	store := setupTestNotesStore(t)
	ctx := context.Background()
	url := "https://example.com/page"

	if _, err := store.AppendTurn(ctx, url, shared.RoleUser, "first"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if _, err := store.AppendTurn(ctx, url, "narrator", "second"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if _, err := store.AppendTurn(ctx, url, shared.RoleAgent, "   "); err != nil {
		t.Fatalf("AppendTurn blank: %v", err)
	}

	got, err := store.Get(ctx, url)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Turns) != 2 {
		t.Fatalf("turns = %d, want 2 (blank text dropped)", len(got.Turns))
	}
	if got.Turns[0].Role != shared.RoleUser || got.Turns[0].Text != "first" {
		t.Fatalf("first turn = %+v", got.Turns[0])
	}
	if got.Turns[1].Role != shared.RoleAgent {
		t.Fatalf("unknown role should fall back to agent, got %q", got.Turns[1].Role)
	}
}

func TestStore_AppendQARequiresBothSides(t *testing.T) {
	store := setupTestNotesStore(t)
	ctx := context.Background()
	url := "https://example.com/qa"

	if _, err := store.AppendQA(ctx, url, "why?", ""); err != nil {
		t.Fatalf("AppendQA: %v", err)
	}
	if _, err := store.AppendQA(ctx, url, "why?", "because"); err != nil {
		t.Fatalf("AppendQA: %v", err)
	}

	got, err := store.Get(ctx, url)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.QA) != 1 {
		t.Fatalf("qa = %d, want 1", len(got.QA))
	}
	if got.QA[0].Question != "why?" || got.QA[0].Answer != "because" {
		t.Fatalf("qa entry = %+v", got.QA[0])
	}
}

func TestStore_AppendQuiz(t *testing.T) {
	store := setupTestNotesStore(t)
	ctx := context.Background()
	url := "https://example.com/quiz"

	if _, err := store.AppendQuiz(ctx, url, QuizEntry{Question: ""}); err != nil {
		t.Fatalf("AppendQuiz empty: %v", err)
	}
	rec, err := store.AppendQuiz(ctx, url, QuizEntry{
		Question:      " What year? ",
		UserAnswer:    "1990",
		CorrectAnswer: "1991",
		Explanation:   "off by one",
	})
	if err != nil {
		t.Fatalf("AppendQuiz: %v", err)
	}
	if len(rec.Quizzes) != 1 {
		t.Fatalf("quizzes = %d, want 1 (empty question dropped)", len(rec.Quizzes))
	}
	if rec.Quizzes[0].Question != "What year?" {
		t.Fatalf("question = %q", rec.Quizzes[0].Question)
	}
}

func TestStore_AppendQuestion(t *testing.T) {
	store := setupTestNotesStore(t)
	ctx := context.Background()
	url := "https://example.com/questions"

	if _, err := store.AppendQuestion(ctx, url, " open question "); err != nil {
		t.Fatalf("AppendQuestion: %v", err)
	}
	got, err := store.Get(ctx, url)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Questions) != 1 || got.Questions[0] != "open question" {
		t.Fatalf("questions = %v", got.Questions)
	}
}

func TestStore_RecordsAreIndependentPerURL(t *testing.T) {
	store := setupTestNotesStore(t)
	ctx := context.Background()

	if _, err := store.SetSummary(ctx, "https://a.example", "about a"); err != nil {
		t.Fatalf("SetSummary a: %v", err)
	}
	if _, err := store.SetSummary(ctx, "https://b.example", "about b"); err != nil {
		t.Fatalf("SetSummary b: %v", err)
	}

	a, err := store.Get(ctx, "https://a.example")
	if err != nil {
		t.Fatalf("Get a: %v", err)
	}
	if a.Summary != "about a" {
		t.Fatalf("summary a = %q", a.Summary)
	}
}

func TestStore_ConcurrentAppendTurnKeepsEveryTurn(t *testing.T) {
	store := setupTestNotesStore(t)
	ctx := context.Background()
	url := "https://example.com/busy"

	if _, err := store.Reset(ctx, url); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			if _, err := store.AppendTurn(ctx, url, shared.RoleUser, fmt.Sprintf("turn %d", i)); err != nil {
				t.Errorf("AppendTurn %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	rec, err := store.Get(ctx, url)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(rec.Turns) != writers {
		t.Fatalf("appended %d turns concurrently but only %d survived", writers, len(rec.Turns))
	}
}
