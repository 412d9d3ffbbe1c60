// Package notes keeps per-page study notes: the analysis summary, the
// conversation turns held over that page, and any quiz exchanges. Rows
// are keyed by page URL so a revisit picks up where the user left off.
package notes

import (
	"context"
	"errors"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/eleven-am/voice-companion/internal/shared"
)

type Store struct {
	db *gorm.DB

	// writeMu serializes read-modify-write cycles so concurrent appends
	// to the same record cannot overwrite each other.
	writeMu sync.Mutex
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Record{})
}

// Reset replaces any existing record for the URL with a fresh one.
// Called when a page is re-analyzed so stale notes never mix with the
// new summary.
func (s *Store) Reset(ctx context.Context, url string) (*Record, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec := &Record{
		URL:       url,
		Questions: shared.StringSlice{},
		Turns:     TurnList{},
		QA:        QAList{},
		Quizzes:   QuizList{},
	}
	err := s.db.WithContext(ctx).
		Where("url = ?", url).Delete(&Record{}).Error
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Get(ctx context.Context, url string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("url = ?", url).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &rec, err
}

func (s *Store) SetSummary(ctx context.Context, url, summary string) (*Record, error) {
	return s.mutate(ctx, url, func(rec *Record) {
		rec.Summary = strings.TrimSpace(summary)
	})
}

func (s *Store) AppendQuestion(ctx context.Context, url, question string) (*Record, error) {
	q := strings.TrimSpace(question)
	return s.mutate(ctx, url, func(rec *Record) {
		if q != "" {
			rec.Questions = append(rec.Questions, q)
		}
	})
}

// AppendTurn records one conversational exchange. Unrecognized roles
// fall back to agent; blank text is dropped.
func (s *Store) AppendTurn(ctx context.Context, url string, role shared.Role, text string) (*Record, error) {
	if role != shared.RoleUser && role != shared.RoleAgent {
		role = shared.RoleAgent
	}
	t := strings.TrimSpace(text)
	return s.mutate(ctx, url, func(rec *Record) {
		if t != "" {
			rec.Turns = append(rec.Turns, Turn{Role: role, Text: t})
		}
	})
}

func (s *Store) AppendQA(ctx context.Context, url, question, answer string) (*Record, error) {
	q := strings.TrimSpace(question)
	a := strings.TrimSpace(answer)
	return s.mutate(ctx, url, func(rec *Record) {
		if q != "" && a != "" {
			rec.QA = append(rec.QA, QAPair{Question: q, Answer: a})
		}
	})
}

func (s *Store) AppendQuiz(ctx context.Context, url string, entry QuizEntry) (*Record, error) {
	entry.Question = strings.TrimSpace(entry.Question)
	entry.UserAnswer = strings.TrimSpace(entry.UserAnswer)
	entry.CorrectAnswer = strings.TrimSpace(entry.CorrectAnswer)
	entry.Explanation = strings.TrimSpace(entry.Explanation)
	return s.mutate(ctx, url, func(rec *Record) {
		if entry.Question != "" {
			rec.Quizzes = append(rec.Quizzes, entry)
		}
	})
}

// mutate loads or creates the record for the URL, applies fn, and saves.
// Writers hold writeMu across the load-apply-save cycle.
func (s *Store) mutate(ctx context.Context, url string, fn func(*Record)) (*Record, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var rec Record
	err := s.db.WithContext(ctx).Where("url = ?", url).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = Record{URL: url}
	} else if err != nil {
		return nil, err
	}

	fn(&rec)
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
