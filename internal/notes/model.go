package notes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eleven-am/voice-companion/internal/shared"
)

// Turn is one side of a conversational exchange captured for review.
type Turn struct {
	Role shared.Role `json:"role"`
	Text string      `json:"text"`
}

// QAPair is a follow-up question the user asked plus the agent's answer.
type QAPair struct {
	Question string `json:"q"`
	Answer   string `json:"a"`
}

// QuizEntry records one quiz exchange about the studied page.
type QuizEntry struct {
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation"`
}

type TurnList []Turn

func (l TurnList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *TurnList) Scan(value any) error { return jsonScan(value, l) }

type QAList []QAPair

func (l QAList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *QAList) Scan(value any) error { return jsonScan(value, l) }

type QuizList []QuizEntry

func (l QuizList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *QuizList) Scan(value any) error { return jsonScan(value, l) }

func jsonValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonScan(value any, dest any) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
	return json.Unmarshal(bytes, dest)
}

// Record is everything remembered about one studied page, keyed by URL.
type Record struct {
	URL       string             `gorm:"primaryKey" json:"url"`
	Summary   string             `json:"summary"`
	Questions shared.StringSlice `gorm:"type:json" json:"questions"`
	Turns     TurnList           `gorm:"type:json" json:"turns"`
	QA        QAList             `gorm:"type:json" json:"qa"`
	Quizzes   QuizList           `gorm:"type:json" json:"quizzes"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
