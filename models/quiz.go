// models/quiz.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Question is embedded in a quiz's questions_json column, never a row of its own.
type Question struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"` // 2-6 answer options
	CorrectIndex int      `json:"correct_index"`
	ContextForAI string   `json:"context_for_ai,omitempty"` // consumed only by the feedback proxy
}

// Quiz is one stop on the learning path. PathOrder defines the fixed linear
// progression: quiz N unlocks when quiz N-1 is completed.
type Quiz struct {
	ID                string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Title             string     `json:"title" gorm:"not null"`
	Description       string     `json:"description" gorm:"type:text;not null"`
	PathOrder         int        `json:"path_order" gorm:"uniqueIndex;not null"`
	PointsPerQuestion int        `json:"points_per_question" gorm:"default:10"`
	Questions         []Question `json:"questions_json" gorm:"column:questions_json;type:jsonb;serializer:json"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Sanitized returns a copy safe to hand to quiz takers: the correct indexes
// and AI context are stripped so the client cannot grade locally.
func (q Quiz) Sanitized() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.CorrectIndex = -1
		question.ContextForAI = ""
		out.Questions[i] = question
	}
	return out
}
