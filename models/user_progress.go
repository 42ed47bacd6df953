package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress is the per-(user, quiz) progression row. A quiz is completed
// iff CompletedAt is set; the score is carried for display and point totals.
type UserProgress struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_user_quiz;not null" json:"external_user_id"` // links to profile service
	QuizID         string `gorm:"uniqueIndex:idx_user_quiz;type:uuid;not null" json:"quiz_id"`

	Score       int        `json:"score" gorm:"default:0"`
	IsUnlocked  bool       `json:"is_unlocked" gorm:"default:false"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Timestamps
}

// TableName keeps the canonical singular table name.
func (UserProgress) TableName() string { return "user_progress" }

// Completed reports whether this row marks a finished quiz, independent of score.
func (p *UserProgress) Completed() bool {
	return p != nil && p.CompletedAt != nil
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// QuizStatus is the derived three-state classification shown on the path map.
type QuizStatus string

const (
	QuizStatusLocked    QuizStatus = "locked"
	QuizStatusUnlocked  QuizStatus = "unlocked"
	QuizStatusCompleted QuizStatus = "completed"
)
