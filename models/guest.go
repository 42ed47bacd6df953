package models

import (
	"time"
)

// GuestProgress mirrors the shape of a UserProgress row for an unauthenticated
// visitor. GuestID is an opaque token the client holds until sign-up; on the
// first authenticated session the rows are transferred into user_progress and
// deleted.
type GuestProgress struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	GuestID string `gorm:"uniqueIndex:idx_guest_quiz;not null" json:"guest_id"`
	QuizID  string `gorm:"uniqueIndex:idx_guest_quiz;type:uuid;not null" json:"quiz_id"`

	Score       int        `json:"score" gorm:"default:0"`
	IsUnlocked  bool       `json:"is_unlocked" gorm:"default:false"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName keeps the canonical singular table name.
func (GuestProgress) TableName() string { return "guest_progress" }
