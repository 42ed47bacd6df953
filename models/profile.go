package models

import (
	"time"

	"gorm.io/gorm"
)

// Profile is a local snapshot of user data plus the point/streak aggregates
// this service owns. Identity fields are populated via the sync worker from
// the auth service's user table; points, level and streaks are mutated only
// by quiz completion and reward redemption.
type Profile struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // the auth service's UUID
	Username       string `gorm:"index;not null" json:"username"`

	TotalPoints   int        `json:"total_points" gorm:"default:0"`
	CurrentLevel  int        `json:"current_level" gorm:"default:1"`
	CurrentStreak int        `json:"current_streak" gorm:"default:0"`
	LongestStreak int        `json:"longest_streak" gorm:"default:0"`
	LastQuizDate  *time.Time `json:"last_quiz_date,omitempty" gorm:"type:date"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// RemoteProfile mirrors the JSON shape of the auth service's public profiles
// endpoint (read-only). Used by the sync worker to create and refresh rows.
type RemoteProfile struct {
	ExternalID string     `json:"external_id"`
	Username   string     `json:"username"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"` // soft-delete marker
}
