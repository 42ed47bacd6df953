package models

import (
	"time"

	"gorm.io/gorm"
)

// Reward is a catalog item users spend points on. The catalog is read-only
// from the user surface; admins manage it.
type Reward struct {
	ID          string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Title       string  `gorm:"not null" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	PointsCost  int     `gorm:"not null" json:"points_cost"`
	IsActive    bool    `gorm:"default:true;index" json:"is_active"`
	ImageURL    *string `gorm:"type:text" json:"image_url,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// UserReward is one redemption. Append-only ledger, never mutated.
type UserReward struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string    `gorm:"index;not null" json:"external_user_id"`
	RewardID       string    `gorm:"index;type:uuid;not null" json:"reward_id"`
	RedeemedAt     time.Time `gorm:"autoCreateTime" json:"redeemed_at"`

	Reward *Reward `gorm:"foreignKey:RewardID" json:"reward,omitempty"`
}
