package services

import (
	"errors"
	"strings"

	"eco-rewards-service/models"

	"gorm.io/gorm"
)

type ProfileService struct {
	DB *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db}
}

// EnsureProfile returns the profile row for a user, creating it on first
// authenticated access (idempotent). The sync worker normally creates rows
// ahead of time; this covers users who arrive before the next sync tick.
func (s *ProfileService) EnsureProfile(externalUserID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.Profile{
			ExternalUserID: externalUserID,
			Username:       defaultUsername(externalUserID),
			TotalPoints:    0,
			CurrentLevel:   1,
		}
		if err := s.DB.Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// defaultUsername derives a placeholder name until the sync worker fills in
// the real one from the auth service.
func defaultUsername(externalUserID string) string {
	short := externalUserID
	if i := strings.Index(short, "-"); i > 0 {
		short = short[:i]
	}
	return "learner-" + short
}
