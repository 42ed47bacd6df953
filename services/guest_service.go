package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"eco-rewards-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GuestService struct {
	DB *gorm.DB
}

func NewGuestService(db *gorm.DB) *GuestService {
	return &GuestService{DB: db}
}

// GetProgress lists a guest's rows. An unknown guest id is not an error,
// it is simply an empty journey.
func (s *GuestService) GetProgress(guestID string) ([]models.GuestProgress, error) {
	var rows []models.GuestProgress
	if err := s.DB.Where("guest_id = ?", guestID).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveProgress upserts one record per (guest, quiz). Writing twice for the
// same quiz id leaves exactly one row, with the later write's fields winning.
func (s *GuestService) SaveProgress(rec *models.GuestProgress) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guest_id"}, {Name: "quiz_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "is_unlocked", "completed_at", "updated_at"}),
	}).Create(rec).Error
}

// CompleteQuiz records a guest completion and unlocks the quiz at the next
// path_order, mirroring the authenticated flow without touching any profile.
func (s *GuestService) CompleteQuiz(guestID, quizID string, score int) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var quiz models.Quiz
		if err := tx.Where("id = ?", quizID).First(&quiz).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("quiz %s not found: %w", quizID, err)
			}
			return err
		}

		now := time.Now().UTC()
		rec := models.GuestProgress{
			GuestID:     guestID,
			QuizID:      quizID,
			Score:       score,
			IsUnlocked:  true,
			CompletedAt: &now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guest_id"}, {Name: "quiz_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "is_unlocked", "completed_at", "updated_at"}),
		}).Create(&rec).Error; err != nil {
			return err
		}

		var nextQuiz models.Quiz
		err := tx.Where("path_order = ?", quiz.PathOrder+1).First(&nextQuiz).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // end of the path
		}
		if err != nil {
			return err
		}

		next := models.GuestProgress{
			GuestID:    guestID,
			QuizID:     nextQuiz.ID,
			IsUnlocked: true,
			Score:      0,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guest_id"}, {Name: "quiz_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"is_unlocked": true}),
		}).Create(&next).Error
	})
}

// ClearProgress drops all rows for a guest.
func (s *GuestService) ClearProgress(guestID string) error {
	return s.DB.Where("guest_id = ?", guestID).Delete(&models.GuestProgress{}).Error
}

// TransferResult summarizes a guest-to-account merge.
type TransferResult struct {
	Transferred int `json:"transferred"`
	Points      int `json:"points"`
	TotalPoints int `json:"total_points"`
	Level       int `json:"level"`
}

// Transfer moves a guest's rows into user_progress for externalUserID, credits
// points from completed rows to the profile, and clears the guest rows — all
// in one transaction, so a failure leaves the guest store intact and the
// profile untouched. An empty guest store transfers zero records and is a no-op.
func (s *GuestService) Transfer(guestID, externalUserID string) (*TransferResult, error) {
	var result *TransferResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var rows []models.GuestProgress
		if err := tx.Where("guest_id = ?", guestID).Find(&rows).Error; err != nil {
			return err
		}

		if len(rows) == 0 {
			result = &TransferResult{}
			return nil
		}

		points := 0
		for _, r := range rows {
			row := models.UserProgress{
				ExternalUserID: externalUserID,
				QuizID:         r.QuizID,
				Score:          r.Score,
				IsUnlocked:     r.IsUnlocked,
				CompletedAt:    r.CompletedAt,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "quiz_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"score", "is_unlocked", "completed_at", "updated_at"}),
			}).Create(&row).Error; err != nil {
				return err
			}
			if r.CompletedAt != nil {
				points += r.Score
			}
		}

		var profile models.Profile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_user_id = ?", externalUserID).First(&profile).Error; err != nil {
			return fmt.Errorf("profile not found for %s", externalUserID)
		}

		if points > 0 {
			profile.TotalPoints += points
			profile.CurrentLevel = CalculateLevel(profile.TotalPoints)
			if err := tx.Save(&profile).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("guest_id = ?", guestID).Delete(&models.GuestProgress{}).Error; err != nil {
			return err
		}

		result = &TransferResult{
			Transferred: len(rows),
			Points:      points,
			TotalPoints: profile.TotalPoints,
			Level:       profile.CurrentLevel,
		}

		log.Printf("🔄 Guest transfer: %s → %s (%d records, %d points)",
			guestID, externalUserID, len(rows), points)

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetGuestQuizStates classifies the path for a guest identity.
func (s *GuestService) GetGuestQuizStates(guestID string) ([]QuizState, error) {
	var quizzes []models.Quiz
	if err := s.DB.Order("path_order ASC").Find(&quizzes).Error; err != nil {
		return nil, err
	}

	rows, err := s.GetProgress(guestID)
	if err != nil {
		return nil, err
	}

	return ClassifyQuizzes(quizzes, GuestProgressSnapshots(rows)), nil
}
