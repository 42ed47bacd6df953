// services/reward_service.go
package services

import (
	"errors"
	"fmt"
	"log"

	"eco-rewards-service/models"
	"eco-rewards-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RewardService struct {
	DB *gorm.DB
}

func NewRewardService(db *gorm.DB) *RewardService {
	return &RewardService{DB: db}
}

// ErrInsufficientPoints rejects a redemption the caller cannot afford.
var ErrInsufficientPoints = errors.New("not enough points")

// CanRedeem is the affordability rule: exact balance is enough.
func CanRedeem(totalPoints, pointsCost int) bool {
	return totalPoints >= pointsCost
}

// RedemptionResult is returned to the client after a successful redemption.
type RedemptionResult struct {
	Redemption  models.UserReward `json:"redemption"`
	TotalPoints int               `json:"total_points"`
	Level       int               `json:"level"`
}

// Redeem appends a ledger row and deducts the cost in one transaction. The
// profile row is locked for the duration so concurrent redemptions cannot
// double-spend the same balance.
func (s *RewardService) Redeem(externalUserID, rewardID string) (*RedemptionResult, error) {
	var result *RedemptionResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var reward models.Reward
		if err := tx.Where("id = ? AND is_active = ?", rewardID, true).First(&reward).Error; err != nil {
			return err
		}

		var profile models.Profile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_user_id = ?", externalUserID).First(&profile).Error; err != nil {
			return fmt.Errorf("profile not found for %s", externalUserID)
		}

		if !CanRedeem(profile.TotalPoints, reward.PointsCost) {
			return ErrInsufficientPoints
		}

		redemption := models.UserReward{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			RewardID:       reward.ID,
		}
		if err := tx.Create(&redemption).Error; err != nil {
			return err
		}

		profile.TotalPoints -= reward.PointsCost
		profile.CurrentLevel = CalculateLevel(profile.TotalPoints)
		if err := tx.Save(&profile).Error; err != nil {
			return err
		}

		redemption.Reward = &reward
		result = &RedemptionResult{
			Redemption:  redemption,
			TotalPoints: profile.TotalPoints,
			Level:       profile.CurrentLevel,
		}

		log.Printf("🎁 Reward redeemed: %s → %s (-%d points, %d left)",
			externalUserID, reward.Title, reward.PointsCost, profile.TotalPoints)

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// --- User Handlers ---

// GetCatalog returns the active catalog, cheapest first.
func (s *RewardService) GetCatalog(c *fiber.Ctx) error {
	var rewards []models.Reward
	if err := s.DB.Where("is_active = ?", true).Order("points_cost ASC").Find(&rewards).Error; err != nil {
		log.Printf("DB Error fetching reward catalog: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}

// RedeemReward handles POST /user/rewards/:id/redeem
func (s *RewardService) RedeemReward(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	rewardID := c.Params("id")

	if _, err := uuid.Parse(rewardID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	result, err := s.Redeem(userID, rewardID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientPoints):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Not enough points"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		default:
			log.Printf("DB Error redeeming reward: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to redeem reward"})
		}
	}

	return c.JSON(result)
}

// GetRedemptionHistory returns the user's ledger, newest first.
func (s *RewardService) GetRedemptionHistory(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var redemptions []models.UserReward
	if err := s.DB.Where("external_user_id = ?", userID).
		Preload("Reward").
		Order("redeemed_at DESC").
		Find(&redemptions).Error; err != nil {
		log.Printf("DB Error fetching redemption history: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch redemptions"})
	}
	return c.JSON(redemptions)
}

// --- Admin Handlers ---

// CreateReward creates a catalog entry (Admin only)
func (s *RewardService) CreateReward(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title" validate:"required,min=3,max=100"`
		Description string `json:"description"`
		PointsCost  int    `json:"points_cost" validate:"required,min=1"`
		IsActive    *bool  `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := utils.Validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": utils.FirstValidationError(err)})
	}

	reward := &models.Reward{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		PointsCost:  req.PointsCost,
		IsActive:    true,
	}
	if req.IsActive != nil {
		reward.IsActive = *req.IsActive
	}

	if err := s.DB.Create(reward).Error; err != nil {
		log.Printf("DB Error creating reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create reward"})
	}

	return c.Status(fiber.StatusCreated).JSON(reward)
}

// UpdateReward updates a catalog entry (Admin only)
func (s *RewardService) UpdateReward(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var existing models.Reward
	if err := s.DB.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		PointsCost  *int    `json:"points_cost"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Title != nil {
		existing.Title = *req.Title
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.PointsCost != nil {
		if *req.PointsCost < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "points_cost must be at least 1"})
		}
		existing.PointsCost = *req.PointsCost
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}

	if err := s.DB.Save(&existing).Error; err != nil {
		log.Printf("DB Error updating reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update reward"})
	}

	return c.JSON(existing)
}

// DeleteReward removes a catalog entry (Admin only). Soft delete keeps ledger
// rows resolvable.
func (s *RewardService) DeleteReward(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.DB.Delete(&reward).Error; err != nil {
		log.Printf("DB Error deleting reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete reward"})
	}

	return c.JSON(fiber.Map{"message": "Reward deleted successfully"})
}

// GetAllRewards fetches the full catalog including inactive entries (Admin only)
func (s *RewardService) GetAllRewards(c *fiber.Ctx) error {
	var rewards []models.Reward
	if err := s.DB.Order("points_cost ASC").Find(&rewards).Error; err != nil {
		log.Printf("DB Error fetching all rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}

// UploadRewardImage stores a catalog image on R2 and points image_url at it (Admin only)
func (s *RewardService) UploadRewardImage(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image file is required"})
	}

	key := fmt.Sprintf("rewards/%s-%s%s", slug.Make(reward.Title), reward.ID[:8], utils.FileExt(fileHeader.Filename))
	url, err := utils.UploadFileToR2(fileHeader, key)
	if err != nil {
		log.Printf("R2 upload failed for reward %s: %v", reward.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload image"})
	}

	reward.ImageURL = &url
	if err := s.DB.Save(&reward).Error; err != nil {
		log.Printf("DB Error saving reward image URL: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update reward"})
	}

	return c.JSON(fiber.Map{"message": "Image uploaded", "image_url": url, "reward": reward})
}
