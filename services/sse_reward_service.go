package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"eco-rewards-service/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamUserRewardsSSE streams new redemptions and the running point balance
// for the authenticated user, so the dashboard refreshes without polling.
func (s *RewardService) StreamUserRewardsSSE(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastRedeemedAt time.Time
		lastPoints := -1

		// Initialize cursor at the newest existing redemption
		var latest models.UserReward
		if err := s.DB.
			Where("external_user_id = ?", userID).
			Order("redeemed_at DESC").
			First(&latest).Error; err == nil {
			lastRedeemedAt = latest.RedeemedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("SSE init error for user %s: %v", userID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var newRedemptions []models.UserReward
				err := s.DB.
					Where("external_user_id = ? AND redeemed_at > ?", userID, lastRedeemedAt).
					Preload("Reward").
					Order("redeemed_at ASC").
					Find(&newRedemptions).Error
				if err != nil {
					log.Printf("SSE query error for user %s: %v", userID, err)
					continue
				}

				if len(newRedemptions) > 0 {
					lastRedeemedAt = newRedemptions[len(newRedemptions)-1].RedeemedAt
					for _, r := range newRedemptions {
						payload, _ := json.Marshal(r)
						fmt.Fprintf(w, "event: redemption\ndata: %s\n\n", payload)
					}
				}

				var profile models.Profile
				if err := s.DB.Where("external_user_id = ?", userID).First(&profile).Error; err == nil {
					if profile.TotalPoints != lastPoints {
						lastPoints = profile.TotalPoints
						payload, _ := json.Marshal(fiber.Map{
							"total_points":  profile.TotalPoints,
							"current_level": profile.CurrentLevel,
						})
						fmt.Fprintf(w, "event: balance\ndata: %s\n\n", payload)
					}
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
