// services/scheduler.go
package services

import (
	"log"
	"time"

	"eco-rewards-service/models"

	"github.com/go-co-op/gocron/v2"
)

// StartStreakScheduler resets lapsed daily streaks. A streak survives only if
// the profile completed a quiz today or yesterday.
func (s *ProgressionService) StartStreakScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			cutoff := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)

			result := s.DB.Model(&models.Profile{}).
				Where("current_streak > 0 AND (last_quiz_date IS NULL OR last_quiz_date < ?)", cutoff).
				Update("current_streak", 0)
			if result.Error != nil {
				log.Printf("[Scheduler] DB error resetting streaks: %v", result.Error)
				return
			}
			if result.RowsAffected > 0 {
				log.Printf("✅ Reset %d lapsed streaks", result.RowsAffected)
			}
		}),
	)
}
