package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"eco-rewards-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PointsPerLevel: points needed per level step (level n starts at (n-1)*100 points)
const PointsPerLevel = 100

// StreakBonusInterval / StreakBonusPoints: every 7th consecutive day pays a flat bonus
const (
	StreakBonusInterval = 7
	StreakBonusPoints   = 10
)

// CalculateLevel maps a cumulative point total to a level number.
func CalculateLevel(totalPoints int) int {
	if totalPoints < 0 {
		totalPoints = 0
	}
	return totalPoints/PointsPerLevel + 1
}

// ScorePercent returns the rounded percentage of correct answers (e.g., 2/3 → 67).
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// ProgressSnapshot is the policy's view of one progress row. Both UserProgress
// and GuestProgress reduce to this shape, so authenticated and guest path maps
// share one classifier.
type ProgressSnapshot struct {
	QuizID      string
	Score       int
	IsUnlocked  bool
	CompletedAt *time.Time
}

// QuizState pairs a quiz with its derived status for one identity.
type QuizState struct {
	Quiz     models.Quiz       `json:"quiz"`
	Status   models.QuizStatus `json:"status"`
	Unlocked bool              `json:"unlocked"`
	Score    int               `json:"score"`
}

// ClassifyQuizzes derives the locked/unlocked/completed status for every quiz.
// quizzes must be ordered by path_order. A quiz with no progress row is neither
// completed nor explicitly unlocked; it still unlocks when the previous quiz
// is completed, and the first quiz is never locked.
func ClassifyQuizzes(quizzes []models.Quiz, progress []ProgressSnapshot) []QuizState {
	byQuiz := make(map[string]ProgressSnapshot, len(progress))
	for _, p := range progress {
		byQuiz[p.QuizID] = p
	}

	states := make([]QuizState, len(quizzes))
	for i, quiz := range quizzes {
		rec, ok := byQuiz[quiz.ID]

		state := QuizState{Quiz: quiz.Sanitized(), Status: models.QuizStatusLocked}
		if ok {
			state.Score = rec.Score
		}

		switch {
		case ok && rec.CompletedAt != nil:
			state.Status = models.QuizStatusCompleted
			state.Unlocked = true
		case i == 0 || (ok && rec.IsUnlocked):
			state.Status = models.QuizStatusUnlocked
			state.Unlocked = true
		default:
			prev, prevOK := byQuiz[quizzes[i-1].ID]
			if prevOK && prev.CompletedAt != nil {
				state.Status = models.QuizStatusUnlocked
				state.Unlocked = true
			}
		}

		states[i] = state
	}
	return states
}

// UserProgressSnapshots converts user rows into the policy's shape.
func UserProgressSnapshots(rows []models.UserProgress) []ProgressSnapshot {
	out := make([]ProgressSnapshot, len(rows))
	for i, r := range rows {
		out[i] = ProgressSnapshot{QuizID: r.QuizID, Score: r.Score, IsUnlocked: r.IsUnlocked, CompletedAt: r.CompletedAt}
	}
	return out
}

// GuestProgressSnapshots converts guest rows into the policy's shape.
func GuestProgressSnapshots(rows []models.GuestProgress) []ProgressSnapshot {
	out := make([]ProgressSnapshot, len(rows))
	for i, r := range rows {
		out[i] = ProgressSnapshot{QuizID: r.QuizID, Score: r.Score, IsUnlocked: r.IsUnlocked, CompletedAt: r.CompletedAt}
	}
	return out
}

// StreakResult is what a completion does to the profile's daily streak.
type StreakResult struct {
	NewStreak   int  `json:"new_streak"`
	IsNewRecord bool `json:"is_new_record"`
	StreakBonus int  `json:"streak_bonus"`
}

// AdvanceStreak applies one quiz-completion day to the current streak state.
// Same-day completions leave the streak unchanged and pay no bonus; a gap of
// exactly one day extends it; anything longer restarts at 1.
func AdvanceStreak(lastQuizDate *time.Time, currentStreak, longestStreak int, completedOn time.Time) StreakResult {
	day := completedOn.Truncate(24 * time.Hour)

	newStreak := 1
	bonusEligible := true
	if lastQuizDate != nil {
		last := lastQuizDate.Truncate(24 * time.Hour)
		switch int(day.Sub(last).Hours() / 24) {
		case 0:
			newStreak = currentStreak
			if newStreak < 1 {
				newStreak = 1
			}
			bonusEligible = false
		case 1:
			newStreak = currentStreak + 1
		}
	}

	res := StreakResult{
		NewStreak:   newStreak,
		IsNewRecord: newStreak > longestStreak,
	}
	if bonusEligible && newStreak > 0 && newStreak%StreakBonusInterval == 0 {
		res.StreakBonus = StreakBonusPoints
	}
	return res
}

type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// GetQuizStates loads the ordered quiz list plus the user's rows and classifies them.
func (s *ProgressionService) GetQuizStates(externalUserID string) ([]QuizState, error) {
	var quizzes []models.Quiz
	if err := s.DB.Order("path_order ASC").Find(&quizzes).Error; err != nil {
		return nil, err
	}

	var rows []models.UserProgress
	if err := s.DB.Where("external_user_id = ?", externalUserID).Find(&rows).Error; err != nil {
		return nil, err
	}

	return ClassifyQuizzes(quizzes, UserProgressSnapshots(rows)), nil
}

// StartQuiz lazily creates the progress row on first access (idempotent).
// Locked quizzes are rejected so the client cannot skip ahead on the path.
func (s *ProgressionService) StartQuiz(externalUserID, quizID string) (*models.UserProgress, error) {
	states, err := s.GetQuizStates(externalUserID)
	if err != nil {
		return nil, err
	}

	var target *QuizState
	for i := range states {
		if states[i].Quiz.ID == quizID {
			target = &states[i]
			break
		}
	}
	if target == nil {
		return nil, gorm.ErrRecordNotFound
	}
	if !target.Unlocked {
		return nil, ErrQuizLocked
	}

	var row models.UserProgress
	err = s.DB.Where("external_user_id = ? AND quiz_id = ?", externalUserID, quizID).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row = models.UserProgress{
		ExternalUserID: externalUserID,
		QuizID:         quizID,
		IsUnlocked:     true,
		Score:          0,
	}
	if err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "quiz_id"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ErrQuizLocked is returned when a user tries to start a quiz the path hasn't reached.
var ErrQuizLocked = errors.New("quiz is locked")

// CompletionResult is the outcome of CompleteQuiz, returned to the client.
type CompletionResult struct {
	Score          int          `json:"score"`
	CorrectAnswers int          `json:"correct_answers"`
	Percent        int          `json:"percent"`
	TotalPoints    int          `json:"total_points"`
	Level          int          `json:"level"`
	Streak         StreakResult `json:"streak"`
	NextQuizID     *string      `json:"next_quiz_id,omitempty"`
}

// CompleteQuiz finalizes one attempt in a single transaction: upsert the
// progress row with a completion timestamp, credit the score (plus any streak
// bonus) to the profile, recompute the level, update the streak, and unlock
// the quiz at the next path_order if one exists.
func (s *ProgressionService) CompleteQuiz(externalUserID, quizID string, score, correctAnswers int) (*CompletionResult, error) {
	var result *CompletionResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var quiz models.Quiz
		if err := tx.Where("id = ?", quizID).First(&quiz).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("quiz %s not found: %w", quizID, err)
			}
			return err
		}

		now := time.Now().UTC()
		row := models.UserProgress{
			ExternalUserID: externalUserID,
			QuizID:         quizID,
			Score:          score,
			IsUnlocked:     true,
			CompletedAt:    &now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "quiz_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "is_unlocked", "completed_at", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}

		// Row lock: completion and redemption both mutate total_points
		var profile models.Profile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("external_user_id = ?", externalUserID).First(&profile).Error; err != nil {
			return fmt.Errorf("profile not found for %s", externalUserID)
		}

		streak := AdvanceStreak(profile.LastQuizDate, profile.CurrentStreak, profile.LongestStreak, now)

		profile.TotalPoints += score + streak.StreakBonus
		profile.CurrentLevel = CalculateLevel(profile.TotalPoints)
		profile.CurrentStreak = streak.NewStreak
		if streak.IsNewRecord {
			profile.LongestStreak = streak.NewStreak
		}
		day := now.Truncate(24 * time.Hour)
		profile.LastQuizDate = &day

		if err := tx.Save(&profile).Error; err != nil {
			return err
		}

		var nextQuizID *string
		var nextQuiz models.Quiz
		err := tx.Where("path_order = ?", quiz.PathOrder+1).First(&nextQuiz).Error
		if err == nil {
			next := models.UserProgress{
				ExternalUserID: externalUserID,
				QuizID:         nextQuiz.ID,
				IsUnlocked:     true,
				Score:          0,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_user_id"}, {Name: "quiz_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"is_unlocked": true}),
			}).Create(&next).Error; err != nil {
				return err
			}
			nextQuizID = &nextQuiz.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		result = &CompletionResult{
			Score:          score,
			CorrectAnswers: correctAnswers,
			Percent:        ScorePercent(correctAnswers, len(quiz.Questions)),
			TotalPoints:    profile.TotalPoints,
			Level:          profile.CurrentLevel,
			Streak:         streak,
			NextQuizID:     nextQuizID,
		}

		log.Printf("🏅 Quiz completed: user=%s quiz=%s score=%d streak=%d points=%d",
			externalUserID, quizID, score, streak.NewStreak, profile.TotalPoints)

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
