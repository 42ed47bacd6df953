// handlers/progress_routes.go
package handlers

import (
	"errors"
	"time"

	"eco-rewards-service/middleware"
	"eco-rewards-service/models"
	"eco-rewards-service/services"
	"eco-rewards-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func SetupProgressRoutes(
	app *fiber.App,
	progressionService *services.ProgressionService,
	profileService *services.ProfileService,
	guestService *services.GuestService,
	aiService *services.AIService,
) {
	secured := app.Group("/user", middleware.UserContextMiddleware())

	secured.Get("/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		profile, err := profileService.EnsureProfile(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load profile",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"id":             profile.ID,
			"username":       profile.Username,
			"total_points":   profile.TotalPoints,
			"current_level":  profile.CurrentLevel,
			"current_streak": profile.CurrentStreak,
			"longest_streak": profile.LongestStreak,
			"last_quiz_date": profile.LastQuizDate,
		})
	})

	// The classified learning path for the authenticated user
	secured.Get("/quizzes", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		states, err := progressionService.GetQuizStates(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load quiz states",
				"cause": err.Error(),
			})
		}
		return c.JSON(states)
	})

	secured.Post("/quizzes/:id/start", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		quizID := c.Params("id")
		if _, err := uuid.Parse(quizID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid quiz ID"})
		}

		if _, err := profileService.EnsureProfile(userID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load profile", "cause": err.Error()})
		}

		row, err := progressionService.StartQuiz(userID, quizID)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrQuizLocked):
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "quiz is locked"})
			case errors.Is(err, gorm.ErrRecordNotFound):
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "quiz not found"})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to start quiz", "cause": err.Error()})
			}
		}
		return c.JSON(row)
	})

	// Grade one answer and fetch feedback. Feedback failures degrade to a
	// canned string; this endpoint never fails on the proxy.
	secured.Post("/quizzes/:id/answer", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		quizID := c.Params("id")

		type Req struct {
			QuestionIndex int `json:"question_index" validate:"min=0"`
			AnswerIndex   int `json:"answer_index" validate:"min=0"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := utils.Validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": utils.FirstValidationError(err)})
		}

		// Grading reveals the correct index, so locked quizzes are off limits.
		states, err := progressionService.GetQuizStates(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load quiz states", "cause": err.Error()})
		}
		var target *services.QuizState
		for i := range states {
			if states[i].Quiz.ID == quizID {
				target = &states[i]
				break
			}
		}
		if target == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "quiz not found"})
		}
		if !target.Unlocked {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "quiz is locked"})
		}

		var quiz models.Quiz
		if err := progressionService.DB.Where("id = ?", quizID).First(&quiz).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "quiz not found"})
		}
		if req.QuestionIndex < 0 || req.QuestionIndex >= len(quiz.Questions) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "question index out of range"})
		}
		question := quiz.Questions[req.QuestionIndex]
		if req.AnswerIndex < 0 || req.AnswerIndex >= len(question.Options) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "answer index out of range"})
		}

		correct := req.AnswerIndex == question.CorrectIndex
		points := 0
		if correct {
			points = quiz.PointsPerQuestion
		}

		feedback := aiService.GetFeedback(services.FeedbackRequest{
			Question:   question.Question,
			UserAnswer: question.Options[req.AnswerIndex],
			Correct:    correct,
			Context:    question.ContextForAI,
		})

		return c.JSON(fiber.Map{
			"correct":       correct,
			"correct_index": question.CorrectIndex,
			"points":        points,
			"feedback":      feedback,
		})
	})

	secured.Post("/quizzes/:id/complete", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		quizID := c.Params("id")

		type Req struct {
			Score          int `json:"score" validate:"min=0"`
			CorrectAnswers int `json:"correct_answers" validate:"min=0"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := utils.Validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": utils.FirstValidationError(err)})
		}

		if _, err := profileService.EnsureProfile(userID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load profile", "cause": err.Error()})
		}

		result, err := progressionService.CompleteQuiz(userID, quizID, req.Score, req.CorrectAnswers)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "quiz not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to complete quiz",
				"cause": err.Error(),
			})
		}
		return c.JSON(result)
	})

	// Guest-to-account merge, run once after sign-up
	secured.Post("/progress/transfer", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			GuestID string `json:"guest_id" validate:"required"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := utils.Validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": utils.FirstValidationError(err)})
		}

		if _, err := profileService.EnsureProfile(userID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load profile", "cause": err.Error()})
		}

		result, err := guestService.Transfer(req.GuestID, userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "transfer failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(result)
	})

	// 🔓 Guest surface — gateway auth only, identity is the opaque guest id
	guest := app.Group("/guest/:guestID")

	guest.Get("/progress", func(c *fiber.Ctx) error {
		rows, err := guestService.GetProgress(c.Params("guestID"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load guest progress"})
		}
		return c.JSON(rows)
	})

	guest.Get("/quizzes", func(c *fiber.Ctx) error {
		states, err := guestService.GetGuestQuizStates(c.Params("guestID"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load quiz states"})
		}
		return c.JSON(states)
	})

	guest.Put("/progress", func(c *fiber.Ctx) error {
		type Req struct {
			QuizID      string     `json:"quiz_id" validate:"required,uuid"`
			Score       int        `json:"score" validate:"min=0"`
			IsUnlocked  bool       `json:"is_unlocked"`
			CompletedAt *time.Time `json:"completed_at"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := utils.Validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": utils.FirstValidationError(err)})
		}

		rec := models.GuestProgress{
			GuestID:     c.Params("guestID"),
			QuizID:      req.QuizID,
			Score:       req.Score,
			IsUnlocked:  req.IsUnlocked,
			CompletedAt: req.CompletedAt,
		}
		if err := guestService.SaveProgress(&rec); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save guest progress"})
		}
		return c.JSON(rec)
	})

	guest.Post("/quizzes/:id/complete", func(c *fiber.Ctx) error {
		type Req struct {
			Score int `json:"score" validate:"min=0"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if err := utils.Validate.Struct(req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": utils.FirstValidationError(err)})
		}

		if err := guestService.CompleteQuiz(c.Params("guestID"), c.Params("id"), req.Score); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "quiz not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to complete quiz", "cause": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "completed"})
	})

	guest.Delete("/progress", func(c *fiber.Ctx) error {
		if err := guestService.ClearProgress(c.Params("guestID")); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to clear guest progress"})
		}
		return c.JSON(fiber.Map{"message": "cleared"})
	})
}
