// handlers/quiz_routes.go
package handlers

import (
	"errors"

	"eco-rewards-service/middleware"
	"eco-rewards-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQuizRoutes(app *fiber.App, quizService *services.QuizService, aiService *services.AIService) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/quizzes", quizService.GetAllQuizzes)
	app.Get("/quizzes/:id", quizService.GetQuizByID)

	// 🔐 Admin authoring surface
	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.AdminOnlyMiddleware())

	admin.Get("/quizzes/:id", quizService.GetQuizFull)
	admin.Post("/quizzes", quizService.CreateQuiz)
	admin.Put("/quizzes/:id", quizService.UpdateQuiz)
	admin.Delete("/quizzes/:id", quizService.DeleteQuiz)
	admin.Post("/quizzes/:id/move", quizService.MoveQuiz)
	admin.Post("/quizzes/import", quizService.ImportQuiz)
	admin.Get("/quizzes/:id/export", quizService.ExportQuiz)

	// AI question generation for the authoring form
	admin.Post("/quizzes/generate", func(c *fiber.Ctx) error {
		var req services.GenerateRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Title == "" || req.Description == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Title and description are required"})
		}

		questions, err := aiService.GenerateQuestions(req)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrAIRateLimited):
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Rate limit exceeded. Please try again in a moment."})
			case errors.Is(err, services.ErrAIQuotaExhausted):
				return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "AI credits exhausted. Please add credits to your workspace."})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate questions with AI", "cause": err.Error()})
			}
		}

		return c.JSON(fiber.Map{"questions": questions})
	})
}
