// services/quiz_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"eco-rewards-service/models"
	"eco-rewards-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type QuizService struct {
	DB *gorm.DB
}

func NewQuizService(db *gorm.DB) *QuizService {
	return &QuizService{DB: db}
}

// --- Public Handlers ---

// GetAllQuizzes lists the learning path in order, with answers stripped.
func (s *QuizService) GetAllQuizzes(c *fiber.Ctx) error {
	var quizzes []models.Quiz
	if err := s.DB.Order("path_order ASC").Find(&quizzes).Error; err != nil {
		log.Printf("DB Error fetching quizzes: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch quizzes"})
	}

	sanitized := make([]models.Quiz, len(quizzes))
	for i, q := range quizzes {
		sanitized[i] = q.Sanitized()
	}
	return c.JSON(sanitized)
}

// GetQuizByID returns one quiz with answers stripped.
func (s *QuizService) GetQuizByID(c *fiber.Ctx) error {
	quiz, err := s.findQuiz(c.Params("id"))
	if err != nil {
		return quizLookupError(c, err)
	}
	return c.JSON(quiz.Sanitized())
}

// --- Admin Handlers ---

// GetQuizFull returns one quiz including correct indexes (Admin only)
func (s *QuizService) GetQuizFull(c *fiber.Ctx) error {
	quiz, err := s.findQuiz(c.Params("id"))
	if err != nil {
		return quizLookupError(c, err)
	}
	return c.JSON(quiz)
}

// CreateQuiz appends a quiz to the end of the path (max path_order + 1).
func (s *QuizService) CreateQuiz(c *fiber.Ctx) error {
	var doc QuizDocument
	if err := c.BodyParser(&doc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := doc.Validate(); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	var quiz *models.Quiz
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		nextOrder := 1
		var last models.Quiz
		err := tx.Order("path_order DESC").First(&last).Error
		if err == nil {
			nextOrder = last.PathOrder + 1
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		quiz = &models.Quiz{
			ID:                uuid.NewString(),
			Title:             doc.Title,
			Description:       doc.Description,
			PathOrder:         nextOrder,
			PointsPerQuestion: doc.PointsPerQuestion,
			Questions:         doc.ModelQuestions(),
		}
		return tx.Create(quiz).Error
	})
	if err != nil {
		log.Printf("DB Error creating quiz: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create quiz"})
	}

	return c.Status(fiber.StatusCreated).JSON(quiz)
}

// UpdateQuiz replaces title/description/points/questions; path_order moves only via MoveQuiz.
func (s *QuizService) UpdateQuiz(c *fiber.Ctx) error {
	quiz, err := s.findQuiz(c.Params("id"))
	if err != nil {
		return quizLookupError(c, err)
	}

	var doc QuizDocument
	if err := c.BodyParser(&doc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := doc.Validate(); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	quiz.Title = doc.Title
	quiz.Description = doc.Description
	quiz.PointsPerQuestion = doc.PointsPerQuestion
	quiz.Questions = doc.ModelQuestions()

	if err := s.DB.Save(quiz).Error; err != nil {
		log.Printf("DB Error updating quiz: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update quiz"})
	}
	return c.JSON(quiz)
}

// DeleteQuiz removes a quiz (soft delete; progress rows keep their history).
func (s *QuizService) DeleteQuiz(c *fiber.Ctx) error {
	quiz, err := s.findQuiz(c.Params("id"))
	if err != nil {
		return quizLookupError(c, err)
	}

	if err := s.DB.Delete(quiz).Error; err != nil {
		log.Printf("DB Error deleting quiz: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete quiz"})
	}
	return c.JSON(fiber.Map{"message": "Quiz deleted successfully"})
}

// MoveQuiz swaps path_order with the neighbor above or below.
func (s *QuizService) MoveQuiz(c *fiber.Ctx) error {
	quiz, err := s.findQuiz(c.Params("id"))
	if err != nil {
		return quizLookupError(c, err)
	}

	var req struct {
		Direction string `json:"direction" validate:"required,oneof=up down"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := utils.Validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": utils.FirstValidationError(err)})
	}

	neighborOrder := quiz.PathOrder - 1
	if req.Direction == "down" {
		neighborOrder = quiz.PathOrder + 1
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var neighbor models.Quiz
		if err := tx.Where("path_order = ?", neighborOrder).First(&neighbor).Error; err != nil {
			return err
		}

		// Park the moving quiz outside the dense range so the unique index
		// never sees a duplicate mid-swap.
		if err := tx.Model(&models.Quiz{}).Where("id = ?", quiz.ID).Update("path_order", -quiz.PathOrder).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Quiz{}).Where("id = ?", neighbor.ID).Update("path_order", quiz.PathOrder).Error; err != nil {
			return err
		}
		return tx.Model(&models.Quiz{}).Where("id = ?", quiz.ID).Update("path_order", neighborOrder).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Quiz is already at that end of the path"})
		}
		log.Printf("DB Error moving quiz: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to move quiz"})
	}

	return c.JSON(fiber.Map{"message": "Quiz moved", "direction": req.Direction})
}

// ImportQuiz accepts the JSON export document and creates a quiz from it.
func (s *QuizService) ImportQuiz(c *fiber.Ctx) error {
	return s.CreateQuiz(c)
}

// ExportQuiz writes the quiz back in the import document shape as a download.
func (s *QuizService) ExportQuiz(c *fiber.Ctx) error {
	quiz, err := s.findQuiz(c.Params("id"))
	if err != nil {
		return quizLookupError(c, err)
	}

	doc := DocumentFromQuiz(*quiz)
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to export quiz"})
	}

	filename := fmt.Sprintf("%s.json", slug.Make(quiz.Title))
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Send(payload)
}

func (s *QuizService) findQuiz(id string) (*models.Quiz, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errInvalidQuizID
	}
	var quiz models.Quiz
	if err := s.DB.First(&quiz, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quiz, nil
}

var errInvalidQuizID = errors.New("invalid quiz id")

func quizLookupError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidQuizID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid quiz ID"})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Quiz not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
}

// --- Import/export document ---

// QuestionDocument is one question in the interchange document. Both the
// camelCase (correctAnswer) and snake_case (correct_index) spellings are
// accepted on input; export writes camelCase.
type QuestionDocument struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctAnswer"`
	ContextForAI string   `json:"context_for_ai,omitempty"`
}

func (q *QuestionDocument) UnmarshalJSON(data []byte) error {
	var raw struct {
		Question      string   `json:"question"`
		Options       []string `json:"options"`
		CorrectAnswer *int     `json:"correctAnswer"`
		CorrectIndex  *int     `json:"correct_index"`
		ContextForAI  string   `json:"context_for_ai"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q.Question = raw.Question
	q.Options = raw.Options
	q.ContextForAI = raw.ContextForAI
	switch {
	case raw.CorrectAnswer != nil:
		q.CorrectIndex = *raw.CorrectAnswer
	case raw.CorrectIndex != nil:
		q.CorrectIndex = *raw.CorrectIndex
	default:
		q.CorrectIndex = 0
	}
	return nil
}

// QuizDocument is the import/export shape for one quiz.
type QuizDocument struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	PointsPerQuestion int                `json:"points_per_question"`
	Questions         []QuestionDocument `json:"questions"`
}

func (d *QuizDocument) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title                  string             `json:"title"`
		Description            string             `json:"description"`
		PointsPerQuestionSnake *int               `json:"points_per_question"`
		PointsPerQuestionCamel *int               `json:"pointsPerQuestion"`
		Questions              []QuestionDocument `json:"questions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Title = raw.Title
	d.Description = raw.Description
	d.Questions = raw.Questions
	switch {
	case raw.PointsPerQuestionSnake != nil:
		d.PointsPerQuestion = *raw.PointsPerQuestionSnake
	case raw.PointsPerQuestionCamel != nil:
		d.PointsPerQuestion = *raw.PointsPerQuestionCamel
	default:
		d.PointsPerQuestion = 10
	}
	return nil
}

// Validate checks the document field by field and returns the FIRST failing
// rule as a message, or "" when valid.
func (d *QuizDocument) Validate() string {
	title := strings.TrimSpace(d.Title)
	if len(title) < 3 {
		return "Title must be at least 3 characters"
	}
	if len(title) > 100 {
		return "Title too long"
	}

	desc := strings.TrimSpace(d.Description)
	if len(desc) < 10 {
		return "Description must be at least 10 characters"
	}
	if len(desc) > 500 {
		return "Description too long"
	}

	if d.PointsPerQuestion < 1 {
		return "Must award at least 1 point per question"
	}
	if d.PointsPerQuestion > 100 {
		return "Max 100 points per question"
	}

	if len(d.Questions) < 1 {
		return "Must have at least 1 question"
	}
	if len(d.Questions) > 50 {
		return "Max 50 questions per quiz"
	}

	for i, q := range d.Questions {
		text := strings.TrimSpace(q.Question)
		if len(text) < 5 {
			return fmt.Sprintf("Question %d must be at least 5 characters", i+1)
		}
		if len(text) > 500 {
			return fmt.Sprintf("Question %d too long", i+1)
		}
		if len(q.Options) < 2 || len(q.Options) > 6 {
			return fmt.Sprintf("Question %d must have 2 to 6 options", i+1)
		}
		for j, opt := range q.Options {
			trimmed := strings.TrimSpace(opt)
			if trimmed == "" {
				return fmt.Sprintf("Question %d option %d cannot be empty", i+1, j+1)
			}
			if len(trimmed) > 200 {
				return fmt.Sprintf("Question %d option %d too long", i+1, j+1)
			}
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Sprintf("Question %d correct answer must be 0-%d", i+1, len(q.Options)-1)
		}
	}

	return ""
}

// ModelQuestions converts the document questions into the stored shape.
func (d *QuizDocument) ModelQuestions() []models.Question {
	out := make([]models.Question, len(d.Questions))
	for i, q := range d.Questions {
		opts := make([]string, len(q.Options))
		for j, o := range q.Options {
			opts[j] = strings.TrimSpace(o)
		}
		out[i] = models.Question{
			Question:     strings.TrimSpace(q.Question),
			Options:      opts,
			CorrectIndex: q.CorrectIndex,
			ContextForAI: strings.TrimSpace(q.ContextForAI),
		}
	}
	return out
}

// DocumentFromQuiz builds the export document for a stored quiz.
func DocumentFromQuiz(quiz models.Quiz) QuizDocument {
	questions := make([]QuestionDocument, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = QuestionDocument{
			Question:     q.Question,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			ContextForAI: q.ContextForAI,
		}
	}
	return QuizDocument{
		Title:             quiz.Title,
		Description:       quiz.Description,
		PointsPerQuestion: quiz.PointsPerQuestion,
		Questions:         questions,
	}
}
