package handlers

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"eco-rewards-service/services"
)

func newProgressTestApp(t *testing.T) (*fiber.App, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	app := fiber.New()
	SetupProgressRoutes(app,
		services.NewProgressionService(db),
		services.NewProfileService(db),
		services.NewGuestService(db),
		&services.AIService{},
	)
	return app, mock
}

func TestCompleteQuiz_RejectsNegativeScore(t *testing.T) {
	app, mock := newProgressTestApp(t)

	req := httptest.NewRequest("POST", "/user/quizzes/55555555-5555-5555-5555-555555555555/complete",
		strings.NewReader(`{"score":-40,"correct_answers":0}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "score must be at least 0")

	// The request was rejected before any profile or progress write.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGuestSaveProgress_RejectsNegativeScore(t *testing.T) {
	app, mock := newProgressTestApp(t)

	req := httptest.NewRequest("PUT", "/guest/guest-1/progress",
		strings.NewReader(`{"quiz_id":"55555555-5555-5555-5555-555555555555","score":-5}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransfer_RequiresGuestID(t *testing.T) {
	app, mock := newProgressTestApp(t)

	req := httptest.NewRequest("POST", "/user/progress/transfer", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "guest_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnswerQuiz_LockedQuizForbidden(t *testing.T) {
	app, mock := newProgressTestApp(t)

	quizRows := sqlmock.NewRows([]string{"id", "title", "path_order", "points_per_question"}).
		AddRow("quiz-1", "Recycling Basics", 1, 10).
		AddRow("quiz-2", "Water Conservation", 2, 10)
	mock.ExpectQuery(`SELECT (.+) FROM "quizzes"`).WillReturnRows(quizRows)

	mock.ExpectQuery(`SELECT (.+) FROM "user_progress"`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_user_id", "quiz_id", "score", "is_unlocked", "completed_at"}))

	req := httptest.NewRequest("POST", "/user/quizzes/quiz-2/answer",
		strings.NewReader(`{"question_index":0,"answer_index":0}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "locked")

	// The correct index was never loaded for grading.
	require.NoError(t, mock.ExpectationsWereMet())
}
