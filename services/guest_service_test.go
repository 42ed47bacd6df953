package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"eco-rewards-service/models"
)

func TestGuestService_GetProgress_UnknownGuest(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewGuestService(db)

	mock.ExpectQuery(`SELECT (.+) FROM "guest_progress"`).
		WithArgs("ghost-guest").
		WillReturnRows(sqlmock.NewRows([]string{"id", "guest_id", "quiz_id", "score", "is_unlocked", "completed_at"}))

	rows, err := service.GetProgress("ghost-guest")
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGuestService_Transfer_EmptyStoreIsNoOp(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewGuestService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "guest_progress"`).
		WithArgs("guest-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "guest_id", "quiz_id", "score", "is_unlocked", "completed_at"}))
	mock.ExpectCommit()

	result, err := service.Transfer("guest-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.Transferred)
	assert.Equal(t, 0, result.Points)

	// No profile read or write happened.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGuestService_Transfer_CreditsCompletedRowsOnly(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewGuestService(db)

	mock.ExpectBegin()

	completed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	guestRows := sqlmock.NewRows([]string{"id", "guest_id", "quiz_id", "score", "is_unlocked", "completed_at"}).
		AddRow("row-1", "guest-1", "quiz-1", 30, true, completed).
		AddRow("row-2", "guest-1", "quiz-2", 20, true, nil)
	mock.ExpectQuery(`SELECT (.+) FROM "guest_progress"`).
		WithArgs("guest-1").
		WillReturnRows(guestRows)

	// Both rows are upserted into user_progress...
	mock.ExpectQuery(`INSERT INTO "user_progress"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("up-1"))
	mock.ExpectQuery(`INSERT INTO "user_progress"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("up-2"))

	profileRows := sqlmock.NewRows([]string{"id", "external_user_id", "username", "total_points", "current_level", "current_streak", "longest_streak"}).
		AddRow("profile-1", "user-1", "eco-user", 70, 1, 0, 0)
	mock.ExpectQuery(`SELECT (.+) FROM "profiles"(.+)FOR UPDATE`).WillReturnRows(profileRows)

	// ...but only the completed row's score is credited: 70+30=100, level 2.
	mock.ExpectExec(`UPDATE "profiles" SET`).
		WithArgs("user-1", "eco-user", 100, 2, 0, 0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "profile-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`DELETE FROM "guest_progress"`).
		WithArgs("guest-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	mock.ExpectCommit()

	result, err := service.Transfer("guest-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Transferred)
	assert.Equal(t, 30, result.Points)
	assert.Equal(t, 100, result.TotalPoints)
	assert.Equal(t, 2, result.Level)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGuestService_CompleteQuiz_UnknownQuiz(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewGuestService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "quizzes"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "path_order"}))
	mock.ExpectRollback()

	err := service.CompleteQuiz("guest-1", "99999999-9999-9999-9999-999999999999", 10)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGuestService_GetGuestQuizStates(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewGuestService(db)

	quizRows := sqlmock.NewRows([]string{"id", "title", "description", "path_order", "points_per_question"}).
		AddRow("quiz-1", "Recycling Basics", "Sorting household waste", 1, 10).
		AddRow("quiz-2", "Water Conservation", "Saving water at home", 2, 10)
	mock.ExpectQuery(`SELECT (.+) FROM "quizzes"`).WillReturnRows(quizRows)

	completed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	guestRows := sqlmock.NewRows([]string{"id", "guest_id", "quiz_id", "score", "is_unlocked", "completed_at"}).
		AddRow("row-1", "guest-1", "quiz-1", 30, true, completed)
	mock.ExpectQuery(`SELECT (.+) FROM "guest_progress"`).
		WithArgs("guest-1").
		WillReturnRows(guestRows)

	states, err := service.GetGuestQuizStates("guest-1")
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, models.QuizStatusCompleted, states[0].Status)
	assert.Equal(t, models.QuizStatusUnlocked, states[1].Status)

	require.NoError(t, mock.ExpectationsWereMet())
}
