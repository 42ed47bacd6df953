package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"eco-rewards-service/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestCalculateLevel(t *testing.T) {
	assert.Equal(t, 1, CalculateLevel(0))
	assert.Equal(t, 1, CalculateLevel(99))
	assert.Equal(t, 2, CalculateLevel(100))
	assert.Equal(t, 3, CalculateLevel(250))
	assert.Equal(t, 11, CalculateLevel(1000))
	assert.Equal(t, 1, CalculateLevel(-50))
}

func TestScorePercent(t *testing.T) {
	assert.Equal(t, 67, ScorePercent(2, 3))
	assert.Equal(t, 100, ScorePercent(5, 5))
	assert.Equal(t, 0, ScorePercent(0, 4))
	assert.Equal(t, 33, ScorePercent(1, 3))
	assert.Equal(t, 0, ScorePercent(3, 0))
}

func TestClassifyQuizzes(t *testing.T) {
	quizzes := []models.Quiz{
		{ID: "quiz-1", Title: "Recycling Basics", PathOrder: 1},
		{ID: "quiz-2", Title: "Water Conservation", PathOrder: 2},
		{ID: "quiz-3", Title: "Energy at Home", PathOrder: 3},
	}
	completed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	t.Run("NoProgress_OnlyFirstUnlocked", func(t *testing.T) {
		states := ClassifyQuizzes(quizzes, nil)
		require.Len(t, states, 3)
		assert.Equal(t, models.QuizStatusUnlocked, states[0].Status)
		assert.True(t, states[0].Unlocked)
		assert.Equal(t, models.QuizStatusLocked, states[1].Status)
		assert.Equal(t, models.QuizStatusLocked, states[2].Status)
	})

	t.Run("CompletedRequiresTimestamp", func(t *testing.T) {
		// A high score without completed_at is not a completion.
		states := ClassifyQuizzes(quizzes, []ProgressSnapshot{
			{QuizID: "quiz-1", Score: 100, IsUnlocked: true},
		})
		assert.Equal(t, models.QuizStatusUnlocked, states[0].Status)
		assert.Equal(t, 100, states[0].Score)

		states = ClassifyQuizzes(quizzes, []ProgressSnapshot{
			{QuizID: "quiz-1", Score: 0, CompletedAt: &completed},
		})
		assert.Equal(t, models.QuizStatusCompleted, states[0].Status)
	})

	t.Run("PreviousCompletionUnlocksNext", func(t *testing.T) {
		states := ClassifyQuizzes(quizzes, []ProgressSnapshot{
			{QuizID: "quiz-1", Score: 30, CompletedAt: &completed},
		})
		assert.Equal(t, models.QuizStatusCompleted, states[0].Status)
		assert.Equal(t, models.QuizStatusUnlocked, states[1].Status)
		assert.True(t, states[1].Unlocked)
		assert.Equal(t, models.QuizStatusLocked, states[2].Status)
	})

	t.Run("ExplicitUnlockFlag", func(t *testing.T) {
		states := ClassifyQuizzes(quizzes, []ProgressSnapshot{
			{QuizID: "quiz-3", IsUnlocked: true},
		})
		assert.Equal(t, models.QuizStatusUnlocked, states[2].Status)
		assert.Equal(t, models.QuizStatusLocked, states[1].Status)
	})

	t.Run("AnswersStrippedFromStates", func(t *testing.T) {
		withQuestions := []models.Quiz{{
			ID:        "quiz-1",
			PathOrder: 1,
			Questions: []models.Question{{
				Question:     "Which bin does glass go in?",
				Options:      []string{"Recycling", "Landfill"},
				CorrectIndex: 0,
				ContextForAI: "glass recycling",
			}},
		}}
		states := ClassifyQuizzes(withQuestions, nil)
		require.Len(t, states[0].Quiz.Questions, 1)
		assert.Equal(t, -1, states[0].Quiz.Questions[0].CorrectIndex)
		assert.Empty(t, states[0].Quiz.Questions[0].ContextForAI)
	})
}

func TestAdvanceStreak(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	today := day(2026, 8, 29)

	t.Run("FirstCompletionStartsAtOne", func(t *testing.T) {
		res := AdvanceStreak(nil, 0, 0, today)
		assert.Equal(t, 1, res.NewStreak)
		assert.True(t, res.IsNewRecord)
		assert.Equal(t, 0, res.StreakBonus)
	})

	t.Run("SameDayUnchangedNoBonus", func(t *testing.T) {
		last := today
		res := AdvanceStreak(&last, 7, 10, today.Add(5*time.Hour))
		assert.Equal(t, 7, res.NewStreak)
		assert.False(t, res.IsNewRecord)
		assert.Equal(t, 0, res.StreakBonus)
	})

	t.Run("ConsecutiveDayIncrements", func(t *testing.T) {
		last := day(2026, 8, 28)
		res := AdvanceStreak(&last, 3, 10, today)
		assert.Equal(t, 4, res.NewStreak)
		assert.False(t, res.IsNewRecord)
	})

	t.Run("GapResetsToOne", func(t *testing.T) {
		last := day(2026, 8, 26)
		res := AdvanceStreak(&last, 12, 12, today)
		assert.Equal(t, 1, res.NewStreak)
		assert.False(t, res.IsNewRecord)
		assert.Equal(t, 0, res.StreakBonus)
	})

	t.Run("BonusOnSeventhDay", func(t *testing.T) {
		last := day(2026, 8, 28)
		res := AdvanceStreak(&last, 6, 6, today)
		assert.Equal(t, 7, res.NewStreak)
		assert.Equal(t, StreakBonusPoints, res.StreakBonus)
		assert.True(t, res.IsNewRecord)
	})

	t.Run("BonusOnFourteenthDay", func(t *testing.T) {
		last := day(2026, 8, 28)
		res := AdvanceStreak(&last, 13, 20, today)
		assert.Equal(t, 14, res.NewStreak)
		assert.Equal(t, StreakBonusPoints, res.StreakBonus)
		assert.False(t, res.IsNewRecord)
	})

	t.Run("NewRecordTracked", func(t *testing.T) {
		last := day(2026, 8, 28)
		res := AdvanceStreak(&last, 5, 5, today)
		assert.Equal(t, 6, res.NewStreak)
		assert.True(t, res.IsNewRecord)
	})
}

func TestProgressionService_CompleteQuiz_UnknownQuiz(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewProgressionService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "quizzes"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "path_order"}))
	mock.ExpectRollback()

	result, err := service.CompleteQuiz("user-1", "99999999-9999-9999-9999-999999999999", 10, 1)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, result)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressionService_GetQuizStates(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewProgressionService(db)

	questions := []byte(`[{"question":"Which bin does glass go in?","options":["Recycling","Landfill"],"correct_index":0}]`)

	quizRows := sqlmock.NewRows([]string{"id", "title", "description", "path_order", "points_per_question", "questions_json"}).
		AddRow("quiz-1", "Recycling Basics", "Sorting household waste", 1, 10, questions).
		AddRow("quiz-2", "Water Conservation", "Saving water at home", 2, 10, questions)
	mock.ExpectQuery(`SELECT (.+) FROM "quizzes"`).WillReturnRows(quizRows)

	completed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	progressRows := sqlmock.NewRows([]string{"id", "external_user_id", "quiz_id", "score", "is_unlocked", "completed_at"}).
		AddRow("row-1", "user-1", "quiz-1", 20, true, completed)
	mock.ExpectQuery(`SELECT (.+) FROM "user_progress"`).
		WithArgs("user-1").
		WillReturnRows(progressRows)

	states, err := service.GetQuizStates("user-1")
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.Equal(t, models.QuizStatusCompleted, states[0].Status)
	assert.Equal(t, 20, states[0].Score)
	assert.Equal(t, models.QuizStatusUnlocked, states[1].Status)
	assert.Equal(t, -1, states[0].Quiz.Questions[0].CorrectIndex)

	require.NoError(t, mock.ExpectationsWereMet())
}
