package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanRedeem(t *testing.T) {
	t.Run("ExactBalanceIsEnough", func(t *testing.T) {
		assert.True(t, CanRedeem(100, 100))
	})

	t.Run("OnePointShortIsRejected", func(t *testing.T) {
		assert.False(t, CanRedeem(99, 100))
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		assert.False(t, CanRedeem(85, 100))
	})

	t.Run("SurplusBalance", func(t *testing.T) {
		assert.True(t, CanRedeem(105, 100))
		assert.Equal(t, 5, 105-100)
	})

	t.Run("FreeRewardAlwaysRedeemable", func(t *testing.T) {
		assert.True(t, CanRedeem(0, 0))
	})
}

func TestRewardService_Redeem_Success(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewRewardService(db)

	mock.ExpectBegin()

	rewardRows := sqlmock.NewRows([]string{"id", "title", "description", "points_cost", "is_active"}).
		AddRow("11111111-1111-1111-1111-111111111111", "Tree Planted", "We plant a tree for you", 100, true)
	mock.ExpectQuery(`SELECT (.+) FROM "rewards"`).WillReturnRows(rewardRows)

	profileRows := sqlmock.NewRows([]string{"id", "external_user_id", "username", "total_points", "current_level", "current_streak", "longest_streak"}).
		AddRow("profile-1", "user-1", "eco-user", 105, 2, 0, 0)
	mock.ExpectQuery(`SELECT (.+) FROM "profiles"(.+)FOR UPDATE`).WillReturnRows(profileRows)

	mock.ExpectQuery(`INSERT INTO "user_rewards"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("44444444-4444-4444-4444-444444444444"))

	// Column order follows the profile schema; the balance lands on 105-100=5
	// and the level is recomputed from the new balance.
	mock.ExpectExec(`UPDATE "profiles" SET`).
		WithArgs("user-1", "eco-user", 5, 1, 0, 0,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "profile-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectCommit()

	result, err := service.Redeem("user-1", "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 5, result.TotalPoints)
	assert.Equal(t, 1, result.Level)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", result.Redemption.RewardID)
	require.NotNil(t, result.Redemption.Reward)
	assert.Equal(t, "Tree Planted", result.Redemption.Reward.Title)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardService_Redeem_InsufficientPoints(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewRewardService(db)

	mock.ExpectBegin()

	rewardRows := sqlmock.NewRows([]string{"id", "title", "description", "points_cost", "is_active"}).
		AddRow("11111111-1111-1111-1111-111111111111", "Tree Planted", "We plant a tree for you", 100, true)
	mock.ExpectQuery(`SELECT (.+) FROM "rewards"`).WillReturnRows(rewardRows)

	profileRows := sqlmock.NewRows([]string{"id", "external_user_id", "total_points", "current_level"}).
		AddRow("profile-1", "user-1", 85, 1)
	mock.ExpectQuery(`SELECT (.+) FROM "profiles"(.+)FOR UPDATE`).WillReturnRows(profileRows)

	// The affordability check fails before any write, so the transaction
	// rolls back with the ledger and the balance untouched.
	mock.ExpectRollback()

	result, err := service.Redeem("user-1", "11111111-1111-1111-1111-111111111111")
	require.ErrorIs(t, err, ErrInsufficientPoints)
	assert.Nil(t, result)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardService_Redeem_UnknownReward(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewRewardService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM "rewards"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "points_cost", "is_active"}))
	mock.ExpectRollback()

	result, err := service.Redeem("user-1", "22222222-2222-2222-2222-222222222222")
	require.Error(t, err)
	assert.Nil(t, result)

	require.NoError(t, mock.ExpectationsWereMet())
}
