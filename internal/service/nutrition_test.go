package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroplate/backend/internal/goals"
	"github.com/macroplate/backend/internal/models"
)

func seedUser(t *testing.T, svc *AuthService) uuid.UUID {
	t.Helper()
	user, _, err := svc.Register("eater@example.com", "pw123456", "Eater", "eater")
	require.NoError(t, err)
	return user.ID
}

func dish(name string, calories, protein float64, at time.Time) *models.ScannedDish {
	return &models.ScannedDish{
		DishName: name,
		MealType: "lunch",
		Nutrition: models.NutritionInfo{
			Calories: calories,
			ProteinG: protein,
			CarbsG:   30,
			FatG:     10,
		},
		ScannedAt: at,
	}
}

func TestLogMealAggregatesDailyStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewNutritionService(db, nil)
	userID := seedUser(t, NewAuthService(db, "s"))

	day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, svc.LogMeal(userID, dish("oatmeal", 350, 12, day)))
	require.NoError(t, svc.LogMeal(userID, dish("chicken bowl", 650, 45, day.Add(4*time.Hour))))

	stats, err := svc.DailyStats(userID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, stats.TotalCalories)
	assert.Equal(t, 57.0, stats.TotalProtein)
	assert.Equal(t, 2, stats.MealCount)

	log, err := svc.DailyLog(userID, "2025-06-01")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "oatmeal", log[0].DishName)
	assert.Equal(t, "chicken bowl", log[1].DishName)
}

func TestDailyStatsZeroState(t *testing.T) {
	db := newTestDB(t)
	svc := NewNutritionService(db, nil)

	stats, err := svc.DailyStats(uuid.New(), "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats.TotalCalories)
	assert.Equal(t, 0, stats.MealCount)
	assert.Equal(t, "2025-06-01", stats.Date)
}

func TestWeeklyStatsZeroFillsMissingDays(t *testing.T) {
	db := newTestDB(t)
	svc := NewNutritionService(db, nil)
	userID := seedUser(t, NewAuthService(db, "s"))

	require.NoError(t, svc.LogMeal(userID, dish("pasta", 700, 25,
		time.Date(2025, 6, 3, 19, 0, 0, 0, time.UTC))))
	require.NoError(t, svc.LogMeal(userID, dish("salad", 300, 8,
		time.Date(2025, 6, 5, 12, 0, 0, 0, time.UTC))))

	week, err := svc.WeeklyStats(userID, "2025-06-07", 7)
	require.NoError(t, err)
	require.Len(t, week, 7)

	assert.Equal(t, "2025-06-01", week[0].Date)
	assert.Equal(t, "2025-06-07", week[6].Date)
	assert.Equal(t, 700.0, week[2].TotalCalories)
	assert.Equal(t, 300.0, week[4].TotalCalories)
	assert.Equal(t, 0.0, week[1].TotalCalories)
	assert.Equal(t, 0, week[1].MealCount)
}

func TestLogMealTriggersGoalNotifications(t *testing.T) {
	db := newTestDB(t)
	feed := goals.NewFeed()
	tracker := goals.NewTracker(feed)
	svc := NewNutritionService(db, tracker)
	userID := seedUser(t, NewAuthService(db, "s"))

	day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// First meal stays below every 80 percent threshold.
	require.NoError(t, svc.LogMeal(userID, dish("snack", 400, 10, day)))
	assert.Empty(t, feed.Notifications(userID, false))

	// Cumulative calories reach 2100 of the default 2000 goal.
	require.NoError(t, svc.LogMeal(userID, dish("feast", 1700, 30, day.Add(time.Hour))))

	got := feed.Notifications(userID, false)
	require.Len(t, got, 1)
	assert.Equal(t, goals.GoalCalories, got[0].Achievement.GoalType)
	assert.Equal(t, goals.MilestoneReached, got[0].Achievement.Milestone)
}

func TestLogMealWithoutProfileStillSucceeds(t *testing.T) {
	db := newTestDB(t)
	tracker := goals.NewTracker(goals.NewFeed())
	svc := NewNutritionService(db, tracker)

	// No profile row exists for this user; the goal check is skipped.
	err := svc.LogMeal(uuid.New(), dish("mystery", 500, 20,
		time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
	assert.NoError(t, err)
}
