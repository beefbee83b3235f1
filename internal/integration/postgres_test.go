package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroplate/backend/internal/goals"
	"github.com/macroplate/backend/internal/models"
	"github.com/macroplate/backend/internal/service"
	"github.com/macroplate/backend/internal/testhelpers"
)

// TestPostgresMealLoggingFlow exercises the real postgres paths the sqlite
// tests cannot: the jsonb columns, the upsert on the (user_id, date) unique
// index and the pgvector-ordered search.
func TestPostgresMealLoggingFlow(t *testing.T) {
	db := testhelpers.StartPostgres(t)

	authSvc := service.NewAuthService(db, "integration-secret")
	feed := goals.NewFeed()
	nutritionSvc := service.NewNutritionService(db, goals.NewTracker(feed))
	recipeSvc := service.NewRecipeService(db)

	user, _, err := authSvc.Register("pg@example.com", "password123", "PG", "pguser")
	require.NoError(t, err)

	day := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, cals := range []float64{900, 700, 600} {
		err := nutritionSvc.LogMeal(user.ID, &models.ScannedDish{
			DishName: "meal",
			Nutrition: models.NutritionInfo{
				Calories: cals,
				ProteinG: 20,
				CarbsG:   40,
				FatG:     15,
			},
			ScannedAt: day.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	stats, err := nutritionSvc.DailyStats(user.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 2200.0, stats.TotalCalories)
	assert.Equal(t, 3, stats.MealCount)

	// 2200 of the default 2000 calorie goal fired a notification.
	notes := feed.Notifications(user.ID, false)
	require.NotEmpty(t, notes)
	assert.Equal(t, goals.GoalCalories, notes[0].Achievement.GoalType)

	t.Run("vector search orders results", func(t *testing.T) {
		for _, name := range []string{"tomato soup", "beef stew", "tomato salad"} {
			require.NoError(t, recipeSvc.Create(user.ID, &models.Recipe{
				Name:        name,
				Description: name,
				IsPublic:    true,
			}))
		}

		got, err := recipeSvc.List(service.RecipeFilter{Query: "tomato soup"})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "tomato soup", got[0].Name)
	})

	t.Run("dish jsonb round trip", func(t *testing.T) {
		dishes, err := nutritionSvc.DailyLog(user.ID, "2025-06-01")
		require.NoError(t, err)
		require.Len(t, dishes, 3)
		assert.Equal(t, 900.0, dishes[0].Nutrition.Calories)
	})
}
