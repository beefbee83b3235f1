package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/macroplate/backend/internal/goals"
	"github.com/macroplate/backend/internal/models"
)

const dateLayout = "2006-01-02"

// NutritionService logs meals, maintains the per-day aggregates and kicks
// off goal checks.
type NutritionService struct {
	db      *gorm.DB
	tracker *goals.Tracker
}

func NewNutritionService(db *gorm.DB, tracker *goals.Tracker) *NutritionService {
	return &NutritionService{db: db, tracker: tracker}
}

// LogMeal persists the dish, folds its macros into the daily stats row and
// runs a best-effort goal check. Goal-check failures are logged, never
// returned; a meal log must not fail because a notification could not fire.
func (s *NutritionService) LogMeal(userID uuid.UUID, dish *models.ScannedDish) error {
	dish.ID = uuid.Nil
	dish.UserID = userID
	if dish.ScannedAt.IsZero() {
		dish.ScannedAt = time.Now().UTC()
	}
	date := dish.ScannedAt.Format(dateLayout)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dish).Error; err != nil {
			return err
		}
		return s.upsertDailyStats(tx, userID, date, dish.Nutrition)
	})
	if err != nil {
		return fmt.Errorf("logging meal: %w", err)
	}

	s.checkGoals(userID, date)
	return nil
}

// upsertDailyStats adds the dish macros onto the (user, date) stats row,
// creating it on first log of the day.
func (s *NutritionService) upsertDailyStats(tx *gorm.DB, userID uuid.UUID, date string, n models.NutritionInfo) error {
	stats := models.DailyNutritionStats{
		UserID:        userID,
		Date:          date,
		TotalCalories: n.Calories,
		TotalProtein:  n.ProteinG,
		TotalCarbs:    n.CarbsG,
		TotalFat:      n.FatG,
		TotalFiber:    n.FiberG,
		TotalSugar:    n.SugarG,
		TotalSodium:   n.SodiumMg,
		MealCount:     1,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_calories": gorm.Expr("total_calories + ?", n.Calories),
			"total_protein":  gorm.Expr("total_protein + ?", n.ProteinG),
			"total_carbs":    gorm.Expr("total_carbs + ?", n.CarbsG),
			"total_fat":      gorm.Expr("total_fat + ?", n.FatG),
			"total_fiber":    gorm.Expr("total_fiber + ?", n.FiberG),
			"total_sugar":    gorm.Expr("total_sugar + ?", n.SugarG),
			"total_sodium":   gorm.Expr("total_sodium + ?", n.SodiumMg),
			"meal_count":     gorm.Expr("meal_count + 1"),
			"updated_at":     time.Now(),
		}),
	}).Create(&stats).Error
}

func (s *NutritionService) checkGoals(userID uuid.UUID, date string) {
	if s.tracker == nil {
		return
	}
	var profile models.UserProfile
	if err := s.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		log.Printf("[NUTRITION] goal check skipped, no profile for %s: %v", userID, err)
		return
	}
	stats, err := s.DailyStats(userID, date)
	if err != nil {
		log.Printf("[NUTRITION] goal check skipped for %s: %v", userID, err)
		return
	}
	s.tracker.CheckGoals(userID,
		goals.DailyTotals{
			Calories: stats.TotalCalories,
			Protein:  stats.TotalProtein,
			Carbs:    stats.TotalCarbs,
			Fat:      stats.TotalFat,
		},
		goals.Targets{
			Calories: profile.DailyCalorieGoal,
			Protein:  profile.DailyProteinGoal,
			Carbs:    profile.DailyCarbsGoal,
			Fat:      profile.DailyFatGoal,
		},
		date)
}

// DailyLog returns the dishes logged on the given day, oldest first.
func (s *NutritionService) DailyLog(userID uuid.UUID, date string) ([]models.ScannedDish, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	start := day.UTC()
	end := start.Add(24 * time.Hour)

	var dishes []models.ScannedDish
	err = s.db.
		Where("user_id = ? AND scanned_at >= ? AND scanned_at < ?", userID, start, end).
		Order("scanned_at ASC").
		Find(&dishes).Error
	if err != nil {
		return nil, fmt.Errorf("loading daily log: %w", err)
	}
	return dishes, nil
}

// DailyStats returns the aggregate row for the day, zero-valued when the
// user has not logged anything yet.
func (s *NutritionService) DailyStats(userID uuid.UUID, date string) (*models.DailyNutritionStats, error) {
	var stats models.DailyNutritionStats
	err := s.db.Where("user_id = ? AND date = ?", userID, date).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.DailyNutritionStats{UserID: userID, Date: date}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading daily stats: %w", err)
	}
	return &stats, nil
}

// WeeklyStats returns one entry per day for the last days days ending at
// endDate, zero-filling days without logs, oldest first.
func (s *NutritionService) WeeklyStats(userID uuid.UUID, endDate string, days int) ([]models.DailyNutritionStats, error) {
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", endDate, err)
	}
	if days <= 0 {
		days = 7
	}
	start := end.AddDate(0, 0, -(days - 1))

	var rows []models.DailyNutritionStats
	err = s.db.
		Where("user_id = ? AND date >= ? AND date <= ?", userID, start.Format(dateLayout), endDate).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading weekly stats: %w", err)
	}

	byDate := make(map[string]models.DailyNutritionStats, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}

	out := make([]models.DailyNutritionStats, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(dateLayout)
		if row, ok := byDate[date]; ok {
			out = append(out, row)
		} else {
			out = append(out, models.DailyNutritionStats{UserID: userID, Date: date})
		}
	}
	return out, nil
}
