package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/macroplate/backend/internal/models"
)

// Migrate brings the schema up to date. On postgres the pgvector extension
// must exist before the recipes table can hold embeddings.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("creating vector extension: %w", err)
		}
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserProfile{},
		&models.DietaryPreference{},
		&models.Allergen{},
		&models.Recipe{},
		&models.ScannedDish{},
		&models.DailyNutritionStats{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
