package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NutritionInfo is the per-dish macro breakdown, stored as a JSONB column on
// ScannedDish. All values are per logged portion.
type NutritionInfo struct {
	Calories      float64 `json:"calories"`
	ProteinG      float64 `json:"protein_g"`
	CarbsG        float64 `json:"carbs_g"`
	FatG          float64 `json:"fat_g"`
	FiberG        float64 `json:"fiber_g"`
	SugarG        float64 `json:"sugar_g"`
	SodiumMg      float64 `json:"sodium_mg"`
	CholesterolMg float64 `json:"cholesterol_mg"`
}

func (n NutritionInfo) Value() (driver.Value, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (n *NutritionInfo) Scan(value interface{}) error {
	if value == nil {
		*n = NutritionInfo{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for NutritionInfo: %T", value)
	}
	return json.Unmarshal(data, n)
}

// ScannedDish is a single logged meal, usually produced by AI dish analysis
// but also creatable directly through the manual log endpoint.
type ScannedDish struct {
	ID              uuid.UUID      `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:varchar(36);not null;index" json:"user_id"`
	DishName        string         `gorm:"not null" json:"dish_name"`
	MealType        string         `gorm:"size:20" json:"meal_type"`
	PortionSize     string         `gorm:"size:100" json:"portion_size"`
	Nutrition       NutritionInfo  `gorm:"type:jsonb" json:"nutrition"`
	ImageURL        string         `json:"image_url"`
	ConfidenceScore float64        `json:"confidence_score"`
	ScannedAt       time.Time      `gorm:"index" json:"scanned_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *ScannedDish) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.ScannedAt.IsZero() {
		d.ScannedAt = time.Now().UTC()
	}
	return nil
}

// DailyNutritionStats is the per-user per-day running total, upserted on
// every meal log. Date uses the YYYY-MM-DD form so the unique index works
// identically across dialects.
type DailyNutritionStats struct {
	ID            uuid.UUID `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID        uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_date" json:"user_id"`
	Date          string    `gorm:"size:10;not null;uniqueIndex:idx_user_date" json:"date"`
	TotalCalories float64   `json:"total_calories"`
	TotalProtein  float64   `json:"total_protein"`
	TotalCarbs    float64   `json:"total_carbs"`
	TotalFat      float64   `json:"total_fat"`
	TotalFiber    float64   `json:"total_fiber"`
	TotalSugar    float64   `json:"total_sugar"`
	TotalSodium   float64   `json:"total_sodium"`
	MealCount     int       `json:"meal_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *DailyNutritionStats) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
