package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// JSONBStringArray stores a string slice as a JSONB column.
type JSONBStringArray []string

func (a JSONBStringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *JSONBStringArray) Scan(value interface{}) error {
	if value == nil {
		*a = JSONBStringArray{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONBStringArray: %T", value)
	}
	return json.Unmarshal(data, a)
}

type Recipe struct {
	ID              uuid.UUID        `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID          uuid.UUID        `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Name            string           `gorm:"not null" json:"name"`
	Description     string           `gorm:"type:text" json:"description"`
	Category        string           `json:"category"`
	Cuisine         string           `json:"cuisine"`
	ImageURL        string           `json:"image_url"`
	Ingredients     JSONBStringArray `gorm:"type:jsonb" json:"ingredients"`
	Instructions    JSONBStringArray `gorm:"type:jsonb" json:"instructions"`
	PrepTimeMinutes int              `json:"prep_time_minutes"`
	CookTimeMinutes int              `json:"cook_time_minutes"`
	Servings        int              `json:"servings"`
	Difficulty      string           `json:"difficulty"`
	SpiceLevel      string           `json:"spice_level"`
	Calories        float64          `json:"calories"`
	Protein         float64          `json:"protein"`
	Carbs           float64          `json:"carbs"`
	Fat             float64          `json:"fat"`
	IsPublic        bool             `gorm:"default:false;index" json:"is_public"`
	Embedding       pgvector.Vector  `gorm:"type:vector(3)" json:"-"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DeletedAt       gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (r *Recipe) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
