package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/macroplate/backend/internal/models"
)

var (
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrNotOwner       = errors.New("recipe belongs to another user")
)

// RecipeFilter narrows List results. Zero values mean no constraint.
type RecipeFilter struct {
	Query       string
	Category    string
	Cuisine     string
	Difficulty  string
	MaxPrepTime int
	MyRecipes   bool
	UserID      uuid.UUID
}

type RecipeService struct {
	db *gorm.DB
}

func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{db: db}
}

// List returns public recipes plus the caller's own, narrowed by filter.
// Search ordering uses pgvector distance on postgres and falls back to a
// LIKE match elsewhere (the sqlite test databases).
func (s *RecipeService) List(filter RecipeFilter) ([]models.Recipe, error) {
	q := s.db.Model(&models.Recipe{})

	if filter.MyRecipes {
		if filter.UserID == uuid.Nil {
			return nil, ErrNotOwner
		}
		q = q.Where("user_id = ?", filter.UserID)
	} else if filter.UserID != uuid.Nil {
		q = q.Where("is_public = ? OR user_id = ?", true, filter.UserID)
	} else {
		q = q.Where("is_public = ?", true)
	}

	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Cuisine != "" {
		q = q.Where("cuisine = ?", filter.Cuisine)
	}
	if filter.Difficulty != "" {
		q = q.Where("difficulty = ?", filter.Difficulty)
	}
	if filter.MaxPrepTime > 0 {
		q = q.Where("prep_time_minutes <= ?", filter.MaxPrepTime)
	}

	if filter.Query != "" {
		if s.db.Dialector.Name() == "postgres" {
			embedding := GenerateEmbedding(filter.Query)
			q = q.Clauses(clause.OrderBy{
				Expression: clause.Expr{SQL: "embedding <-> ?", Vars: []interface{}{embedding}},
			})
		} else {
			q = q.Where("name LIKE ?", "%"+filter.Query+"%")
		}
	} else {
		q = q.Order("created_at DESC")
	}

	var recipes []models.Recipe
	if err := q.Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	return recipes, nil
}

// Get returns the recipe when it is public or owned by userID.
func (s *RecipeService) Get(id, userID uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.Where("id = ?", id).First(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("loading recipe: %w", err)
	}
	if !recipe.IsPublic && recipe.UserID != userID {
		return nil, ErrRecipeNotFound
	}
	return &recipe, nil
}

// Create stores the recipe for userID, stamping the search embedding.
func (s *RecipeService) Create(userID uuid.UUID, recipe *models.Recipe) error {
	recipe.ID = uuid.Nil
	recipe.UserID = userID
	recipe.Embedding = GenerateEmbedding(recipe.Name + " " + recipe.Description)
	if err := s.db.Create(recipe).Error; err != nil {
		return fmt.Errorf("creating recipe: %w", err)
	}
	return nil
}

// Update overwrites an owned recipe's editable fields.
func (s *RecipeService) Update(id, userID uuid.UUID, updated *models.Recipe) (*models.Recipe, error) {
	recipe, err := s.ownedRecipe(id, userID)
	if err != nil {
		return nil, err
	}

	recipe.Name = updated.Name
	recipe.Description = updated.Description
	recipe.Category = updated.Category
	recipe.Cuisine = updated.Cuisine
	recipe.Ingredients = updated.Ingredients
	recipe.Instructions = updated.Instructions
	recipe.PrepTimeMinutes = updated.PrepTimeMinutes
	recipe.CookTimeMinutes = updated.CookTimeMinutes
	recipe.Servings = updated.Servings
	recipe.Difficulty = updated.Difficulty
	recipe.SpiceLevel = updated.SpiceLevel
	recipe.Calories = updated.Calories
	recipe.Protein = updated.Protein
	recipe.Carbs = updated.Carbs
	recipe.Fat = updated.Fat
	recipe.IsPublic = updated.IsPublic
	recipe.Embedding = GenerateEmbedding(recipe.Name + " " + recipe.Description)

	if err := s.db.Save(recipe).Error; err != nil {
		return nil, fmt.Errorf("updating recipe: %w", err)
	}
	return recipe, nil
}

// SetImageURL stamps the uploaded image location on an owned recipe.
func (s *RecipeService) SetImageURL(id, userID uuid.UUID, url string) error {
	recipe, err := s.ownedRecipe(id, userID)
	if err != nil {
		return err
	}
	recipe.ImageURL = url
	if err := s.db.Save(recipe).Error; err != nil {
		return fmt.Errorf("updating recipe image: %w", err)
	}
	return nil
}

// Delete removes an owned recipe.
func (s *RecipeService) Delete(id, userID uuid.UUID) error {
	recipe, err := s.ownedRecipe(id, userID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(recipe).Error; err != nil {
		return fmt.Errorf("deleting recipe: %w", err)
	}
	return nil
}

func (s *RecipeService) ownedRecipe(id, userID uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.Where("id = ?", id).First(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("loading recipe: %w", err)
	}
	if recipe.UserID != userID {
		return nil, ErrNotOwner
	}
	return &recipe, nil
}
