package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestAnalyzeDish(t *testing.T) {
	body := "```json\n" + `{
		"dish_name": "Chicken Caesar Salad",
		"portion_size": "1 bowl",
		"nutrition": {"calories": 480, "protein_g": 38, "carbs_g": 18, "fat_g": 28,
			"fiber_g": 4, "sugar_g": 3, "sodium_mg": 900, "cholesterol_mg": 110},
		"confidence_score": 0.87,
		"detected_ingredients": ["chicken", "romaine", "parmesan", "croutons"]
	}` + "\n```"

	var captured chatRequest
	srv := chatServer(t, body, &captured)
	defer srv.Close()

	svc := NewAIService("test-key", srv.URL)
	analysis, err := svc.AnalyzeDish(context.Background(), "aW1hZ2U=", "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "Chicken Caesar Salad", analysis.DishName)
	assert.Equal(t, 480.0, analysis.Nutrition.Calories)
	assert.Equal(t, 38.0, analysis.Nutrition.ProteinG)
	assert.Equal(t, 0.87, analysis.ConfidenceScore)
	assert.Len(t, analysis.DetectedIngredients, 4)
	assert.Equal(t, visionModel, captured.Model)
}

func TestGenerateRecipe(t *testing.T) {
	body := `{
		"name": "Spicy Chickpea Curry",
		"description": "A weeknight curry.",
		"category": "dinner",
		"cuisine": "indian",
		"ingredients": ["chickpeas", "tomatoes", "garam masala"],
		"instructions": ["Saute aromatics.", "Simmer 20 minutes."],
		"prep_time_minutes": 10,
		"cook_time_minutes": 25,
		"servings": 4,
		"difficulty": "easy",
		"spice_level": "hot",
		"calories": 420, "protein": 16, "carbs": 58, "fat": 14
	}`

	var captured chatRequest
	srv := chatServer(t, body, &captured)
	defer srv.Close()

	svc := NewAIService("test-key", srv.URL)
	recipe, err := svc.GenerateRecipe(context.Background(), RecipeParams{
		Prompt:     "chickpea curry",
		Cuisine:    "indian",
		SpiceLevel: "hot",
		Servings:   4,
		Allergens:  []string{"peanuts"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Spicy Chickpea Curry", recipe.Name)
	assert.Equal(t, 4, recipe.Servings)
	assert.Equal(t, textModel, captured.Model)

	// The constraints make it into the prompt.
	prompt, ok := captured.Messages[0].Content.(string)
	require.True(t, ok)
	assert.Contains(t, prompt, "chickpea curry")
	assert.Contains(t, prompt, "peanuts")
}

func TestRecognizeIngredients(t *testing.T) {
	srv := chatServer(t, `{"ingredients": ["egg", "flour", "milk"]}`, nil)
	defer srv.Close()

	svc := NewAIService("test-key", srv.URL)
	got, err := svc.RecognizeIngredients(context.Background(), "aW1hZ2U=", "image/png")
	require.NoError(t, err)
	assert.Equal(t, []string{"egg", "flour", "milk"}, got)
}

func TestAIServiceErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		svc := NewAIService("", "")
		_, err := svc.AnalyzeDish(context.Background(), "x", "image/jpeg")
		assert.ErrorIs(t, err, ErrAIUnavailable)
	})

	t.Run("upstream error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
		}))
		defer srv.Close()

		svc := NewAIService("test-key", srv.URL)
		_, err := svc.GenerateRecipe(context.Background(), RecipeParams{Prompt: "soup"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("malformed model output", func(t *testing.T) {
		srv := chatServer(t, "Sorry, I cannot help with that.", nil)
		defer srv.Close()

		svc := NewAIService("test-key", srv.URL)
		_, err := svc.AnalyzeDish(context.Background(), "x", "image/jpeg")
		require.Error(t, err)
	})
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}
