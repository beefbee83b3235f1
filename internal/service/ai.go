package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/macroplate/backend/internal/models"
)

const (
	defaultChatCompletionsURL = "https://api.groq.com/openai/v1/chat/completions"
	visionModel               = "meta-llama/llama-4-maverick-17b-128e-instruct"
	textModel                 = "llama-3.3-70b-versatile"
	aiRequestTimeout          = 60 * time.Second
)

var ErrAIUnavailable = errors.New("ai service not configured")

// AIService talks to a Groq-compatible chat-completions endpoint for dish
// analysis, ingredient recognition and recipe generation.
type AIService struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

func NewAIService(apiKey, apiURL string) *AIService {
	if apiURL == "" {
		apiURL = defaultChatCompletionsURL
	}
	return &AIService{
		apiKey:     apiKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: aiRequestTimeout},
	}
}

// Available reports whether the service has credentials to call out.
func (s *AIService) Available() bool {
	return s.apiKey != ""
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// DishAnalysis is the structured result of analyzing a dish photo.
type DishAnalysis struct {
	DishName            string               `json:"dish_name"`
	PortionSize         string               `json:"portion_size"`
	Nutrition           models.NutritionInfo `json:"nutrition"`
	ConfidenceScore     float64              `json:"confidence_score"`
	DetectedIngredients []string             `json:"detected_ingredients"`
}

// GeneratedRecipe mirrors the JSON shape the model is prompted to emit.
type GeneratedRecipe struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Cuisine         string   `json:"cuisine"`
	Ingredients     []string `json:"ingredients"`
	Instructions    []string `json:"instructions"`
	PrepTimeMinutes int      `json:"prep_time_minutes"`
	CookTimeMinutes int      `json:"cook_time_minutes"`
	Servings        int      `json:"servings"`
	Difficulty      string   `json:"difficulty"`
	SpiceLevel      string   `json:"spice_level"`
	Calories        float64  `json:"calories"`
	Protein         float64  `json:"protein"`
	Carbs           float64  `json:"carbs"`
	Fat             float64  `json:"fat"`
}

// RecipeParams constrains text-driven recipe generation.
type RecipeParams struct {
	Prompt      string
	Cuisine     string
	Difficulty  string
	SpiceLevel  string
	Servings    int
	Dietary     []string
	Allergens   []string
	MaxPrepTime int
}

// AnalyzeDish sends a base64-encoded image to the vision model and decodes
// the structured nutrition estimate.
func (s *AIService) AnalyzeDish(ctx context.Context, imageBase64, mimeType string) (*DishAnalysis, error) {
	if !s.Available() {
		return nil, ErrAIUnavailable
	}

	prompt := `Analyze the dish in this photo. Respond with JSON only:
{"dish_name": str, "portion_size": str,
 "nutrition": {"calories": num, "protein_g": num, "carbs_g": num, "fat_g": num,
               "fiber_g": num, "sugar_g": num, "sodium_mg": num, "cholesterol_mg": num},
 "confidence_score": num between 0 and 1,
 "detected_ingredients": [str]}`

	content := []contentPart{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: &imageURL{
			URL: fmt.Sprintf("data:%s;base64,%s", mimeType, imageBase64),
		}},
	}
	raw, err := s.complete(ctx, visionModel, []chatMessage{{Role: "user", Content: content}})
	if err != nil {
		return nil, err
	}

	var analysis DishAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &analysis); err != nil {
		return nil, fmt.Errorf("decoding dish analysis: %w", err)
	}
	return &analysis, nil
}

// RecognizeIngredients lists the ingredients visible in a photo.
func (s *AIService) RecognizeIngredients(ctx context.Context, imageBase64, mimeType string) ([]string, error) {
	if !s.Available() {
		return nil, ErrAIUnavailable
	}

	content := []contentPart{
		{Type: "text", Text: `List the food ingredients visible in this photo. Respond with JSON only: {"ingredients": [str]}`},
		{Type: "image_url", ImageURL: &imageURL{
			URL: fmt.Sprintf("data:%s;base64,%s", mimeType, imageBase64),
		}},
	}
	raw, err := s.complete(ctx, visionModel, []chatMessage{{Role: "user", Content: content}})
	if err != nil {
		return nil, err
	}

	var result struct {
		Ingredients []string `json:"ingredients"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		return nil, fmt.Errorf("decoding ingredients: %w", err)
	}
	return result.Ingredients, nil
}

// GenerateRecipe asks the text model for a complete recipe matching params.
func (s *AIService) GenerateRecipe(ctx context.Context, params RecipeParams) (*GeneratedRecipe, error) {
	if !s.Available() {
		return nil, ErrAIUnavailable
	}

	var b strings.Builder
	b.WriteString("Create a recipe")
	if params.Prompt != "" {
		fmt.Fprintf(&b, " for: %s", params.Prompt)
	}
	if params.Cuisine != "" {
		fmt.Fprintf(&b, ". Cuisine: %s", params.Cuisine)
	}
	if params.Difficulty != "" {
		fmt.Fprintf(&b, ". Difficulty: %s", params.Difficulty)
	}
	if params.SpiceLevel != "" {
		fmt.Fprintf(&b, ". Spice level: %s", params.SpiceLevel)
	}
	if params.Servings > 0 {
		fmt.Fprintf(&b, ". Servings: %d", params.Servings)
	}
	if params.MaxPrepTime > 0 {
		fmt.Fprintf(&b, ". Max prep time: %d minutes", params.MaxPrepTime)
	}
	if len(params.Dietary) > 0 {
		fmt.Fprintf(&b, ". Dietary requirements: %s", strings.Join(params.Dietary, ", "))
	}
	if len(params.Allergens) > 0 {
		fmt.Fprintf(&b, ". Must not contain: %s", strings.Join(params.Allergens, ", "))
	}
	b.WriteString(`. Respond with JSON only:
{"name": str, "description": str, "category": str, "cuisine": str,
 "ingredients": [str], "instructions": [str],
 "prep_time_minutes": int, "cook_time_minutes": int, "servings": int,
 "difficulty": str, "spice_level": str,
 "calories": num, "protein": num, "carbs": num, "fat": num}`)

	raw, err := s.complete(ctx, textModel, []chatMessage{{Role: "user", Content: b.String()}})
	if err != nil {
		return nil, err
	}

	var recipe GeneratedRecipe
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &recipe); err != nil {
		return nil, fmt.Errorf("decoding generated recipe: %w", err)
	}
	return &recipe, nil
}

func (s *AIService) complete(ctx context.Context, model string, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// stripCodeFence removes a surrounding markdown code fence; the models often
// wrap JSON in one despite the prompt.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
