package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/macroplate/backend/internal/goals"
	"github.com/macroplate/backend/internal/middleware"
	"github.com/macroplate/backend/internal/models"
	"github.com/macroplate/backend/internal/ratelimit"
	"github.com/macroplate/backend/internal/service"
)

// testApp is a fully wired router over sqlite with a stubbed AI backend.
type testApp struct {
	engine  *gin.Engine
	db      *gorm.DB
	auth    *service.AuthService
	feed    *goals.Feed
	limiter *ratelimit.Limiter
	aiStub  *httptest.Server
}

// aiStubResponse is what the fake chat-completions endpoint hands back.
var aiStubResponse = `{
	"dish_name": "Grilled Salmon",
	"portion_size": "1 fillet",
	"nutrition": {"calories": 450, "protein_g": 40, "carbs_g": 5, "fat_g": 28,
		"fiber_g": 0, "sugar_g": 1, "sodium_mg": 300, "cholesterol_mg": 90},
	"confidence_score": 0.9,
	"detected_ingredients": ["salmon", "lemon"],
	"name": "Lemon Salmon",
	"description": "Pan seared.",
	"category": "dinner",
	"cuisine": "nordic",
	"ingredients": ["salmon", "lemon", "butter"],
	"instructions": ["Season.", "Sear."],
	"prep_time_minutes": 5,
	"cook_time_minutes": 12,
	"servings": 2,
	"difficulty": "easy",
	"spice_level": "mild",
	"calories": 450, "protein": 40, "carbs": 5, "fat": 28
}`

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.UserProfile{}, &models.DietaryPreference{},
		&models.Allergen{}, &models.Recipe{}, &models.ScannedDish{},
		&models.DailyNutritionStats{},
	))

	aiStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": aiStubResponse}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(aiStub.Close)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	feed := goals.NewFeed()
	tracker := goals.NewTracker(feed)

	authService := service.NewAuthService(db, "api-test-secret")
	recipeService := service.NewRecipeService(db)
	nutritionService := service.NewNutritionService(db, tracker)
	aiService := service.NewAIService("test-key", aiStub.URL)
	imageService := service.NewImageService(nil, "")

	requireAuth := middleware.AuthMiddleware(authService)
	optionalAuth := middleware.OptionalAuth(authService)
	rateGate := middleware.RateLimit(limiter)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	NewAuthHandler(authService).RegisterRoutes(v1.Group("/auth"), requireAuth)
	NewRecipeHandler(recipeService, aiService, imageService, authService).
		RegisterRoutes(v1.Group("/recipes"), requireAuth, optionalAuth, rateGate)
	NewNutritionHandler(nutritionService, aiService, limiter, feed).
		RegisterRoutes(v1.Group("/nutrition"), requireAuth, optionalAuth, rateGate)

	return &testApp{
		engine:  engine,
		db:      db,
		auth:    authService,
		feed:    feed,
		limiter: limiter,
		aiStub:  aiStub,
	}
}

// do performs a JSON request against the router. token may be empty for
// anonymous calls.
func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.7:40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) registerUser(t *testing.T, email, username string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    email,
		"password": "password123",
		"name":     "Test User",
		"username": username,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}
