package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzeBody() gin.H {
	return gin.H{"image_base64": "aW1hZ2U=", "mime_type": "image/jpeg", "meal_type": "dinner"}
}

func TestAnonymousQuotaEndToEnd(t *testing.T) {
	app := newTestApp(t)

	for i := 0; i < 3; i++ {
		rec := app.do(t, http.MethodPost, "/api/v1/nutrition/analyze-and-log-dish", "", analyzeBody())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, fmt.Sprint(2-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := app.do(t, http.MethodPost, "/api/v1/nutrition/analyze-and-log-dish", "", analyzeBody())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	var resp struct {
		Error        string `json:"error"`
		Limit        int    `json:"limit"`
		ResetAt      string `json:"reset_at"`
		RequiresAuth bool   `json:"requires_auth"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 3, resp.Limit)
	assert.True(t, resp.RequiresAuth)
	assert.NotEmpty(t, resp.ResetAt)
	assert.Contains(t, resp.Error, "sign up or log in")
}

func TestAuthenticatedBypassesQuota(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "bypass@example.com", "bypass")

	for i := 0; i < 5; i++ {
		rec := app.do(t, http.MethodPost, "/api/v1/nutrition/analyze-and-log-dish", token, analyzeBody())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimitStatus(t *testing.T) {
	app := newTestApp(t)

	var status struct {
		RequestsUsed      int  `json:"requests_used"`
		RequestsRemaining int  `json:"requests_remaining"`
		Limit             int  `json:"limit"`
		IsAuthenticated   bool `json:"is_authenticated"`
	}

	rec := app.do(t, http.MethodGet, "/api/v1/nutrition/rate-limit-status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &status)
	assert.Equal(t, 0, status.RequestsUsed)
	assert.Equal(t, 3, status.RequestsRemaining)

	// Status reads never consume quota.
	for i := 0; i < 4; i++ {
		rec = app.do(t, http.MethodGet, "/api/v1/nutrition/rate-limit-status", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	decodeBody(t, rec, &status)
	assert.Equal(t, 0, status.RequestsUsed)

	rec = app.do(t, http.MethodPost, "/api/v1/nutrition/analyze-and-log-dish", "", analyzeBody())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/nutrition/rate-limit-status", "", nil)
	decodeBody(t, rec, &status)
	assert.Equal(t, 1, status.RequestsUsed)
	assert.Equal(t, 2, status.RequestsRemaining)

	token := app.registerUser(t, "status@example.com", "status")
	rec = app.do(t, http.MethodGet, "/api/v1/nutrition/rate-limit-status", token, nil)
	decodeBody(t, rec, &status)
	assert.True(t, status.IsAuthenticated)
	assert.Equal(t, 3, status.RequestsRemaining)
}

func TestAnonymousAnalysisIsNotPersisted(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/v1/nutrition/analyze-and-log-dish", "", analyzeBody())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Logged bool `json:"logged"`
	}
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Logged)
}

func TestLogMealAndStatsFlow(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "meals@example.com", "meals")

	meal := gin.H{
		"dish_name": "Overnight Oats",
		"meal_type": "breakfast",
		"nutrition": gin.H{
			"calories": 420, "protein_g": 18, "carbs_g": 60, "fat_g": 12,
		},
		"scanned_at": "2025-06-01T08:00:00Z",
	}
	rec := app.do(t, http.MethodPost, "/api/v1/nutrition/log-meal", token, meal)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/v1/nutrition/daily-stats?date=2025-06-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalCalories float64 `json:"total_calories"`
		MealCount     int     `json:"meal_count"`
	}
	decodeBody(t, rec, &stats)
	assert.Equal(t, 420.0, stats.TotalCalories)
	assert.Equal(t, 1, stats.MealCount)

	rec = app.do(t, http.MethodGet, "/api/v1/nutrition/daily-log?date=2025-06-01", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logResp struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &logResp)
	assert.Equal(t, 1, logResp.Count)

	rec = app.do(t, http.MethodGet, "/api/v1/nutrition/weekly-stats?end_date=2025-06-07", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var week struct {
		Days []struct {
			Date          string  `json:"date"`
			TotalCalories float64 `json:"total_calories"`
		} `json:"days"`
	}
	decodeBody(t, rec, &week)
	require.Len(t, week.Days, 7)
	assert.Equal(t, 420.0, week.Days[0].TotalCalories)
}

func TestNotificationLifecycle(t *testing.T) {
	app := newTestApp(t)
	token := app.registerUser(t, "goals@example.com", "goals")

	// Two meals push calories past the default 2000 goal.
	for i, cals := range []float64{1500, 700} {
		meal := gin.H{
			"dish_name": fmt.Sprintf("meal-%d", i),
			"nutrition": gin.H{"calories": cals, "protein_g": 10, "carbs_g": 10, "fat_g": 5},
			"scanned_at": "2025-06-01T12:00:00Z",
		}
		rec := app.do(t, http.MethodPost, "/api/v1/nutrition/log-meal", token, meal)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := app.do(t, http.MethodGet, "/api/v1/nutrition/notifications", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var feed struct {
		Notifications []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			Read  bool   `json:"read"`
		} `json:"notifications"`
		UnreadCount int `json:"unread_count"`
	}
	decodeBody(t, rec, &feed)
	require.NotEmpty(t, feed.Notifications)
	calorieNote := feed.Notifications[0]
	assert.False(t, calorieNote.Read)
	assert.Positive(t, feed.UnreadCount)

	// Mark read, then the unread filter hides it.
	rec = app.do(t, http.MethodPost, "/api/v1/nutrition/notifications/"+calorieNote.ID+"/read", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/nutrition/notifications?unread_only=true", token, nil)
	decodeBody(t, rec, &feed)
	for _, n := range feed.Notifications {
		assert.NotEqual(t, calorieNote.ID, n.ID)
	}

	// The unfiltered default is unread-only, so the read entry is hidden
	// unless the full history is requested.
	rec = app.do(t, http.MethodGet, "/api/v1/nutrition/notifications", token, nil)
	decodeBody(t, rec, &feed)
	for _, n := range feed.Notifications {
		assert.NotEqual(t, calorieNote.ID, n.ID)
	}

	rec = app.do(t, http.MethodGet, "/api/v1/nutrition/notifications?unread_only=false", token, nil)
	decodeBody(t, rec, &feed)
	found := false
	for _, n := range feed.Notifications {
		if n.ID == calorieNote.ID {
			found = true
			assert.True(t, n.Read)
		}
	}
	assert.True(t, found)

	// Unknown IDs are ignored.
	rec = app.do(t, http.MethodPost, "/api/v1/nutrition/notifications/bogus/read", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodDelete, "/api/v1/nutrition/notifications", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/nutrition/notifications", token, nil)
	decodeBody(t, rec, &feed)
	assert.Empty(t, feed.Notifications)
}

func TestNutritionRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{
		"/api/v1/nutrition/daily-log",
		"/api/v1/nutrition/daily-stats",
		"/api/v1/nutrition/weekly-stats",
		"/api/v1/nutrition/notifications",
	} {
		rec := app.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := app.do(t, http.MethodPost, "/api/v1/nutrition/log-meal", "", gin.H{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
