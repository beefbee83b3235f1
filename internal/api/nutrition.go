package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/macroplate/backend/internal/goals"
	"github.com/macroplate/backend/internal/middleware"
	"github.com/macroplate/backend/internal/models"
	"github.com/macroplate/backend/internal/ratelimit"
	"github.com/macroplate/backend/internal/service"
)

type NutritionHandler struct {
	nutrition *service.NutritionService
	ai        *service.AIService
	limiter   *ratelimit.Limiter
	feed      *goals.Feed
}

func NewNutritionHandler(nutrition *service.NutritionService, ai *service.AIService, limiter *ratelimit.Limiter, feed *goals.Feed) *NutritionHandler {
	return &NutritionHandler{nutrition: nutrition, ai: ai, limiter: limiter, feed: feed}
}

func (h *NutritionHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth, optionalAuth, rateGate gin.HandlerFunc) {
	r.GET("/rate-limit-status", optionalAuth, h.rateLimitStatus)
	r.POST("/analyze-and-log-dish", optionalAuth, rateGate, h.analyzeAndLogDish)
	r.POST("/recognize-ingredients", requireAuth, h.recognizeIngredients)
	r.POST("/analyze-dish", requireAuth, h.analyzeDish)
	r.POST("/log-meal", requireAuth, h.logMeal)
	r.GET("/daily-log", requireAuth, h.dailyLog)
	r.GET("/daily-stats", requireAuth, h.dailyStats)
	r.GET("/weekly-stats", requireAuth, h.weeklyStats)
	r.GET("/notifications", requireAuth, h.notifications)
	r.POST("/notifications/:id/read", requireAuth, h.markNotificationRead)
	r.DELETE("/notifications", requireAuth, h.clearNotifications)
}

// rateLimitStatus reports the caller's remaining anonymous quota without
// consuming any of it.
func (h *NutritionHandler) rateLimitStatus(c *gin.Context) {
	_, authenticated := middleware.UserID(c)
	key := ratelimit.ClientKey(c.Request)

	usage, err := h.limiter.Usage(c.Request.Context(), key, authenticated)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read rate limit status"})
		return
	}
	c.JSON(http.StatusOK, usage)
}

type analyzeDishRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	MimeType    string `json:"mime_type"`
	MealType    string `json:"meal_type"`
}

func (r analyzeDishRequest) mime() string {
	if r.MimeType == "" {
		return "image/jpeg"
	}
	return r.MimeType
}

// analyzeAndLogDish analyzes the photo for anyone; the result is persisted
// as a logged meal only for authenticated callers.
func (h *NutritionHandler) analyzeAndLogDish(c *gin.Context) {
	var req analyzeDishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysis, err := h.ai.AnalyzeDish(c.Request.Context(), req.ImageBase64, req.mime())
	if err != nil {
		h.writeAIError(c, err)
		return
	}

	userID, authenticated := middleware.UserID(c)
	logged := false
	if authenticated {
		dish := &models.ScannedDish{
			DishName:        analysis.DishName,
			MealType:        req.MealType,
			PortionSize:     analysis.PortionSize,
			Nutrition:       analysis.Nutrition,
			ConfidenceScore: analysis.ConfidenceScore,
		}
		if err := h.nutrition.LogMeal(userID, dish); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log analyzed dish"})
			return
		}
		logged = true
	}

	c.JSON(http.StatusOK, gin.H{"analysis": analysis, "logged": logged})
}

func (h *NutritionHandler) recognizeIngredients(c *gin.Context) {
	var req analyzeDishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ingredients, err := h.ai.RecognizeIngredients(c.Request.Context(), req.ImageBase64, req.mime())
	if err != nil {
		h.writeAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingredients": ingredients})
}

func (h *NutritionHandler) analyzeDish(c *gin.Context) {
	var req analyzeDishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysis, err := h.ai.AnalyzeDish(c.Request.Context(), req.ImageBase64, req.mime())
	if err != nil {
		h.writeAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": analysis})
}

type logMealRequest struct {
	DishName    string               `json:"dish_name" binding:"required"`
	MealType    string               `json:"meal_type"`
	PortionSize string               `json:"portion_size"`
	Nutrition   models.NutritionInfo `json:"nutrition" binding:"required"`
	ImageURL    string               `json:"image_url"`
	ScannedAt   *time.Time           `json:"scanned_at"`
}

func (h *NutritionHandler) logMeal(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req logMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dish := &models.ScannedDish{
		DishName:    req.DishName,
		MealType:    req.MealType,
		PortionSize: req.PortionSize,
		Nutrition:   req.Nutrition,
		ImageURL:    req.ImageURL,
	}
	if req.ScannedAt != nil {
		dish.ScannedAt = *req.ScannedAt
	}

	if err := h.nutrition.LogMeal(userID, dish); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log meal"})
		return
	}
	c.JSON(http.StatusCreated, dish)
}

// dateParam returns the date query param, defaulting to today (UTC).
func dateParam(c *gin.Context, name string) string {
	if v := c.Query(name); v != "" {
		return v
	}
	return time.Now().UTC().Format("2006-01-02")
}

func (h *NutritionHandler) dailyLog(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	dishes, err := h.nutrition.DailyLog(userID, dateParam(c, "date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dishes": dishes, "count": len(dishes)})
}

func (h *NutritionHandler) dailyStats(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	stats, err := h.nutrition.DailyStats(userID, dateParam(c, "date"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load daily stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *NutritionHandler) weeklyStats(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	stats, err := h.nutrition.WeeklyStats(userID, dateParam(c, "end_date"), days)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": stats})
}

// notifications lists the goal feed. unread_only defaults to true: the
// client polls this for fresh toasts and asks for the full history
// explicitly.
func (h *NutritionHandler) notifications(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	unreadOnly := c.DefaultQuery("unread_only", "true") == "true"

	list := h.feed.Notifications(userID, unreadOnly)
	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"unread_count":  h.feed.UnreadCount(userID),
	})
}

func (h *NutritionHandler) markNotificationRead(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	h.feed.MarkRead(userID, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"message": "notification marked read"})
}

func (h *NutritionHandler) clearNotifications(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	h.feed.Clear(userID)
	c.JSON(http.StatusOK, gin.H{"message": "notifications cleared"})
}

func (h *NutritionHandler) writeAIError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrAIUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ai service not configured"})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "ai request failed"})
}
