package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/macroplate/backend/internal/middleware"
	"github.com/macroplate/backend/internal/models"
	"github.com/macroplate/backend/internal/service"
)

const maxUploadBytes = 10 << 20

type RecipeHandler struct {
	recipes *service.RecipeService
	ai      *service.AIService
	images  *service.ImageService
	auth    *service.AuthService
}

func NewRecipeHandler(recipes *service.RecipeService, ai *service.AIService, images *service.ImageService, auth *service.AuthService) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, ai: ai, images: images, auth: auth}
}

// RegisterRoutes wires the recipe endpoints. requireAuth guards the
// mutating routes, optionalAuth resolves visibility for reads, and
// rateGate meters the anonymous AI generation path.
func (h *RecipeHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth, optionalAuth, rateGate gin.HandlerFunc) {
	r.GET("", optionalAuth, h.list)
	r.GET("/:id", optionalAuth, h.get)
	r.POST("", requireAuth, h.create)
	r.PUT("/:id", requireAuth, h.update)
	r.DELETE("/:id", requireAuth, h.delete)
	r.POST("/generate", requireAuth, h.generate)
	r.POST("/generate-from-input", optionalAuth, rateGate, h.generateFromInput)
	r.POST("/generate-and-save", requireAuth, rateGate, h.generateAndSave)
	r.POST("/upload-image", requireAuth, h.uploadImage)
}

func (h *RecipeHandler) list(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	maxPrep, _ := strconv.Atoi(c.Query("max_prep_time"))

	recipes, err := h.recipes.List(service.RecipeFilter{
		Query:       c.Query("q"),
		Category:    c.Query("category"),
		Cuisine:     c.Query("cuisine"),
		Difficulty:  c.Query("difficulty"),
		MaxPrepTime: maxPrep,
		MyRecipes:   c.Query("my_recipes") == "true",
		UserID:      userID,
	})
	if err != nil {
		if errors.Is(err, service.ErrNotOwner) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required for my_recipes"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recipes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes, "count": len(recipes)})
}

func (h *RecipeHandler) get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}
	userID, _ := middleware.UserID(c)

	recipe, err := h.recipes.Get(id, userID)
	if err != nil {
		if errors.Is(err, service.ErrRecipeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load recipe"})
		return
	}
	c.JSON(http.StatusOK, recipe)
}

type recipeRequest struct {
	Name            string   `json:"name" binding:"required"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Cuisine         string   `json:"cuisine"`
	Ingredients     []string `json:"ingredients" binding:"required,min=1"`
	Instructions    []string `json:"instructions" binding:"required,min=1"`
	PrepTimeMinutes int      `json:"prep_time_minutes"`
	CookTimeMinutes int      `json:"cook_time_minutes"`
	Servings        int      `json:"servings"`
	Difficulty      string   `json:"difficulty"`
	SpiceLevel      string   `json:"spice_level"`
	Calories        float64  `json:"calories"`
	Protein         float64  `json:"protein"`
	Carbs           float64  `json:"carbs"`
	Fat             float64  `json:"fat"`
	IsPublic        bool     `json:"is_public"`
}

func (r recipeRequest) toModel() *models.Recipe {
	return &models.Recipe{
		Name:            r.Name,
		Description:     r.Description,
		Category:        r.Category,
		Cuisine:         r.Cuisine,
		Ingredients:     models.JSONBStringArray(r.Ingredients),
		Instructions:    models.JSONBStringArray(r.Instructions),
		PrepTimeMinutes: r.PrepTimeMinutes,
		CookTimeMinutes: r.CookTimeMinutes,
		Servings:        r.Servings,
		Difficulty:      r.Difficulty,
		SpiceLevel:      r.SpiceLevel,
		Calories:        r.Calories,
		Protein:         r.Protein,
		Carbs:           r.Carbs,
		Fat:             r.Fat,
		IsPublic:        r.IsPublic,
	}
}

func (h *RecipeHandler) create(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recipe := req.toModel()
	if err := h.recipes.Create(userID, recipe); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create recipe"})
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func (h *RecipeHandler) update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}
	userID, _ := middleware.UserID(c)

	var req recipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recipe, err := h.recipes.Update(id, userID, req.toModel())
	if err != nil {
		h.writeOwnershipError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe id"})
		return
	}
	userID, _ := middleware.UserID(c)

	if err := h.recipes.Delete(id, userID); err != nil {
		h.writeOwnershipError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recipe deleted"})
}

func (h *RecipeHandler) writeOwnershipError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRecipeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "recipe belongs to another user"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recipe operation failed"})
	}
}

type generateRequest struct {
	Prompt      string `json:"prompt"`
	Cuisine     string `json:"cuisine"`
	Difficulty  string `json:"difficulty"`
	SpiceLevel  string `json:"spice_level"`
	Servings    int    `json:"servings"`
	MaxPrepTime int    `json:"max_prep_time"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// generate produces a recipe for an authenticated user, personalized with
// their stored dietary preferences and allergens.
func (h *RecipeHandler) generate(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	dietary, allergens, err := h.auth.Preferences(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}

	recipe, err := h.ai.GenerateRecipe(c.Request.Context(), service.RecipeParams{
		Prompt:      req.Prompt,
		Cuisine:     req.Cuisine,
		Difficulty:  req.Difficulty,
		SpiceLevel:  req.SpiceLevel,
		Servings:    req.Servings,
		MaxPrepTime: req.MaxPrepTime,
		Dietary:     dietary,
		Allergens:   allergens,
	})
	if err != nil {
		h.writeAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

// generateFromInput accepts either a text prompt or a photo, not both. A
// photo is first reduced to its recognized ingredients.
func (h *RecipeHandler) generateFromInput(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hasText := req.Prompt != ""
	hasImage := req.ImageBase64 != ""
	if hasText == hasImage {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide exactly one of prompt or image_base64"})
		return
	}

	prompt := req.Prompt
	if hasImage {
		mime := req.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		ingredients, err := h.ai.RecognizeIngredients(c.Request.Context(), req.ImageBase64, mime)
		if err != nil {
			h.writeAIError(c, err)
			return
		}
		if len(ingredients) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no ingredients recognized in image"})
			return
		}
		prompt = "a dish using " + strings.Join(ingredients, ", ")
	}

	recipe, err := h.ai.GenerateRecipe(c.Request.Context(), service.RecipeParams{
		Prompt:      prompt,
		Cuisine:     req.Cuisine,
		Difficulty:  req.Difficulty,
		SpiceLevel:  req.SpiceLevel,
		Servings:    req.Servings,
		MaxPrepTime: req.MaxPrepTime,
	})
	if err != nil {
		h.writeAIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

// generateAndSave generates a recipe and stores it as a private recipe of
// the caller in one step.
func (h *RecipeHandler) generateAndSave(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	dietary, allergens, err := h.auth.Preferences(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}

	generated, err := h.ai.GenerateRecipe(c.Request.Context(), service.RecipeParams{
		Prompt:      req.Prompt,
		Cuisine:     req.Cuisine,
		Difficulty:  req.Difficulty,
		SpiceLevel:  req.SpiceLevel,
		Servings:    req.Servings,
		MaxPrepTime: req.MaxPrepTime,
		Dietary:     dietary,
		Allergens:   allergens,
	})
	if err != nil {
		h.writeAIError(c, err)
		return
	}

	recipe := &models.Recipe{
		Name:            generated.Name,
		Description:     generated.Description,
		Category:        generated.Category,
		Cuisine:         generated.Cuisine,
		Ingredients:     models.JSONBStringArray(generated.Ingredients),
		Instructions:    models.JSONBStringArray(generated.Instructions),
		PrepTimeMinutes: generated.PrepTimeMinutes,
		CookTimeMinutes: generated.CookTimeMinutes,
		Servings:        generated.Servings,
		Difficulty:      generated.Difficulty,
		SpiceLevel:      generated.SpiceLevel,
		Calories:        generated.Calories,
		Protein:         generated.Protein,
		Carbs:           generated.Carbs,
		Fat:             generated.Fat,
	}
	if err := h.recipes.Create(userID, recipe); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save recipe"})
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func (h *RecipeHandler) uploadImage(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	recipeID, err := uuid.Parse(c.PostForm("recipe_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipe_id"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds 10MB"})
		return
	}

	url, err := h.images.Upload(c.Request.Context(), userID, header.Filename,
		header.Header.Get("Content-Type"), data)
	if err != nil {
		if errors.Is(err, service.ErrStorageUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "image upload failed"})
		return
	}

	if err := h.recipes.SetImageURL(recipeID, userID, url); err != nil {
		h.writeOwnershipError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": url})
}

func (h *RecipeHandler) writeAIError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrAIUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ai service not configured"})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "ai request failed"})
}
