// Package server wires the HTTP surface together.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/macroplate/backend/config"
	"github.com/macroplate/backend/internal/api"
	"github.com/macroplate/backend/internal/goals"
	"github.com/macroplate/backend/internal/middleware"
	"github.com/macroplate/backend/internal/ratelimit"
	"github.com/macroplate/backend/internal/service"
)

type Server struct {
	engine *gin.Engine
	http   *http.Server
}

// Options collects the external collaborators. Redis and S3 are optional;
// absent ones degrade the corresponding feature instead of failing startup.
type Options struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisClient *redis.Client
	S3          *config.S3Config
}

// New assembles services, middleware and routes.
func New(opts Options) *Server {
	cfg := opts.Config

	if cfg.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Rate limiting: durable in redis when available, always with the
	// in-process fallback behind it.
	var primary ratelimit.Store
	if opts.RedisClient != nil {
		primary = ratelimit.NewRedisStore(opts.RedisClient)
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewFailoverStore(primary, ratelimit.NewMemoryStore()))

	// Goal notifications: log sink plus the per-user feed.
	feed := goals.NewFeed()
	tracker := goals.NewTracker(goals.LogObserver{}, feed)

	authService := service.NewAuthService(opts.DB, cfg.JWTSecret)
	recipeService := service.NewRecipeService(opts.DB)
	nutritionService := service.NewNutritionService(opts.DB, tracker)
	aiService := service.NewAIService(cfg.GroqAPIKey, cfg.GroqAPIURL)

	var imageService *service.ImageService
	if opts.S3 != nil {
		imageService = service.NewImageService(opts.S3.Client, opts.S3.BucketName)
	} else {
		imageService = service.NewImageService(nil, "")
	}

	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "macroplate", "status": "ok"})
	})
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	requireAuth := middleware.AuthMiddleware(authService)
	optionalAuth := middleware.OptionalAuth(authService)
	rateGate := middleware.RateLimit(limiter)

	v1 := engine.Group("/api/v1")
	api.NewAuthHandler(authService).RegisterRoutes(v1.Group("/auth"), requireAuth)
	api.NewRecipeHandler(recipeService, aiService, imageService, authService).
		RegisterRoutes(v1.Group("/recipes"), requireAuth, optionalAuth, rateGate)
	api.NewNutritionHandler(nutritionService, aiService, limiter, feed).
		RegisterRoutes(v1.Group("/nutrition"), requireAuth, optionalAuth, rateGate)

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
