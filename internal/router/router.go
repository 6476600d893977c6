package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/handler"
	"github.com/stemsi/exstem-attempts/internal/metrics"
	"github.com/stemsi/exstem-attempts/internal/middleware"
	"github.com/stemsi/exstem-attempts/internal/response"
	"github.com/stemsi/exstem-attempts/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
	Health  *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Metrics())
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		SkipPaths: []string{"/metrics", "/ws/"},
	}))

	// Ops.
	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// ─── 1. Candidate API (JWT + rate limit) ───────────────────────────
	api := router.Group("/api/v1")
	api.Use(
		limiter.Middleware(),
		middleware.RequireUserJWT(authService),
		middleware.NoStore(),
	)
	{
		api.POST("/exams/:exam_id/attempts", handlers.Attempt.StartAttempt)
		api.GET("/exams/:exam_id/attempts/active", handlers.Attempt.GetActiveAttempt)

		api.GET("/attempts/:attempt_id", handlers.Attempt.GetAttempt)
		api.POST("/attempts/:attempt_id/answers", handlers.Attempt.SubmitAnswer)
		api.POST("/attempts/:attempt_id/answers/batch", handlers.Attempt.SubmitBatch)
		api.POST("/attempts/:attempt_id/finish", handlers.Attempt.FinishAttempt)
	}

	// ─── 2. WebSocket Group (token in query) ───────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(limiter.Middleware(), middleware.RequireUserJWT(authService))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	return router
}
