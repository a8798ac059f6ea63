package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/primerjalnik/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger zerolog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		v1.GET("/search", handler.SearchProducts)

		products := v1.Group("/products")
		{
			products.GET("/:id", handler.GetProduct)
			products.POST("/merge", handler.MergeProducts)
		}

		v1.POST("/listings", handler.IngestListings)

		resolution := v1.Group("/resolution")
		{
			resolution.POST("/run", handler.RunResolution)
			resolution.GET("/partition", handler.VerifyPartition)
		}
	}

	return router
}
