package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/binaa-yemen/raster-pipeline/internal/config"
	"github.com/binaa-yemen/raster-pipeline/internal/handlers"
	"github.com/binaa-yemen/raster-pipeline/internal/middleware"
	"github.com/binaa-yemen/raster-pipeline/internal/rasterjob"
	"github.com/binaa-yemen/raster-pipeline/internal/worker"
)

// Setup creates and configures the Gin router.
func Setup(store rasterjob.Store, runtime *worker.Runtime, stagingDir string) *gin.Engine {
	dispatcher := handlers.NewDispatcher(store, runtime, stagingDir)

	router := setupBaseRouter()

	router.GET("/health", dispatcher.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/uploads", dispatcher.Enqueue)
		v1.GET("/jobs/:job_id", dispatcher.Status)
		v1.POST("/jobs/:job_id/cancel", dispatcher.Cancel)
		v1.GET("/queue/status", dispatcher.QueueStatus)
	}

	router.GET("/api", apiDocumentation())

	return router
}

func setupBaseRouter() *gin.Engine {
	router := gin.New()

	router.Use(otelgin.Middleware("raster-pipeline-api"))
	router.Use(middleware.Observability())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimit())

	// In production, set this to the specific IP ranges of the load
	// balancer or reverse proxy. nil means X-Forwarded-For is never
	// trusted, which prevents IP spoofing when not behind a proxy.
	router.SetTrustedProxies(nil)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.GetAllowedOrigins()
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Authorization",
		"Accept",
		"User-Agent",
		"Cache-Control",
		"Pragma",
	}
	corsConfig.AllowMethods = []string{
		"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
	}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	return router
}

func apiDocumentation() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "Raster Pipeline API",
			"version":     "1.0",
			"description": "GeoTIFF/COG ingestion pipeline for web-map-ready raster layers",
			"endpoints": map[string]interface{}{
				"health": "GET /health",
				"uploads": map[string]string{
					"enqueue": "POST /api/v1/uploads",
				},
				"jobs": map[string]string{
					"status": "GET /api/v1/jobs/:job_id",
					"cancel": "POST /api/v1/jobs/:job_id/cancel",
				},
				"queue": map[string]string{
					"status": "GET /api/v1/queue/status",
				},
			},
		})
	}
}
