package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/binaa-yemen/raster-pipeline/internal/config"
	"github.com/binaa-yemen/raster-pipeline/internal/database"
	"github.com/binaa-yemen/raster-pipeline/internal/logger"
	"github.com/binaa-yemen/raster-pipeline/internal/observability"
	"github.com/binaa-yemen/raster-pipeline/internal/repositories"
	"github.com/binaa-yemen/raster-pipeline/internal/router"
	"github.com/binaa-yemen/raster-pipeline/internal/storage"
	"github.com/binaa-yemen/raster-pipeline/internal/worker"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Get configuration from environment
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	port := getEnv("PORT", "3001")
	env := getEnv("ENVIRONMENT", "development")
	stagingDir := getEnv("UPLOAD_STAGING_DIR", "/tmp/raster-pipeline/staging")

	// Initialize logger
	logger.Init("github.com/binaa-yemen/raster-pipeline", env, logger.ParseLevelFromEnv())

	// Initialize OpenTelemetry
	shutdownOTel, err := observability.InitOTel(context.Background(), "raster-pipeline-api")
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				log.Printf("Error shutting down OpenTelemetry: %v", err)
			}
		}()
		log.Println("✓ OpenTelemetry initialized")
	}

	// Set Gin mode
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.New(databaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	log.Println("✓ Connected to PostgreSQL")

	// Initialize object storage
	objStore, err := storage.NewObjectStore(config.LoadStorage())
	if err != nil {
		log.Fatal("Failed to configure object storage:", err)
	}
	if err := objStore.EnsureBucket(context.Background()); err != nil {
		log.Fatal("Failed to ensure storage bucket:", err)
	}
	log.Println("✓ Connected to object storage")

	jobStore := repositories.NewJobRepository(db)

	// Start the worker runtime: ingest pipeline, housekeeping tickers
	runtime := worker.New(config.LoadQueue(), jobStore, objStore)
	runtime.Start()
	defer runtime.Stop()
	log.Println("✓ Worker runtime started")

	// Setup router with all handlers
	r := router.Setup(jobStore, runtime, stagingDir)

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("🚀 Server starting on port %s", port)
		log.Printf("📍 Database: PostgreSQL")
		log.Printf("🌍 Environment: %s", env)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("📤 Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("✅ Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
