package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load env vars from .env file directly
func init() {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist (e.g. in production),
		// but we should log it just in case.
		// However, mostly we want to rely on environment variables being set.
		// If we are in local dev, this helps.
		log.Println("No .env file found or error loading it, using system environment variables")
	}
}

// GetAllowedOrigins returns a slice of allowed origins from the environment variable.
// It defaults to localhost:3000 if not set.
func GetAllowedOrigins() []string {
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr == "" {
		return []string{"http://localhost:3000"}
	}

	// Split by comma and trim spaces
	parts := strings.Split(originsStr, ",")
	var origins []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// Storage holds the object-store configuration. Field names follow the
// MinIO/S3 convention rather than R2's, since the deployment target for
// this pipeline is a self-hosted MinIO cluster.
type Storage struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// LoadStorage reads the MinIO connection settings.
func LoadStorage() Storage {
	return Storage{
		Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    getEnv("MINIO_BUCKET", "binaa-layers"),
		UseSSL:    strings.EqualFold(os.Getenv("MINIO_USE_SSL"), "true"),
		PublicURL: os.Getenv("MINIO_PUBLIC_URL"),
	}
}

// Queue holds the worker runtime's tuning knobs. CeleryBrokerURL and
// CeleryResultBackend are read for deployment compatibility with the system
// this pipeline replaces; the in-process worker pool never dials either of
// them, it only has its own in-memory queues.
type Queue struct {
	CeleryBrokerURL     string
	CeleryResultBackend string

	Workers           int
	MaxRetries        int
	RetryInitialDelay time.Duration
	GeoTIFFTimeout    time.Duration
	ArchiveTimeout    time.Duration
	CleanupInterval   time.Duration
	StatsInterval     time.Duration
	MaxTasksPerWorker int
	JobRetentionDays  int
}

// LoadQueue reads the worker runtime's tuning settings.
func LoadQueue() Queue {
	return Queue{
		CeleryBrokerURL:     os.Getenv("CELERY_BROKER_URL"),
		CeleryResultBackend: os.Getenv("CELERY_RESULT_BACKEND"),

		Workers:           getEnvInt("WORKER_CONCURRENCY", 4),
		MaxRetries:        getEnvInt("TASK_MAX_RETRIES", 3),
		RetryInitialDelay: time.Duration(getEnvInt("TASK_RETRY_DELAY_SECONDS", 60)) * time.Second,
		GeoTIFFTimeout:    time.Duration(getEnvInt("GEOTIFF_TIMEOUT_MINUTES", 30)) * time.Minute,
		ArchiveTimeout:    time.Duration(getEnvInt("ARCHIVE_TIMEOUT_MINUTES", 60)) * time.Minute,
		CleanupInterval:   time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute,
		StatsInterval:     time.Duration(getEnvInt("STATS_INTERVAL_SECONDS", 300)) * time.Second,
		MaxTasksPerWorker: getEnvInt("WORKER_MAX_TASKS_PER_CHILD", 100),
		JobRetentionDays:  getEnvInt("JOB_RETENTION_DAYS", 7),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
