package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	APIBaseURL     string
	RequestTimeout time.Duration

	ChunkRetries int
	ChunkBackoff time.Duration

	JournalPath string
	JanitorSpec string        // cron spec for the upload-session janitor
	UploadTTL   time.Duration // age after which an abandoned session is reclaimed
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),

		ChunkRetries: getEnvInt("CHUNK_RETRIES", 3),
		ChunkBackoff: getEnvDuration("CHUNK_BACKOFF", 500*time.Millisecond),

		JournalPath: getEnv("UPLOAD_JOURNAL_PATH", "uploads.db"),
		JanitorSpec: getEnv("UPLOAD_JANITOR_SPEC", "@hourly"),
		UploadTTL:   getEnvDuration("UPLOAD_SESSION_TTL", 24*time.Hour),
	}

	if AppConfig.APIBaseURL == "http://localhost:8000" {
		log.Println("Warning: Using default API_BASE_URL. Update it in your environment.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

// getEnvDuration retrieves an environment variable as a duration or returns the default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to duration: %v", key, err)
		return defaultValue
	}
	return d
}
