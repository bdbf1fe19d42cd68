package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the feedback widget service
type Config struct {
	// Server configuration
	Port string

	// Webhook configuration
	WebhookURL     string
	TestWebhookURL string
	SendTimeout    time.Duration
	SendRetries    int
	SendBackoff    time.Duration

	// Gemini configuration
	GeminiAPIKey string
	GeminiModel  string

	// Achievements
	SecretShopperGoal int

	// Local store configuration
	StoreBackend string // "file" or "mysql"
	StoreFile    string

	// Database configuration (mysql store backend)
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	config := &Config{
		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Webhook defaults
		WebhookURL:     getEnv("WEBHOOK_URL", ""),
		TestWebhookURL: getEnv("TEST_WEBHOOK_URL", ""),
		SendTimeout:    getDurationEnv("SEND_TIMEOUT", 12*time.Second),
		SendRetries:    getIntEnv("SEND_RETRIES", 2),
		SendBackoff:    getDurationEnv("SEND_BACKOFF", 600*time.Millisecond),

		// Gemini defaults
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		// Achievements defaults
		SecretShopperGoal: getIntEnv("SECRET_SHOPPER_GOAL", 3),

		// Local store defaults
		StoreBackend: getEnv("STORE_BACKEND", "file"),
		StoreFile:    getEnv("STORE_FILE", "widget-store.json"),

		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "widget"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "feedback_widget"),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// The test webhook falls back to the production one so the test-mode
	// toggle is always safe to flip.
	if config.TestWebhookURL == "" {
		config.TestWebhookURL = config.WebhookURL
	}

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable with a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable with a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
