// Package config provides environment configuration for the backend.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/parley-ai/parley/internal/errs"
)

// Config holds all configuration for the application, populated once at
// startup from a flat key/value environment and validated before use.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Storage settings
	StoragePath string
	BackupPath  string

	// Model defaults applied to new sessions
	DefaultProvider string
	ModelName       string
	Temperature     float64
	MaxTokens       int
	ModelTimeout    time.Duration

	// Conversation settings
	MaxHistory   int
	SystemPrompt string

	// Provider credentials
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// NATS settings (event publishing is disabled when URL is empty)
	NATSURL   string
	NATSToken string

	// JWT settings
	JWTSecret     string
	JWTExpiration time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Storage
		StoragePath: getEnv("STORAGE_PATH", "./data"),
		BackupPath:  getEnv("BACKUP_PATH", "./backups"),

		// Model defaults
		DefaultProvider: getEnv("DEFAULT_PROVIDER", "openai"),
		ModelName:       getEnv("MODEL_NAME", "gpt-4o"),
		Temperature:     getFloatEnv("MODEL_TEMPERATURE", 0.7),
		MaxTokens:       getIntEnv("MODEL_MAX_TOKENS", 2000),
		ModelTimeout:    getDurationEnv("MODEL_TIMEOUT", 30*time.Second),

		// Conversation
		MaxHistory:   getIntEnv("CONVERSATION_MAX_HISTORY", 10),
		SystemPrompt: getEnv("CONVERSATION_SYSTEM_PROMPT", ""),

		// Providers
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),

		// NATS
		NATSURL:   getEnv("NATS_URL", ""),
		NATSToken: getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret:     getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 15*time.Minute),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks settings that would make startup unsafe. Failures here are
// fatal; after startup the last-known-good configuration stays in effect.
func (c *Config) Validate() error {
	if c.StoragePath == "" {
		return errs.Config("config.Validate", "storage path must not be empty")
	}
	if c.MaxHistory < 0 {
		return errs.Config("config.Validate", "conversation max history must not be negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errs.Config("config.Validate", "model temperature must be between 0 and 2")
	}
	if c.MaxTokens <= 0 {
		return errs.Config("config.Validate", "model max tokens must be positive")
	}
	if c.ModelTimeout <= 0 {
		return errs.Config("config.Validate", "model timeout must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
