// Package config provides environment configuration for the companion
// client and the development backend stub.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Client  ClientConfig
	Backend BackendConfig

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// ClientConfig holds settings for the chat client.
type ClientConfig struct {
	BaseURL        string
	UserID         string
	Token          string
	RequestTimeout time.Duration

	// NATS notifications for conversation starts; empty disables them
	NATSURL      string
	NATSToken    string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
}

// BackendConfig holds settings for the development backend stub.
type BackendConfig struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Storage; empty keeps conversations in memory
	BoltPath string

	// JWT settings; empty secret disables authentication
	JWTSecret string

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	Model           string
	TokenDelay      time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory, when present, fills variables that are not already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Client: ClientConfig{
			BaseURL:        getEnv("COMPANION_API_URL", "http://localhost:5000"),
			UserID:         getEnv("COMPANION_USER_ID", ""),
			Token:          getEnv("COMPANION_TOKEN", ""),
			RequestTimeout: getDurationEnv("COMPANION_REQUEST_TIMEOUT", 10*time.Second),
			NATSURL:        getEnv("NATS_URL", ""),
			NATSToken:      getEnv("NATS_TOKEN", ""),
			NATSCAFile:     getEnv("NATS_CA_FILE", ""),
			NATSCertFile:   getEnv("NATS_CERT_FILE", ""),
			NATSKeyFile:    getEnv("NATS_KEY_FILE", ""),
		},
		Backend: BackendConfig{
			ServerPort:         getEnv("PORT", "5000"),
			ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
			BoltPath:           getEnv("BOLT_PATH", ""),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
			OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
			Model:              getEnv("LLM_MODEL", ""),
			TokenDelay:         getDurationEnv("SCRIPTED_TOKEN_DELAY", 40*time.Millisecond),
			RateLimitRequests:  getIntEnv("RATE_LIMIT_REQUESTS", 60),
			RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
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
