package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds the server's environment configuration
type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	TablePrefix string
	CORSOrigins string

	// AuthSecret signs and verifies the HS256 bearer tokens
	AuthSecret string

	AnthropicAPIKey  string
	AnthropicBaseURL string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	DefaultModel     string

	// MaxSteps bounds the tool-call loop per turn
	MaxSteps int

	// StreamIdleTimeout fails a turn whose backend stream goes
	// silent. Zero disables the watchdog.
	StreamIdleTimeout time.Duration

	MaxTokens      int
	ThinkingBudget int

	Debug bool
}

// Load reads configuration from the environment
func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		TablePrefix: getTablePrefix(env),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		AuthSecret:  getEnv("AUTH_SECRET", ""),

		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		DefaultModel:     getEnv("DEFAULT_MODEL", "claude-3-5-haiku-20241022"),

		MaxSteps:          getEnvInt("MAX_TURN_STEPS", 8),
		StreamIdleTimeout: getEnvDuration("STREAM_IDLE_TIMEOUT", 90*time.Second),
		MaxTokens:         getEnvInt("MAX_TOKENS", 8192),
		ThinkingBudget:    getEnvInt("THINKING_BUDGET", 0),

		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// Validate checks that required settings are present and sane
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.AuthSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.MaxSteps, validation.Min(1)),
		validation.Field(&c.MaxTokens, validation.Min(1)),
		validation.Field(&c.Environment, validation.In("dev", "test", "prod")),
	)
}

func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix keeps every environment's tables apart in a shared
// database. TABLE_PREFIX overrides the environment-derived default.
func getTablePrefix(env string) string {
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s=%q is not an integer, using %d\n", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s=%q is not a duration, using %s\n", key, value, defaultValue)
		return defaultValue
	}
	return d
}
