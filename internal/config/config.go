package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	LLMProvider     string // gemini, anthropic, openai or none
	ModelName       string
	GeminiAPIKey    string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OpenAIBaseURL   string

	StorageBackend string // redis or memory
	RedisURL       string
	SessionTTL     time.Duration

	GeneratorTimeout time.Duration
	ThinkDelay       time.Duration
	TurnLockTTL      time.Duration // must outlive GeneratorTimeout + ThinkDelay
	HistoryLimit     int           // transcript entries sent to the model; 0 sends all
}

// turnLockMargin is the default slack between the longest turn and the lock TTL.
const turnLockMargin = 10 * time.Second

// Load reads configuration from the environment, after loading a .env file
// from the working directory if there is one.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	// Existing environment variables win over the file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		ModelName:       getEnv("MODEL_NAME", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		StorageBackend:  strings.ToLower(getEnv("STORAGE_BACKEND", "redis")),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.GeneratorTimeout, err = getDuration("GENERATOR_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.ThinkDelay, err = getDuration("THINK_DELAY", 0); err != nil {
		return nil, err
	}
	if cfg.TurnLockTTL, err = getDuration("TURN_LOCK_TTL", cfg.GeneratorTimeout+cfg.ThinkDelay+turnLockMargin); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getInt("HISTORY_LIMIT", 40); err != nil {
		return nil, err
	}

	if cfg.ModelName == "" && cfg.LLMProvider == "gemini" {
		cfg.ModelName = "gemini-2.5-flash"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late at startup.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER is gemini")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER is anthropic")
		}
	case "openai", "none":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (supported: gemini, anthropic, openai, none)", c.LLMProvider)
	}

	switch c.StorageBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q (supported: redis, memory)", c.StorageBackend)
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.GeneratorTimeout <= 0 {
		return fmt.Errorf("GENERATOR_TIMEOUT must be positive")
	}
	if c.ThinkDelay < 0 {
		return fmt.Errorf("THINK_DELAY must not be negative")
	}
	if c.TurnLockTTL <= c.GeneratorTimeout+c.ThinkDelay {
		return fmt.Errorf("TURN_LOCK_TTL (%s) must exceed GENERATOR_TIMEOUT + THINK_DELAY (%s)",
			c.TurnLockTTL, c.GeneratorTimeout+c.ThinkDelay)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT must not be negative")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}
