package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENVIRONMENT", "LOG_LEVEL", "LLM_PROVIDER", "MODEL_NAME",
		"GEMINI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"STORAGE_BACKEND", "REDIS_URL", "SESSION_TTL", "GENERATOR_TIMEOUT", "THINK_DELAY",
		"TURN_LOCK_TTL", "HISTORY_LIMIT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Expected environment development, got %s", cfg.Environment)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("Expected info log level, got %v", cfg.LogLevel)
	}
	if cfg.LLMProvider != "gemini" || cfg.ModelName != "gemini-2.5-flash" {
		t.Errorf("Unexpected LLM defaults: %s %s", cfg.LLMProvider, cfg.ModelName)
	}
	if cfg.StorageBackend != "redis" || cfg.RedisURL != "localhost:6379" {
		t.Errorf("Unexpected storage defaults: %s %s", cfg.StorageBackend, cfg.RedisURL)
	}
	if cfg.SessionTTL != time.Hour || cfg.GeneratorTimeout != 20*time.Second || cfg.ThinkDelay != 0 {
		t.Errorf("Unexpected duration defaults: %v %v %v", cfg.SessionTTL, cfg.GeneratorTimeout, cfg.ThinkDelay)
	}
	if cfg.TurnLockTTL != 30*time.Second {
		t.Errorf("Expected turn lock TTL 30s, got %v", cfg.TurnLockTTL)
	}
	if cfg.HistoryLimit != 40 {
		t.Errorf("Expected history limit 40, got %d", cfg.HistoryLimit)
	}
}

func TestLoad_TurnLockFollowsCallBound(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("GENERATOR_TIMEOUT", "45s")
	t.Setenv("THINK_DELAY", "2s")

	cfg, err := load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if cfg.TurnLockTTL != 57*time.Second {
		t.Errorf("Expected turn lock TTL 57s, got %v", cfg.TurnLockTTL)
	}
}

func TestLoad_FromEnvFile(t *testing.T) {
	clearEnv(t)
	// t.Setenv("", ...) leaves the variables defined, so unset them for godotenv.
	for _, key := range []string{"LLM_PROVIDER", "ANTHROPIC_API_KEY", "THINK_DELAY", "STORAGE_BACKEND"} {
		os.Unsetenv(key)
	}

	path := filepath.Join(t.TempDir(), ".env")
	content := "LLM_PROVIDER=anthropic\nANTHROPIC_API_KEY=sk-test\nTHINK_DELAY=1500ms\nSTORAGE_BACKEND=memory\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		for _, key := range []string{"LLM_PROVIDER", "ANTHROPIC_API_KEY", "THINK_DELAY", "STORAGE_BACKEND"} {
			os.Unsetenv(key)
		}
	})

	cfg, err := load(path)
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if cfg.LLMProvider != "anthropic" || cfg.AnthropicAPIKey != "sk-test" {
		t.Errorf("Expected anthropic settings from file, got %s %q", cfg.LLMProvider, cfg.AnthropicAPIKey)
	}
	if cfg.ThinkDelay != 1500*time.Millisecond {
		t.Errorf("Expected think delay 1.5s, got %v", cfg.ThinkDelay)
	}
	if cfg.StorageBackend != "memory" {
		t.Errorf("Expected memory backend, got %s", cfg.StorageBackend)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"invalid duration", map[string]string{"LLM_PROVIDER": "none", "SESSION_TTL": "forever"}},
		{"missing gemini key", map[string]string{"LLM_PROVIDER": "gemini"}},
		{"missing anthropic key", map[string]string{"LLM_PROVIDER": "anthropic"}},
		{"unknown provider", map[string]string{"LLM_PROVIDER": "venice"}},
		{"unknown backend", map[string]string{"LLM_PROVIDER": "none", "STORAGE_BACKEND": "postgres"}},
		{"negative delay", map[string]string{"LLM_PROVIDER": "none", "THINK_DELAY": "-1s"}},
		{"lock shorter than call", map[string]string{"LLM_PROVIDER": "none", "GENERATOR_TIMEOUT": "60s", "TURN_LOCK_TTL": "30s"}},
		{"lock equal to call bound", map[string]string{"LLM_PROVIDER": "none", "GENERATOR_TIMEOUT": "20s", "THINK_DELAY": "5s", "TURN_LOCK_TTL": "25s"}},
		{"invalid history limit", map[string]string{"LLM_PROVIDER": "none", "HISTORY_LIMIT": "lots"}},
		{"negative history limit", map[string]string{"LLM_PROVIDER": "none", "HISTORY_LIMIT": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
