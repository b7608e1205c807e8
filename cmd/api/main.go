package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scam-sim/internal/config"
	"github.com/jwebster45206/scam-sim/internal/handlers"
	"github.com/jwebster45206/scam-sim/internal/logger"
	"github.com/jwebster45206/scam-sim/internal/middleware"
	"github.com/jwebster45206/scam-sim/internal/services"
	"github.com/jwebster45206/scam-sim/internal/services/events"
	"github.com/jwebster45206/scam-sim/internal/sessions"
	redisstorage "github.com/jwebster45206/scam-sim/internal/storage"
	"github.com/jwebster45206/scam-sim/pkg/session"
	"github.com/jwebster45206/scam-sim/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting scam-sim API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"storage_backend", cfg.StorageBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llmService, closeLLM := newLLMService(ctx, cfg, log)
	defer closeLLM()

	var (
		store       storage.Storage
		redisClient *redis.Client
	)
	switch cfg.StorageBackend {
	case "memory":
		store = storage.NewMemoryStorage(cfg.SessionTTL)
		log.Info("Using in-memory session storage; event stream disabled")
	default:
		rs, err := redisstorage.NewRedisStorage(cfg.RedisURL, cfg.SessionTTL, log)
		if err != nil {
			log.Error("Failed to configure Redis storage", "error", err)
			os.Exit(1)
		}
		storageCtx, storageCancel := context.WithTimeout(ctx, 2*time.Minute)
		err = rs.WaitForConnection(storageCtx)
		storageCancel()
		if err != nil {
			log.Error("Failed to connect to storage", "error", err)
			os.Exit(1)
		}
		log.Info("Storage connection established successfully")
		store = rs
		redisClient = rs.Client()
	}

	deps := session.Deps{
		Logger:      log,
		CallTimeout: cfg.GeneratorTimeout,
		ThinkDelay:  cfg.ThinkDelay,
	}
	if llmService != nil {
		persona := services.NewPersonaService(llmService, log, services.WithHistoryLimit(cfg.HistoryLimit))
		deps.Generator = persona
		deps.Reactor = persona
	}
	if redisClient != nil {
		deps.Notifier = events.NewBroadcaster(redisClient, log)
	}

	manager := sessions.NewManager(store, deps, log,
		sessions.WithTTL(cfg.SessionTTL),
		sessions.WithLockTiming(cfg.TurnLockTTL, cfg.TurnLockTTL),
	)
	go manager.RunJanitor(ctx, time.Minute)

	mux := http.NewServeMux()

	mux.Handle("/health", handlers.NewHealthHandler(store, cfg.LLMProvider, log))

	scenarioHandler := handlers.NewScenarioHandler(log)
	mux.Handle("/v1/scenarios", scenarioHandler)
	mux.Handle("/v1/scenarios/", scenarioHandler)

	sessionHandler := handlers.NewSessionHandler(manager, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	mux.Handle("/v1/events/sessions/", handlers.NewEventsHandler(redisClient, log))

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream is long-lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}

// newLLMService builds the configured provider. It returns a nil service for
// provider "none", in which case every reply takes the local fallback path.
func newLLMService(ctx context.Context, cfg *config.Config, log *slog.Logger) (services.LLMService, func()) {
	switch cfg.LLMProvider {
	case "gemini":
		gs, err := services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.ModelName, log)
		if err != nil {
			log.Error("Failed to create Gemini client", "error", err)
			os.Exit(1)
		}
		log.Info("Using Gemini LLM provider")
		return gs, func() {
			if err := gs.Close(); err != nil {
				log.Error("Error closing Gemini client", "error", err)
			}
		}
	case "anthropic":
		log.Info("Using Anthropic LLM provider")
		return services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log), func() {}
	case "openai":
		log.Info("Using OpenAI-compatible LLM provider", "base_url", cfg.OpenAIBaseURL)
		return services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.ModelName, cfg.OpenAIBaseURL, log), func() {}
	default:
		log.Warn("No LLM provider configured; replies use local fallbacks")
		return nil, func() {}
	}
}
