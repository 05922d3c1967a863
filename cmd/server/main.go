package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/mruwnik/notes-critic-sub001/internal/capabilities"
	"github.com/mruwnik/notes-critic-sub001/internal/config"
	"github.com/mruwnik/notes-critic-sub001/internal/engine"
	"github.com/mruwnik/notes-critic-sub001/internal/handler"
	"github.com/mruwnik/notes-critic-sub001/internal/handler/sse"
	"github.com/mruwnik/notes-critic-sub001/internal/middleware"
	"github.com/mruwnik/notes-critic-sub001/internal/provider"
	"github.com/mruwnik/notes-critic-sub001/internal/provider/anthropic"
	"github.com/mruwnik/notes-critic-sub001/internal/provider/lorem"
	"github.com/mruwnik/notes-critic-sub001/internal/provider/openai"
	"github.com/mruwnik/notes-critic-sub001/internal/repository/postgres"
	postgresLLM "github.com/mruwnik/notes-critic-sub001/internal/repository/postgres/llm"
	serviceLLM "github.com/mruwnik/notes-critic-sub001/internal/service/llm"
	"github.com/mruwnik/notes-critic-sub001/internal/tools"

	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
)

func main() {
	// .env is optional; production configures through the environment
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	noteRepo := postgres.NewNoteRepository(repoConfig)
	conversationRepo := postgresLLM.NewConversationRepository(repoConfig)
	turnRepo := postgresLLM.NewTurnRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	capabilityRegistry, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize capability registry: %v", err)
	}

	var llmProviders []services.Provider
	if cfg.AnthropicAPIKey != "" {
		llmProviders = append(llmProviders, anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL))
		logger.Info("provider enabled", "provider", "anthropic")
	}
	if cfg.OpenAIAPIKey != "" {
		llmProviders = append(llmProviders, openai.New("openai", cfg.OpenAIAPIKey, cfg.OpenAIBaseURL,
			[]string{"gpt-", "o1", "o3", "o4"}))
		logger.Info("provider enabled", "provider", "openai")
	}
	llmProviders = append(llmProviders, lorem.New())

	opener := provider.NewSSEOpener()
	providerSet := serviceLLM.NewProviderSet(opener.OpenStream, llmProviders...)

	runnerRegistry := engine.NewRegistry(logger)

	turnService := serviceLLM.NewTurnService(
		conversationRepo,
		turnRepo,
		noteRepo,
		txManager,
		runnerRegistry,
		providerSet,
		capabilityRegistry,
		tools.DefaultConfig(),
		serviceLLM.TurnServiceConfig{
			MaxSteps:       cfg.MaxSteps,
			IdleTimeout:    cfg.StreamIdleTimeout,
			MaxTokens:      cfg.MaxTokens,
			DefaultModel:   cfg.DefaultModel,
			ThinkingBudget: cfg.ThinkingBudget,
		},
		logger,
	)
	conversationService := serviceLLM.NewConversationService(conversationRepo, runnerRegistry, logger)

	conversationHandler := handler.NewConversationHandler(conversationService, turnService, logger)
	turnHandler := handler.NewTurnHandler(turnService, logger)
	sseHandler := handler.NewSSEHandler(turnService, sse.DefaultConfig(), logger)
	modelsHandler := handler.NewModelsHandler(capabilityRegistry, providerSet.Names(), logger)
	healthHandler := handler.NewHealthHandler(pool, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.HealthCheck)

	mux.HandleFunc("POST /api/conversations", conversationHandler.CreateConversation)
	mux.HandleFunc("GET /api/conversations", conversationHandler.ListConversations)
	mux.HandleFunc("GET /api/conversations/{id}", conversationHandler.GetConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", conversationHandler.DeleteConversation)
	mux.HandleFunc("GET /api/conversations/{id}/turns", conversationHandler.ListTurns)
	mux.HandleFunc("POST /api/conversations/{id}/turns", conversationHandler.CreateRound)

	mux.HandleFunc("GET /api/turns/{id}", turnHandler.GetTurn)
	mux.HandleFunc("GET /api/turns/{id}/stream", sseHandler.StreamTurn)
	mux.HandleFunc("POST /api/turns/{id}/interrupt", turnHandler.Interrupt)
	mux.HandleFunc("POST /api/turns/{id}/rerun", turnHandler.Rerun)

	mux.HandleFunc("GET /api/models/capabilities", modelsHandler.GetCapabilities)

	// Middleware wrap in reverse order: CORS → Recovery → Auth → Routes
	var httpHandler http.Handler = mux
	httpHandler = middleware.Auth(cfg.AuthSecret, logger)(httpHandler)
	httpHandler = middleware.Recovery(logger)(httpHandler)

	// CORS before auth so OPTIONS pre-flight requests pass
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	httpHandler = corsHandler.Handler(httpHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	// Settle in-flight turns first so partial content gets persisted
	runnerRegistry.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
