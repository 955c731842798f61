package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"parley/internal/config"
	"parley/internal/handler"
	"parley/internal/middleware"
	"parley/internal/repository/postgres"
	postgresChat "parley/internal/repository/postgres/chat"
	serviceChat "parley/internal/service/chat"
	"parley/internal/service/completion"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	// Optionally tee logs to a rotating file set
	var logOutput io.Writer = os.Stdout
	if logDir := os.Getenv("LOG_DIR"); logDir != "" {
		logFile, err := config.SetupLogFile(logDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create repositories
	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	chatRepo := postgresChat.NewChatRepository(repoConfig)
	messageRepo := postgresChat.NewMessageRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Create services
	chatService := serviceChat.NewService(chatRepo, messageRepo, txManager, logger)

	engines, err := completion.NewEngineSet(cfg)
	if err != nil {
		log.Fatalf("Failed to setup text engines: %v", err)
	}

	executorRegistry := completion.NewExecutorRegistry(
		1*time.Minute,  // cleanup every minute
		10*time.Minute, // keep terminal executors for late reconnects
	)
	go executorRegistry.StartCleanup(ctx)

	completionService := completion.NewService(chatService, engines, executorRegistry, logger)

	// Create handlers (handlers only talk to services, never repositories)
	chatHandler := handler.NewChatHandler(chatService, completionService, logger)
	sseHandler := handler.NewSSEHandler(executorRegistry, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", handler.HealthCheck)

	// Chat routes
	mux.HandleFunc("POST /api/chats", chatHandler.CreateChat)
	mux.HandleFunc("GET /api/chats", chatHandler.ListChats)
	mux.HandleFunc("DELETE /api/chats/{id}", chatHandler.DeleteChat)
	mux.HandleFunc("GET /api/chats/{id}/messages", chatHandler.GetMessages)
	mux.HandleFunc("PUT /api/chats/{id}/messages/{messageId}", chatHandler.UpsertMessage)

	// Message routes
	mux.HandleFunc("GET /api/messages/{id}", chatHandler.GetMessage)
	mux.HandleFunc("DELETE /api/messages/{id}", chatHandler.DeleteMessage)

	// Completion and streaming routes
	mux.HandleFunc("POST /api/chats/{id}/completions", chatHandler.StartCompletion)
	mux.HandleFunc("GET /api/messages/{id}/stream", sseHandler.StreamMessage)
	mux.HandleFunc("POST /api/messages/{id}/interrupt", sseHandler.InterruptMessage)

	// Build middleware chain (applied in reverse order, they wrap each other)
	var root http.Handler = mux
	root = middleware.Recovery(logger)(root)

	// CORS outermost so OPTIONS pre-flight requests short-circuit
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
