package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrelay-backend/internal/config"
	"chatrelay-backend/internal/database"
	"chatrelay-backend/internal/handlers"
	"chatrelay-backend/internal/middleware"
	"chatrelay-backend/internal/prompt"
	"chatrelay-backend/internal/repository"
	"chatrelay-backend/internal/router"
	"chatrelay-backend/internal/services"
	"chatrelay-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting ChatRelay Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("✗ Configuration invalid: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	formatter, err := prompt.NewFormatter(prompt.Options{Format: cfg.ResponseFormat, Tone: cfg.AIPersonality})
	if err != nil {
		log.Fatalf("✗ Prompt formatter: %v", err)
	}

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Run Database Migrations ────
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 4: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 5: Initialize Model Backends ────
	geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, cfg.LLMTimeout)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Printf("✓ Gemini client initialized (%s, %d concurrent)", cfg.GeminiModel, cfg.GeminiConcurrentReqs)

	ollamaService := services.NewOllamaService(cfg.OllamaHost, cfg.OllamaModel, cfg.LLMTimeout)
	log.Printf("✓ Ollama backend configured (%s at %s)", cfg.OllamaModel, cfg.OllamaHost)

	// ──── Initialize Repositories & Services ────
	userRepo := repository.NewUserRepo(pool)
	exchangeRepo := repository.NewExchangeRepo(pool)

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(userRepo, services.NewRedisTokenStore(redisClients.Main), jwtAuth)
	chatService := services.NewChatService(
		exchangeRepo,
		geminiService,
		ollamaService,
		formatter,
		services.NewRedisQuota(redisClients.Main, cfg.LLMRequestsPerMinute),
		services.NewRedisPublisher(redisClients.Main),
		services.ChatConfig{WindowSize: cfg.ContextWindowSize, DefaultBackend: cfg.ChatBackend},
	)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	chatHandler := handlers.NewChatHandler(chatService)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.FrontendURL)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	limiters := router.Limiters{
		Auth: middleware.NewRateLimiter(10, time.Minute),
		Chat: middleware.NewRateLimiter(60, time.Minute),
	}
	go limiters.Auth.RunCleanup(bgCtx)
	go limiters.Chat.RunCleanup(bgCtx)

	r := router.New(jwtAuth, authHandler, chatHandler, wsHub.HandleWebSocket, limiters, cfg.FrontendURL)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// A reply may take the full model timeout before it is written.
		WriteTimeout: cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		stopBackground()
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ ChatRelay Backend ready on http://localhost:%s (default backend: %s)", cfg.Port, cfg.ChatBackend)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
