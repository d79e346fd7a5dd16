package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/confessly/internal/assistant"
	"github.com/sujalbistaa/confessly/internal/config"
	"github.com/sujalbistaa/confessly/internal/db"
	routes "github.com/sujalbistaa/confessly/internal/http"
	"github.com/sujalbistaa/confessly/internal/notify"
	"github.com/sujalbistaa/confessly/internal/ws"
)

func main() {
	// 1. Load configuration (.env first, then the environment)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Initialize Database
	database, err := db.Init(cfg.DatabaseURL, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 3. Run Migrations
	log.Println("Running database migrations...")
	if err := db.Migrate(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations complete.")

	// 4. Initialize WebSocket Hub
	hub := ws.NewHub()
	go hub.Run()

	// 5. Collaborators for the follow-up after a confession is posted
	responder := assistant.New(cfg.Assistant)
	if !cfg.Assistant.Enabled() {
		log.Println("AI_ENDPOINT not set, using canned replies")
	}
	notifier := notify.New(cfg.SMTP, cfg.PublicBaseURL)
	if !cfg.SMTP.Enabled() {
		log.Println("SMTP not configured, new confession emails disabled")
	}
	if cfg.AdminToken == "" && cfg.ModeratorSecret == "" {
		log.Println("WARNING: X_ADMIN_TOKEN and MODERATOR_JWT_SECRET are empty, moderation is disabled")
	}

	// 6. Router and routes
	env := &routes.Env{
		Store:     db.NewStore(database),
		Hub:       hub,
		Assistant: responder,
		Notifier:  notifier,
	}
	router := gin.New()
	routes.SetupRoutes(router, env, cfg)

	// 7. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Websocket connections are hijacked, so Shutdown does not wait for them;
	// closing the hub ends their write pumps.
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	env.Close()
	hub.Close()

	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Server exiting")
}
