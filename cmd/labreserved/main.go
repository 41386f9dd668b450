package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labreserve-backend/config"
	"labreserve-backend/internal/api"
	"labreserve-backend/internal/db"
	"labreserve-backend/internal/eventbus"
	"labreserve-backend/internal/lifecycle"
	"labreserve-backend/internal/store"
	"labreserve-backend/internal/sweeper"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "labreserve ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the store, event bus, and lifecycle service
	appStore := store.NewGormStore(gormDB)
	bus := eventbus.New(cfg.EventBus.BufferSize)
	lc, err := lifecycle.NewService(appStore, bus, cfg.Sweeper.DefaultTimezone)
	if err != nil {
		logger.Fatalf("failed to initialize lifecycle service: %v", err)
	}
	logger.Println("data store and lifecycle service initialized")

	// Run the reconciliation sweeper in the background
	sweep := sweeper.New(cfg, appStore, bus)
	go sweep.Run(ctx)

	// Initialize router
	router := api.NewRouter(cfg, appStore, lc)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
