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

	"github.com/SherClockHolmes/webpush-go"

	"locker-bank-backend/config"
	"locker-bank-backend/internal/api"
	"locker-bank-backend/internal/db"
	"locker-bank-backend/internal/engine"
	"locker-bank-backend/internal/notification"
	"locker-bank-backend/internal/relay"
	"locker-bank-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "lockerd ", log.LstdFlags)

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

	if len(cfg.Machines) == 0 {
		logger.Fatalf("no machines configured; at least one machine must be provisioned")
	}

	// Initialize database, run migrations and seed the locker inventory
	gormDB, err := db.Init(&cfg.Database, cfg.Machines)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	allocEngine := engine.New(appStore, cfg.Engine.LockWait)

	// The relay bridge is optional; without it the ledger runs but no door
	// is driven physically.
	var relayClient relay.Client
	if cfg.Relay.BaseURL != "" {
		client := relay.NewHTTPClient(cfg.Relay.BaseURL, cfg.Relay.Timeout)
		if err := client.Ping(ctx); err != nil {
			logger.Printf("Warning: hardware relay not responding at startup: %v", err)
		}
		relayClient = client
		logger.Printf("hardware relay configured at %s", cfg.Relay.BaseURL)
	} else {
		logger.Println("no hardware relay configured; doors will not be driven")
	}

	// Push notifications are optional too.
	var webpushOptions *webpush.Options
	var workerPool *notification.WorkerPool
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		workerPool = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		workerPool.Start(ctx)
		logger.Printf("notification worker pool started with %d workers", cfg.WorkerPool.Size)
	} else {
		logger.Println("VAPID keys not configured; push notifications disabled")
	}

	// Initialize router
	handler := api.NewHandler(appStore, allocEngine, relayClient, webpushOptions, workerPool)
	router := api.NewRouter(handler, cfg.Server.RateLimitPerSec, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second)
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
