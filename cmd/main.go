/*
Package main is the entry point for the room hub server.

It is responsible for loading configuration, initializing the global logging system,
wiring persistence, the optional Redis relay and attachment storage into the chat
Manager, serving HTTP and WebSocket traffic, and gracefully handling operating system
interrupt signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomhub/internal/app/bus"
	"roomhub/internal/app/chat"
	"roomhub/internal/app/db"
	"roomhub/internal/app/storage"
	"roomhub/internal/app/store"
	"roomhub/internal/app/store/memory"
	"roomhub/internal/app/user"
	"roomhub/internal/configs"
	"roomhub/internal/handler"
	"roomhub/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("store_driver", cfg.StoreDriver).
		Bool("relay", cfg.RedisURL != "").
		Bool("attachments", cfg.StorageEnabled()).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, users, closeStore, err := openStore(cfg)
	if err != nil {
		logx.Fatal(err, "Failed to initialize store")
	}
	defer closeStore()

	opts := chat.Options{
		Store: st,
		Users: users,
		Timeouts: chat.Timeouts{
			Store:    cfg.StoreTimeout,
			Delivery: cfg.DeliveryTimeout,
			Lock:     cfg.LockTimeout,
		},
	}

	var relay *bus.Relay
	if cfg.RedisURL != "" {
		client, err := bus.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logx.Fatal(err, "Failed to connect to Redis")
		}
		defer client.Close()

		relay = bus.New(client, cfg.RedisChannel)
		opts.Relay = relay
	}

	var files storage.StorageService
	if cfg.StorageEnabled() {
		files, err = storage.NewStorageService(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize attachment storage")
		}
		opts.Files = files
	}

	// Initialize Chat Manager
	manager := chat.NewManager(opts)

	if relay != nil {
		go func() {
			if err := relay.Run(ctx, manager.Router.HandleRelay); err != nil && !errors.Is(err, context.Canceled) {
				logx.Error(err, "Relay stopped")
			}
		}()
	}

	// Setup HTTP server and routes
	router := handler.Router(ctx, &handler.AppDeps{
		Manager: manager,
		Config:  cfg,
		Storage: files,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Room hub starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	manager.Shutdown(shutdownCtx)

	logx.Info("Server gracefully stopped.")
}

// openStore builds the persistence layer and user directory for the configured driver.
func openStore(cfg *configs.AppConfig) (store.Store, user.Directory, func(), error) {
	switch cfg.StoreDriver {
	case configs.DriverMemory:
		seed := make([]user.User, 0, len(cfg.SeedUsers))
		for _, id := range cfg.SeedUsers {
			seed = append(seed, user.User{ID: id, Username: id})
		}
		logx.Warn("Using the in-memory store; data is lost on restart.", "seed_users", len(seed))
		return memory.New(), user.NewMemoryDirectory(seed...), func() {}, nil

	default:
		pool, err := db.NewPool(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, nil, err
		}

		sqlDB := db.OpenSQL(pool)
		closeFn := func() {
			_ = sqlDB.Close()
			pool.Close()
		}
		return db.NewStore(sqlDB), db.NewDirectory(sqlDB), closeFn, nil
	}
}
