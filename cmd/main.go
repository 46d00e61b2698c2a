/*
Package main is the entry point for the Pairgate application.

It is responsible for loading configuration, initializing the global logging system,
wiring the presence registry, protocols, relay, and storage services, setting up the
HTTP server, and gracefully handling operating system interrupt signals (SIGINT,
SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pairgate/internal/app/gateway"
	"pairgate/internal/app/presence"
	"pairgate/internal/app/relay"
	"pairgate/internal/app/storage"
	"pairgate/internal/configs"
	"pairgate/internal/handler"
	"pairgate/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("session_policy", cfg.SessionPolicy).
		Bool("media_enabled", cfg.MediaEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Wire application services
	presenceService := presence.NewService(presence.SessionPolicy(cfg.SessionPolicy))
	relayClient := relay.NewClient(cfg.BackendURLs, cfg.RelayTimeout)

	lifecycle := gateway.NewLifecycle(presenceService, cfg.AccessSecretKey)
	chatProtocol := gateway.NewChatProtocol(presenceService, relayClient)
	verificationProtocol := gateway.NewVerificationProtocol(presenceService)
	gw := gateway.New(presenceService, lifecycle, chatProtocol, verificationProtocol)

	var storageService storage.StorageService
	if cfg.MediaEnabled() {
		storageService, err = storage.NewStorageService(storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize storage service")
		}
	} else {
		logx.Warn("Media storage not configured; media endpoints disabled.")
	}

	deps := &handler.AppDeps{
		Gateway:        gw,
		Lifecycle:      lifecycle,
		Presence:       presenceService,
		Config:         cfg,
		StorageService: storageService,
	}

	// Setup HTTP server and routes
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Pairgate starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
