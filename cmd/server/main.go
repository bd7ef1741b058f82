package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdugdh24/yuno-backend/internal/config"
	"github.com/gdugdh24/yuno-backend/internal/infrastructure/container"
	"github.com/gdugdh24/yuno-backend/internal/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	// Initialize dependency injection container
	app, err := container.NewContainer(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to initialize application")
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing application")
		}
	}()

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		if err := app.Server.Start(); err != nil {
			logging.Error().Err(err).Msg("server error")
			quit <- syscall.SIGTERM
		}
	}()

	// Wait for interrupt signal
	<-quit

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Sockets are hijacked and not tracked by http.Server.Shutdown
	app.Hub.CloseAll()

	if err := app.Server.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
		return
	}

	logging.Info().Msg("server exited properly")
}
