// Package main provides the entry point for the persistent Media Fetch Gateway server.
// @title Media Fetch Gateway API
// @version 1.0
// @description A small web front end over yt-dlp: list the downloadable formats of a video, fetch one into local storage and retrieve it as an attachment.

// @contact.name API Support
// @contact.url http://www.example.com/support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:5000
// @BasePath /

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

	_ "github.com/denisAlshanov/mediafetch/docs" // Import for swagger docs
	"github.com/denisAlshanov/mediafetch/internal/app"
	"github.com/denisAlshanov/mediafetch/internal/config"
	"github.com/denisAlshanov/mediafetch/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.GetLogger()
	logger.Infof("Starting Media Fetch Gateway (%s)", cfg.Mode)

	gateway, err := app.New(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize gateway: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           gateway.Router.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Infof("Starting server on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Downloads in flight get a grace period to finish
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shut down: %v", err)
	}

	logger.Info("Server shutdown complete")
}
