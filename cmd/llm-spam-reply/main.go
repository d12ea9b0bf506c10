package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey/llm-spam-reply/internal/config"
	"github.com/mikey/llm-spam-reply/internal/core"
	"github.com/mikey/llm-spam-reply/internal/di"
	"github.com/mikey/llm-spam-reply/internal/dispatch"
	"github.com/mikey/llm-spam-reply/internal/ports"
	"go.uber.org/zap"
)

// shutdownTimeout bounds how long in-flight requests and runs may take to stop
const shutdownTimeout = 30 * time.Second

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Check the configuration before anything else is constructed
	if err := container.Invoke(func(cfg *config.Config) error { return cfg.Validate() }); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	server ports.Server,
	dispatcher *dispatch.Dispatcher,
	llmClient core.LLMClient,
	store core.RunStore,
) error {
	defer logger.Sync()

	// Resume runs interrupted by a previous shutdown
	if err := dispatcher.Start(context.Background()); err != nil {
		logger.Error("Failed to start dispatcher", zap.Error(err))
		return err
	}

	// Start the webhook server
	if err := server.Start(); err != nil {
		logger.Error("Failed to start webhook server", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting webhooks first so no run is submitted after the dispatcher stops
	if err := server.Stop(ctx); err != nil {
		logger.Error("Failed to stop webhook server", zap.Error(err))
	}
	if err := dispatcher.Stop(ctx); err != nil {
		logger.Error("Failed to stop dispatcher", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("Failed to close run store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
