// Package app contains the shared logic for starting and stopping the service.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/loveneesh1804/Instagram-server/internal/realtime"
	"github.com/loveneesh1804/Instagram-server/socialservice"
)

const shutdownTimeout = 15 * time.Second

// Run executes the main application lifecycle. It starts the HTTP action
// service and the realtime gateway, listens for OS signals, and performs a
// graceful shutdown of both.
func Run(
	ctx context.Context,
	logger zerolog.Logger,
	apiService *socialservice.Wrapper,
	gateway *realtime.Gateway,
) {
	var wg sync.WaitGroup
	wg.Add(2)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer wg.Done()
		logger.Info().Msg("Starting API service...")
		err := apiService.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("API service failed")
			cancel() // Trigger shutdown of the other service.
		}
	}()

	go func() {
		defer wg.Done()
		logger.Info().Msg("Starting realtime gateway...")
		err := gateway.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Realtime gateway failed")
			cancel()
		}
	}()

	// Wait for a shutdown signal.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal.")
	case <-ctx.Done():
		logger.Info().Msg("Context cancelled, initiating shutdown.")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiService.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API service shutdown failed.")
	}
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Realtime gateway shutdown failed.")
	}

	wg.Wait()
	logger.Info().Msg("All services shut down gracefully.")
}
