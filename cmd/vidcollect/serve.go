package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/api"
	"github.com/yourusername/vidcollect-go/api/handlers"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApplication(configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a.log.Info("Starting vidcollect server",
			zap.String("version", handlers.Version),
			zap.String("host", a.config.Server.Host),
			zap.Int("port", a.config.Server.Port),
			zap.Int("workers", a.config.Pipeline.Workers))

		// background batches stop taking new links once shutdown begins
		router := api.SetupRouter(ctx, a.runner, a.pipeline, a.resolver, a.sqlDB, a.config.Download.LogsDir, a.log)

		addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
		server := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("HTTP server listening", zap.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			a.log.Info("Received shutdown signal")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
		}

		a.log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			a.log.Error("Server forced to shutdown", zap.Error(err))
		}

		a.runner.Wait()
		a.log.Info("Server exited")
		return nil
	},
}
