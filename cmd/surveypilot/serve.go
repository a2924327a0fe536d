package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"surveypilot/internal/app"
	"surveypilot/internal/transport/rest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the selection HTTP service",
	Long: `Serves question selection over HTTP, backed by MongoDB for configuration and
selection logs and Redis for the configuration cache and presentation history.

Endpoints:
  POST /v1/businesses/{businessId}/selections
  GET  /v1/businesses/{businessId}/selections/{runId}
  GET  /health`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	router := rest.NewRouter(&rest.Container{
		Selections: a.Selections,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if a.Warmer != nil {
		a.Warmer.Start()
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if cerr := a.Close(shutdownCtx); cerr != nil {
			logger.Warn("Failed to close connections", zap.Error(cerr))
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server exited")
	return nil
}
