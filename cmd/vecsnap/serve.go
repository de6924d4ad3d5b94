package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/config"
	"github.com/kailas-cloud/vecsnap/internal/domain"
	"github.com/kailas-cloud/vecsnap/internal/metrics"
	chiTransport "github.com/kailas-cloud/vecsnap/internal/transport/chi"
	"github.com/kailas-cloud/vecsnap/internal/version"
)

// embeddingRetryInterval spaces backend load attempts while the model is down.
const embeddingRetryInterval = 5 * time.Second

func NewServeCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the capture and search API. With --capture-loop the configured
capture device is polled continuously, e.g. a watched drop folder.`,
		Args: cobra.NoArgs,
		RunE: makeServeRunner(load),
	}

	cmd.Flags().Int("port", 0, "Listen port (overrides http.port)")
	cmd.Flags().Bool("capture-loop", false, "Ingest from the capture device until shutdown")
	addCaptureFlags(cmd)
	return cmd
}

func makeServeRunner(load loader) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := load(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			a.cfg.HTTP.Port = port
		}
		ctx := cmd.Context()
		logger := a.logger

		logger.Info("Starting vecsnap API server",
			zap.String("version", version.Version),
			zap.String("commit", version.Commit),
			zap.Int("http_port", a.cfg.HTTP.Port),
			zap.String("db_driver", a.cfg.Database.Driver),
			zap.String("embedding_provider", a.cfg.Embedding.Provider),
			zap.String("index_url", a.cfg.Index.BaseURL),
			zap.Bool("auto_publish", a.cfg.Index.AutoPublish),
		)

		// Register metrics explicitly (no init())
		metrics.RegisterEmbeddingMetrics()
		metrics.RegisterPipelineMetrics()
		metrics.RegisterHTTPMetrics()

		go a.keepLoadingEmbedding(ctx)

		if loop, _ := cmd.Flags().GetBool("capture-loop"); loop {
			if a.cfg.Capture.Device != config.DeviceWatch {
				return fmt.Errorf("--capture-loop needs a watched folder (--watch or capture.device: watch)")
			}
			go a.captureLoop(ctx)
		}

		addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      newRouter(a),
			ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
		case <-ctx.Done():
			logger.Info("Received shutdown signal")
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx),
			time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}

		logger.Info("Server stopped gracefully")
		return nil
	}
}

// newRouter mounts the API with the standard middleware stack.
func newRouter(a *application) http.Handler {
	p := a.pipeline
	server := chiTransport.NewServer(
		p.Capture, p.Library, p.Search, p.Session, p.Health,
		a.cfg.HTTP.MaxUploadBytes, a.logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(a.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(a.logger))
	r.Use(chiTransport.APIKeyMiddleware(a.cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	return chiTransport.HandlerWithOptions(server, chiTransport.ChiServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, chiTransport.ErrorResponseCodeBadRequest, err.Error())
		},
	})
}

// keepLoadingEmbedding retries the backend load until it succeeds. Until
// then embedding requests fail with 503 and health reports degraded.
func (a *application) keepLoadingEmbedding(ctx context.Context) {
	for {
		err := a.initEmbedding(ctx)
		if err == nil {
			a.logger.Info("Embedding backend loaded",
				zap.String("provider", a.cfg.Embedding.Provider),
				zap.String("model", a.cfg.Embedding.Model),
				zap.Int("dimensions", a.cfg.Embedding.Dimensions),
			)
			return
		}
		a.logger.Warn("Embedding backend not ready, retrying",
			zap.Duration("in", embeddingRetryInterval),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(embeddingRetryInterval):
		}
	}
}

// captureLoop ingests photos from the device until ctx ends.
// A device that is gone stops the loop; any other failure is logged.
func (a *application) captureLoop(ctx context.Context) {
	a.logger.Info("Capture loop started", zap.String("device", a.cfg.Capture.Device))
	for ctx.Err() == nil {
		img, err := a.pipeline.Capture.Ingest(ctx)
		switch {
		case err == nil:
			a.logger.Info("Captured image", zap.String("id", img.ID), zap.Int("bytes", len(img.Data)))
		case ctx.Err() != nil:
			return
		case errors.Is(err, domain.ErrCaptureUnavailable):
			a.logger.Error("Capture device unavailable, stopping loop", zap.Error(err))
			return
		default:
			a.logger.Warn("Capture failed", zap.Error(err))
		}
	}
}
