package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecsnap/internal/app"
	"github.com/kailas-cloud/vecsnap/internal/config"
	"github.com/kailas-cloud/vecsnap/internal/db"
	dbBadger "github.com/kailas-cloud/vecsnap/internal/db/badger"
	dbRedis "github.com/kailas-cloud/vecsnap/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/vecsnap/internal/db/sqlite"
	logpkg "github.com/kailas-cloud/vecsnap/internal/logger"
	"github.com/kailas-cloud/vecsnap/internal/metrics"
	"github.com/kailas-cloud/vecsnap/internal/optimizer"
	"github.com/kailas-cloud/vecsnap/internal/transport/device"
	inferenceEmb "github.com/kailas-cloud/vecsnap/internal/transport/inference"
	openaiEmb "github.com/kailas-cloud/vecsnap/internal/transport/openai"
	"github.com/kailas-cloud/vecsnap/internal/transport/vectorindex"
	captureuc "github.com/kailas-cloud/vecsnap/internal/usecase/capture"
	embeddinguc "github.com/kailas-cloud/vecsnap/internal/usecase/embedding"
	searchuc "github.com/kailas-cloud/vecsnap/internal/usecase/search"
)

// application is one configured pipeline plus the resources it owns.
type application struct {
	cfg      config.Config
	logger   *zap.Logger
	pipeline *app.Pipeline
	store    db.Store
	device   captureuc.Device
}

// loader builds the application for a command. Tests swap it.
type loader func(cmd *cobra.Command) (*application, error)

// loadApplication reads config for the current ENV (or --config), applies
// capture flags and wires the pipeline. Only serve logs at the configured level.
func loadApplication(cmd *cobra.Command) (*application, error) {
	env := config.GetEnv()

	cfg, err := loadConfig(cmd, env)
	if err != nil {
		return nil, err
	}
	if err := applyCaptureFlags(cmd, &cfg.Capture); err != nil {
		return nil, err
	}

	var (
		logger *zap.Logger
		reg    prometheus.Registerer
	)
	if cmd.Name() == "serve" {
		logger, err = logpkg.NewLogger(env, cfg.Logging.Level)
		reg = prometheus.DefaultRegisterer
	} else {
		logger, err = logpkg.NewLogger("cli")
	}
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return newApplication(cmd.Context(), cfg, logger, cmd.InOrStdin(), reg)
}

func loadConfig(cmd *cobra.Command, env string) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load(env)
}

// applyCaptureFlags lets --file, --stdin and --watch override capture.device.
func applyCaptureFlags(cmd *cobra.Command, c *config.CaptureConfig) error {
	flags := cmd.Flags()
	if flags.Lookup("file") == nil {
		return nil
	}
	if path, _ := flags.GetString("file"); path != "" {
		c.Device = config.DeviceFile
		c.Path = path
	}
	if stdin, _ := flags.GetBool("stdin"); stdin {
		c.Device = config.DeviceStdin
	}
	if dir, _ := flags.GetString("watch"); dir != "" {
		c.Device = config.DeviceWatch
		c.WatchDir = dir
	}
	if c.Device == config.DeviceWatch && c.WatchDir == "" {
		return fmt.Errorf("capture.watch_dir is required for device %q", config.DeviceWatch)
	}
	return nil
}

// newApplication is the composition root. It opens the store but does not
// load the embedding backend; commands that embed call initEmbedding.
func newApplication(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
	stdin io.Reader,
	reg prometheus.Registerer,
) (*application, error) {
	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	var index *vectorindex.Client
	if cfg.Index.BaseURL != "" {
		index, err = vectorindex.New(vectorindex.Config{
			BaseURL:     cfg.Index.BaseURL,
			Dimensions:  cfg.Index.Dimensions,
			MaxTopK:     cfg.Index.MaxTopK,
			DefaultTopK: cfg.Index.DefaultTopK,
			Timeout:     cfg.Index.Timeout(),
			APIKey:      cfg.Index.APIKey,
			Logger:      logger,
			Registerer:  reg,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("create index client: %w", err)
		}
	}

	var opt *optimizer.Optimizer
	if !cfg.Optimizer.Disabled {
		opt = optimizer.New(optimizer.Imaging{}, optimizer.Options{
			Quality:   cfg.Optimizer.Quality,
			MaxWidth:  cfg.Optimizer.MaxWidth,
			MaxPixels: cfg.Optimizer.MaxPixels,
		}, metrics.OptimizerBytesTotal, metrics.OptimizerRunsTotal, logger)
	}

	dev := newDevice(cfg.Capture, stdin)
	p, err := app.New(app.Deps{
		Store:       store,
		Backend:     buildBackend(cfg.Embedding, logger),
		Provider:    cfg.Embedding.Provider,
		Model:       cfg.Embedding.Model,
		Dimensions:  cfg.Embedding.Dimensions,
		Cache:       cfg.Embedding.CacheOn(),
		Index:       index,
		Optimizer:   opt,
		Device:      dev,
		AutoPublish: cfg.Index.AutoPublish,
		Search: searchuc.Config{
			TopK:         cfg.Search.TopK,
			Timeout:      cfg.Search.Timeout(),
			Retries:      cfg.Search.Retries,
			RetryBackoff: cfg.Search.RetryBackoff(),
		},
		Logger: logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &application{cfg: cfg, logger: logger, pipeline: p, store: store, device: dev}, nil
}

// initEmbedding loads the embedding backend.
func (a *application) initEmbedding(ctx context.Context) error {
	if err := a.pipeline.Init(ctx); err != nil {
		return fmt.Errorf("embedding backend not ready: %w", err)
	}
	return nil
}

// Close stops the capture device, releases the store and flushes the logger.
func (a *application) Close() {
	if c, ok := a.device.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("Failed to close capture device", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := dbSQLite.NewStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.DriverBadger:
		s, err := dbBadger.NewStore(dbBadger.Options{Dir: cfg.Path, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return s, nil
	case config.DriverRedis, config.DriverValkey:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Addrs,
			Username:  cfg.Username,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
		}
		timeout := time.Duration(cfg.ReadinessTimeout) * time.Second
		if err := s.WaitForReady(ctx, timeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.String("driver", cfg.Driver), zap.Strings("addrs", cfg.Addrs))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// buildBackend picks the embedding transport. Metrics live in the transport.
func buildBackend(cfg config.EmbeddingConfig, logger *zap.Logger) embeddinguc.Backend {
	if cfg.Provider == config.ProviderOpenAI {
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		})
	}
	return inferenceEmb.NewEmbedder(&inferenceEmb.Config{
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Timeout:  cfg.Timeout(),
		Provider: cfg.Provider,
		Logger:   logger,
	})
}

func newDevice(cfg config.CaptureConfig, stdin io.Reader) captureuc.Device {
	switch cfg.Device {
	case config.DeviceStdin:
		return device.Reader{R: stdin}
	case config.DeviceWatch:
		return &device.WatchDir{Dir: cfg.WatchDir, Settle: cfg.Settle()}
	default:
		return device.File{Path: cfg.Path}
	}
}
