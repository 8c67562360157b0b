// Package bootstrap provides dependency initialization for the Cutline API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/cutline-api/internal/audio"
	"github.com/maauso/cutline-api/internal/cache"
	"github.com/maauso/cutline-api/internal/config"
	"github.com/maauso/cutline-api/internal/export"
	"github.com/maauso/cutline-api/internal/media"
	"github.com/maauso/cutline-api/internal/project"
	"github.com/maauso/cutline-api/internal/storage"
	"github.com/maauso/cutline-api/internal/transcribe"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	ProjectService *project.Service
	// Cache must be closed on shutdown.
	Cache *cache.Cache
}

// Close releases resources held by the dependencies.
func (d *Dependencies) Close() error {
	if d.Cache == nil {
		return nil
	}
	return d.Cache.Close()
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize transcription client
	clientOpts := []transcribe.ClientOption{
		transcribe.WithAPIKey(cfg.OpenAIAPIKey),
		transcribe.WithModel(cfg.TranscribeModel),
		transcribe.WithMaxRetries(cfg.TranscribeMaxRetries),
	}
	if cfg.OpenAIBaseURL != "" {
		clientOpts = append(clientOpts, transcribe.WithBaseURL(cfg.OpenAIBaseURL))
	}
	transcriber, err := transcribe.NewOpenAIClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create transcription client: %w", err)
	}

	// Initialize media backend and audio splitter
	backend := media.NewFFmpegBackend(cfg.FFmpegPath, cfg.FFprobePath)
	splitter := audio.NewFFmpegSplitter(cfg.FFmpegPath)

	// Initialize render cache
	renders, err := cache.New(cfg.CacheDir, backend,
		cache.WithMaxBytes(cfg.CacheMaxBytes),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open render cache: %w", err)
	}

	// Initialize project repository
	repo, err := project.NewFileRepository(cfg.DataDir)
	if err != nil {
		_ = renders.Close()
		return nil, fmt.Errorf("open project repository: %w", err)
	}

	// Configure audio split options
	splitOpts := audio.DefaultSplitOpts()
	splitOpts.ChunkTargetSec = cfg.ChunkTargetSec

	// Initialize project service
	svc := project.NewService(
		repo,
		backend,
		renders,
		splitter,
		transcriber,
		store,
		export.NewDirPicker(cfg.ExportDir),
		logger,
		project.WithSplitOpts(splitOpts),
	)

	logger.Info("project service configured",
		slog.String("data_dir", cfg.DataDir),
		slog.String("cache_dir", cfg.CacheDir),
		slog.String("export_dir", cfg.ExportDir),
	)

	return &Dependencies{
		ProjectService: svc,
		Cache:          renders,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
