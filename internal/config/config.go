// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrOpenAIAPIKeyRequired is returned when OPENAI_API_KEY is not set.
	ErrOpenAIAPIKeyRequired = errors.New("config: OPENAI_API_KEY is required")
	// ErrInvalidCacheSize is returned when CACHE_MAX_BYTES is negative.
	ErrInvalidCacheSize = errors.New("config: CACHE_MAX_BYTES must not be negative")
	// ErrInvalidChunkTarget is returned when CHUNK_TARGET_SEC is not positive.
	ErrInvalidChunkTarget = errors.New("config: CHUNK_TARGET_SEC must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	DataDir   string `env:"DATA_DIR, default=./data/projects" json:"data_dir"`
	CacheDir  string `env:"CACHE_DIR, default=./data/cache" json:"cache_dir"`
	ExportDir string `env:"EXPORT_DIR, default=./data/exports" json:"export_dir"`
	TempDir   string `env:"TEMP_DIR, default=/tmp/cutline" json:"temp_dir"`
	// CacheMaxBytes bounds the render cache; 0 disables eviction.
	CacheMaxBytes int64 `env:"CACHE_MAX_BYTES, default=2147483648" json:"cache_max_bytes"`

	// Media tooling
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Transcription settings
	OpenAIAPIKey         string `env:"OPENAI_API_KEY, required" json:"-"` // Masked in JSON
	OpenAIBaseURL        string `env:"OPENAI_BASE_URL" json:"openai_base_url,omitempty"`
	TranscribeModel      string `env:"TRANSCRIBE_MODEL, default=whisper-1" json:"transcribe_model"`
	TranscribeMaxRetries int    `env:"TRANSCRIBE_MAX_RETRIES, default=0" json:"transcribe_max_retries"`
	ChunkTargetSec       int    `env:"CHUNK_TARGET_SEC, default=600" json:"chunk_target_sec"`
	AsyncTranscription   bool   `env:"ASYNC_TRANSCRIPTION, default=false" json:"async_transcription"`

	// Optional S3 settings for publishing exports
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "OPENAI_API_KEY") {
			return nil, ErrOpenAIAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and in range.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return ErrOpenAIAPIKeyRequired
	}
	if c.CacheMaxBytes < 0 {
		return ErrInvalidCacheSize
	}
	if c.ChunkTargetSec <= 0 {
		return ErrInvalidChunkTarget
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, DataDir: %s, CacheDir: %s, CacheMaxBytes: %d, ExportDir: %s, TempDir: %s, TranscribeModel: %s, ChunkTargetSec: %d, AsyncTranscription: %t, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.DataDir,
		c.CacheDir,
		c.CacheMaxBytes,
		c.ExportDir,
		c.TempDir,
		c.TranscribeModel,
		c.ChunkTargetSec,
		c.AsyncTranscription,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
