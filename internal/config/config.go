package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vinylaudio/annotator/pkg/log"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// HTTP Configuration:
// - HTTP_ADDR: listen address (default: :8080)
// - PUBLIC_BASE_URL: base URL download links are issued under (default: http://localhost:8080)
// - UI_ENABLED: serve the bundled SPA (default: false)
// - UI_STATIC_DIR: directory holding the SPA build (default: /app/ui)
//
// Storage Configuration:
// - DATA_DIR: root for all local state (default: /data)
// - DB_PATH: sqlite database path (default: {DATA_DIR}/annotator.db)
// - BUCKET_DIR: blob bucket root (default: {DATA_DIR}/bucket)
// - TMP_DIR: scratch space for ffmpeg staging (default: os temp dir)
//
// Annotation Configuration:
// - SYNC_QUIET_SECONDS: debounce window before a snippet flush (default: 3)
// - SPLIT_SEPARATOR: separator character enabling snippet splits (default: .)
// - JOB_WORKERS: processing queue worker count (default: 2)
//
// Media Configuration:
// - FFMPEG_CMD: ffmpeg binary (default: ffmpeg)
//
// Auth Configuration:
// - API_TOKEN: bootstrap token for the admin user (default: empty, no user seeded)
//
// Maintenance Configuration:
// - MAINTENANCE_CRON: derived-file sweep schedule (default: 0 3 * * *)

type Config struct {
	HTTP        HTTPConfig        `json:"http"`
	Storage     StorageConfig     `json:"storage"`
	Annotate    AnnotateConfig    `json:"annotate"`
	Media       MediaConfig       `json:"media"`
	Auth        AuthConfig        `json:"auth"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

type HTTPConfig struct {
	Addr          string `json:"addr"`
	PublicBaseURL string `json:"public_base_url"`
	UIEnabled     bool   `json:"ui_enabled"`
	UIStaticDir   string `json:"ui_static_dir"`
}

type StorageConfig struct {
	DataDir   string `json:"data_dir"`
	DBPath    string `json:"db_path"`
	BucketDir string `json:"bucket_dir"`
	TmpDir    string `json:"tmp_dir"`
}

type AnnotateConfig struct {
	SyncQuietSeconds int    `json:"sync_quiet_seconds"`
	SplitSeparator   string `json:"split_separator"`
	JobWorkers       int    `json:"job_workers"`
}

func (c AnnotateConfig) SyncQuietPeriod() time.Duration {
	return time.Duration(c.SyncQuietSeconds) * time.Second
}

type MediaConfig struct {
	FfmpegCmd string `json:"ffmpeg_cmd"`
}

type AuthConfig struct {
	APIToken string `json:"-"`
}

type MaintenanceConfig struct {
	CronExpr string `json:"cron_expr"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// New creates a Config from environment variables and options.
func New(opts ...Option) (*Config, error) {
	dataDir := getEnvString("DATA_DIR", "/data")

	config := &Config{
		HTTP: HTTPConfig{
			Addr:          getEnvString("HTTP_ADDR", ":8080"),
			PublicBaseURL: getEnvString("PUBLIC_BASE_URL", "http://localhost:8080"),
			UIEnabled:     getEnvBool("UI_ENABLED", false),
			UIStaticDir:   getEnvString("UI_STATIC_DIR", "/app/ui"),
		},
		Storage: StorageConfig{
			DataDir:   dataDir,
			DBPath:    getEnvString("DB_PATH", dataDir+"/annotator.db"),
			BucketDir: getEnvString("BUCKET_DIR", dataDir+"/bucket"),
			TmpDir:    getEnvString("TMP_DIR", os.TempDir()),
		},
		Annotate: AnnotateConfig{
			SyncQuietSeconds: getEnvInt("SYNC_QUIET_SECONDS", 3),
			SplitSeparator:   getEnvString("SPLIT_SEPARATOR", "."),
			JobWorkers:       getEnvInt("JOB_WORKERS", 2),
		},
		Media: MediaConfig{
			FfmpegCmd: getEnvString("FFMPEG_CMD", "ffmpeg"),
		},
		Auth: AuthConfig{
			APIToken: getEnvString("API_TOKEN", ""),
		},
		Maintenance: MaintenanceConfig{
			CronExpr: getEnvString("MAINTENANCE_CRON", "0 3 * * *"),
		},
	}

	log.Info("Config: %+v", config)

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.Annotate.SyncQuietSeconds <= 0 {
		return fmt.Errorf("SYNC_QUIET_SECONDS must be positive")
	}
	if c.Annotate.SplitSeparator == "" {
		return fmt.Errorf("SPLIT_SEPARATOR is required")
	}
	if _, err := cron.ParseStandard(c.Maintenance.CronExpr); err != nil {
		return fmt.Errorf("invalid MAINTENANCE_CRON: %w", err)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
