package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/markforest/internal/connector"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"-"`

	// Worker pool
	WorkerCount         int `yaml:"worker_count"`
	MaxQueueSize        int `yaml:"max_queue_size"`
	MaxBatchConcurrency int `yaml:"max_batch_concurrency"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	// Identifier allocation
	IDCacheTTL time.Duration `yaml:"id_cache_ttl"`

	// Rolling window for /api/stats/analysis
	StatsWindow time.Duration `yaml:"stats_window"`

	// Connector inference thresholds
	Connector Connector `yaml:"connector"`

	// CLI
	OutputFormat  string        `yaml:"output"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// Connector mirrors connector.Config for env and YAML loading.
type Connector struct {
	BucketWidth        int `yaml:"bucket_width"`
	SameTrackDistance  int `yaml:"same_track_distance"`
	CrossTrackDistance int `yaml:"cross_track_distance"`
	MaxBucketDiff      int `yaml:"max_bucket_diff"`
}

// Inference returns the thresholds in the form the inferencer takes.
func (c Connector) Inference() connector.Config {
	return connector.Config{
		BucketWidth:        c.BucketWidth,
		SameTrackDistance:  c.SameTrackDistance,
		CrossTrackDistance: c.CrossTrackDistance,
		MaxBucketDiff:      c.MaxBucketDiff,
	}
}

func Load() Config {
	def := connector.DefaultConfig()
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("MARKFOREST_API_KEY"),

		WorkerCount:         envInt("WORKER_COUNT", 4),
		MaxQueueSize:        envInt("MAX_QUEUE_SIZE", 100),
		MaxBatchConcurrency: envInt("MAX_BATCH_CONCURRENCY", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		IDCacheTTL:  envDuration("ID_CACHE_TTL", 5*time.Second),
		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),

		Connector: Connector{
			BucketWidth:        envInt("CONNECTOR_BUCKET_WIDTH", def.BucketWidth),
			SameTrackDistance:  envInt("CONNECTOR_SAME_TRACK_DISTANCE", def.SameTrackDistance),
			CrossTrackDistance: envInt("CONNECTOR_CROSS_TRACK_DISTANCE", def.CrossTrackDistance),
			MaxBucketDiff:      envInt("CONNECTOR_MAX_BUCKET_DIFF", def.MaxBucketDiff),
		},

		OutputFormat:  envOr("MARKFOREST_OUTPUT", ""),
		WatchDebounce: envDuration("MARKFOREST_WATCH_DEBOUNCE", 200*time.Millisecond),
	}
	cfg.clamp()
	return cfg
}

// LoadFile overlays the YAML file at path on base. Keys absent from the
// file keep their base value.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.clamp()
	return cfg, nil
}

func (c *Config) clamp() {
	def := connector.DefaultConfig()
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.MaxBatchConcurrency <= 0 {
		c.MaxBatchConcurrency = 4
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 52428800
	}
	if c.JobTTL <= 0 {
		c.JobTTL = 1 * time.Hour
	}
	if c.IDCacheTTL <= 0 {
		c.IDCacheTTL = 5 * time.Second
	}
	if c.StatsWindow <= 0 {
		c.StatsWindow = 1 * time.Hour
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = 200 * time.Millisecond
	}
	if c.Connector.BucketWidth <= 0 {
		c.Connector.BucketWidth = def.BucketWidth
	}
	if c.Connector.SameTrackDistance <= 0 {
		c.Connector.SameTrackDistance = def.SameTrackDistance
	}
	if c.Connector.CrossTrackDistance <= 0 {
		c.Connector.CrossTrackDistance = def.CrossTrackDistance
	}
	if c.Connector.MaxBucketDiff < 0 {
		c.Connector.MaxBucketDiff = def.MaxBucketDiff
	}
}

// Validate checks the settings the HTTP service needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("MARKFOREST_API_KEY is required")
	}
	return ValidateOutput(c.OutputFormat)
}

// ValidateOutput accepts the CLI output formats; empty means auto.
func ValidateOutput(format string) error {
	switch format {
	case "", "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
