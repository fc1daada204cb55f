package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileLifetime is the maximum age of any file in either storage area.
// Older files are removed by the next sweep.
const FileLifetime = 20 * time.Minute

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool          `yaml:"send"`
	APIKey        string        `yaml:"api_key"`
	OrgID         string        `yaml:"org_id"`
	Dataset       string        `yaml:"dataset"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	MaxUploadMB    int64         `yaml:"max_upload_mb"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig locates the two storage areas.
type StorageConfig struct {
	IncomingDir   string        `yaml:"incoming_dir"`
	OutgoingDir   string        `yaml:"outgoing_dir"`
	Retention     time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TransformConfig holds defaults for the transform engine.
type TransformConfig struct {
	// DefaultMaxWidth caps the width of a resize that carries no sizing
	// parameters. Zero disables the cap.
	DefaultMaxWidth    int `yaml:"default_max_width"`
	DefaultJPEGQuality int `yaml:"default_jpeg_quality"`
	RenderDPI          int `yaml:"render_dpi"`
	PDFDPI             int `yaml:"pdf_dpi"`
	// MaxPixels bounds both decoded sources and resize targets. Zero
	// disables the bound.
	MaxPixels int64 `yaml:"max_pixels"`
}

// LimitsConfig bounds request rate and concurrent work.
type LimitsConfig struct {
	RedisURL          string `yaml:"redis_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	MaxConcurrentJobs int    `yaml:"max_concurrent_transforms"`
}

// Config is the top-level configuration. It is built once at start-up and
// passed by value to every component.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Axiom     AxiomConfig     `yaml:"axiom"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Transform TransformConfig `yaml:"transform"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:      "info",
			Pretty:     parseBool(devDefaultPretty()),
			File:       "",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Axiom: AxiomConfig{
			Dataset:       "dev_fileconv",
			FlushInterval: 10 * time.Second,
		},
		Server: ServerConfig{
			Port:           "5000",
			MaxUploadMB:    64,
			RequestTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			IncomingDir:   "uploads",
			OutgoingDir:   "processed",
			Retention:     FileLifetime,
			SweepInterval: time.Minute,
		},
		Transform: TransformConfig{
			DefaultMaxWidth:    800,
			DefaultJPEGQuality: 85,
			RenderDPI:          72,
			PDFDPI:             72,
			MaxPixels:          50_000_000,
		},
		Limits: LimitsConfig{
			RequestsPerMinute: 60,
			MaxConcurrentJobs: runtime.GOMAXPROCS(0),
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by CONFIG_FILE, and environment variables, in that order of precedence.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	cfg.Storage.Retention = FileLifetime
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.Storage.IncomingDir == "" || c.Storage.OutgoingDir == "" {
		return fmt.Errorf("storage directories must be set")
	}
	if c.Storage.IncomingDir == c.Storage.OutgoingDir {
		return fmt.Errorf("incoming and outgoing storage must differ")
	}
	if c.Transform.DefaultJPEGQuality < 1 || c.Transform.DefaultJPEGQuality > 95 {
		return fmt.Errorf("default jpeg quality %d out of range [1,95]", c.Transform.DefaultJPEGQuality)
	}
	if c.Transform.RenderDPI <= 0 || c.Transform.PDFDPI <= 0 {
		return fmt.Errorf("render and pdf dpi must be positive")
	}
	if c.Transform.MaxPixels < 0 {
		return fmt.Errorf("max pixels must not be negative")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Pretty = parseBool(getEnv("LOG_PRETTY", strconv.FormatBool(cfg.Logging.Pretty)))
	cfg.Logging.File = getEnv("LOG_FILE", cfg.Logging.File)
	cfg.Logging.MaxSizeMB = parseInt(getEnv("LOG_MAX_SIZE_MB", ""), cfg.Logging.MaxSizeMB)
	cfg.Logging.MaxBackups = parseInt(getEnv("LOG_MAX_BACKUPS", ""), cfg.Logging.MaxBackups)
	cfg.Logging.MaxAgeDays = parseInt(getEnv("LOG_MAX_AGE_DAYS", ""), cfg.Logging.MaxAgeDays)
	cfg.Logging.Compress = parseBool(getEnv("LOG_COMPRESS", strconv.FormatBool(cfg.Logging.Compress)))

	cfg.Axiom.Send = parseBool(getEnv("SEND_LOGS_TO_AXIOM", strconv.FormatBool(cfg.Axiom.Send)))
	cfg.Axiom.APIKey = getEnv("AXIOM_API_KEY", cfg.Axiom.APIKey)
	cfg.Axiom.OrgID = getEnv("AXIOM_ORG_ID", cfg.Axiom.OrgID)
	if ds := os.Getenv("AXIOM_DATASET"); ds != "" {
		cfg.Axiom.Dataset = ds + "_fileconv"
	}
	cfg.Axiom.FlushInterval = parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", ""), cfg.Axiom.FlushInterval)

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.MaxUploadMB = int64(parseInt(getEnv("MAX_UPLOAD_MB", ""), int(cfg.Server.MaxUploadMB)))
	cfg.Server.RequestTimeout = parseDuration(getEnv("REQUEST_TIMEOUT", ""), cfg.Server.RequestTimeout)

	cfg.Storage.IncomingDir = getEnv("UPLOAD_DIR", cfg.Storage.IncomingDir)
	cfg.Storage.OutgoingDir = getEnv("PROCESSED_DIR", cfg.Storage.OutgoingDir)
	cfg.Storage.SweepInterval = parseDuration(getEnv("SWEEP_INTERVAL", ""), cfg.Storage.SweepInterval)

	cfg.Transform.DefaultMaxWidth = parseInt(getEnv("DEFAULT_MAX_WIDTH", ""), cfg.Transform.DefaultMaxWidth)
	cfg.Transform.DefaultJPEGQuality = parseInt(getEnv("DEFAULT_JPEG_QUALITY", ""), cfg.Transform.DefaultJPEGQuality)
	cfg.Transform.RenderDPI = parseInt(getEnv("RENDER_DPI", ""), cfg.Transform.RenderDPI)
	cfg.Transform.PDFDPI = parseInt(getEnv("PDF_DPI", ""), cfg.Transform.PDFDPI)
	cfg.Transform.MaxPixels = int64(parseInt(getEnv("MAX_PIXELS", ""), int(cfg.Transform.MaxPixels)))

	cfg.Limits.RedisURL = getEnv("REDIS_URL", cfg.Limits.RedisURL)
	cfg.Limits.RequestsPerMinute = parseInt(getEnv("RATE_LIMIT_PER_MINUTE", ""), cfg.Limits.RequestsPerMinute)
	cfg.Limits.MaxConcurrentJobs = parseInt(getEnv("MAX_CONCURRENT_TRANSFORMS", ""), cfg.Limits.MaxConcurrentJobs)
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
