package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigPathEnv names the environment variable pointing at the YAML file
	ConfigPathEnv = "PDFCOMPRESS_CONFIG"

	// DefaultConfigPath is read when present and no explicit path is given
	DefaultConfigPath = "./config.yaml"
)

// Config holds application configuration
type Config struct {
	ListenAddr        string        `yaml:"listen_addr" json:"listen_addr"`
	UploadDir         string        `yaml:"upload_dir" json:"upload_dir"`
	OutputDir         string        `yaml:"output_dir" json:"output_dir"`
	StaticDir         string        `yaml:"static_dir" json:"static_dir"`
	GhostscriptBinary string        `yaml:"ghostscript_binary" json:"ghostscript_binary"`
	MaxFileSize       int64         `yaml:"max_file_size" json:"max_file_size"`
	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs" json:"max_concurrent_jobs"`
	JobTimeout        time.Duration `yaml:"job_timeout" json:"job_timeout"`
	KeepFiles         bool          `yaml:"keep_files" json:"keep_files"`
	VerifySignature   bool          `yaml:"verify_signature" json:"verify_signature"`
	SweepTTL          time.Duration `yaml:"sweep_ttl" json:"sweep_ttl"`
	SweepInterval     time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	LogLevel          string        `yaml:"log_level" json:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:        ":3000",
		UploadDir:         "uploads",
		OutputDir:         "compressed",
		StaticDir:         "public",
		GhostscriptBinary: "gs",
		MaxFileSize:       50 * 1024 * 1024,
		MaxConcurrentJobs: 0,
		JobTimeout:        5 * time.Minute,
		SweepTTL:          time.Hour,
		SweepInterval:     10 * time.Minute,
		LogLevel:          "INFO",
	}
}

// Load builds the configuration in order of precedence:
// 1. Environment variables (highest)
// 2. YAML file at path, $PDFCOMPRESS_CONFIG or ./config.yaml
// 3. Default values
//
// An explicitly named file must exist; the default path is optional.
// Validation is left to the caller so command-line flags can be applied first.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(ConfigPathEnv)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultConfigPath
	}

	if err := loadFile(&cfg, path, explicit); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := loadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return &cfg, nil
}

func loadFile(cfg *Config, path string, required bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("GS_BINARY"); v != "" {
		cfg.GhostscriptBinary = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_FILE_SIZE: %w", err)
		}
		cfg.MaxFileSize = n
	}
	if v := os.Getenv("MAX_CONCURRENT_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_CONCURRENT_JOBS: %w", err)
		}
		cfg.MaxConcurrentJobs = n
	}

	durations := map[string]*time.Duration{
		"JOB_TIMEOUT":    &cfg.JobTimeout,
		"SWEEP_TTL":      &cfg.SweepTTL,
		"SWEEP_INTERVAL": &cfg.SweepInterval,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"KEEP_FILES":       &cfg.KeepFiles,
		"VERIFY_SIGNATURE": &cfg.VerifySignature,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	return nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if c.UploadDir == "" || c.OutputDir == "" {
		return errors.New("upload_dir and output_dir are required")
	}
	if filepath.Clean(c.UploadDir) == filepath.Clean(c.OutputDir) {
		return fmt.Errorf("upload_dir and output_dir must differ (both %q)", c.UploadDir)
	}
	if c.GhostscriptBinary == "" {
		return errors.New("ghostscript_binary is required")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be > 0, got %d", c.MaxFileSize)
	}
	if c.MaxConcurrentJobs < 0 {
		return fmt.Errorf("max_concurrent_jobs must be >= 0, got %d", c.MaxConcurrentJobs)
	}
	if c.JobTimeout < 0 || c.SweepTTL < 0 || c.SweepInterval < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}
