package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Job queue
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration

	// Per-run pools
	FetchWorkers       int
	TranscodeWorkers   int
	MaxConcurrentCrawl int

	// Network
	FetchTimeout  time.Duration
	MaxFetchBytes int64
	UserAgent     string

	// Run defaults
	DefaultQuality       int
	EnableCompression    bool
	SaveImagesSeparately bool
}

// fileSettings mirrors Config in a settings file. Keys left out keep their
// defaults.
type fileSettings struct {
	Port                 string `toml:"port"`
	APIKey               string `toml:"api_key"`
	WorkerCount          int    `toml:"worker_count"`
	MaxQueueSize         int    `toml:"max_queue_size"`
	JobTTL               string `toml:"job_ttl"`
	FetchWorkers         int    `toml:"fetch_workers"`
	TranscodeWorkers     int    `toml:"transcode_workers"`
	MaxConcurrentCrawl   int    `toml:"max_concurrent_crawl"`
	FetchTimeout         string `toml:"fetch_timeout"`
	MaxFetchBytes        int64  `toml:"max_fetch_bytes"`
	UserAgent            string `toml:"user_agent"`
	DefaultQuality       *int   `toml:"default_quality"`
	EnableCompression    *bool  `toml:"enable_compression"`
	SaveImagesSeparately *bool  `toml:"save_images_separately"`
}

func defaults() Config {
	return Config{
		Port:                 "8090",
		WorkerCount:          2,
		MaxQueueSize:         50,
		JobTTL:               1 * time.Hour,
		FetchWorkers:         2,
		TranscodeWorkers:     runtime.NumCPU(),
		MaxConcurrentCrawl:   8,
		FetchTimeout:         30 * time.Second,
		MaxFetchBytes:        268435456, // 256MB
		UserAgent:            "projpack/1.0",
		DefaultQuality:       33,
		EnableCompression:    true,
		SaveImagesSeparately: false,
	}
}

// Load reads the settings file named by PROJPACK_CONFIG, if any, and then
// the environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv("PROJPACK_CONFIG"))
}

// LoadFrom layers defaults, the TOML file at path (skipped when empty) and
// environment variables, in that order.
func LoadFrom(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return cfg, err
		}
	}

	cfg = Config{
		Port: envOr("PORT", cfg.Port),

		APIKey: envOr("PROJPACK_API_KEY", cfg.APIKey),

		WorkerCount:  envInt("WORKER_COUNT", cfg.WorkerCount),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize),
		JobTTL:       envDuration("JOB_TTL", cfg.JobTTL),

		FetchWorkers:       envInt("FETCH_WORKERS", cfg.FetchWorkers),
		TranscodeWorkers:   envInt("TRANSCODE_WORKERS", cfg.TranscodeWorkers),
		MaxConcurrentCrawl: envInt("MAX_CONCURRENT_CRAWL", cfg.MaxConcurrentCrawl),

		FetchTimeout:  envDuration("FETCH_TIMEOUT", cfg.FetchTimeout),
		MaxFetchBytes: envInt64("MAX_FETCH_BYTES", cfg.MaxFetchBytes),
		UserAgent:     envOr("USER_AGENT", cfg.UserAgent),

		DefaultQuality:       envInt("DEFAULT_QUALITY", cfg.DefaultQuality),
		EnableCompression:    envBool("ENABLE_COMPRESSION", cfg.EnableCompression),
		SaveImagesSeparately: envBool("SAVE_IMAGES_SEPARATELY", cfg.SaveImagesSeparately),
	}

	d := defaults()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = d.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = d.MaxQueueSize
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = d.JobTTL
	}
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = d.FetchWorkers
	}
	if cfg.TranscodeWorkers <= 0 {
		cfg.TranscodeWorkers = d.TranscodeWorkers
	}
	if cfg.MaxConcurrentCrawl <= 0 {
		cfg.MaxConcurrentCrawl = d.MaxConcurrentCrawl
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = d.FetchTimeout
	}
	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = d.MaxFetchBytes
	}

	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	var fs fileSettings
	if err := toml.Unmarshal(data, &fs); err != nil {
		return fmt.Errorf("parse settings %s: %w", path, err)
	}

	if fs.Port != "" {
		c.Port = fs.Port
	}
	if fs.APIKey != "" {
		c.APIKey = fs.APIKey
	}
	if fs.WorkerCount > 0 {
		c.WorkerCount = fs.WorkerCount
	}
	if fs.MaxQueueSize > 0 {
		c.MaxQueueSize = fs.MaxQueueSize
	}
	if fs.FetchWorkers > 0 {
		c.FetchWorkers = fs.FetchWorkers
	}
	if fs.TranscodeWorkers > 0 {
		c.TranscodeWorkers = fs.TranscodeWorkers
	}
	if fs.MaxConcurrentCrawl > 0 {
		c.MaxConcurrentCrawl = fs.MaxConcurrentCrawl
	}
	if fs.MaxFetchBytes > 0 {
		c.MaxFetchBytes = fs.MaxFetchBytes
	}
	if fs.UserAgent != "" {
		c.UserAgent = fs.UserAgent
	}
	if fs.DefaultQuality != nil {
		c.DefaultQuality = *fs.DefaultQuality
	}
	if fs.EnableCompression != nil {
		c.EnableCompression = *fs.EnableCompression
	}
	if fs.SaveImagesSeparately != nil {
		c.SaveImagesSeparately = *fs.SaveImagesSeparately
	}
	if fs.JobTTL != "" {
		d, err := time.ParseDuration(fs.JobTTL)
		if err != nil {
			return fmt.Errorf("settings job_ttl: %w", err)
		}
		c.JobTTL = d
	}
	if fs.FetchTimeout != "" {
		d, err := time.ParseDuration(fs.FetchTimeout)
		if err != nil {
			return fmt.Errorf("settings fetch_timeout: %w", err)
		}
		c.FetchTimeout = d
	}
	return nil
}

// Validate checks settings shared by the CLI and the server.
func (c Config) Validate() error {
	if c.DefaultQuality < 0 || c.DefaultQuality > 100 {
		return fmt.Errorf("DEFAULT_QUALITY must be between 0 and 100, got %d", c.DefaultQuality)
	}
	return nil
}

// ValidateServer additionally requires the API key.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("PROJPACK_API_KEY is required")
	}
	return nil
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
