package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "PROJPACK_API_KEY", "PROJPACK_CONFIG", "WORKER_COUNT", "MAX_QUEUE_SIZE", "JOB_TTL",
		"FETCH_WORKERS", "TRANSCODE_WORKERS", "MAX_CONCURRENT_CRAWL", "FETCH_TIMEOUT",
		"MAX_FETCH_BYTES", "USER_AGENT", "DEFAULT_QUALITY", "ENABLE_COMPRESSION", "SAVE_IMAGES_SEPARATELY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FetchWorkers != 2 {
		t.Errorf("expected 2 fetch workers, got %d", cfg.FetchWorkers)
	}
	if cfg.DefaultQuality != 33 || !cfg.EnableCompression || cfg.SaveImagesSeparately {
		t.Errorf("unexpected run defaults %+v", cfg)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("expected 30s fetch timeout, got %v", cfg.FetchTimeout)
	}
	if cfg.TranscodeWorkers <= 0 {
		t.Errorf("expected positive transcode workers, got %d", cfg.TranscodeWorkers)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "projpack.toml")
	settings := `
port = "9000"
default_quality = 0
enable_compression = false
fetch_timeout = "5s"
fetch_workers = 6
`
	if err := os.WriteFile(path, []byte(settings), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROJPACK_CONFIG", path)
	t.Setenv("FETCH_WORKERS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("expected port from file, got %q", cfg.Port)
	}
	if cfg.DefaultQuality != 0 {
		t.Errorf("expected explicit zero quality to be kept, got %d", cfg.DefaultQuality)
	}
	if cfg.EnableCompression {
		t.Error("expected compression disabled by file")
	}
	if cfg.FetchTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.FetchTimeout)
	}
	if cfg.FetchWorkers != 3 {
		t.Errorf("expected env to override file, got %d", cfg.FetchWorkers)
	}
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte(`fetch_timeout = "soon"`), 0o644)
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected invalid duration to fail")
	}
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected missing file to fail")
	}
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
	if err := cfg.ValidateServer(); err == nil {
		t.Error("expected missing API key to fail server validation")
	}
	cfg.DefaultQuality = 101
	if err := cfg.Validate(); err == nil {
		t.Error("expected out of range quality to fail")
	}
}
