// Package config handles service configuration: defaults, an optional YAML
// file named by ROASTER_CONFIG, then environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Capture backends.
const (
	BackendDisplay   = "display"
	BackendCommand   = "command"
	BackendSynthetic = "synthetic"
)

// ScreenshotsSubdir is the fixed subdirectory of the pictures location.
const ScreenshotsSubdir = "Screenshots"

type Config struct {
	HTTPAddr         string        `yaml:"http_addr"`
	GRPCAddr         string        `yaml:"grpc_addr"`
	CaptureDir       string        `yaml:"capture_dir"`
	CaptureBackend   string        `yaml:"capture_backend"`
	CaptureDelay     time.Duration `yaml:"capture_delay"`
	SkipBlankFrames  bool          `yaml:"skip_blank_frames"`
	MaxSkippedFrames int           `yaml:"max_skipped_frames"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	DisplayIndex     int           `yaml:"display_index"`
	ShareBaseURL     string        `yaml:"share_base_url"`
	ThumbnailSize    int           `yaml:"thumbnail_size"`
	EventBuffer      int           `yaml:"event_buffer"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPAddr:         ":8000",
		GRPCAddr:         ":50061",
		CaptureDir:       DefaultCaptureDir(),
		CaptureBackend:   BackendDisplay,
		CaptureDelay:     500 * time.Millisecond,
		SkipBlankFrames:  true,
		MaxSkippedFrames: 3,
		PollInterval:     100 * time.Millisecond,
		DisplayIndex:     0,
		ThumbnailSize:    256,
		EventBuffer:      64,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("ROASTER_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = getEnv("GRPC_ADDR", c.GRPCAddr)
	c.CaptureDir = getEnv("CAPTURE_DIR", c.CaptureDir)
	c.CaptureBackend = strings.ToLower(getEnv("CAPTURE_BACKEND", c.CaptureBackend))
	c.CaptureDelay = getEnvDuration("CAPTURE_DELAY", c.CaptureDelay)
	c.SkipBlankFrames = getEnvBool("CAPTURE_SKIP_BLANK", c.SkipBlankFrames)
	c.MaxSkippedFrames = getEnvInt("CAPTURE_MAX_SKIPPED", c.MaxSkippedFrames)
	c.PollInterval = getEnvDuration("CAPTURE_POLL_INTERVAL", c.PollInterval)
	c.DisplayIndex = getEnvInt("DISPLAY_INDEX", c.DisplayIndex)
	c.ShareBaseURL = getEnv("SHARE_BASE_URL", c.ShareBaseURL)
	c.ThumbnailSize = getEnvInt("THUMBNAIL_SIZE", c.ThumbnailSize)
	c.EventBuffer = getEnvInt("EVENT_BUFFER", c.EventBuffer)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.CaptureBackend {
	case BackendDisplay, BackendCommand, BackendSynthetic:
	default:
		return fmt.Errorf("unknown capture backend %q", c.CaptureBackend)
	}
	if c.CaptureDir == "" {
		return fmt.Errorf("capture dir must not be empty")
	}
	if c.CaptureDelay < 0 {
		return fmt.Errorf("capture delay must not be negative")
	}
	if c.MaxSkippedFrames < 0 {
		return fmt.Errorf("max skipped frames must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.DisplayIndex < 0 {
		return fmt.Errorf("display index must not be negative")
	}
	if c.ThumbnailSize <= 0 {
		return fmt.Errorf("thumbnail size must be positive")
	}
	return nil
}

// DefaultCaptureDir is <pictures>/Screenshots, where pictures is
// $XDG_PICTURES_DIR or ~/Pictures.
func DefaultCaptureDir() string {
	if dir := os.Getenv("XDG_PICTURES_DIR"); dir != "" {
		return filepath.Join(dir, ScreenshotsSubdir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ScreenshotsSubdir)
	}
	return filepath.Join(home, "Pictures", ScreenshotsSubdir)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

// getEnvDuration accepts Go durations ("750ms") or bare milliseconds ("750").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
