package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-zpl2pdf/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Config holds all configuration for the conversion CLI.
type Config struct {
	Renderer  RendererConfig  `yaml:"renderer"`
	Label     LabelConfig     `yaml:"label"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Output    OutputConfig    `yaml:"output"`
}

// RendererConfig defines the rendering API endpoint and call limits.
type RendererConfig struct {
	URL          string        `yaml:"url"`          // Base URL (empty = public Labelary API)
	Timeout      time.Duration `yaml:"timeout"`      // Per-call timeout (0 = library default)
	MaxBatchSize int           `yaml:"maxBatchSize"` // Labels per request (0 = renderer cap of 50)
}

// LabelConfig defines default label geometry for conversions.
type LabelConfig struct {
	Size    string `yaml:"size"`    // "<width>x<height>" inches (empty = "4x6")
	Density int    `yaml:"density"` // dpmm: 6, 8, 12, 24 (0 = 8)
}

// SchedulerConfig defines queueing and retry behavior.
type SchedulerConfig struct {
	HighSlots           int           `yaml:"highSlots"`           // Concurrency for the high tier (0 = default)
	NormalSlots         int           `yaml:"normalSlots"`         // Concurrency for the normal tier (0 = default)
	LowSlots            int           `yaml:"lowSlots"`            // Concurrency for the low tier (0 = default)
	MinDispatchInterval time.Duration `yaml:"minDispatchInterval"` // Global spacing between renderer calls
	MaxRetries          int           `yaml:"maxRetries"`          // Attempts per chunk before giving up
	RetryBaseDelay      time.Duration `yaml:"retryBaseDelay"`      // First backoff step
	RetryMaxDelay       time.Duration `yaml:"retryMaxDelay"`       // Backoff cap
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Default output directory (empty = same as source)
}

// validDensities lists the dot densities the rendering API accepts.
var validDensities = []int{6, 8, 12, 24}

// Validate checks value ranges. Called automatically by LoadConfig, but
// available for consumers who construct Config manually.
func (c *Config) Validate() error {
	if c.Renderer.URL != "" && !strings.HasPrefix(c.Renderer.URL, "http://") && !strings.HasPrefix(c.Renderer.URL, "https://") {
		return fmt.Errorf("%w: renderer.url %q must start with http:// or https://", ErrInvalidValue, c.Renderer.URL)
	}
	if c.Renderer.Timeout < 0 {
		return fmt.Errorf("%w: renderer.timeout must not be negative", ErrInvalidValue)
	}
	if c.Renderer.MaxBatchSize < 0 {
		return fmt.Errorf("%w: renderer.maxBatchSize must not be negative", ErrInvalidValue)
	}

	if c.Label.Density != 0 {
		ok := false
		for _, d := range validDensities {
			if c.Label.Density == d {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: label.density %d (must be 6, 8, 12, or 24)", ErrInvalidValue, c.Label.Density)
		}
	}

	for _, slots := range []struct {
		name  string
		value int
	}{
		{"scheduler.highSlots", c.Scheduler.HighSlots},
		{"scheduler.normalSlots", c.Scheduler.NormalSlots},
		{"scheduler.lowSlots", c.Scheduler.LowSlots},
	} {
		if slots.value < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidValue, slots.name)
		}
	}
	if c.Scheduler.MinDispatchInterval < 0 {
		return fmt.Errorf("%w: scheduler.minDispatchInterval must not be negative", ErrInvalidValue)
	}
	if c.Scheduler.MaxRetries < 0 {
		return fmt.Errorf("%w: scheduler.maxRetries must not be negative", ErrInvalidValue)
	}
	if c.Scheduler.RetryBaseDelay < 0 || c.Scheduler.RetryMaxDelay < 0 {
		return fmt.Errorf("%w: scheduler retry delays must not be negative", ErrInvalidValue)
	}
	if c.Scheduler.RetryMaxDelay != 0 && c.Scheduler.RetryBaseDelay > c.Scheduler.RetryMaxDelay {
		return fmt.Errorf("%w: scheduler.retryBaseDelay exceeds scheduler.retryMaxDelay", ErrInvalidValue)
	}

	return nil
}

// DefaultConfig returns a neutral configuration: every zero field defers to
// the library's defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if isFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-zpl2pdf/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2) // 2 locations

	// Try current directory first (both extensions)
	for _, ext := range extensions {
		localPath := name + ext
		if fileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	// Try user config directory (both extensions)
	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "go-zpl2pdf", name+ext)
			if fileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}

// fileExists returns true if the path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
