package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-url2pdf/internal/fileutil"
	"github.com/alnah/go-url2pdf/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Renderer backends.
const (
	BackendProcess = "process"
	BackendChrome  = "chrome"
)

// Log formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Bounds for numeric settings.
const (
	MaxWorkers          = 256
	MaxQueueDepth       = 10000
	MaxTimeoutSeconds   = 3600
	MaxKillGraceSeconds = 60
	MaxRendererArgs     = 32
	MaxRendererArgLen   = 1024
)

// Config holds all configuration for the service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Pool      PoolConfig      `yaml:"pool"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Port                   int `yaml:"port"`
	RetryAfterSeconds      int `yaml:"retryAfterSeconds"`      // Retry-After on 429
	ShutdownTimeoutSeconds int `yaml:"shutdownTimeoutSeconds"` // drain budget on SIGTERM
}

// PoolConfig bounds concurrency.
type PoolConfig struct {
	MaxConcurrentJobs int `yaml:"maxConcurrentJobs"` // 0 = auto from GOMAXPROCS
	MaxQueueDepth     int `yaml:"maxQueueDepth"`
}

// RendererConfig selects and tunes the renderer.
type RendererConfig struct {
	Backend          string     `yaml:"backend"` // "process" or "chrome"
	Binary           string     `yaml:"binary"`  // process backend
	Args             []string   `yaml:"args"`    // prepended before <url> <output>
	TimeoutSeconds   int        `yaml:"timeoutSeconds"`
	KillGraceSeconds int        `yaml:"killGraceSeconds"`
	BrowserBin       string     `yaml:"browserBin"` // chrome backend, empty = auto
	NoSandbox        bool       `yaml:"noSandbox"`  // chrome backend
	Page             PageConfig `yaml:"page"`       // chrome backend
}

// PageConfig defines PDF page settings for the chrome backend.
type PageConfig struct {
	Size        string  `yaml:"size"`        // "letter", "a4", "legal"
	Orientation string  `yaml:"orientation"` // "portrait", "landscape"
	Margin      float64 `yaml:"margin"`      // inches
}

// WorkspaceConfig defines where temporary output lives.
type WorkspaceConfig struct {
	Dir string `yaml:"dir"` // empty = OS temp dir
}

// LogConfig defines logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   8080,
			RetryAfterSeconds:      5,
			ShutdownTimeoutSeconds: 30,
		},
		Pool: PoolConfig{
			MaxConcurrentJobs: 4,
			MaxQueueDepth:     20,
		},
		Renderer: RendererConfig{
			Backend:          BackendProcess,
			Binary:           "electron-pdf",
			TimeoutSeconds:   30,
			KillGraceSeconds: 2,
			Page: PageConfig{
				Size:        "a4",
				Orientation: "portrait",
				Margin:      0.4,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatJSON,
		},
	}
}

// Timeout returns the per-job render deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Renderer.TimeoutSeconds) * time.Second
}

// KillGrace returns the delay between SIGTERM and SIGKILL.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Renderer.KillGraceSeconds) * time.Second
}

// ShutdownTimeout returns the drain budget.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if err := validateRange("server.port", c.Server.Port, 1, 65535); err != nil {
		return err
	}
	if err := validateRange("server.retryAfterSeconds", c.Server.RetryAfterSeconds, 1, 3600); err != nil {
		return err
	}
	if err := validateRange("server.shutdownTimeoutSeconds", c.Server.ShutdownTimeoutSeconds, 1, MaxTimeoutSeconds); err != nil {
		return err
	}

	if err := validateRange("pool.maxConcurrentJobs", c.Pool.MaxConcurrentJobs, 0, MaxWorkers); err != nil {
		return err
	}
	if err := validateRange("pool.maxQueueDepth", c.Pool.MaxQueueDepth, 0, MaxQueueDepth); err != nil {
		return err
	}

	switch c.Renderer.Backend {
	case BackendProcess:
		if strings.TrimSpace(c.Renderer.Binary) == "" {
			return fmt.Errorf("%w: renderer.binary: required for the %s backend", ErrInvalidValue, BackendProcess)
		}
	case BackendChrome:
	default:
		return fmt.Errorf("%w: renderer.backend: %q (must be %s or %s)", ErrInvalidValue, c.Renderer.Backend, BackendProcess, BackendChrome)
	}
	if len(c.Renderer.Args) > MaxRendererArgs {
		return fmt.Errorf("%w: renderer.args: %d entries (max %d)", ErrInvalidValue, len(c.Renderer.Args), MaxRendererArgs)
	}
	for i, arg := range c.Renderer.Args {
		if len(arg) > MaxRendererArgLen || strings.ContainsRune(arg, 0) {
			return fmt.Errorf("%w: renderer.args[%d]: too long or contains a null byte", ErrInvalidValue, i)
		}
	}
	if err := validateRange("renderer.timeoutSeconds", c.Renderer.TimeoutSeconds, 1, MaxTimeoutSeconds); err != nil {
		return err
	}
	if err := validateRange("renderer.killGraceSeconds", c.Renderer.KillGraceSeconds, 0, MaxKillGraceSeconds); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level: %q (must be debug, info, warn or error)", ErrInvalidValue, c.Log.Level)
	}
	switch c.Log.Format {
	case LogFormatJSON, LogFormatConsole:
	default:
		return fmt.Errorf("%w: log.format: %q (must be %s or %s)", ErrInvalidValue, c.Log.Format, LogFormatJSON, LogFormatConsole)
	}

	return nil
}

// validateRange checks lo <= v <= hi.
func validateRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s: %d (must be between %d and %d)", ErrInvalidValue, field, v, lo, hi)
	}
	return nil
}

// LoadConfig loads configuration from a file path or config name on top
// of DefaultConfig. If nameOrPath contains a path separator, it's treated
// as a file path; otherwise it's searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	if fileutil.ValidateComponent(nameOrPath) != nil {
		configPath = nameOrPath
	} else {
		var err error
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is operator-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SearchPaths lists where a config name is looked up, in order.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, "go-url2pdf", name+ext))
		}
	}
	return paths
}

// resolveConfigPath returns the first existing search path for name.
func resolveConfigPath(name string) (string, error) {
	paths := SearchPaths(name)
	for _, p := range paths {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(paths, ", "))
}
