package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alnah/go-url2pdf/internal/config"
)

// envConfig holds configuration from environment variables.
// Zero values mean "not set".
type envConfig struct {
	// Tier 1 - Deployment (unprefixed, as set by container platforms)
	Port              int // PORT
	MaxConcurrentJobs int // MAX_CONCURRENT_JOBS
	MaxQueueDepth     int // MAX_QUEUE_DEPTH
	queueDepthSet     bool
	TimeoutSeconds    int // RENDER_TIMEOUT_SECONDS

	// Tier 2 - Service
	ConfigPath  string // URL2PDF_CONFIG: config file name or path
	Backend     string // URL2PDF_RENDERER: process, chrome
	RendererBin string // URL2PDF_RENDERER_BIN: renderer binary
	TempDir     string // URL2PDF_TEMP_DIR: workspace directory
	LogLevel    string // URL2PDF_LOG_LEVEL
	LogFormat   string // URL2PDF_LOG_FORMAT
}

// knownEnvVars lists valid URL2PDF_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"URL2PDF_CONFIG":       true,
	"URL2PDF_RENDERER":     true,
	"URL2PDF_RENDERER_BIN": true,
	"URL2PDF_TEMP_DIR":     true,
	"URL2PDF_LOG_LEVEL":    true,
	"URL2PDF_LOG_FORMAT":   true,
}

// loadEnvConfig reads configuration from environment variables.
// A set but malformed numeric variable is an error.
func loadEnvConfig() (*envConfig, error) {
	cfg := &envConfig{
		ConfigPath:  os.Getenv("URL2PDF_CONFIG"),
		Backend:     os.Getenv("URL2PDF_RENDERER"),
		RendererBin: os.Getenv("URL2PDF_RENDERER_BIN"),
		TempDir:     os.Getenv("URL2PDF_TEMP_DIR"),
		LogLevel:    os.Getenv("URL2PDF_LOG_LEVEL"),
		LogFormat:   os.Getenv("URL2PDF_LOG_FORMAT"),
	}

	var err error
	if cfg.Port, _, err = envInt("PORT", 1); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentJobs, _, err = envInt("MAX_CONCURRENT_JOBS", 1); err != nil {
		return nil, err
	}
	if cfg.MaxQueueDepth, cfg.queueDepthSet, err = envInt("MAX_QUEUE_DEPTH", 0); err != nil {
		return nil, err
	}
	if cfg.TimeoutSeconds, _, err = envInt("RENDER_TIMEOUT_SECONDS", 1); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envInt parses an integer variable that must be at least min.
func envInt(name string, min int) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return 0, false, fmt.Errorf("%w: %s=%q (want an integer >= %d)", ErrInvalidEnv, name, raw, min)
	}
	return n, true, nil
}

// warnUnknownEnvVars logs warnings for unrecognized URL2PDF_* variables.
// Helps catch typos like URL2PDF_RENDER_BIN instead of URL2PDF_RENDERER_BIN.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "URL2PDF_") {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment values over the file config.
// Order: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeFlags)
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Port > 0 {
		cfg.Server.Port = env.Port
	}
	if env.MaxConcurrentJobs > 0 {
		cfg.Pool.MaxConcurrentJobs = env.MaxConcurrentJobs
	}
	if env.queueDepthSet {
		cfg.Pool.MaxQueueDepth = env.MaxQueueDepth
	}
	if env.TimeoutSeconds > 0 {
		cfg.Renderer.TimeoutSeconds = env.TimeoutSeconds
	}

	if env.Backend != "" {
		cfg.Renderer.Backend = env.Backend
	}
	if env.RendererBin != "" {
		cfg.Renderer.Binary = env.RendererBin
	}
	if env.TempDir != "" {
		cfg.Workspace.Dir = env.TempDir
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		cfg.Log.Format = env.LogFormat
	}
}

// resolveConfig builds the effective config:
// flags > environment > config file > defaults.
func resolveConfig(f *serveFlags, stderr io.Writer) (*config.Config, error) {
	warnUnknownEnvVars(stderr)

	env, err := loadEnvConfig()
	if err != nil {
		return nil, err
	}

	name := f.common.config
	if name == "" {
		name = env.ConfigPath
	}

	cfg := config.DefaultConfig()
	if name != "" {
		if cfg, err = config.LoadConfig(name); err != nil {
			return nil, err
		}
	}

	applyEnvConfig(env, cfg)
	mergeFlags(f, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
