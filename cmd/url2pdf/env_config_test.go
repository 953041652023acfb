package main

// Notes:
// - Tests use t.Setenv() which prevents t.Parallel().
// - resolveConfig's config-file branch is covered through --config with a
//   temp file; name lookup in the user config dir is covered in internal/config.
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alnah/go-url2pdf/internal/config"
)

// clearServiceEnv blanks every variable the service reads.
func clearServiceEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{"PORT", "MAX_CONCURRENT_JOBS", "MAX_QUEUE_DEPTH", "RENDER_TIMEOUT_SECONDS"} {
		t.Setenv(name, "")
	}
	for name := range knownEnvVars {
		t.Setenv(name, "")
	}
}

// ---------------------------------------------------------------------------
// TestLoadEnvConfig - Environment variable loading
// ---------------------------------------------------------------------------

func TestLoadEnvConfig(t *testing.T) {
	t.Run("deployment variables", func(t *testing.T) {
		clearServiceEnv(t)
		t.Setenv("PORT", "9000")
		t.Setenv("MAX_CONCURRENT_JOBS", "2")
		t.Setenv("MAX_QUEUE_DEPTH", "0")
		t.Setenv("RENDER_TIMEOUT_SECONDS", "45")

		env, err := loadEnvConfig()
		if err != nil {
			t.Fatalf("loadEnvConfig() error = %v", err)
		}

		cfg := config.DefaultConfig()
		applyEnvConfig(env, cfg)

		if cfg.Server.Port != 9000 {
			t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
		}
		if cfg.Pool.MaxConcurrentJobs != 2 {
			t.Errorf("Pool.MaxConcurrentJobs = %d, want 2", cfg.Pool.MaxConcurrentJobs)
		}
		if cfg.Pool.MaxQueueDepth != 0 {
			t.Errorf("Pool.MaxQueueDepth = %d, want explicit 0", cfg.Pool.MaxQueueDepth)
		}
		if cfg.Renderer.TimeoutSeconds != 45 {
			t.Errorf("Renderer.TimeoutSeconds = %d, want 45", cfg.Renderer.TimeoutSeconds)
		}
	})

	t.Run("service variables", func(t *testing.T) {
		clearServiceEnv(t)
		t.Setenv("URL2PDF_RENDERER", "chrome")
		t.Setenv("URL2PDF_RENDERER_BIN", "/opt/render")
		t.Setenv("URL2PDF_TEMP_DIR", "/scratch")
		t.Setenv("URL2PDF_LOG_LEVEL", "debug")
		t.Setenv("URL2PDF_LOG_FORMAT", "console")

		env, err := loadEnvConfig()
		if err != nil {
			t.Fatalf("loadEnvConfig() error = %v", err)
		}

		cfg := config.DefaultConfig()
		applyEnvConfig(env, cfg)

		if cfg.Renderer.Backend != "chrome" {
			t.Errorf("Renderer.Backend = %q, want chrome", cfg.Renderer.Backend)
		}
		if cfg.Renderer.Binary != "/opt/render" {
			t.Errorf("Renderer.Binary = %q, want /opt/render", cfg.Renderer.Binary)
		}
		if cfg.Workspace.Dir != "/scratch" {
			t.Errorf("Workspace.Dir = %q, want /scratch", cfg.Workspace.Dir)
		}
		if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
			t.Errorf("Log = %+v, want debug/console", cfg.Log)
		}
	})

	t.Run("unset leaves config alone", func(t *testing.T) {
		clearServiceEnv(t)

		env, err := loadEnvConfig()
		if err != nil {
			t.Fatalf("loadEnvConfig() error = %v", err)
		}
		cfg := config.DefaultConfig()
		cfg.Pool.MaxQueueDepth = 7
		applyEnvConfig(env, cfg)

		if cfg.Pool.MaxQueueDepth != 7 {
			t.Errorf("Pool.MaxQueueDepth = %d, want 7 preserved", cfg.Pool.MaxQueueDepth)
		}
	})

	invalid := []struct {
		name  string
		value string
	}{
		{"PORT", "http"},
		{"PORT", "0"},
		{"MAX_CONCURRENT_JOBS", "-1"},
		{"MAX_QUEUE_DEPTH", "many"},
		{"RENDER_TIMEOUT_SECONDS", "30s"},
	}
	for _, tt := range invalid {
		t.Run("invalid "+tt.name+"="+tt.value, func(t *testing.T) {
			clearServiceEnv(t)
			t.Setenv(tt.name, tt.value)

			_, err := loadEnvConfig()
			if !errors.Is(err, ErrInvalidEnv) {
				t.Fatalf("loadEnvConfig() = %v, want ErrInvalidEnv", err)
			}
			if !strings.Contains(err.Error(), tt.name) {
				t.Errorf("error %q should name %s", err, tt.name)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWarnUnknownEnvVars - Typo detection
// ---------------------------------------------------------------------------

func TestWarnUnknownEnvVars(t *testing.T) {
	clearServiceEnv(t)
	t.Setenv("URL2PDF_RENDER_BIN", "x")
	t.Setenv("URL2PDF_RENDERER_BIN", "y")

	var buf bytes.Buffer
	warnUnknownEnvVars(&buf)

	out := buf.String()
	if !strings.Contains(out, "URL2PDF_RENDER_BIN") {
		t.Errorf("expected warning for URL2PDF_RENDER_BIN, got %q", out)
	}
	if strings.Contains(out, "URL2PDF_RENDERER_BIN ") {
		t.Errorf("known variable should not warn, got %q", out)
	}
}

// ---------------------------------------------------------------------------
// TestResolveConfig - flags > env > file > defaults
// ---------------------------------------------------------------------------

func TestResolveConfig(t *testing.T) {
	clearServiceEnv(t)

	path := filepath.Join(t.TempDir(), "svc.yaml")
	content := "server:\n  port: 7000\npool:\n  maxConcurrentJobs: 3\n  maxQueueDepth: 9\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("URL2PDF_CONFIG", path)
	t.Setenv("MAX_CONCURRENT_JOBS", "5")
	t.Setenv("PORT", "7100")

	flags, err := parseServeFlags([]string{"--port", "7200"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseServeFlags() error = %v", err)
	}

	cfg, err := resolveConfig(flags, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}

	if cfg.Server.Port != 7200 {
		t.Errorf("Server.Port = %d, want 7200 from flag", cfg.Server.Port)
	}
	if cfg.Pool.MaxConcurrentJobs != 5 {
		t.Errorf("Pool.MaxConcurrentJobs = %d, want 5 from env", cfg.Pool.MaxConcurrentJobs)
	}
	if cfg.Pool.MaxQueueDepth != 9 {
		t.Errorf("Pool.MaxQueueDepth = %d, want 9 from file", cfg.Pool.MaxQueueDepth)
	}
	if cfg.Renderer.TimeoutSeconds != 30 {
		t.Errorf("Renderer.TimeoutSeconds = %d, want default 30", cfg.Renderer.TimeoutSeconds)
	}
}

func TestResolveConfig_InvalidAfterMerge(t *testing.T) {
	clearServiceEnv(t)

	flags, err := parseServeFlags([]string{"--renderer", "pandoc"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseServeFlags() error = %v", err)
	}
	if _, err := resolveConfig(flags, &bytes.Buffer{}); !errors.Is(err, config.ErrInvalidValue) {
		t.Errorf("resolveConfig() = %v, want ErrInvalidValue", err)
	}
}
