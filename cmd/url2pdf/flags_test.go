package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alnah/go-url2pdf/internal/config"
)

// ---------------------------------------------------------------------------
// TestParseServeFlags - Only explicitly set flags are merged
// ---------------------------------------------------------------------------

func TestParseServeFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "no flags keeps config",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Server.Port != 8080 {
					t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
				}
			},
		},
		{
			name: "short flags",
			args: []string{"-p", "9999", "-w", "2", "-t", "10"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Server.Port != 9999 {
					t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
				}
				if cfg.Pool.MaxConcurrentJobs != 2 {
					t.Errorf("Pool.MaxConcurrentJobs = %d, want 2", cfg.Pool.MaxConcurrentJobs)
				}
				if cfg.Renderer.TimeoutSeconds != 10 {
					t.Errorf("Renderer.TimeoutSeconds = %d, want 10", cfg.Renderer.TimeoutSeconds)
				}
			},
		},
		{
			name: "explicit zero queue depth",
			args: []string{"--queue-depth", "0"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Pool.MaxQueueDepth != 0 {
					t.Errorf("Pool.MaxQueueDepth = %d, want 0", cfg.Pool.MaxQueueDepth)
				}
			},
		},
		{
			name: "renderer selection",
			args: []string{"--renderer", "chrome", "--renderer-bin", "/bin/r", "--temp-dir", "/t"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Renderer.Backend != "chrome" || cfg.Renderer.Binary != "/bin/r" || cfg.Workspace.Dir != "/t" {
					t.Errorf("renderer flags not applied: %+v %+v", cfg.Renderer, cfg.Workspace)
				}
			},
		},
		{
			name: "verbose forces debug console",
			args: []string{"-v", "--log-level", "error"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Log.Level != "debug" || cfg.Log.Format != config.LogFormatConsole {
					t.Errorf("Log = %+v, want debug/console", cfg.Log)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := parseServeFlags(tt.args, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("parseServeFlags() error = %v", err)
			}
			cfg := config.DefaultConfig()
			mergeFlags(f, cfg)
			tt.check(t, cfg)
		})
	}
}

func TestParseServeFlags_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--pages", "3"}},
		{"bad int", []string{"--port", "eighty"}},
		{"positional", []string{"https://example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := parseServeFlags(tt.args, &bytes.Buffer{}); !errors.Is(err, ErrUsage) {
				t.Errorf("parseServeFlags(%v) = %v, want ErrUsage", tt.args, err)
			}
		})
	}
}
