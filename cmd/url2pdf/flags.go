package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-url2pdf/internal/config"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	verbose bool
}

// serveFlags holds all flags for the serve command.
// Only flags the user actually set are merged into the config.
type serveFlags struct {
	common      commonFlags
	port        int
	workers     int
	queueDepth  int
	timeout     int
	renderer    string
	rendererBin string
	tempDir     string
	logLevel    string
	logFormat   string
	printConfig bool
	help        bool

	set func(name string) bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging on the console")
}

// parseServeFlags parses serve command flags. Positional arguments are
// rejected.
func parseServeFlags(args []string, stderr io.Writer) (*serveFlags, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &serveFlags{}

	addCommonFlags(fs, &f.common)
	fs.IntVarP(&f.port, "port", "p", 0, "listen port")
	fs.IntVarP(&f.workers, "workers", "w", 0, "concurrent render jobs (0 = auto)")
	fs.IntVar(&f.queueDepth, "queue-depth", 0, "jobs allowed to wait for a worker")
	fs.IntVarP(&f.timeout, "timeout", "t", 0, "per-job render timeout in seconds")
	fs.StringVar(&f.renderer, "renderer", "", "renderer backend: process, chrome")
	fs.StringVar(&f.rendererBin, "renderer-bin", "", "renderer binary for the process backend")
	fs.StringVar(&f.tempDir, "temp-dir", "", "directory for temporary output")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: json, console")
	fs.BoolVar(&f.printConfig, "print-config", false, "print the effective config and exit")
	fs.BoolVarP(&f.help, "help", "h", false, "show help")

	fs.Usage = func() { printServeUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}

	f.set = fs.Changed
	return f, nil
}

// mergeFlags applies explicitly set flags on top of cfg.
func mergeFlags(f *serveFlags, cfg *config.Config) {
	if f.set("port") {
		cfg.Server.Port = f.port
	}
	if f.set("workers") {
		cfg.Pool.MaxConcurrentJobs = f.workers
	}
	if f.set("queue-depth") {
		cfg.Pool.MaxQueueDepth = f.queueDepth
	}
	if f.set("timeout") {
		cfg.Renderer.TimeoutSeconds = f.timeout
	}
	if f.set("renderer") {
		cfg.Renderer.Backend = f.renderer
	}
	if f.set("renderer-bin") {
		cfg.Renderer.Binary = f.rendererBin
	}
	if f.set("temp-dir") {
		cfg.Workspace.Dir = f.tempDir
	}
	if f.set("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if f.set("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if f.common.verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Format = config.LogFormatConsole
	}
}
