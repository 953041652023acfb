package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	url2pdf "github.com/alnah/go-url2pdf"
	"github.com/alnah/go-url2pdf/internal/config"
	"github.com/alnah/go-url2pdf/internal/hints"
	"github.com/alnah/go-url2pdf/internal/server"
	"github.com/alnah/go-url2pdf/internal/yamlutil"
)

// readHeaderTimeout bounds slow clients before a handler runs.
const readHeaderTimeout = 10 * time.Second

// runServe starts the HTTP service and blocks until ctx is canceled,
// then drains in-flight work. A nil return means a clean shutdown.
func runServe(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	if flags.help {
		printServeUsage(env.Stdout)
		return nil
	}

	cfg, err := resolveConfig(flags, env.Stderr)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return fmt.Errorf("%w%s", err, hints.ForConfigNotFound(config.SearchPaths(flags.common.config)))
		}
		return err
	}

	if flags.printConfig {
		out, err := yamlutil.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = env.Stdout.Write(out)
		return err
	}

	logger, err := newLogger(cfg.Log, env.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	_, _ = maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))

	ws, err := url2pdf.NewWorkspace(cfg.Workspace.Dir)
	if err != nil {
		return fmt.Errorf("%w: %v%s", ErrWorkspace, err, hints.ForWorkspace())
	}
	defer func() {
		if err := ws.Close(); err != nil {
			logger.Warn("removing run directory failed", zap.String("dir", ws.Dir()), zap.Error(err))
		}
	}()
	if n, err := ws.Sweep(); err != nil {
		logger.Warn("sweeping workspace failed", zap.String("dir", ws.Root()), zap.Error(err))
	} else if n > 0 {
		logger.Info("removed stale run directories", zap.String("dir", ws.Root()), zap.Int("count", n))
	}

	renderer, err := buildRenderer(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := url2pdf.NewMetrics(reg)
	if err != nil {
		_ = renderer.Close()
		return err
	}

	conv, err := url2pdf.NewConverter(renderer, ws, url2pdf.SchedulerConfig{
		Workers:    cfg.Pool.MaxConcurrentJobs,
		QueueDepth: cfg.Pool.MaxQueueDepth,
		Timeout:    cfg.Timeout(),
	}, url2pdf.WithLogger(logger), url2pdf.WithMetrics(metrics))
	if err != nil {
		_ = renderer.Close()
		return err
	}

	ln, err := env.Listen("tcp", cfg.Addr())
	if err != nil {
		_ = renderer.Close()
		return fmt.Errorf("%w on %s: %v%s", ErrListen, cfg.Addr(), err, hints.ForListen())
	}

	conv.Start()
	sc := conv.Scheduler().Config()
	logger.Info("url2pdf listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("version", Version),
		zap.String("renderer", cfg.Renderer.Backend),
		zap.Int("workers", sc.Workers),
		zap.Int("queue_depth", sc.QueueDepth),
		zap.Duration("timeout", sc.Timeout),
	)

	srv := &http.Server{
		Handler: server.New(conv, server.Config{
			RetryAfter: time.Duration(cfg.Server.RetryAfterSeconds) * time.Second,
			Gatherer:   reg,
			Logger:     logger,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(logger),
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	if env.Ready != nil {
		env.Ready(ln.Addr())
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout()))
	case err := <-serveErr:
		runErr = fmt.Errorf("serving: %w", err)
	}

	shutdown(srv, conv, cfg.ShutdownTimeout(), logger)
	return runErr
}

// shutdown stops accepting requests, lets in-flight conversions finish
// within timeout, then cancels whatever is left.
func shutdown(srv *http.Server, conv *url2pdf.Converter, timeout time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	httpErr := srv.Shutdown(ctx)
	if httpErr != nil {
		logger.Warn("http drain incomplete", zap.Error(httpErr))
	}

	// Cancels remaining jobs if ctx already expired, which unblocks their
	// handlers.
	if err := conv.Shutdown(ctx); err != nil {
		logger.Warn("converter drain incomplete", zap.Error(err))
	}
	if httpErr != nil {
		_ = srv.Close()
	}

	logger.Info("shutdown complete")
}

// buildRenderer creates the configured renderer backend.
func buildRenderer(cfg *config.Config) (url2pdf.Renderer, error) {
	switch cfg.Renderer.Backend {
	case config.BackendChrome:
		opts := []url2pdf.ChromeOption{url2pdf.WithNoSandbox(cfg.Renderer.NoSandbox)}
		if cfg.Renderer.BrowserBin != "" {
			opts = append(opts, url2pdf.WithBrowserBin(cfg.Renderer.BrowserBin))
		}
		return url2pdf.NewChromeRenderer(url2pdf.PageSettings{
			Size:        cfg.Renderer.Page.Size,
			Orientation: cfg.Renderer.Page.Orientation,
			Margin:      cfg.Renderer.Page.Margin,
		}, opts...)
	default:
		r, err := url2pdf.NewProcessRenderer(cfg.Renderer.Binary, cfg.Renderer.Args, cfg.KillGrace())
		if err != nil {
			if errors.Is(err, url2pdf.ErrRendererNotFound) {
				return nil, fmt.Errorf("%w%s", err, hints.ForRendererNotFound(cfg.Renderer.Binary))
			}
			return nil, err
		}
		return r, nil
	}
}
