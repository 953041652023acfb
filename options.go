package url2pdf

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Scheduler or Converter.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	if l == nil {
		panic("url2pdf: WithLogger logger must not be nil")
	}
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records scheduler activity on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// withClock overrides time.Now (tests).
func withClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
