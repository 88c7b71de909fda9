package bootstrap

import (
	"io"
	"time"

	"github.com/kbukum/lexstream/logger"
)

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout time.Duration
	summary         io.Writer
}

// WithLogger replaces the logger that would be built from the config's
// logging section.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithGracefulTimeout bounds shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) { o.gracefulTimeout = d }
}

// WithSummary writes the startup summary to w. Nil suppresses it, which
// one-shot commands use to keep their output clean.
func WithSummary(w io.Writer) Option {
	return func(o *appOptions) { o.summary = w }
}
