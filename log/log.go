// Package log configures the zerolog logger used across the gateway.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger and owns any files opened for it
type Logger struct {
	zerolog.Logger
	closers []io.Closer
}

type options struct {
	out  io.Writer
	file string
}

// Option customizes New
type Option func(*options)

// WithOutput replaces stderr as the console destination
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithFile additionally writes JSON lines to path
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// New builds a logger at level. Unknown levels fall back to info. When the log file
// cannot be opened the console logger is still returned along with the error.
func New(level string, pretty bool, opts ...Option) (*Logger, error) {
	o := options{out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	console := o.out
	if pretty {
		console = zerolog.ConsoleWriter{Out: o.out, TimeFormat: time.RFC3339}
	}

	l := &Logger{}
	writers := []io.Writer{console}

	var fileErr error
	if o.file != "" {
		f, err := os.OpenFile(o.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fileErr = fmt.Errorf("open log file %s: %w", o.file, err)
		} else {
			writers = append(writers, f)
			l.closers = append(l.closers, f)
		}
	}

	var w io.Writer = console
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	l.Logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return l, fileErr
}

// Close releases files opened by WithFile
func (l *Logger) Close() error {
	var first error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.closers = nil
	return first
}
