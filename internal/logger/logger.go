// Package logger sets up structured logging and crash reporting for the CLI.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Options configures New.
type Options struct {
	// Path is the JSON log file. Empty disables file logging.
	Path string
	// Verbose also writes debug-level text logs to Console.
	Verbose bool
	Console io.Writer
	Fs      afero.Fs
}

const osAppend = os.O_CREATE | os.O_WRONLY | os.O_APPEND

// New returns a logger writing JSON lines to the log file and, when
// verbose, human-readable lines to the console. Close the returned closer
// on exit.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}

	if opts.Path != "" {
		if err := fs.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := fs.OpenFile(opts.Path, osAppend, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closer = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if opts.Verbose && opts.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Console, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closer, nil
	case 1:
		return slog.New(handlers[0]), closer, nil
	}
	return slog.New(fanout(handlers)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
