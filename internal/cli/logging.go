package cli

import (
	"context"
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation limits.
const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 28
)

// newLogger builds the CLI logger: a text handler on w, Debug when verbose.
// With --log-file every record, Debug included, is also written to a rotated
// file. The returned closer releases that file and is a no-op without one.
func newLogger(w io.Writer, opts *RootOptions) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	console := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if opts.LogFile == "" {
		return slog.New(console), nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   opts.LogFile,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
	}
	return slog.New(teeHandler{console, slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})}), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// teeHandler sends each record to the console and to the log file.
type teeHandler struct {
	console, file slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.console.Enabled(ctx, r.Level) {
		if err := h.console.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	if h.file.Enabled(ctx, r.Level) {
		return h.file.Handle(ctx, r)
	}
	return nil
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{h.console.WithAttrs(attrs), h.file.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{h.console.WithGroup(name), h.file.WithGroup(name)}
}
