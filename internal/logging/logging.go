// Package logging builds the structured loggers and the error sink handed to
// the server at startup.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Bitlatte/blogserve/internal/content"
)

// Env is the logging context passed explicitly to the components that log.
type Env struct {
	Logger *slog.Logger
	Errors ErrorSink
}

// ErrorSink receives every error the request handlers recover from.
type ErrorSink interface {
	Report(ctx context.Context, err error)
}

// New returns an Env writing to w at the given level. format is "text" or
// "json".
func New(w io.Writer, level, format string) (Env, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return Env{}, err
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return Env{}, fmt.Errorf("unknown log format %q", format)
	}

	logger := slog.New(handler)
	return Env{Logger: logger, Errors: NewSink(logger)}, nil
}

// Discard returns an Env that drops everything.
func Discard() Env {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return Env{Logger: logger, Errors: NewSink(logger)}
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Sink logs error records through a slog.Logger. Unexpected errors are
// logged at error level, the recoverable kinds at warn.
type Sink struct {
	logger *slog.Logger
}

// NewSink returns a Sink writing to logger.
func NewSink(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

// Report logs err with its kind and attributes. A nil err is ignored.
func (s *Sink) Report(ctx context.Context, err error) {
	ce := content.AsError(err)
	if ce == nil {
		return
	}

	level := slog.LevelWarn
	if ce.Kind() == content.KindUnexpected {
		level = slog.LevelError
	}

	attrs := append([]slog.Attr{slog.String("kind", ce.Kind().String())}, ce.LogAttrs()...)
	s.logger.LogAttrs(ctx, level, "request failed", attrs...)
}
