// Package logadapters implements circulation.Logger and circulation.ContextualLogger with zerolog,
// for processes that write logs to stdout instead of exporting them.
package logadapters

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ErrUnknownFormat is returned for a format other than FormatJSON or FormatConsole.
var ErrUnknownFormat = errors.New("unknown log format")

// ZerologLogger writes key-value logs with zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a logger writing to out. Level takes zerolog level names
// and falls back to info when empty.
func NewZerologLogger(out io.Writer, level, format string) (*ZerologLogger, error) {
	parsed := zerolog.InfoLevel

	if level != "" {
		var err error
		if parsed, err = zerolog.ParseLevel(strings.ToLower(level)); err != nil {
			return nil, err
		}
	}

	switch format {
	case "", FormatJSON:
	case FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return nil, ErrUnknownFormat
	}

	return &ZerologLogger{logger: zerolog.New(out).Level(parsed).With().Timestamp().Logger()}, nil
}

// Debug logs at debug level.
func (l *ZerologLogger) Debug(msg string, args ...any) { l.logger.Debug().Fields(args).Msg(msg) }

// Info logs at info level.
func (l *ZerologLogger) Info(msg string, args ...any) { l.logger.Info().Fields(args).Msg(msg) }

// Warn logs at warn level.
func (l *ZerologLogger) Warn(msg string, args ...any) { l.logger.Warn().Fields(args).Msg(msg) }

// Error logs at error level.
func (l *ZerologLogger) Error(msg string, args ...any) { l.logger.Error().Fields(args).Msg(msg) }

// DebugContext logs at debug level. Zerolog keeps no trace state in ctx, so ctx is only
// used for loggers attached with zerolog.Ctx.
func (l *ZerologLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.from(ctx).Debug().Fields(args).Msg(msg)
}

// InfoContext logs at info level.
func (l *ZerologLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.from(ctx).Info().Fields(args).Msg(msg)
}

// WarnContext logs at warn level.
func (l *ZerologLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.from(ctx).Warn().Fields(args).Msg(msg)
}

// ErrorContext logs at error level.
func (l *ZerologLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.from(ctx).Error().Fields(args).Msg(msg)
}

// WithContext attaches the logger to ctx so that request-scoped fields added later with
// zerolog.Ctx(ctx).UpdateContext show up in the *Context methods.
func (l *ZerologLogger) WithContext(ctx context.Context) context.Context {
	return l.logger.WithContext(ctx)
}

func (l *ZerologLogger) from(ctx context.Context) *zerolog.Logger {
	if logger := zerolog.Ctx(ctx); logger != zerolog.DefaultContextLogger && logger.GetLevel() != zerolog.Disabled {
		return logger
	}

	return &l.logger
}

var (
	_ circulation.Logger           = (*ZerologLogger)(nil)
	_ circulation.ContextualLogger = (*ZerologLogger)(nil)
)
