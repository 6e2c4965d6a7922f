package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/dailycart-backend/pkg/env"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures the structured logger. Level is parsed with ParseLevel,
// so an empty or unknown value means info. Format falls back to
// DAILYCART_LOG_FORMAT, then LOG_FORMAT, then JSON.
type Options struct {
	ServiceName string
	Level       string
	WarnStack   bool
	Format      string
	Output      io.Writer
}

// Logger threads request, order and actor fields through context so each
// service layer logs with the identifiers of the call it is serving.
type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type scopedKey struct{}

func New(opts Options) *Logger {
	level := ParseLevel(opts.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	root := zerolog.New(writerFor(opts)).
		Level(level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()

	return &Logger{root: root, warnStack: opts.WarnStack}
}

func writerFor(opts Options) io.Writer {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := opts.Format
	if format == "" {
		format = env.Get("DAILYCART_LOG_FORMAT", env.Get("LOG_FORMAT", FormatJSON))
	}
	if strings.EqualFold(format, FormatConsole) {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	return out
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) scoped(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(scopedKey{}).(zerolog.Logger); ok {
			return scoped
		}
	}
	return l.root
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return context.WithValue(ctx, scopedKey{}, l.scoped(ctx).With().Interface(key, value).Logger())
}

// WithFields attaches every field in key order so repeated log lines stay diffable.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	builder := l.scoped(ctx).With()
	for _, k := range keys {
		builder = builder.Interface(k, fields[k])
	}
	return context.WithValue(ctx, scopedKey{}, builder.Logger())
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.WithField(ctx, "user_id", userID)
}

func (l *Logger) WithOrderID(ctx context.Context, orderID string) context.Context {
	return l.WithField(ctx, "order_id", orderID)
}

func (l *Logger) WithVariantID(ctx context.Context, variantID string) context.Context {
	return l.WithField(ctx, "variant_id", variantID)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, "actor_role", role)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	entry := l.scoped(ctx)
	entry.Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	entry := l.scoped(ctx)
	entry.Info().Msg(msg)
}

// Warn includes a stack only when WarnStack is set.
func (l *Logger) Warn(ctx context.Context, msg string) {
	entry := l.scoped(ctx)
	event := entry.Warn()
	if l.warnStack {
		event = event.Str("stack", stack())
	}
	event.Msg(msg)
}

// Error always includes a stack.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	entry := l.scoped(ctx)
	entry.Error().Err(err).Str("stack", stack()).Msg(msg)
}

func stack() string {
	return strings.TrimSpace(string(debug.Stack()))
}
