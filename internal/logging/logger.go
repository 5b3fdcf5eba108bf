// Package logging provides the zerolog-based application logger.
//
// Call Init once from main. Before that, a JSON logger at info level writes to stderr.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is one of trace, debug, info, warn, error. Defaults to info.
	Level string
	// Format is json or console. Defaults to json.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(Config{})
}

// Init configures the global logger. Safe to call more than once.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.Kitchen}
	}

	log = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug starts a debug level message.
func Debug() *zerolog.Event {
	l := Logger()
	return l.Debug()
}

// Info starts an info level message.
func Info() *zerolog.Event {
	l := Logger()
	return l.Info()
}

// Warn starts a warn level message.
func Warn() *zerolog.Event {
	l := Logger()
	return l.Warn()
}

// Error starts an error level message.
func Error() *zerolog.Event {
	l := Logger()
	return l.Error()
}

type ctxKey struct{}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored on ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ctx returns the global logger with the request id from ctx attached.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger()
	if id := RequestID(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}
