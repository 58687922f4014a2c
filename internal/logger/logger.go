// Package logger provides structured logging for ptsites.
//
// All packages log through the package-level functions so the CLI can switch
// level and format once at startup. Site credentials are masked whatever the
// handler.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	Init(Options{})
}

// Options configures the logger.
type Options struct {
	Debug  bool      // enable debug level
	Quiet  bool      // only errors
	JSON   bool      // JSON lines instead of key=value text
	Output io.Writer // default stderr
}

// Init replaces the process logger.
func Init(opts Options) {
	level := slog.LevelInfo
	switch {
	case opts.Quiet:
		level = slog.LevelError
	case opts.Debug:
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}

	var handler slog.Handler = slog.NewTextHandler(out, handlerOpts)
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	current.Store(slog.New(handler))
}

// secretKeys are attribute keys whose values never reach the log.
var secretKeys = []string{"cookie", "api_key", "apikey", "passkey", "authorization", "token"}

const masked = "[redacted]"

func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	key := strings.ToLower(a.Key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) && a.Value.String() != "" {
			return slog.String(a.Key, masked)
		}
	}
	return a
}

// Debug logs a debug message.
func Debug(msg string, args ...any) { current.Load().Debug(msg, args...) }

// Info logs an info message.
func Info(msg string, args ...any) { current.Load().Info(msg, args...) }

// Warn logs a warning message.
func Warn(msg string, args ...any) { current.Load().Warn(msg, args...) }

// Error logs an error message.
func Error(msg string, args ...any) { current.Load().Error(msg, args...) }

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return current.Load().With(args...)
}

// ForSite returns a logger tagged with the site and the handler serving it.
func ForSite(site, handler string) *slog.Logger {
	return With("site", site, "handler", handler)
}
