package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/dmitrymomot/relay/core/logger"
)

// LoggingConfig configures the request logging middleware.
type LoggingConfig struct {
	// Skip excludes requests from logging, e.g. health checks.
	Skip func(r *http.Request) bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// LogLevel for completed requests (default: info).
	LogLevel slog.Level

	// LogHeaders adds request headers, with SensitiveHeaders redacted.
	LogHeaders bool

	// SensitiveHeaders defaults to common auth headers.
	SensitiveHeaders []string

	// SlowRequestThreshold logs slower requests at warning level
	// (default: 5s). Streams are expected to be slow; set it high for
	// streaming routes or skip them.
	SlowRequestThreshold time.Duration

	// Component name for structured logging.
	Component string
}

// Logging logs every request once it has been served.
func Logging(log *slog.Logger) func(http.Handler) http.Handler {
	return LoggingWithConfig(LoggingConfig{Logger: log})
}

// LoggingWithConfig is Logging with custom settings.
func LoggingWithConfig(cfg LoggingConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SensitiveHeaders == nil {
		cfg.SensitiveHeaders = []string{
			"Authorization",
			"Cookie",
			"X-Api-Key",
			"X-Auth-Token",
		}
	}
	if cfg.SlowRequestThreshold <= 0 {
		cfg.SlowRequestThreshold = 5 * time.Second
	}
	if cfg.Component == "" {
		cfg.Component = "http"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rw, r)
			elapsed := time.Since(start)

			requestID, _ := GetRequestID(r.Context())
			attrs := []slog.Attr{
				logger.Component(cfg.Component),
				logger.RequestID(requestID),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
				logger.Status(rw.Status()),
				logger.BytesOut(rw.bytes),
				logger.Duration(elapsed),
			}
			if rw.hijacked {
				attrs = append(attrs, slog.Bool("hijacked", true))
			}
			if cfg.LogHeaders {
				attrs = append(attrs, headerAttrs(r.Header, cfg.SensitiveHeaders))
			}

			level := cfg.LogLevel
			msg := "request completed"
			switch {
			case rw.Status() >= http.StatusInternalServerError:
				level, msg = slog.LevelError, "request failed"
			case elapsed > cfg.SlowRequestThreshold:
				level, msg = slog.LevelWarn, "slow request"
			}
			cfg.Logger.LogAttrs(r.Context(), level, msg, attrs...)
		})
	}
}

func headerAttrs(h http.Header, sensitive []string) slog.Attr {
	attrs := make([]slog.Attr, 0, len(h))
	for name, values := range h {
		if slices.ContainsFunc(sensitive, func(s string) bool { return http.CanonicalHeaderKey(s) == name }) {
			attrs = append(attrs, slog.String(name, "[REDACTED]"))
			continue
		}
		attrs = append(attrs, slog.Any(name, values))
	}
	return logger.Group("headers", attrs...)
}
