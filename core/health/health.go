package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/relay/core/handler"
	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/response"
)

// Liveness indicates the process is running. It always answers "ALIVE".
func Liveness(*http.Request) handler.Response {
	return response.String("ALIVE")
}

// NoContent answers 204 without a body, for high-frequency checks.
func NoContent(*http.Request) handler.Response {
	return response.NoContent()
}

// Readiness runs the checks in order and answers "READY", or 503 Service
// Unavailable at the first failure.
func Readiness(log *slog.Logger, checks ...func(context.Context) error) func(*http.Request) handler.Response {
	return func(r *http.Request) handler.Response {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed",
					logger.Component("health"),
					logger.Error(err),
				)
				return response.Error(response.ErrServiceUnavailable)
			}
		}
		return response.String("READY")
	}
}
