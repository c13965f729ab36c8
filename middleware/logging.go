// Package middleware provides decorators and HTTP middleware commonly
// layered on vovk controllers: call logging, Prometheus metrics, guards and
// CORS.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/finom/vovk"
)

// Logging returns a decorator that logs each call of the method using slog.
// It logs the start and end of each call, including duration and error status.
func Logging(logger *slog.Logger) vovk.Decorator {
	return vovk.Use(LoggingLayer(logger))
}

// LoggingLayer is the layer behind Logging, for callers composing their own
// decorators.
func LoggingLayer(logger *slog.Logger) vovk.Layer {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, req *http.Request, next vovk.Next) (any, error) {
		start := time.Now()
		endpoint := endpointName(ctx)

		logger.InfoContext(ctx, "request started",
			slog.String("endpoint", endpoint),
		)

		res, err := next(ctx)
		duration := time.Since(start)

		if err != nil {
			logger.ErrorContext(ctx, "request failed",
				slog.String("endpoint", endpoint),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			)
		} else {
			logger.InfoContext(ctx, "request completed",
				slog.String("endpoint", endpoint),
				slog.Duration("duration", duration),
			)
		}

		return res, err
	}
}

// endpointName returns "Controller.method" for the route in ctx.
func endpointName(ctx context.Context) string {
	r, ok := vovk.RouteFromContext(ctx)
	if !ok {
		return "unknown"
	}
	name := r.Controller.ControllerName()
	if name == "" {
		name = r.Controller.Name()
	}
	return name + "." + r.Name
}
