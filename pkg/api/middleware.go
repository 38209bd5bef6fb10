package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/spendlens/pkg/kit"
)

// errInternal is the public face of an endpoint panic. The panic value stays
// in the logs.
var errInternal = errors.New("internal error")

// instrument wraps an endpoint with panic recovery and a per-call log line.
// Both transports go through it: HTTP handlers and MCP tools dispatch to the
// same instrumented endpoints.
func instrument(logger *slog.Logger, name string) kit.Middleware {
	return kit.Chain(recoverPanics(logger, name), logCalls(logger, name))
}

func logCalls(logger *slog.Logger, name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, request)
			logger.Debug("endpoint call",
				"endpoint", name,
				"transport", kit.GetTransport(ctx),
				"request_id", kit.GetRequestID(ctx),
				"duration", time.Since(start),
				"error", err,
			)
			return resp, err
		}
	}
}

func recoverPanics(logger *slog.Logger, name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, request any) (resp any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("endpoint panic", "endpoint", name, "panic", r)
					resp, err = nil, errInternal
				}
			}()
			return next(ctx, request)
		}
	}
}
