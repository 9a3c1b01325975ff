package kit

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left-to-right: the first runs outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging returns a middleware that logs every call with its duration and
// outcome.
func Logging(logger *slog.Logger, name string) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			if err != nil {
				logger.Warn("tool failed", "tool", name, "session", GetSessionID(ctx), "duration", time.Since(start), "error", err)
			} else {
				logger.Debug("tool ok", "tool", name, "session", GetSessionID(ctx), "duration", time.Since(start))
			}
			return resp, err
		}
	}
}

type contextKey string

// SessionIDKey carries the control-session id of the connection that issued
// the call.
const SessionIDKey contextKey = "kit_session_id"

// WithSessionID attaches a control-session id to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// GetSessionID returns the control-session id, or "".
func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}
