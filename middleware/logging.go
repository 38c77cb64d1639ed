package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gossip-lsp/lexis/jsonrpc"
)

// Logging logs each dispatched method with its duration. Failures are
// logged at error level except for cancelled requests, unknown methods and
// messages arriving before initialize.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, method string, params jsonrpc.RawMessage) (interface{}, error) {
			start := time.Now()
			result, err := next(ctx, method, params)

			attrs := []slog.Attr{
				slog.String("method", method),
				slog.Duration("duration", time.Since(start)),
			}
			level, msg := slog.LevelDebug, "request handled"
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				level, msg = slog.LevelError, "request failed"
				if quiet(err) {
					level = slog.LevelDebug
				}
			}
			if trace := TraceID(ctx); trace != "" {
				attrs = append(attrs, slog.String("trace_id", trace))
			}
			logger.LogAttrs(ctx, level, msg, attrs...)
			return result, err
		}
	}
}

func quiet(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case jsonrpc.CodeMethodNotFound, jsonrpc.CodeRequestCancelled, jsonrpc.CodeServerNotInitialized:
			return true
		}
	}
	return false
}
