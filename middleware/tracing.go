package middleware

import (
	"context"

	"github.com/gossip-lsp/lexis/fault"
	"github.com/gossip-lsp/lexis/jsonrpc"
)

type traceKey struct{}

type trace struct {
	id     string
	method string
}

// Tracing tags the context of every dispatch with a fresh ULID and the
// method name.
func Tracing() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, method string, params jsonrpc.RawMessage) (interface{}, error) {
			ctx = context.WithValue(ctx, traceKey{}, trace{id: fault.NewID(), method: method})
			return next(ctx, method, params)
		}
	}
}

// TraceID returns the id set by Tracing, or "".
func TraceID(ctx context.Context) string {
	t, _ := ctx.Value(traceKey{}).(trace)
	return t.id
}

// TraceMethod returns the method set by Tracing, or "".
func TraceMethod(ctx context.Context) string {
	t, _ := ctx.Value(traceKey{}).(trace)
	return t.method
}
