// Package middleware wraps the dispatch of inbound JSON-RPC messages with
// cross-cutting behavior: logging, panic recovery, request metrics and
// trace ids.
package middleware

import (
	"github.com/gossip-lsp/lexis/jsonrpc"
)

// Handler is the dispatch function being wrapped.
type Handler = jsonrpc.Handler

// Middleware wraps a Handler to add cross-cutting behavior.
type Middleware func(Handler) Handler

// Chain composes middleware. The first one is the outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
