package middleware

import (
	"context"
	"runtime/debug"

	"github.com/gossip-lsp/lexis/fault"
	"github.com/gossip-lsp/lexis/jsonrpc"
)

// Recovery turns a handler panic into an InternalError carrying the id
// under which the panic was reported.
func Recovery(reporter fault.Reporter) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, method string, params jsonrpc.RawMessage) (result interface{}, err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				p := &fault.Panic{Value: r, Stack: debug.Stack()}
				id := reporter.Report(ctx, p)
				result = nil
				err = &jsonrpc.Error{
					Code:    jsonrpc.CodeInternalError,
					Message: method + ": " + p.Error(),
					Data:    map[string]string{"faultId": id},
				}
			}()
			return next(ctx, method, params)
		}
	}
}
