package lexis

import (
	"encoding/json"

	"github.com/gossip-lsp/lexis/jsonrpc"
)

// RawHandler processes a JSON-RPC request or notification with raw params.
// For notifications the result is discarded.
type RawHandler func(ctx *Context, params json.RawMessage) (interface{}, error)

// Request adapts a typed request handler. Params that do not decode into P
// are rejected with InvalidParams.
func Request[P, R any](fn func(ctx *Context, params *P) (R, error)) RawHandler {
	return func(ctx *Context, raw json.RawMessage) (interface{}, error) {
		p, err := decodeParams[P](raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, p)
	}
}

// Notification adapts a typed notification handler.
func Notification[P any](fn func(ctx *Context, params *P) error) RawHandler {
	return func(ctx *Context, raw json.RawMessage) (interface{}, error) {
		p, err := decodeParams[P](raw)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, p)
	}
}

func decodeParams[P any](raw json.RawMessage) (*P, error) {
	p := new(P)
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
	}
	return p, nil
}
