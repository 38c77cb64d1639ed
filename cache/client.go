package cache

import (
	"context"
	"fmt"

	"github.com/gossip-lsp/lexis/protocol"
)

// Caller sends a request to the editor and decodes its result.
type Caller interface {
	Call(ctx context.Context, method string, params, result interface{}) error
}

// Client keeps the cache on the editor side through xcache/get and
// xcache/set, for clients that announce xcacheProvider.
type Client struct {
	caller Caller
}

// NewClient returns a cache backed by the editor.
func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	var value []byte
	if err := c.caller.Call(ctx, protocol.MethodXCacheGet, protocol.CacheGetParams{Key: key}, &value); err != nil {
		return nil, false, fmt.Errorf("xcache/get %s: %w", key, err)
	}
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := c.caller.Call(ctx, protocol.MethodXCacheSet, protocol.CacheSetParams{Key: key, Value: value}, nil); err != nil {
		return fmt.Errorf("xcache/set %s: %w", key, err)
	}
	return nil
}
