package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Client issues outbound requests and notifications and correlates
// responses by id.
type Client struct {
	reader *StreamReader
	writer *StreamWriter

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[string]chan callResult
	closed  bool
}

type callResult struct {
	msg Message
	err error
}

// NewClient creates a client reading responses from r and writing through w.
func NewClient(r *StreamReader, w *StreamWriter) *Client {
	return &Client{
		reader:  r,
		writer:  w,
		pending: make(map[string]chan callResult),
	}
}

// Request sends method with params and waits for the matching response.
// On success the result is decoded into result (if non-nil); an error
// response is returned as *Error.
func (c *Client) Request(ctx context.Context, method string, params, result interface{}) error {
	paramsData, err := marshalParams(params)
	if err != nil {
		return err
	}

	id := IntID(c.nextID.Add(1))
	key := id.String()
	ch := make(chan callResult, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	c.pending[key] = ch
	c.mu.Unlock()

	// Listen before writing so a fast response cannot be missed.
	cancel := c.reader.SubscribeOnce(func(f *Frame) bool {
		return responseID(f.Body) == key
	}, func(f *Frame) {
		c.settle(key, callResult{msg: f.Body})
	})

	if err := c.writer.Write(ctx, NewFrame(&Request{ID: id, Method: method, Params: paramsData})); err != nil {
		cancel()
		c.abandon(key)
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case res := <-ch:
		cancel()
		if res.err != nil {
			return res.err
		}
		switch m := res.msg.(type) {
		case *ErrorResponse:
			return m.Error
		case *SuccessResponse:
			if result == nil || len(m.Result) == 0 {
				return nil
			}
			if err := json.Unmarshal(m.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
			return nil
		default:
			return fmt.Errorf("unexpected response %T", m)
		}
	case <-ctx.Done():
		cancel()
		c.abandon(key)
		return ctx.Err()
	}
}

// Notify sends a notification. It returns once the writer accepted all bytes.
func (c *Client) Notify(ctx context.Context, method string, params interface{}) error {
	paramsData, err := marshalParams(params)
	if err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrConnectionClosed
	}
	return c.writer.Write(ctx, NewFrame(&Notification{Method: method, Params: paramsData}))
}

// Close rejects every pending call with ErrConnectionClosed.
func (c *Client) Close() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan callResult)
	c.closed = true
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- callResult{err: ErrConnectionClosed}
	}
}

// Pending reports the number of calls awaiting a response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) settle(key string, res callResult) {
	c.mu.Lock()
	ch, ok := c.pending[key]
	delete(c.pending, key)
	c.mu.Unlock()
	if ok {
		ch <- res
	}
}

func (c *Client) abandon(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	c.mu.Unlock()
}

func responseID(msg Message) string {
	switch m := msg.(type) {
	case *SuccessResponse:
		return m.ID.String()
	case *ErrorResponse:
		return m.ID.String()
	default:
		return ""
	}
}

func marshalParams(v interface{}) (RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
