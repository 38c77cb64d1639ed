// Package jsonrpc implements a bidirectional JSON-RPC 2.0 connection over
// Content-Length framed streams, as specified by the LSP base protocol.
//
// A Conn is assembled from a StreamReader (frames in), a StreamWriter
// (frames out), a Client (outbound calls) and a dispatcher that runs the
// Handler for every inbound request and notification. Requests run
// concurrently; notifications run one at a time in arrival order.
package jsonrpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/gossip-lsp/lexis/fault"
)

// Handler processes an incoming JSON-RPC request or notification. For
// notifications the result is discarded.
type Handler func(ctx context.Context, method string, params RawMessage) (result interface{}, err error)

// Conn is a bidirectional JSON-RPC 2.0 connection.
type Conn struct {
	reader  *StreamReader
	writer  *StreamWriter
	client  *Client
	handler Handler
	logger  *slog.Logger
	faults  fault.Reporter

	closer    io.Closer
	closeOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	onClose []func()

	// Notifications waiting for the dispatch worker, in arrival order.
	qmu    sync.Mutex
	queue  []*Notification
	queued chan struct{}
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(l *slog.Logger) ConnOption {
	return func(c *Conn) { c.logger = l }
}

// WithFaultReporter sets where unexpected handler failures are reported.
func WithFaultReporter(r fault.Reporter) ConnOption {
	return func(c *Conn) { c.faults = r }
}

// NewConn creates a connection over rw dispatching inbound messages to
// handler. If rw is also an io.Closer it is closed with the connection.
func NewConn(rw io.ReadWriter, handler Handler, opts ...ConnOption) *Conn {
	c := &Conn{
		handler: handler,
		logger:  slog.Default(),
		done:    make(chan struct{}),
		queued:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.faults == nil {
		c.faults = fault.NewLogReporter(c.logger)
	}
	if closer, ok := rw.(io.Closer); ok {
		c.closer = closer
	}

	c.reader = NewStreamReader(rw, WithReaderLogger(c.logger))
	c.writer = NewStreamWriter(rw, WithWriterLogger(c.logger))
	c.client = NewClient(c.reader, c.writer)
	return c
}

// Client returns the outbound side of the connection.
func (c *Conn) Client() *Client { return c.client }

// OnClose registers fn to run once after the inbound stream ended.
func (c *Conn) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

// Done is closed when the connection has shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Run reads and dispatches messages until the stream ends. Each request
// is handled on its own goroutine. Notifications are handled by a single
// worker in the order they arrived, so a handler sees the effects of every
// notification sent before it.
func (c *Conn) Run(ctx context.Context) error {
	go c.dispatchNotifications(ctx)

	unsubscribe := c.reader.Subscribe(func(f *Frame) {
		switch m := f.Body.(type) {
		case *Request:
			go c.handleRequest(ctx, m)
		case *Notification:
			c.enqueue(m)
		case *SuccessResponse, *ErrorResponse:
			// Routed by the client's one-shot subscriptions.
		}
	})
	defer unsubscribe()

	err := c.reader.Run(ctx)
	c.Close()
	return err
}

// enqueue never blocks the reader: a notification handler may itself wait
// for a response that only the reader can deliver.
func (c *Conn) enqueue(n *Notification) {
	c.qmu.Lock()
	c.queue = append(c.queue, n)
	c.qmu.Unlock()
	select {
	case c.queued <- struct{}{}:
	default:
	}
}

func (c *Conn) dispatchNotifications(ctx context.Context) {
	for {
		select {
		case <-c.queued:
		case <-c.done:
			return
		}
		for {
			c.qmu.Lock()
			if len(c.queue) == 0 {
				c.qmu.Unlock()
				break
			}
			n := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.qmu.Unlock()

			c.handleNotification(ctx, n)
		}
	}
}

// Call sends a request and decodes the result into result.
func (c *Conn) Call(ctx context.Context, method string, params, result interface{}) error {
	return c.client.Request(ctx, method, params, result)
}

// Notify sends a notification (no response expected).
func (c *Conn) Notify(ctx context.Context, method string, params interface{}) error {
	return c.client.Notify(ctx, method, params)
}

// Close terminates the connection: pending calls are rejected, the close
// hooks run and the underlying stream is closed.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.client.Close()
		c.writer.Close()

		c.mu.Lock()
		hooks := c.onClose
		c.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}

		if c.closer != nil {
			_ = c.closer.Close()
		}
		close(c.done)
	})
}

func (c *Conn) handleRequest(ctx context.Context, req *Request) {
	result, err := c.invoke(ctx, req.Method, req.Params)

	var resp Message
	if err != nil {
		resp = NewResponse(req.ID, nil, c.toProtocolError(ctx, req.Method, err))
	} else {
		resp = NewResponse(req.ID, result, nil)
	}

	if err := <-c.writer.Enqueue(NewFrame(resp)); err != nil {
		c.logger.Warn("failed to send response", "method", req.Method, "id", req.ID.String(), "error", err)
	}
}

func (c *Conn) handleNotification(ctx context.Context, n *Notification) {
	_, err := c.invoke(ctx, n.Method, n.Params)
	if err == nil {
		return
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case CodeMethodNotFound, CodeServerNotInitialized:
			c.logger.Debug("dropped notification", "method", n.Method, "reason", rpcErr.Message)
			return
		}
	}
	c.logger.Error("notification failed", "method", n.Method, "error", err)
	if !errors.As(err, &rpcErr) {
		c.faults.Report(ctx, err)
	}
}

// invoke runs the handler, turning a panic into a *fault.Panic error.
func (c *Conn) invoke(ctx context.Context, method string, params RawMessage) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &fault.Panic{Value: r, Stack: debug.Stack()}
		}
	}()
	if c.handler == nil {
		return nil, Errorf(CodeMethodNotFound, "method not found: %s", method)
	}
	return c.handler(ctx, method, params)
}

// toProtocolError passes protocol errors through verbatim. Anything else is
// reported as a fault and only its description reaches the peer.
func (c *Conn) toProtocolError(ctx context.Context, method string, err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	id := c.faults.Report(ctx, err)
	c.logger.Debug("request fault", "method", method, "fault_id", id)
	return &Error{
		Code:    CodeInternalError,
		Message: err.Error(),
		Data:    map[string]string{"faultId": id},
	}
}
