package lexis

import (
	"context"

	"github.com/gossip-lsp/lexis/jsonrpc"
	"github.com/gossip-lsp/lexis/protocol"
)

// ClientProxy sends requests and notifications from server to client. It
// satisfies the Caller interfaces of the document, finder and cache
// packages, so the editor can serve content, file lists and cache entries.
type ClientProxy struct {
	conn *jsonrpc.Conn
}

func newClientProxy(conn *jsonrpc.Conn) *ClientProxy {
	return &ClientProxy{conn: conn}
}

// Call sends a request and decodes the response into result.
func (c *ClientProxy) Call(ctx context.Context, method string, params, result interface{}) error {
	return c.conn.Call(ctx, method, params, result)
}

// Notify sends a notification.
func (c *ClientProxy) Notify(ctx context.Context, method string, params interface{}) error {
	return c.conn.Notify(ctx, method, params)
}

// PublishDiagnostics sends diagnostics for a document to the client.
func (c *ClientProxy) PublishDiagnostics(ctx context.Context, params *protocol.PublishDiagnosticsParams) error {
	if params.Diagnostics == nil {
		params.Diagnostics = []protocol.Diagnostic{}
	}
	return c.conn.Notify(ctx, protocol.MethodPublishDiagnostics, params)
}

// LogMessage sends a log message to the client.
func (c *ClientProxy) LogMessage(ctx context.Context, typ protocol.MessageType, message string) error {
	return c.conn.Notify(ctx, protocol.MethodLogMessage, &protocol.LogMessageParams{
		Type:    typ,
		Message: message,
	})
}
