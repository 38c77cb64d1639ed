package lexis

import (
	"context"
	"log/slog"

	"github.com/gossip-lsp/lexis/document"
	"github.com/gossip-lsp/lexis/index"
	"github.com/gossip-lsp/lexis/protocol"
)

// Context wraps context.Context with convenient accessors for LSP services.
type Context struct {
	context.Context

	Client *ClientProxy
	server *Server
}

func newContext(ctx context.Context, s *Server) *Context {
	return &Context{
		Context: ctx,
		Client:  s.client,
		server:  s,
	}
}

// ServerInfo returns the server's name and version.
func (c *Context) ServerInfo() protocol.ServerInfo {
	return protocol.ServerInfo{
		Name:    c.server.name,
		Version: c.server.version,
	}
}

// Server returns the underlying Server.
func (c *Context) Server() *Server {
	return c.server
}

// Logger returns the server's logger.
func (c *Context) Logger() *slog.Logger {
	return c.server.logger
}

// Settings returns the settings currently in effect.
func (c *Context) Settings() *Settings {
	return c.server.settings.Get()
}

// RootURI returns the workspace root sent with initialize, or "".
func (c *Context) RootURI() string {
	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	return c.server.rootURI
}

// ClientCapabilities returns the capabilities sent by the client during initialization.
func (c *Context) ClientCapabilities() protocol.ClientCapabilities {
	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	return c.server.clientCaps
}

// Documents returns the document loader. It is nil before initialize.
func (c *Context) Documents() *document.Loader {
	return c.server.Documents()
}

// Index returns the global index: stubs, project sources and
// dependencies. It is nil before initialize.
func (c *Context) Index() *index.GlobalIndex {
	return c.server.Index()
}
