package lexis

import (
	"context"
	"fmt"

	"github.com/gossip-lsp/lexis/jsonrpc"
	mw "github.com/gossip-lsp/lexis/middleware"
	"github.com/gossip-lsp/lexis/transport"
)

// Serve runs the server until the stream ends or ctx is done. If no
// ServeOption is provided, stdio is used. A server can be served once.
func Serve(ctx context.Context, s *Server, opts ...ServeOption) error {
	cfg := &serveConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.transport == nil && cfg.spec != "" {
		t, err := transport.Open(ctx, cfg.spec, s.logger)
		if err != nil {
			return fmt.Errorf("creating transport: %w", err)
		}
		cfg.transport = t
	}
	if cfg.transport == nil {
		cfg.transport = transport.Stdio()
	}

	if prev, ok := s.transition(StateRunning, StateCreated); !ok {
		return fmt.Errorf("server is %s", prev)
	}

	chain := mw.Chain(append([]mw.Middleware{
		mw.Recovery(s.faults),
		mw.Tracing(),
		mw.Logging(s.logger),
		mw.Telemetry(s.metrics),
	}, s.middlewares...)...)

	conn := jsonrpc.NewConn(cfg.transport, chain(s.dispatch),
		jsonrpc.WithLogger(s.logger),
		jsonrpc.WithFaultReporter(s.faults),
	)
	s.conn = conn
	s.client = newClientProxy(conn)
	s.ctx = ctx
	conn.OnClose(s.streamClosed)

	s.logger.Info("lexis server starting",
		"name", s.name,
		"version", s.version,
	)

	if err := conn.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
