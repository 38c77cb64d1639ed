package lexis

import (
	"log/slog"

	"github.com/gossip-lsp/lexis/document"
	"github.com/gossip-lsp/lexis/fault"
	"github.com/gossip-lsp/lexis/middleware"
	"github.com/gossip-lsp/lexis/transport"
)

// Option configures a Server during construction.
type Option func(*Server)

// ServeOption configures how the server is served.
type ServeOption func(*serveConfig)

type serveConfig struct {
	transport transport.Transport
	spec      string
}

// WithStdio configures the server to communicate over stdin/stdout.
func WithStdio() ServeOption {
	return func(cfg *serveConfig) {
		cfg.transport = transport.Stdio()
	}
}

// WithTransport configures the server to use a specific transport.
func WithTransport(t transport.Transport) ServeOption {
	return func(cfg *serveConfig) {
		cfg.transport = t
	}
}

// WithTransportSpec opens the transport described by spec when serving.
// See transport.Open for the accepted forms.
func WithTransportSpec(spec string) ServeOption {
	return func(cfg *serveConfig) {
		cfg.spec = spec
	}
}

// WithLogger sets a custom slog logger on the server.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithFaultReporter sets where unexpected failures are reported. The
// default logs them.
func WithFaultReporter(r fault.Reporter) Option {
	return func(s *Server) {
		s.faults = r
	}
}

// WithAnalyzer replaces the tree-sitter Go analyzer.
func WithAnalyzer(a document.Analyzer) Option {
	return func(s *Server) {
		s.analyzer = a
	}
}

// WithSettings sets the settings used when the workspace has no config
// file.
func WithSettings(settings Settings) Option {
	return func(s *Server) {
		s.defaults = settings
	}
}

// WithExitFunc replaces os.Exit, which runs when the exit notification
// arrives or the stream closes.
func WithExitFunc(fn func(code int)) Option {
	return func(s *Server) {
		s.exit = fn
	}
}

// WithMiddleware adds middleware to the server's dispatch chain.
// Middleware is applied in order: the first middleware is outermost. It
// runs inside the built-in recovery, tracing, logging and telemetry.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mws...)
	}
}
