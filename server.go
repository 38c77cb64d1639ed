package lexis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/gossip-lsp/lexis/cache"
	"github.com/gossip-lsp/lexis/config"
	"github.com/gossip-lsp/lexis/document"
	"github.com/gossip-lsp/lexis/fault"
	"github.com/gossip-lsp/lexis/index"
	"github.com/gossip-lsp/lexis/indexer"
	"github.com/gossip-lsp/lexis/jsonrpc"
	mw "github.com/gossip-lsp/lexis/middleware"
	"github.com/gossip-lsp/lexis/protocol"
	"github.com/gossip-lsp/lexis/treesitter"
)

// Server is the central type of lexis. It owns the lifecycle state
// machine, the handler registry and, once initialized, the indexes and
// the document loader.
type Server struct {
	name     string
	version  string
	logger   *slog.Logger
	faults   fault.Reporter
	analyzer document.Analyzer
	exit     func(code int)
	defaults Settings

	// connection and client proxy (set during Serve)
	conn   *jsonrpc.Conn
	client *ClientProxy
	ctx    context.Context

	middlewares []mw.Middleware
	metrics     *mw.Metrics

	settings *config.Store[Settings]

	mu             sync.RWMutex
	state          State
	handlers       map[string]RawHandler
	bridge         *config.WorkspaceBridge[Settings]
	watcher        *config.Watcher
	editorSettings json.RawMessage

	// workspace state (populated during initialize)
	rootURI    string
	clientCaps protocol.ClientCapabilities
	loader     *document.Loader
	global     *index.GlobalIndex
	cache      cache.Cache
	versions   map[string]int32

	cancelIndex context.CancelFunc
	indexed     chan struct{}
	indexStats  indexer.Stats

	releaseOnce sync.Once
}

// NewServer creates a new lexis server with the given name and version.
func NewServer(name, version string, opts ...Option) *Server {
	s := &Server{
		name:     name,
		version:  version,
		logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
		exit:     os.Exit,
		defaults: DefaultSettings(),
		metrics:  mw.NewMetrics(),
		handlers: make(map[string]RawHandler),
		versions: make(map[string]int32),
		ctx:      context.Background(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.faults == nil {
		s.faults = fault.NewLogReporter(s.logger)
	}
	if s.analyzer == nil {
		s.analyzer = treesitter.NewAnalyzer(nil, treesitter.WithLogger(s.logger))
	}
	initial := s.defaults
	s.settings = config.NewStore(&initial)
	s.registerBuiltins()
	return s
}

func (s *Server) registerBuiltins() {
	s.HandleNotification(protocol.MethodInitialized, func(ctx *Context, _ json.RawMessage) (interface{}, error) {
		s.logger.Info("client initialized")
		return nil, nil
	})

	s.HandleNotification(protocol.MethodDidOpen, Notification(s.didOpen))
	s.HandleNotification(protocol.MethodDidChange, Notification(s.didChange))
	s.HandleNotification(protocol.MethodDidSave, Notification(s.didSave))
	s.HandleNotification(protocol.MethodDidClose, Notification(s.didClose))
	s.HandleNotification(protocol.MethodDidChangeConfiguration, Notification(s.didChangeConfiguration))

	s.HandleRequest(protocol.MethodDocumentSymbol, Request(s.documentSymbol))
	s.HandleRequest(protocol.MethodHover, Request(s.hover))
	s.HandleRequest(protocol.MethodDefinition, Request(s.definition))
	s.HandleRequest(protocol.MethodXDefinition, Request(s.xdefinition))
	s.HandleRequest(protocol.MethodWorkspaceSymbol, Request(s.workspaceSymbol))
	s.HandleRequest(protocol.MethodWorkspaceReferences, Request(s.workspaceReferences))
	s.HandleRequest(protocol.MethodStats, Request(s.stats))
}

// HandleRequest registers a handler for a request method, replacing any
// previous handler including the built-in ones.
func (s *Server) HandleRequest(method string, h RawHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// HandleNotification registers a handler for a notification method.
func (s *Server) HandleNotification(method string, h RawHandler) {
	s.HandleRequest(method, h)
}

// --- Accessor methods ---

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger { return s.logger }

// Conn returns the JSON-RPC connection, or nil before Serve() is called.
func (s *Server) Conn() *jsonrpc.Conn { return s.conn }

// Metrics returns the per-method dispatch statistics.
func (s *Server) Metrics() *mw.Metrics { return s.metrics }

// Documents returns the document loader, or nil before initialize.
func (s *Server) Documents() *document.Loader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loader
}

// Index returns the global index, or nil before initialize.
func (s *Server) Index() *index.GlobalIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global
}

// Indexed is closed when the background indexing started by initialize
// has finished. Without a workspace root it is closed right away.
func (s *Server) Indexed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.indexed == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.indexed
}

// IndexStats returns the result of the last finished indexing run.
func (s *Server) IndexStats() indexer.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexStats
}

func (s *Server) handler(method string) (RawHandler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[method]
	return h, ok
}

// dispatch is the main JSON-RPC handler callback. Lifecycle methods are
// handled here; everything else requires an initialized server.
func (s *Server) dispatch(ctx context.Context, method string, params jsonrpc.RawMessage) (interface{}, error) {
	lctx := newContext(ctx, s)

	switch method {
	case protocol.MethodInitialize:
		return s.handleInitialize(lctx, params)
	case protocol.MethodShutdown:
		return s.handleShutdown(lctx)
	case protocol.MethodExit:
		s.handleExit()
		return nil, nil
	case protocol.MethodSetTrace, protocol.MethodCancelRequest:
		return nil, nil
	}

	switch state := s.State(); state {
	case StateInitialized:
	case StateShutdown, StateExited:
		return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidRequest, "server is %s", state)
	default:
		return nil, jsonrpc.Errorf(jsonrpc.CodeServerNotInitialized, "server not initialized")
	}

	h, ok := s.handler(method)
	if !ok {
		return nil, jsonrpc.Errorf(jsonrpc.CodeMethodNotFound, "method not found: %s", method)
	}
	return h(lctx, params)
}

func (s *Server) handleInitialize(ctx *Context, params jsonrpc.RawMessage) (interface{}, error) {
	p, err := decodeParams[protocol.InitializeParams](params)
	if err != nil {
		return nil, err
	}
	if prev, ok := s.transition(StateInitialized, StateRunning); !ok {
		if prev == StateCreated {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidRequest, "server is not serving")
		}
		return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidRequest, "server already initialized")
	}

	rootURI := ""
	switch {
	case p.RootURI != nil:
		rootURI = string(*p.RootURI)
	case p.RootPath != "":
		rootURI = document.PathToURI(p.RootPath)
	}

	s.mu.Lock()
	s.rootURI = rootURI
	s.clientCaps = p.Capabilities
	s.mu.Unlock()

	s.startConfig(rootURI, p.InitializationOptions)
	s.setup(ctx, rootURI, p.Capabilities)

	s.logger.Info("server initialized",
		"name", s.name,
		"version", s.version,
		"root", rootURI,
	)

	return &protocol.InitializeResult{
		Capabilities: s.buildCapabilities(),
		ServerInfo: &protocol.ServerInfo{
			Name:    s.name,
			Version: s.version,
		},
	}, nil
}

func (s *Server) handleShutdown(_ *Context) (interface{}, error) {
	if prev, ok := s.transition(StateShutdown, StateInitialized); !ok {
		if prev < StateInitialized {
			return nil, jsonrpc.Errorf(jsonrpc.CodeServerNotInitialized, "server not initialized")
		}
		return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidRequest, "server is %s", prev)
	}
	s.logger.Info("server shutting down")
	s.release()
	return nil, nil
}

// handleExit ends the process: with code 0 after a shutdown request,
// with code 1 otherwise.
func (s *Server) handleExit() {
	if s.terminate() && s.conn != nil {
		s.conn.Close()
	}
}

// streamClosed runs when the editor went away: the server shuts down and
// exits as if both messages had been sent. The connection is already
// closing.
func (s *Server) streamClosed() {
	if _, ok := s.transition(StateShutdown, StateInitialized); ok {
		s.logger.Info("stream closed, shutting down")
	}
	s.terminate()
}

// terminate moves to StateExited and calls the exit function. It reports
// false when the server had already exited.
func (s *Server) terminate() bool {
	prev, ok := s.transition(StateExited, StateCreated, StateRunning, StateInitialized, StateShutdown)
	if !ok {
		return false
	}
	s.release()
	code := 1
	if prev == StateShutdown {
		code = 0
	}
	s.logger.Info("exiting", "code", code)
	s.exit(code)
	return true
}

// release stops background work and closes resources opened by
// initialize. It runs once.
func (s *Server) release() {
	s.releaseOnce.Do(func() {
		s.mu.Lock()
		cancel, watcher, c := s.cancelIndex, s.watcher, s.cache
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if watcher != nil {
			if err := watcher.Close(); err != nil {
				s.logger.Warn("closing config watcher", "error", err)
			}
		}
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.logger.Warn("closing cache", "error", err)
			}
		}
	})
}

// documentError maps loader failures to protocol errors.
func documentError(err error) error {
	var tooLarge *document.ContentTooLargeError
	if errors.As(err, &tooLarge) {
		return &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: tooLarge.Error()}
	}
	return err
}

// workspace returns the loader and index built by initialize.
func (s *Server) workspace() (*document.Loader, *index.GlobalIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loader == nil || s.global == nil {
		return nil, nil, fmt.Errorf("workspace not set up")
	}
	return s.loader, s.global, nil
}
