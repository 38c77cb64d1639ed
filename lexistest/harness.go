// Package lexistest provides testing utilities for lexis servers. It
// includes an in-memory editor that talks to a server without network I/O
// and can serve workspace files, contents and cache entries the way an
// editor announcing the x* providers does, plus assertion helpers.
package lexistest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gossip-lsp/lexis"
	"github.com/gossip-lsp/lexis/jsonrpc"
	"github.com/gossip-lsp/lexis/protocol"
	"github.com/gossip-lsp/lexis/transport"
)

// Timeout bounds every wait of the harness.
var Timeout = 5 * time.Second

// NewServer creates a server suitable for tests: it logs nowhere, caches
// nothing and records exits instead of ending the process.
func NewServer(t testing.TB, opts ...lexis.Option) *lexis.Server {
	t.Helper()
	settings := lexis.DefaultSettings()
	settings.Cache = lexis.CacheNone
	base := []lexis.Option{
		lexis.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		lexis.WithSettings(settings),
		lexis.WithExitFunc(func(int) {}),
	}
	return lexis.NewServer("lexistest", "0.0.0", append(base, opts...)...)
}

// Client is a test editor connected to a server over an in-memory
// transport. It provides typed helper methods for the server's methods.
type Client struct {
	t    testing.TB
	conn *jsonrpc.Conn
	opts options

	mu            sync.Mutex
	notifications []notification
	cache         map[string][]byte
	changed       chan struct{}
}

type notification struct {
	Method string
	Params json.RawMessage
}

type options struct {
	rootURI     string
	files       map[string]string
	clientCache bool
	initOptions *protocol.InitializationOptions
	skipInit    bool
}

// Option configures a Client.
type Option func(*options)

// WithRootURI sets the workspace root sent with initialize.
func WithRootURI(uri string) Option {
	return func(o *options) { o.rootURI = uri }
}

// WithFiles makes the editor serve a workspace of the given URIs and
// contents through workspace/xfiles and textDocument/xcontent.
func WithFiles(files map[string]string) Option {
	return func(o *options) { o.files = files }
}

// WithClientCache makes the editor store snapshots for the server through
// xcache/get and xcache/set.
func WithClientCache() Option {
	return func(o *options) { o.clientCache = true }
}

// WithInitializationOptions sets the initializationOptions of initialize.
func WithInitializationOptions(opts *protocol.InitializationOptions) Option {
	return func(o *options) { o.initOptions = opts }
}

// WithoutInitialize leaves the server uninitialized.
func WithoutInitialize() Option {
	return func(o *options) { o.skipInit = true }
}

// NewClient creates a test client connected to the given server. The
// server runs in a background goroutine and is stopped when the test
// completes. Unless WithoutInitialize is given, the client initializes the
// server and waits for indexing to finish.
func NewClient(t testing.TB, s *lexis.Server, opts ...Option) *Client {
	t.Helper()
	clientTransport, serverTransport := transport.MemoryPipe()

	c := &Client{
		t:       t,
		cache:   make(map[string][]byte),
		changed: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(&c.opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := lexis.Serve(ctx, s, lexis.WithTransport(serverTransport)); err != nil && ctx.Err() == nil {
			t.Logf("server error: %v", err)
		}
	}()

	c.conn = jsonrpc.NewConn(clientTransport, c.handle,
		jsonrpc.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	go func() {
		_ = c.conn.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		c.conn.Close()
		_ = clientTransport.Close()
		select {
		case <-served:
		case <-time.After(Timeout):
			t.Errorf("server did not stop")
		}
	})

	if !c.opts.skipInit {
		c.Initialize()
		select {
		case <-s.Indexed():
		case <-time.After(Timeout):
			t.Fatalf("timed out waiting for indexing")
		}
	}
	return c
}

// handle answers the server's requests and records its notifications.
func (c *Client) handle(ctx context.Context, method string, params jsonrpc.RawMessage) (interface{}, error) {
	switch method {
	case protocol.MethodXFiles:
		if c.opts.files == nil {
			break
		}
		uris := make([]string, 0, len(c.opts.files))
		for uri := range c.opts.files {
			uris = append(uris, uri)
		}
		sort.Strings(uris)
		out := make([]protocol.TextDocumentIdentifier, len(uris))
		for i, uri := range uris {
			out[i] = protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)}
		}
		return out, nil

	case protocol.MethodXContent:
		if c.opts.files == nil {
			break
		}
		var p protocol.ContentParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "%s", err)
		}
		text, ok := c.opts.files[string(p.TextDocument.URI)]
		if !ok {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "no such file: %s", p.TextDocument.URI)
		}
		return &protocol.TextDocumentItem{URI: p.TextDocument.URI, Text: text}, nil

	case protocol.MethodXCacheGet:
		var p protocol.CacheGetParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "%s", err)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.cache[p.Key], nil

	case protocol.MethodXCacheSet:
		var p protocol.CacheSetParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "%s", err)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cache[p.Key] = p.Value
		return nil, nil

	default:
		c.mu.Lock()
		c.notifications = append(c.notifications, notification{Method: method, Params: params})
		c.mu.Unlock()
		select {
		case c.changed <- struct{}{}:
		default:
		}
		return nil, nil
	}
	return nil, jsonrpc.Errorf(jsonrpc.CodeMethodNotFound, "method not found: %s", method)
}

// Initialize sends the initialize request and initialized notification.
func (c *Client) Initialize() *protocol.InitializeResult {
	c.t.Helper()
	params := &protocol.InitializeParams{
		Capabilities: protocol.ClientCapabilities{
			XFilesProvider:   c.opts.files != nil,
			XContentProvider: c.opts.files != nil,
			XCacheProvider:   c.opts.clientCache,
		},
		InitializationOptions: c.opts.initOptions,
	}
	if c.opts.rootURI != "" {
		root := protocol.DocumentURI(c.opts.rootURI)
		params.RootURI = &root
	}
	var result protocol.InitializeResult
	c.call(protocol.MethodInitialize, params, &result)
	c.notify(protocol.MethodInitialized, &protocol.InitializedParams{})
	return &result
}

// Open sends a textDocument/didOpen notification and waits for the
// diagnostics it produces.
func (c *Client) Open(uri string, text string) []protocol.Diagnostic {
	c.t.Helper()
	return c.notifyAndWait(uri, protocol.MethodDidOpen, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        protocol.DocumentURI(uri),
			LanguageID: "go",
			Version:    1,
			Text:       text,
		},
	})
}

// Change sends a textDocument/didChange notification with full content
// replacement and waits for the diagnostics it produces.
func (c *Client) Change(uri string, version int32, text string) []protocol.Diagnostic {
	c.t.Helper()
	return c.notifyAndWait(uri, protocol.MethodDidChange, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
			Version:                version,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: text}},
	})
}

// Close sends a textDocument/didClose notification and waits for the
// diagnostics to be cleared.
func (c *Client) Close(uri string) {
	c.t.Helper()
	c.notifyAndWait(uri, protocol.MethodDidClose, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
	})
}

// DocumentSymbol sends a textDocument/documentSymbol request.
func (c *Client) DocumentSymbol(uri string) ([]protocol.SymbolInformation, error) {
	c.t.Helper()
	var result []protocol.SymbolInformation
	err := c.Call(protocol.MethodDocumentSymbol, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
	}, &result)
	return result, err
}

// Hover sends a textDocument/hover request. A null result yields nil.
func (c *Client) Hover(uri string, pos protocol.Position) (*protocol.Hover, error) {
	c.t.Helper()
	var result *protocol.Hover
	err := c.Call(protocol.MethodHover, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
			Position:     pos,
		},
	}, &result)
	return result, err
}

// Definition sends a textDocument/definition request.
func (c *Client) Definition(uri string, pos protocol.Position) ([]protocol.Location, error) {
	c.t.Helper()
	var result []protocol.Location
	err := c.Call(protocol.MethodDefinition, &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
			Position:     pos,
		},
	}, &result)
	return result, err
}

// XDefinition sends a textDocument/xdefinition request.
func (c *Client) XDefinition(uri string, pos protocol.Position) ([]protocol.SymbolLocationInformation, error) {
	c.t.Helper()
	var result []protocol.SymbolLocationInformation
	err := c.Call(protocol.MethodXDefinition, &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
			Position:     pos,
		},
	}, &result)
	return result, err
}

// WorkspaceSymbol sends a workspace/symbol request.
func (c *Client) WorkspaceSymbol(query string) ([]protocol.SymbolInformation, error) {
	c.t.Helper()
	var result []protocol.SymbolInformation
	err := c.Call(protocol.MethodWorkspaceSymbol, &protocol.WorkspaceSymbolParams{Query: query}, &result)
	return result, err
}

// References sends a workspace/xreferences request for fqn.
func (c *Client) References(fqn string, limit int) ([]protocol.ReferenceInformation, error) {
	c.t.Helper()
	var result []protocol.ReferenceInformation
	err := c.Call(protocol.MethodWorkspaceReferences, &protocol.WorkspaceReferencesParams{
		Query: protocol.SymbolDescriptor{FQN: fqn},
		Limit: limit,
	}, &result)
	return result, err
}

// Stats sends a lexis/stats request.
func (c *Client) Stats() (*lexis.Stats, error) {
	c.t.Helper()
	var result lexis.Stats
	if err := c.Call(protocol.MethodStats, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ChangeConfiguration sends workspace/didChangeConfiguration with settings
// under the server's section.
func (c *Client) ChangeConfiguration(settings interface{}) {
	c.t.Helper()
	c.notify(protocol.MethodDidChangeConfiguration, &protocol.DidChangeConfigurationParams{
		Settings: map[string]interface{}{"lexis": settings},
	})
}

// Shutdown sends the shutdown request.
func (c *Client) Shutdown() error {
	c.t.Helper()
	return c.Call(protocol.MethodShutdown, nil, nil)
}

// Exit sends the exit notification.
func (c *Client) Exit() {
	c.t.Helper()
	c.notify(protocol.MethodExit, nil)
}

// Disconnect closes the editor's side of the stream.
func (c *Client) Disconnect() {
	c.conn.Close()
}

// Notifications returns the params of every notification received with
// method so far.
func (c *Client) Notifications(method string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []json.RawMessage
	for _, n := range c.notifications {
		if n.Method == method {
			out = append(out, n.Params)
		}
	}
	return out
}

// LogMessages returns the text of every window/logMessage received.
func (c *Client) LogMessages() []string {
	var out []string
	for _, raw := range c.Notifications(protocol.MethodLogMessage) {
		var p protocol.LogMessageParams
		if json.Unmarshal(raw, &p) == nil {
			out = append(out, p.Message)
		}
	}
	return out
}

// WaitForLogMessage waits until a window/logMessage containing substr
// arrives.
func (c *Client) WaitForLogMessage(substr string) string {
	c.t.Helper()
	var found string
	c.waitFor(fmt.Sprintf("log message %q", substr), func() bool {
		for _, m := range c.LogMessages() {
			if strings.Contains(m, substr) {
				found = m
				return true
			}
		}
		return false
	})
	return found
}

// LatestDiagnostics returns the most recent PublishDiagnostics for the given
// URI, or nil if none have been received.
func (c *Client) LatestDiagnostics(uri string) []protocol.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.notifications) - 1; i >= 0; i-- {
		n := c.notifications[i]
		if n.Method == protocol.MethodPublishDiagnostics {
			var p protocol.PublishDiagnosticsParams
			if json.Unmarshal(n.Params, &p) == nil && string(p.URI) == uri {
				return p.Diagnostics
			}
		}
	}
	return nil
}

// CacheKeys lists the keys the server stored through xcache/set.
func (c *Client) CacheKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.cache))
	for k := range c.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Call sends a request and decodes its result into result.
func (c *Client) Call(method string, params, result interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	return c.conn.Call(ctx, method, params, result)
}

// Notify sends a notification.
func (c *Client) Notify(method string, params interface{}) {
	c.t.Helper()
	c.notify(method, params)
}

func (c *Client) call(method string, params, result interface{}) {
	c.t.Helper()
	if err := c.Call(method, params, result); err != nil {
		c.t.Fatalf("call %s failed: %v", method, err)
	}
}

func (c *Client) notify(method string, params interface{}) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	if err := c.conn.Notify(ctx, method, params); err != nil {
		c.t.Fatalf("notify %s failed: %v", method, err)
	}
}

// notifyAndWait sends a notification and waits for the next
// publishDiagnostics for uri.
func (c *Client) notifyAndWait(uri, method string, params interface{}) []protocol.Diagnostic {
	c.t.Helper()
	before := c.diagnosticsCount(uri)
	c.notify(method, params)
	c.waitFor("diagnostics for "+uri, func() bool {
		return c.diagnosticsCount(uri) > before
	})
	return c.LatestDiagnostics(uri)
}

func (c *Client) diagnosticsCount(uri string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, note := range c.notifications {
		if note.Method != protocol.MethodPublishDiagnostics {
			continue
		}
		var p protocol.PublishDiagnosticsParams
		if json.Unmarshal(note.Params, &p) == nil && string(p.URI) == uri {
			n++
		}
	}
	return n
}

func (c *Client) waitFor(what string, done func() bool) {
	c.t.Helper()
	deadline := time.After(Timeout)
	for !done() {
		select {
		case <-c.changed:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			c.t.Fatalf("timed out waiting for %s", what)
		}
	}
}
