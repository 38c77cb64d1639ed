package lexis

import (
	"fmt"
	"strings"

	"github.com/gossip-lsp/lexis/document"
	"github.com/gossip-lsp/lexis/index"
	"github.com/gossip-lsp/lexis/protocol"
)

func (s *Server) didOpen(ctx *Context, p *protocol.DidOpenTextDocumentParams) error {
	uri := string(p.TextDocument.URI)
	if !s.acceptVersion(uri, p.TextDocument.Version) {
		return nil
	}
	return s.openDocument(ctx, uri, p.TextDocument.Text)
}

func (s *Server) didChange(ctx *Context, p *protocol.DidChangeTextDocumentParams) error {
	uri := string(p.TextDocument.URI)
	if !s.acceptVersion(uri, p.TextDocument.Version) {
		s.logger.Debug("dropping stale change", "uri", uri, "version", p.TextDocument.Version)
		return nil
	}
	loader, _, err := s.workspace()
	if err != nil {
		return err
	}
	text := ""
	if doc := loader.Get(uri); doc != nil {
		text = doc.Content()
	}
	return s.openDocument(ctx, uri, document.ApplyChanges(text, p.ContentChanges))
}

func (s *Server) didSave(ctx *Context, p *protocol.DidSaveTextDocumentParams) error {
	uri := string(p.TextDocument.URI)
	loader, _, err := s.workspace()
	if err != nil {
		return err
	}
	if p.Text == nil || !loader.IsOpen(uri) {
		return nil
	}
	return s.openDocument(ctx, uri, *p.Text)
}

func (s *Server) didClose(ctx *Context, p *protocol.DidCloseTextDocumentParams) error {
	uri := string(p.TextDocument.URI)
	loader, _, err := s.workspace()
	if err != nil {
		return err
	}
	loader.Close(uri)

	s.mu.Lock()
	delete(s.versions, uri)
	s.mu.Unlock()

	return ctx.Client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{URI: p.TextDocument.URI})
}

// openDocument analyzes text as the open content of uri and publishes
// the resulting diagnostics.
func (s *Server) openDocument(ctx *Context, uri, text string) error {
	loader, _, err := s.workspace()
	if err != nil {
		return err
	}
	doc, err := loader.Open(ctx, uri, []byte(text))
	if err != nil {
		return fmt.Errorf("open %s: %w", uri, err)
	}
	return ctx.Client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(uri),
		Diagnostics: doc.Diagnostics(),
	})
}

// acceptVersion records version as the newest seen for uri. Versions older
// than the newest are rejected; notifications are dispatched concurrently
// and may arrive out of order. Version 0 is always accepted.
func (s *Server) acceptVersion(uri string, version int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version == 0 {
		return true
	}
	if last, ok := s.versions[uri]; ok && version < last {
		return false
	}
	s.versions[uri] = version
	return true
}

func (s *Server) documentSymbol(ctx *Context, p *protocol.DocumentSymbolParams) ([]protocol.SymbolInformation, error) {
	loader, _, err := s.workspace()
	if err != nil {
		return nil, err
	}
	doc, err := loader.GetOrLoad(ctx, string(p.TextDocument.URI))
	if err != nil {
		return nil, documentError(err)
	}
	symbols := []protocol.SymbolInformation{}
	for _, fqn := range doc.Definitions() {
		symbols = append(symbols, doc.Definition(fqn).Symbol)
	}
	return symbols, nil
}

func (s *Server) hover(ctx *Context, p *protocol.HoverParams) (*protocol.Hover, error) {
	def, err := s.definitionAt(ctx, p.TextDocumentPositionParams)
	if err != nil || def == nil {
		return nil, err
	}
	var b strings.Builder
	if def.DeclarationLine != "" {
		fmt.Fprintf(&b, "```go\n%s\n```", def.DeclarationLine)
	}
	if def.Documentation != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(def.Documentation)
	}
	if b.Len() == 0 {
		return nil, nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: b.String()},
	}, nil
}

func (s *Server) definition(ctx *Context, p *protocol.DefinitionParams) ([]protocol.Location, error) {
	def, err := s.definitionAt(ctx, p.TextDocumentPositionParams)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return []protocol.Location{}, nil
	}
	return []protocol.Location{def.Symbol.Location}, nil
}

// xdefinition describes the symbol under the cursor by FQN, with its
// location when the definition is indexed.
func (s *Server) xdefinition(ctx *Context, p *protocol.DefinitionParams) ([]protocol.SymbolLocationInformation, error) {
	fqn, def, err := s.symbolAt(ctx, p.TextDocumentPositionParams)
	if err != nil {
		return nil, err
	}
	if fqn == "" {
		return []protocol.SymbolLocationInformation{}, nil
	}
	info := protocol.SymbolLocationInformation{Symbol: protocol.SymbolDescriptor{FQN: fqn}}
	if def != nil {
		loc := def.Symbol.Location
		info.Symbol.FQN = def.FQN
		info.Location = &loc
	}
	return []protocol.SymbolLocationInformation{info}, nil
}

// definitionAt resolves the symbol under the cursor through the global
// index. It returns nil when there is no symbol or it is not indexed.
func (s *Server) definitionAt(ctx *Context, p protocol.TextDocumentPositionParams) (*index.Definition, error) {
	_, def, err := s.symbolAt(ctx, p)
	return def, err
}

// symbolAt returns the FQN under the cursor and its definition, if any.
func (s *Server) symbolAt(ctx *Context, p protocol.TextDocumentPositionParams) (string, *index.Definition, error) {
	loader, global, err := s.workspace()
	if err != nil {
		return "", nil, err
	}
	doc, err := loader.GetOrLoad(ctx, string(p.TextDocument.URI))
	if err != nil {
		return "", nil, documentError(err)
	}
	fqn, ok := doc.SymbolAt(p.Position)
	if !ok {
		return "", nil, nil
	}
	return fqn, global.Definition(fqn, true), nil
}
