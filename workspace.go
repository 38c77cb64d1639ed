package lexis

import (
	"errors"

	"github.com/sahilm/fuzzy"

	"github.com/gossip-lsp/lexis/document"
	"github.com/gossip-lsp/lexis/index"
	"github.com/gossip-lsp/lexis/jsonrpc"
	mw "github.com/gossip-lsp/lexis/middleware"
	"github.com/gossip-lsp/lexis/protocol"
)

// definitionSource lets fuzzy rank definitions by FQN.
type definitionSource []*index.Definition

func (d definitionSource) String(i int) string { return d[i].FQN }
func (d definitionSource) Len() int            { return len(d) }

// workspaceSymbol searches the project's own definitions. An empty query
// lists all of them; otherwise they are ranked by fuzzy match on the FQN.
func (s *Server) workspaceSymbol(ctx *Context, p *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	_, global, err := s.workspace()
	if err != nil {
		return nil, err
	}
	var defs definitionSource
	for _, def := range global.Project().Source().Definitions() {
		defs = append(defs, def)
	}

	symbols := []protocol.SymbolInformation{}
	if p.Query == "" {
		for _, def := range defs {
			symbols = append(symbols, def.Symbol)
		}
		return symbols, nil
	}
	for _, m := range fuzzy.FindFrom(p.Query, defs) {
		symbols = append(symbols, defs[m.Index].Symbol)
	}
	return symbols, nil
}

// workspaceReferences lists every reference to the queried FQN across the
// workspace. It waits for indexing to finish first.
func (s *Server) workspaceReferences(ctx *Context, p *protocol.WorkspaceReferencesParams) ([]protocol.ReferenceInformation, error) {
	if p.Query.FQN == "" {
		return nil, jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "query.fqn is required")
	}
	loader, global, err := s.workspace()
	if err != nil {
		return nil, err
	}
	select {
	case <-s.Indexed():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	fqn := p.Query.FQN
	refs := []protocol.ReferenceInformation{}
	for uri := range global.ReferenceURIs(fqn) {
		doc, err := loader.GetOrLoad(ctx, uri)
		if err != nil {
			var tooLarge *document.ContentTooLargeError
			if !errors.As(err, &tooLarge) {
				s.logger.Warn("loading referencing document", "uri", uri, "error", err)
			}
			continue
		}
		for _, r := range doc.ReferenceRanges(fqn) {
			refs = append(refs, protocol.ReferenceInformation{
				Reference: protocol.Location{URI: protocol.DocumentURI(uri), Range: r},
				Symbol:    protocol.SymbolDescriptor{FQN: fqn},
			})
			if p.Limit > 0 && len(refs) >= p.Limit {
				return refs, nil
			}
		}
	}
	return refs, nil
}

// Stats is the result of lexis/stats.
type Stats struct {
	State    string           `json:"state"`
	Methods  []mw.MethodStats `json:"methods"`
	InFlight int64            `json:"inFlight"`
	Index    IndexStats       `json:"index"`
}

// IndexStats describes the indexes and the last indexing run.
type IndexStats struct {
	Complete       bool     `json:"complete"`
	StaticComplete bool     `json:"staticComplete"`
	Definitions    int      `json:"definitions"`
	Packages       []string `json:"packages"`
	OpenDocuments  int      `json:"openDocuments"`
	Files          int      `json:"files"`
	Failed         int      `json:"failed"`
	CachedHits     int      `json:"cachedHits"`
	DurationMs     int64    `json:"durationMs"`
}

func (s *Server) stats(ctx *Context, _ *struct{}) (*Stats, error) {
	loader, global, err := s.workspace()
	if err != nil {
		return nil, err
	}
	methods, inFlight := s.metrics.Snapshot()
	run := s.IndexStats()
	project := global.Project()
	return &Stats{
		State:    s.State().String(),
		Methods:  methods,
		InFlight: inFlight,
		Index: IndexStats{
			Complete:       global.IsComplete(),
			StaticComplete: global.IsStaticComplete(),
			Definitions:    project.Source().Len(),
			Packages:       project.Dependencies().Packages(),
			OpenDocuments:  len(loader.OpenURIs()),
			Files:          run.Files,
			Failed:         run.Failed,
			CachedHits:     run.CachedHits,
			DurationMs:     run.Duration.Milliseconds(),
		},
	}, nil
}
