package document

import (
	"context"

	"github.com/gossip-lsp/lexis/index"
	"github.com/gossip-lsp/lexis/protocol"
)

// Analyzer extracts declarations and references from document content.
type Analyzer interface {
	Analyze(ctx context.Context, uri string, content []byte) (*Analysis, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, uri string, content []byte) (*Analysis, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, uri string, content []byte) (*Analysis, error) {
	return f(ctx, uri, content)
}

// Analysis is what an Analyzer found in one document.
type Analysis struct {
	// Definitions declared in the document, by FQN.
	Definitions map[string]*index.Definition

	// References maps each referenced FQN to the ranges referencing it.
	References map[string][]protocol.Range

	Diagnostics []protocol.Diagnostic
}
