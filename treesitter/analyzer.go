package treesitter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gossip-lsp/lexis/document"
)

// Analyzer implements document.Analyzer for every language in its
// registry.
type Analyzer struct {
	registry *Registry
	logger   *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithLogger sets the analyzer's logger.
func WithLogger(l *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an analyzer. A nil registry means Go only.
func NewAnalyzer(registry *Registry, opts ...AnalyzerOption) *Analyzer {
	if registry == nil {
		registry = NewRegistry(Go())
	}
	a := &Analyzer{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Registry returns the language registry.
func (a *Analyzer) Registry() *Registry { return a.registry }

func (a *Analyzer) Analyze(ctx context.Context, uri string, content []byte) (*document.Analysis, error) {
	lang, err := a.registry.LanguageFor(uri)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tree, err := Parse(lang.Grammar, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", uri, err)
	}
	defer tree.Close()

	analysis := lang.Extract(tree, uri)
	a.logger.Debug("document analyzed", "uri", uri, "language", lang.Name,
		"definitions", len(analysis.Definitions), "diagnostics", len(analysis.Diagnostics))
	return analysis, nil
}
