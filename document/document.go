package document

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gossip-lsp/lexis/index"
	"github.com/gossip-lsp/lexis/protocol"
)

// Document is an analyzed text document whose definitions and references
// are registered in an index.
type Document struct {
	uri      string
	index    *index.Index
	analyzer Analyzer

	mu       sync.RWMutex
	content  string
	analysis *Analysis
}

// newDocument analyzes content and registers the result in idx.
func newDocument(ctx context.Context, uri string, content []byte, idx *index.Index, analyzer Analyzer) (*Document, error) {
	d := &Document{uri: uri, index: idx, analyzer: analyzer, analysis: &Analysis{}}
	if err := d.Update(ctx, content); err != nil {
		return nil, err
	}
	return d, nil
}

// URI returns the document's URI.
func (d *Document) URI() string { return d.uri }

// Index returns the index the document registers its symbols in.
func (d *Document) Index() *index.Index { return d.index }

// Content returns the text the current analysis is based on.
func (d *Document) Content() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.content
}

// Update replaces the content. The previous definitions and reference
// URIs are unregistered before the new ones are registered.
func (d *Document) Update(ctx context.Context, content []byte) error {
	analysis, err := d.analyzer.Analyze(ctx, d.uri, content)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", d.uri, err)
	}
	if analysis == nil {
		analysis = &Analysis{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for fqn := range d.analysis.Definitions {
		d.index.RemoveDefinition(fqn)
	}
	for fqn := range d.analysis.References {
		d.index.RemoveReferenceURI(fqn, d.uri)
	}

	d.content = string(content)
	d.analysis = analysis

	for fqn, def := range analysis.Definitions {
		d.index.SetDefinition(fqn, def)
	}
	for fqn := range analysis.References {
		d.index.AddReferenceURI(fqn, d.uri)
	}
	return nil
}

// Definitions returns the FQNs defined in the document, sorted.
func (d *Document) Definitions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.analysis.Definitions))
	for fqn := range d.analysis.Definitions {
		out = append(out, fqn)
	}
	sort.Strings(out)
	return out
}

// Definition returns the definition of fqn if the document declares it.
func (d *Document) Definition(fqn string) *index.Definition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.analysis.Definitions[fqn]
}

// IsDefined reports whether the document declares fqn.
func (d *Document) IsDefined(fqn string) bool {
	return d.Definition(fqn) != nil
}

// ReferenceRanges returns where the document references fqn.
func (d *Document) ReferenceRanges(fqn string) []protocol.Range {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]protocol.Range(nil), d.analysis.References[fqn]...)
}

// Diagnostics returns the problems found by the last analysis.
func (d *Document) Diagnostics() []protocol.Diagnostic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]protocol.Diagnostic(nil), d.analysis.Diagnostics...)
}

// SymbolAt returns the FQN of the symbol at pos: a reference if one covers
// pos, otherwise the innermost declaration containing it.
func (d *Document) SymbolAt(pos protocol.Position) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, fqn := range sortedFQNs(d.analysis.References) {
		for _, rng := range d.analysis.References[fqn] {
			if rng.Contains(pos) {
				return fqn, true
			}
		}
	}

	best, found := "", false
	var bestRange protocol.Range
	for _, fqn := range sortedFQNs(d.analysis.Definitions) {
		rng := d.analysis.Definitions[fqn].Symbol.Location.Range
		if !rng.Contains(pos) {
			continue
		}
		if !found || within(rng, bestRange) {
			best, bestRange, found = fqn, rng, true
		}
	}
	return best, found
}

func within(inner, outer protocol.Range) bool {
	return !before(inner.Start, outer.Start) && !before(outer.End, inner.End)
}

func before(a, b protocol.Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}

func sortedFQNs[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
