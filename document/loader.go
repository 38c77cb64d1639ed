// Package document turns document content into index entries. A Loader
// retrieves content, enforces the size limit, runs the Analyzer and keeps
// track of the documents open in the editor.
package document

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gossip-lsp/lexis/index"
)

// DefaultSizeLimit is the largest document, in bytes, that is analyzed.
const DefaultSizeLimit = 150000

// ContentTooLargeError reports a document over the size limit.
type ContentTooLargeError struct {
	URI   string
	Size  int
	Limit int
}

func (e *ContentTooLargeError) Error() string {
	return fmt.Sprintf("%s exceeds size limit of %d bytes (%d)", e.URI, e.Limit, e.Size)
}

// Loader creates and tracks analyzed documents.
type Loader struct {
	retriever ContentRetriever
	project   *index.ProjectIndex
	analyzer  Analyzer
	logger    *slog.Logger
	limit     atomic.Int64

	mu   sync.RWMutex
	docs map[string]*Document
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSizeLimit sets the size limit in bytes.
func WithSizeLimit(n int) LoaderOption {
	return func(l *Loader) { l.limit.Store(int64(n)) }
}

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a loader registering definitions in the index project
// selects for each URI.
func NewLoader(retriever ContentRetriever, project *index.ProjectIndex, analyzer Analyzer, opts ...LoaderOption) *Loader {
	l := &Loader{
		retriever: retriever,
		project:   project,
		analyzer:  analyzer,
		logger:    slog.Default(),
		docs:      make(map[string]*Document),
	}
	l.limit.Store(DefaultSizeLimit)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetLimit changes the size limit for subsequent loads.
func (l *Loader) SetLimit(n int) { l.limit.Store(int64(n)) }

// Limit returns the current size limit.
func (l *Loader) Limit() int { return int(l.limit.Load()) }

// Get returns the open document for uri, or nil.
func (l *Loader) Get(uri string) *Document {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.docs[uri]
}

// IsOpen reports whether uri is open in the editor.
func (l *Loader) IsOpen(uri string) bool {
	return l.Get(uri) != nil
}

// OpenURIs returns the URIs of all open documents.
func (l *Loader) OpenURIs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return sortedFQNs(l.docs)
}

// GetOrLoad returns the open document for uri or loads it.
func (l *Loader) GetOrLoad(ctx context.Context, uri string) (*Document, error) {
	if d := l.Get(uri); d != nil {
		return d, nil
	}
	return l.Load(ctx, uri)
}

// Load retrieves the content of uri and analyzes it. An open document is
// updated in place; otherwise a new, untracked document is returned.
func (l *Loader) Load(ctx context.Context, uri string) (*Document, error) {
	content, err := l.retriever.Retrieve(ctx, uri)
	if err != nil {
		return nil, err
	}
	if limit := l.Limit(); len(content) > limit {
		return nil, &ContentTooLargeError{URI: uri, Size: len(content), Limit: limit}
	}

	if d := l.Get(uri); d != nil {
		if err := d.Update(ctx, content); err != nil {
			return nil, err
		}
		return d, nil
	}
	return l.Create(ctx, uri, content)
}

// Create analyzes content as a new document without tracking it.
func (l *Loader) Create(ctx context.Context, uri string, content []byte) (*Document, error) {
	return newDocument(ctx, uri, content, l.project.IndexForURI(uri), l.analyzer)
}

// Open marks uri as open with the editor's content.
func (l *Loader) Open(ctx context.Context, uri string, content []byte) (*Document, error) {
	if d := l.Get(uri); d != nil {
		if err := d.Update(ctx, content); err != nil {
			return nil, err
		}
		return d, nil
	}

	d, err := l.Create(ctx, uri, content)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.docs[uri] = d
	l.mu.Unlock()
	l.logger.Debug("document opened", "uri", uri)
	return d, nil
}

// Close stops tracking uri. Its definitions stay in the index.
func (l *Loader) Close(uri string) {
	l.mu.Lock()
	delete(l.docs, uri)
	l.mu.Unlock()
}
