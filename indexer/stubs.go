package indexer

import (
	"context"
	"log/slog"

	"github.com/gossip-lsp/lexis/document"
	"github.com/gossip-lsp/lexis/finder"
	"github.com/gossip-lsp/lexis/index"
)

// BuildStubs analyzes every document below dir into a new, complete index.
// The result is saved with Index.Save and served as the stubs member of
// the global index.
func BuildStubs(ctx context.Context, dir string, analyzer document.Analyzer, logger *slog.Logger) (*index.Index, Stats, error) {
	source := index.New()
	project := index.NewProjectIndex(source, index.NewDependenciesIndex(), func(string) string { return "" })
	loader := document.NewLoader(document.FileSystemRetriever{}, project, analyzer, document.WithLoaderLogger(logger))

	ix := New(Config{
		RootURI: document.PathToURI(dir),
		Finder:  finder.NewFileSystem(dir, logger),
		Loader:  loader,
		Project: project,
		Logger:  logger,
	})
	stats, err := ix.Index(ctx)
	if err != nil {
		return nil, stats, err
	}
	return source, stats, nil
}
