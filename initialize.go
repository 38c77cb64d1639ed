package lexis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gossip-lsp/lexis/cache"
	"github.com/gossip-lsp/lexis/document"
	"github.com/gossip-lsp/lexis/finder"
	"github.com/gossip-lsp/lexis/index"
	"github.com/gossip-lsp/lexis/indexer"
	"github.com/gossip-lsp/lexis/protocol"
)

// setup builds the indexes and the document loader, choosing the editor
// or the local filesystem for file lists, content and the snapshot cache
// from the client capabilities, then starts indexing the workspace.
func (s *Server) setup(ctx context.Context, rootURI string, caps protocol.ClientCapabilities) {
	settings := s.settings.Get()

	var retriever document.ContentRetriever = document.FileSystemRetriever{}
	if caps.XContentProvider {
		retriever = document.NewClientRetriever(s.client)
	}

	var files finder.Finder
	switch {
	case caps.XFilesProvider:
		files = finder.NewClient(s.client, rootURI)
	case rootURI != "":
		files = finder.NewFileSystem(document.URIToPath(rootURI), s.logger)
	}

	var manifest *indexer.Manifest
	if files != nil {
		manifest = s.loadManifest(ctx, files, retriever)
	}

	source := index.New()
	deps := index.NewDependenciesIndex()
	project := index.NewProjectIndex(source, deps, indexer.VendorResolver(rootURI, settings.VendorDir, manifest))
	global := index.NewGlobalIndex(s.loadStubs(settings.Stubs), project)

	loader := document.NewLoader(retriever, project, s.analyzer,
		document.WithSizeLimit(settings.MaxFileSize),
		document.WithLoaderLogger(s.logger),
	)
	s.settings.OnChange(func(_, next *Settings) {
		loader.SetLimit(next.MaxFileSize)
	})

	c := s.openCache(ctx, settings, caps)

	s.mu.Lock()
	s.loader = loader
	s.global = global
	s.cache = c
	s.mu.Unlock()

	if files == nil {
		source.SetComplete()
		return
	}
	s.startIndexing(indexer.Config{
		RootURI:     rootURI,
		Finder:      files,
		Loader:      loader,
		Project:     project,
		Cache:       c,
		Manifest:    manifest,
		Notifier:    s.client,
		Logger:      s.logger,
		Faults:      s.faults,
		Include:     settings.Include,
		Exclude:     settings.Exclude,
		Concurrency: settings.Concurrency,
	})
}

// loadManifest reads the go.mod closest to the workspace root.
func (s *Server) loadManifest(ctx context.Context, files finder.Finder, retriever document.ContentRetriever) *indexer.Manifest {
	uris, err := files.Find(ctx, "**/"+indexer.ManifestFile)
	if err != nil {
		s.logger.Warn("finding manifest", "error", err)
		return nil
	}
	if len(uris) == 0 {
		return nil
	}
	finder.SortURIsLevelOrder(uris)
	data, err := retriever.Retrieve(ctx, uris[0])
	if err != nil {
		s.logger.Warn("reading manifest", "uri", uris[0], "error", err)
		return nil
	}
	m, err := indexer.ParseManifest(data)
	if err != nil {
		s.logger.Warn("parsing manifest", "uri", uris[0], "error", err)
		return nil
	}
	s.logger.Debug("manifest loaded", "uri", uris[0], "module", m.Module, "requires", len(m.Requires))
	return m
}

// loadStubs reads a snapshot written by `lexis stubs`. Without one the
// stubs index is empty and complete.
func (s *Server) loadStubs(path string) *index.Index {
	stubs := index.New()
	if path != "" {
		if err := readSnapshot(path, stubs); err != nil {
			s.logger.Warn("loading stubs", "path", path, "error", err)
			stubs = index.New()
		} else {
			s.logger.Info("stubs loaded", "path", path, "definitions", stubs.Len())
		}
	}
	stubs.SetComplete()
	return stubs
}

func readSnapshot(path string, idx *index.Index) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return idx.Load(f)
}

// openCache picks the snapshot cache backend. Failing backends degrade to
// no caching.
func (s *Server) openCache(ctx context.Context, settings *Settings, caps protocol.ClientCapabilities) cache.Cache {
	kind := settings.Cache
	if caps.XCacheProvider && kind != CacheNone {
		kind = CacheClient
	}

	switch kind {
	case CacheClient:
		return cache.NewClient(s.client)
	case CacheFile:
		c, err := cache.NewFile(settings.CacheDir)
		if err != nil {
			s.logger.Warn("opening file cache, caching disabled", "error", err)
			return cache.Nop{}
		}
		return c
	case CacheSQLite:
		dir := settings.CacheDir
		if dir == "" {
			userDir, err := os.UserCacheDir()
			if err != nil {
				s.logger.Warn("no user cache directory, caching disabled", "error", err)
				return cache.Nop{}
			}
			dir = filepath.Join(userDir, "lexis")
		}
		c, err := cache.OpenSQLite(ctx, filepath.Join(dir, "snapshots.db"))
		if err != nil {
			s.logger.Warn("opening sqlite cache, caching disabled", "dir", dir, "error", err)
			return cache.Nop{}
		}
		return c
	default:
		return cache.Nop{}
	}
}

// startIndexing runs the indexer in the background until it finishes or
// the server shuts down.
func (s *Server) startIndexing(cfg indexer.Config) {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancelIndex = cancel
	s.indexed = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		stats, err := indexer.New(cfg).Index(ctx)

		s.mu.Lock()
		s.indexStats = stats
		s.mu.Unlock()

		switch {
		case err == nil:
			s.logger.Info("workspace indexed",
				"files", stats.Files,
				"failed", stats.Failed,
				"packages", stats.Packages,
				"cached", stats.CachedHits,
				"duration", stats.Duration,
			)
		case errors.Is(err, context.Canceled):
			s.logger.Info("indexing cancelled")
		default:
			s.faults.Report(ctx, fmt.Errorf("indexing workspace: %w", err))
		}
	}()
}
