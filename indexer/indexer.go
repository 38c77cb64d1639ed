// Package indexer scans a workspace in the background and fills the
// project index: dependency packages first, restored from the snapshot
// cache when their version is known, then the project's own sources.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gossip-lsp/lexis/cache"
	"github.com/gossip-lsp/lexis/document"
	"github.com/gossip-lsp/lexis/fault"
	"github.com/gossip-lsp/lexis/finder"
	"github.com/gossip-lsp/lexis/index"
	"github.com/gossip-lsp/lexis/protocol"
)

// Notifier sends notifications to the editor.
type Notifier interface {
	Notify(ctx context.Context, method string, params interface{}) error
}

// Config holds what an Indexer needs.
type Config struct {
	RootURI  string
	Finder   finder.Finder
	Loader   *document.Loader
	Project  *index.ProjectIndex
	Cache    cache.Cache
	Manifest *Manifest
	Notifier Notifier
	Logger   *slog.Logger
	Faults   fault.Reporter

	// Include selects the documents to index.
	Include string
	// Exclude drops documents whose root-relative path matches.
	Exclude []string
	// Concurrency bounds parallel document loads.
	Concurrency int
}

// Stats summarizes one indexing run.
type Stats struct {
	Files      int
	Failed     int
	Packages   int
	CachedHits int
	Duration   time.Duration
}

// Indexer fills a project index from the workspace.
type Indexer struct {
	cfg Config
}

// New creates an indexer.
func New(cfg Config) *Indexer {
	if cfg.Include == "" {
		cfg.Include = "**/*.go"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Faults == nil {
		cfg.Faults = fault.NewLogReporter(cfg.Logger)
	}
	return &Indexer{cfg: cfg}
}

// Index runs a full scan. Failures of single documents are logged and do
// not stop the run.
func (ix *Indexer) Index(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	uris, err := ix.cfg.Finder.Find(ctx, ix.cfg.Include)
	if err != nil {
		return stats, fmt.Errorf("find documents: %w", err)
	}
	uris = ix.filter(uris)

	source, deps := ix.group(uris)
	stats.Files = len(uris)
	stats.Packages = len(deps)
	ix.log(ctx, protocol.Info, fmt.Sprintf("%d files total (%d source, %d packages)", len(uris), len(source), len(deps)))

	pkgs := make([]string, 0, len(deps))
	for pkg := range deps {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	for _, pkg := range pkgs {
		hit, failed, err := ix.indexDependency(ctx, pkg, deps[pkg])
		if err != nil {
			return stats, err
		}
		if hit {
			stats.CachedHits++
		}
		stats.Failed += failed
	}

	failed, err := ix.loadAll(ctx, source)
	if err != nil {
		return stats, err
	}
	stats.Failed += failed
	ix.cfg.Project.Source().SetComplete()

	stats.Duration = time.Since(start)
	ix.log(ctx, protocol.Info, fmt.Sprintf("All %d files indexed in %s", len(uris), stats.Duration.Round(time.Millisecond)))
	return stats, nil
}

func (ix *Indexer) filter(uris []string) []string {
	if len(ix.cfg.Exclude) == 0 {
		return uris
	}
	root := strings.TrimSuffix(ix.cfg.RootURI, "/") + "/"
	out := uris[:0:0]
	for _, uri := range uris {
		rel := strings.TrimPrefix(uri, root)
		excluded := false
		for _, glob := range ix.cfg.Exclude {
			if finder.Match(glob, rel) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, uri)
		}
	}
	return out
}

func (ix *Indexer) group(uris []string) (source []string, deps map[string][]string) {
	deps = make(map[string][]string)
	for _, uri := range uris {
		if pkg := ix.cfg.Project.PackageForURI(uri); pkg != "" {
			deps[pkg] = append(deps[pkg], uri)
		} else {
			source = append(source, uri)
		}
	}
	return source, deps
}

// indexDependency restores pkg from the cache or loads its files and
// caches the result.
func (ix *Indexer) indexDependency(ctx context.Context, pkg string, uris []string) (hit bool, failed int, err error) {
	deps := ix.cfg.Project.Dependencies()
	version := ix.cfg.Manifest.Version(pkg)
	key := cache.SnapshotKey(pkg, version)

	if version != "" {
		data, ok, err := ix.cfg.Cache.Get(ctx, key)
		switch {
		case err != nil:
			ix.cfg.Logger.Warn("cache read failed", "package", pkg, "error", err)
		case ok:
			idx := index.New()
			if err := idx.UnmarshalBinary(data); err != nil {
				ix.cfg.Logger.Warn("discarding cached index", "package", pkg, "error", err)
			} else {
				deps.SetDependencyIndex(pkg, idx)
				ix.log(ctx, protocol.Log, fmt.Sprintf("Restored %s@%s from cache", pkg, version))
				return true, 0, nil
			}
		}
	}

	ix.log(ctx, protocol.Log, fmt.Sprintf("Indexing %s (%d files)", pkg, len(uris)))
	failed, err = ix.loadAll(ctx, uris)
	if err != nil {
		return false, failed, err
	}
	idx := deps.DependencyIndex(pkg)
	idx.SetComplete()

	if version != "" && failed == 0 {
		data, err := idx.MarshalBinary()
		if err == nil {
			err = ix.cfg.Cache.Set(ctx, key, data)
		}
		if err != nil {
			ix.cfg.Logger.Warn("cache write failed", "package", pkg, "error", err)
		}
	}
	return false, failed, nil
}

// loadAll loads uris in parallel. Only context cancellation aborts it.
func (ix *Indexer) loadAll(ctx context.Context, uris []string) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Concurrency)

	failures := make(chan struct{}, len(uris))
	for i, uri := range uris {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ix.cfg.Logger.Debug("parsing file", "n", i+1, "total", len(uris), "uri", uri)
			if _, err := ix.cfg.Loader.Load(gctx, uri); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failures <- struct{}{}
				ix.loadFailed(gctx, uri, err)
			}
			return nil
		})
	}
	err := g.Wait()
	return len(failures), err
}

func (ix *Indexer) loadFailed(ctx context.Context, uri string, err error) {
	var tooLarge *document.ContentTooLargeError
	if errors.As(err, &tooLarge) {
		ix.log(ctx, protocol.Info, err.Error())
		return
	}
	id := ix.cfg.Faults.Report(ctx, fmt.Errorf("index %s: %w", uri, err))
	ix.cfg.Logger.Warn("document not indexed", "uri", uri, "error", err, "fault_id", id)
}

func (ix *Indexer) log(ctx context.Context, typ protocol.MessageType, msg string) {
	ix.cfg.Logger.Info(msg)
	if ix.cfg.Notifier == nil {
		return
	}
	params := protocol.LogMessageParams{Type: typ, Message: msg}
	if err := ix.cfg.Notifier.Notify(ctx, protocol.MethodLogMessage, params); err != nil {
		ix.cfg.Logger.Debug("logMessage not delivered", "error", err)
	}
}
