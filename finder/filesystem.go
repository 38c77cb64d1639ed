package finder

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/gossip-lsp/lexis/document"
)

// FileSystem finds documents below a local root, skipping .git and paths
// ignored by the .gitignore files of the tree.
type FileSystem struct {
	root   string
	logger *slog.Logger
}

// NewFileSystem creates a finder rooted at root.
func NewFileSystem(root string, logger *slog.Logger) *FileSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSystem{root: root, logger: logger}
}

func (f *FileSystem) Find(ctx context.Context, glob string) ([]string, error) {
	patterns, err := gitignore.ReadPatterns(osfs.New(f.root), nil)
	if err != nil {
		f.logger.Warn("reading .gitignore patterns", "root", f.root, "error", err)
	}
	ignored := gitignore.NewMatcher(patterns)

	var uris []string
	err = filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil || rel == "." {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if d.IsDir() {
			if d.Name() == ".git" || ignored.Match(parts, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignored.Match(parts, false) || !Match(glob, filepath.ToSlash(rel)) {
			return nil
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		uris = append(uris, document.PathToURI(abs))
		return nil
	})
	if err != nil {
		return nil, err
	}
	SortURIsLevelOrder(uris)
	return uris, nil
}
