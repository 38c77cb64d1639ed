// Package finder discovers the documents of a workspace, either by walking
// the local filesystem or by asking the editor.
package finder

import (
	"context"
	"path"
	"sort"
	"strings"
)

// Finder returns the URIs of all documents matching a glob.
type Finder interface {
	Find(ctx context.Context, glob string) ([]string, error)
}

// Match reports whether the slash-separated path name matches glob.
// Besides the path.Match syntax, a `**` segment matches zero or more
// path segments.
func Match(glob, name string) bool {
	return matchSegments(splitPath(glob), splitPath(name))
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(glob, name []string) bool {
	for len(glob) > 0 {
		if glob[0] == "**" {
			rest := glob[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, err := path.Match(glob[0], name[0]); err != nil || !ok {
			return false
		}
		glob, name = glob[1:], name[1:]
	}
	return len(name) == 0
}

// SortURIsLevelOrder sorts uris shallowest first, then lexically.
func SortURIsLevelOrder(uris []string) {
	sort.SliceStable(uris, func(i, j int) bool {
		di, dj := strings.Count(uris[i], "/"), strings.Count(uris[j], "/")
		if di != dj {
			return di < dj
		}
		return uris[i] < uris[j]
	})
}
