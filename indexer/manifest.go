package indexer

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/gossip-lsp/lexis/index"
)

// ManifestFile is the file describing the project and its dependencies.
const ManifestFile = "go.mod"

// Manifest is the parsed module file of the project.
type Manifest struct {
	Module   string
	Requires map[string]string // module path -> version
}

// ParseManifest parses go.mod content. Unknown directives are ignored.
func ParseManifest(data []byte) (*Manifest, error) {
	f, err := modfile.ParseLax(ManifestFile, data, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	m := &Manifest{Requires: make(map[string]string, len(f.Require))}
	if f.Module != nil {
		m.Module = f.Module.Mod.Path
	}
	for _, r := range f.Require {
		m.Requires[r.Mod.Path] = r.Mod.Version
	}
	return m, nil
}

// Version returns the required version of pkg, or "".
func (m *Manifest) Version(pkg string) string {
	if m == nil {
		return ""
	}
	return m.Requires[pkg]
}

// longestRequire returns the longest required module path that is pkgPath
// or a parent of it.
func (m *Manifest) longestRequire(pkgPath string) string {
	if m == nil {
		return ""
	}
	paths := make([]string, 0, len(m.Requires))
	for p := range m.Requires {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return len(paths[i]) > len(paths[j]) })
	for _, p := range paths {
		if pkgPath == p || strings.HasPrefix(pkgPath, p+"/") {
			return p
		}
	}
	return ""
}

// VendorResolver maps URIs below <rootURI>/<vendorDir>/ to the dependency
// package they belong to. Packages are named by the required module path
// when the manifest lists one, otherwise by the directory below vendorDir.
func VendorResolver(rootURI, vendorDir string, m *Manifest) index.PackageResolver {
	prefix := strings.TrimSuffix(rootURI, "/") + "/" + strings.Trim(vendorDir, "/") + "/"
	return func(uri string) string {
		rest, ok := strings.CutPrefix(uri, prefix)
		if !ok {
			return ""
		}
		dir := rest
		if i := strings.LastIndex(rest, "/"); i >= 0 {
			dir = rest[:i]
		} else {
			return ""
		}
		if mod := m.longestRequire(dir); mod != "" {
			return mod
		}
		return dir
	}
}
