package treesitter

import (
	"fmt"
	"path"
	"strings"
	"sync"
)

// Registry resolves documents to languages.
type Registry struct {
	mu    sync.RWMutex
	langs []*Language
	byExt map[string]*Language
}

// NewRegistry creates a registry holding langs.
func NewRegistry(langs ...*Language) *Registry {
	r := &Registry{byExt: make(map[string]*Language)}
	for _, l := range langs {
		r.Register(l)
	}
	return r
}

// Register adds lang. Later registrations win for shared extensions.
func (r *Registry) Register(lang *Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langs = append(r.langs, lang)
	for _, ext := range lang.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.byExt[ext] = lang
	}
}

// LanguageFor returns the language for uri. Exact file names are tried
// first, then patterns, then the extension.
func (r *Registry) LanguageFor(uri string) (*Language, error) {
	filename := path.Base(uri)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.langs {
		for _, fn := range l.Filenames {
			if fn == filename {
				return l, nil
			}
		}
	}
	for _, l := range r.langs {
		if l.Pattern == "" {
			continue
		}
		if ok, _ := path.Match(l.Pattern, filename); ok {
			return l, nil
		}
	}
	if l, ok := r.byExt[path.Ext(uri)]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("no language registered for: %s", uri)
}

// HasLanguage reports whether some language handles uri.
func (r *Registry) HasLanguage(uri string) bool {
	_, err := r.LanguageFor(uri)
	return err == nil
}
