package index

import (
	"iter"
	"strconv"
	"sync"
)

type member struct {
	name   string
	idx    ReadableIndex
	cancel func()
}

// Aggregate is a read-only view over an ordered list of indexes. Point
// lookups return the first member's answer; enumerations merge all members
// with earlier members shadowing later ones.
type Aggregate struct {
	mu        sync.RWMutex
	members   []member
	listeners listeners
}

// NewAggregate builds an aggregate over members, in lookup order.
func NewAggregate(members ...ReadableIndex) *Aggregate {
	a := &Aggregate{}
	for i, idx := range members {
		a.register(strconv.Itoa(i), idx)
	}
	return a
}

// register adds idx under name, replacing an existing member of the same
// name in place.
func (a *Aggregate) register(name string, idx ReadableIndex) {
	cancel := idx.Listen(a.forward)

	a.mu.Lock()
	defer a.mu.Unlock()
	for k, m := range a.members {
		if m.name == name {
			m.cancel()
			a.members[k] = member{name: name, idx: idx, cancel: cancel}
			return
		}
	}
	a.members = append(a.members, member{name: name, idx: idx, cancel: cancel})
}

func (a *Aggregate) unregister(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, m := range a.members {
		if m.name == name {
			m.cancel()
			a.members = append(a.members[:k:k], a.members[k+1:]...)
			return true
		}
	}
	return false
}

func (a *Aggregate) lookupMember(name string) (ReadableIndex, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, m := range a.members {
		if m.name == name {
			return m.idx, true
		}
	}
	return nil, false
}

func (a *Aggregate) snapshot() []ReadableIndex {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ReadableIndex, len(a.members))
	for k, m := range a.members {
		out[k] = m.idx
	}
	return out
}

func (a *Aggregate) forward(ev Event) {
	switch ev {
	case EventDefinitionAdded:
		a.listeners.emit(ev)
	case EventStaticComplete:
		if a.IsStaticComplete() {
			a.listeners.emit(ev)
		}
	case EventComplete:
		if a.IsComplete() {
			a.listeners.emit(ev)
		}
	}
}

// Listen registers l for events forwarded from the members.
func (a *Aggregate) Listen(l Listener) (cancel func()) { return a.listeners.add(l) }

// IsComplete reports whether every member is complete.
func (a *Aggregate) IsComplete() bool {
	for _, idx := range a.snapshot() {
		if !idx.IsComplete() {
			return false
		}
	}
	return true
}

// IsStaticComplete reports whether every member is static complete.
func (a *Aggregate) IsStaticComplete() bool {
	for _, idx := range a.snapshot() {
		if !idx.IsStaticComplete() {
			return false
		}
	}
	return true
}

// Definition returns the first member's definition for fqn.
func (a *Aggregate) Definition(fqn string, globalFallback bool) *Definition {
	members := a.snapshot()
	for _, idx := range members {
		if def := idx.Definition(fqn, false); def != nil {
			return def
		}
	}
	if !globalFallback {
		return nil
	}
	// Exact matches in any member win over a fallback match.
	for _, idx := range members {
		if def := idx.Definition(fqn, true); def != nil {
			return def
		}
	}
	return nil
}

func (a *Aggregate) Definitions() iter.Seq2[string, *Definition] {
	return a.merge(func(idx ReadableIndex) iter.Seq2[string, *Definition] { return idx.Definitions() })
}

func (a *Aggregate) ChildDefinitions(fqn string) iter.Seq2[string, *Definition] {
	return a.merge(func(idx ReadableIndex) iter.Seq2[string, *Definition] { return idx.ChildDefinitions(fqn) })
}

func (a *Aggregate) merge(each func(ReadableIndex) iter.Seq2[string, *Definition]) iter.Seq2[string, *Definition] {
	return func(yield func(string, *Definition) bool) {
		seen := make(map[string]bool)
		for _, idx := range a.snapshot() {
			for fqn, def := range each(idx) {
				if seen[fqn] {
					continue
				}
				seen[fqn] = true
				if !yield(fqn, def) {
					return
				}
			}
		}
	}
}

// ReferenceURIs yields each referencing document once.
func (a *Aggregate) ReferenceURIs(fqn string) iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]bool)
		for _, idx := range a.snapshot() {
			for uri := range idx.ReferenceURIs(fqn) {
				if seen[uri] {
					continue
				}
				seen[uri] = true
				if !yield(uri) {
					return
				}
			}
		}
	}
}

// DependenciesIndex aggregates one index per dependency package.
type DependenciesIndex struct {
	Aggregate
	create sync.Mutex
}

// NewDependenciesIndex returns an empty dependencies index.
func NewDependenciesIndex() *DependenciesIndex {
	return &DependenciesIndex{}
}

// DependencyIndex returns the index for pkg, creating it if needed.
func (d *DependenciesIndex) DependencyIndex(pkg string) *Index {
	d.create.Lock()
	defer d.create.Unlock()
	if idx, ok := d.lookupMember(pkg); ok {
		return idx.(*Index)
	}
	idx := New()
	d.register(pkg, idx)
	return idx
}

// SetDependencyIndex installs idx for pkg, replacing any existing index.
func (d *DependenciesIndex) SetDependencyIndex(pkg string, idx *Index) {
	d.create.Lock()
	defer d.create.Unlock()
	d.register(pkg, idx)
}

// RemoveDependencyIndex drops the index for pkg.
func (d *DependenciesIndex) RemoveDependencyIndex(pkg string) {
	d.unregister(pkg)
}

// HasDependencyIndex reports whether pkg has an index.
func (d *DependenciesIndex) HasDependencyIndex(pkg string) bool {
	_, ok := d.lookupMember(pkg)
	return ok
}

// Packages lists the package names in lookup order.
func (d *DependenciesIndex) Packages() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.members))
	for k, m := range d.members {
		out[k] = m.name
	}
	return out
}

// PackageResolver names the dependency package a document belongs to, or
// returns "" for project sources.
type PackageResolver func(uri string) string

// ProjectIndex combines the project's own sources with its dependencies.
type ProjectIndex struct {
	*Aggregate
	source  *Index
	deps    *DependenciesIndex
	resolve PackageResolver
}

// NewProjectIndex builds the project view. A nil resolver treats every
// document as a project source.
func NewProjectIndex(source *Index, deps *DependenciesIndex, resolve PackageResolver) *ProjectIndex {
	if resolve == nil {
		resolve = func(string) string { return "" }
	}
	return &ProjectIndex{
		Aggregate: NewAggregate(source, deps),
		source:    source,
		deps:      deps,
		resolve:   resolve,
	}
}

// IndexForURI returns the index definitions from uri are stored in.
func (p *ProjectIndex) IndexForURI(uri string) *Index {
	if pkg := p.resolve(uri); pkg != "" {
		return p.deps.DependencyIndex(pkg)
	}
	return p.source
}

// PackageForURI returns the dependency package of uri, or "".
func (p *ProjectIndex) PackageForURI(uri string) string { return p.resolve(uri) }

// Source returns the project source index.
func (p *ProjectIndex) Source() *Index { return p.source }

// Dependencies returns the dependencies aggregate.
func (p *ProjectIndex) Dependencies() *DependenciesIndex { return p.deps }

// GlobalIndex is everything visible to queries: stubs, then the project.
type GlobalIndex struct {
	*Aggregate
	stubs   ReadableIndex
	project *ProjectIndex
}

// NewGlobalIndex combines stubs and project, stubs first.
func NewGlobalIndex(stubs ReadableIndex, project *ProjectIndex) *GlobalIndex {
	return &GlobalIndex{
		Aggregate: NewAggregate(stubs, project),
		stubs:     stubs,
		project:   project,
	}
}

// Project returns the project part of the global view.
func (g *GlobalIndex) Project() *ProjectIndex { return g.project }
