// Package index stores symbol definitions keyed by fully qualified name,
// together with the documents referencing each symbol.
//
// Names are split into a path (see SplitFQN) and stored in a tree so that
// the direct children of a namespace or type can be enumerated cheaply.
// Several indexes are combined into read-only views by Aggregate.
package index

import (
	"iter"
	"sort"
	"sync"
)

// Event is a change notification emitted by an index.
type Event int

const (
	EventDefinitionAdded Event = iota
	EventStaticComplete
	EventComplete
)

func (e Event) String() string {
	switch e {
	case EventDefinitionAdded:
		return "definition-added"
	case EventStaticComplete:
		return "static-complete"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Listener receives index events. Listeners run synchronously on the
// goroutine that caused the event, after the index lock was released.
type Listener func(Event)

// ReadableIndex is the query surface shared by Index and the aggregates.
type ReadableIndex interface {
	IsComplete() bool
	IsStaticComplete() bool
	Definitions() iter.Seq2[string, *Definition]
	ChildDefinitions(fqn string) iter.Seq2[string, *Definition]
	Definition(fqn string, globalFallback bool) *Definition
	ReferenceURIs(fqn string) iter.Seq[string]
	Listen(l Listener) (cancel func())
}

// node is either intermediate (children) or terminal (def).
type node struct {
	def      *Definition
	children map[string]*node
}

func newBranch() *node { return &node{children: make(map[string]*node)} }

func (n *node) terminal() bool { return n.def != nil }

// Index is a mutable definition and reference store. It is safe for
// concurrent use.
type Index struct {
	mu             sync.RWMutex
	root           *node
	references     map[string]map[string]struct{}
	complete       bool
	staticComplete bool

	listeners listeners
}

// Option configures an Index.
type Option func(*Index)

// WithListener registers l at construction time.
func WithListener(l Listener) Option {
	return func(i *Index) { i.listeners.add(l) }
}

// New returns an empty index.
func New(opts ...Option) *Index {
	idx := &Index{
		root:       newBranch(),
		references: make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Listen registers l for subsequent events.
func (i *Index) Listen(l Listener) (cancel func()) { return i.listeners.add(l) }

// SetStaticComplete marks static definitions and references as indexed.
func (i *Index) SetStaticComplete() {
	i.mu.Lock()
	changed := !i.staticComplete
	i.staticComplete = true
	i.mu.Unlock()
	if changed {
		i.listeners.emit(EventStaticComplete)
	}
}

// SetComplete marks the index as fully populated. It implies
// SetStaticComplete.
func (i *Index) SetComplete() {
	i.SetStaticComplete()
	i.mu.Lock()
	changed := !i.complete
	i.complete = true
	i.mu.Unlock()
	if changed {
		i.listeners.emit(EventComplete)
	}
}

func (i *Index) IsComplete() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.complete
}

func (i *Index) IsStaticComplete() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.staticComplete
}

// SetDefinition stores def under fqn, replacing any previous definition.
func (i *Index) SetDefinition(fqn string, def *Definition) {
	parts := SplitFQN(fqn)
	if len(parts) == 0 || def == nil {
		return
	}

	i.mu.Lock()
	n := i.root
	for _, part := range parts[:len(parts)-1] {
		child, ok := n.children[part]
		if !ok || child.terminal() {
			child = newBranch()
			n.children[part] = child
		}
		n = child
	}
	n.children[parts[len(parts)-1]] = &node{def: def}
	i.mu.Unlock()

	i.listeners.emit(EventDefinitionAdded)
}

// Definition returns the definition stored under fqn. With globalFallback,
// a namespaced non-member name that is not found is retried by its
// unqualified last segment.
func (i *Index) Definition(fqn string, globalFallback bool) *Definition {
	i.mu.RLock()
	n := i.lookup(SplitFQN(fqn))
	i.mu.RUnlock()
	if n != nil && n.terminal() {
		return n.def
	}
	if globalFallback && !IsMember(fqn) {
		if short := unqualified(fqn); short != fqn {
			return i.Definition(short, false)
		}
	}
	return nil
}

// lookup walks parts from the root. Callers hold the read lock.
func (i *Index) lookup(parts []string) *node {
	n := i.root
	for _, part := range parts {
		if n.terminal() {
			return nil
		}
		child, ok := n.children[part]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// ChildDefinitions yields the direct children of fqn: its members and the
// symbols declared in it, keyed by their full names. The definition of fqn
// itself is not included.
func (i *Index) ChildDefinitions(fqn string) iter.Seq2[string, *Definition] {
	return func(yield func(string, *Definition) bool) {
		for _, e := range i.childEntries(fqn) {
			if !yield(e.fqn, e.def) {
				return
			}
		}
	}
}

type entry struct {
	fqn string
	def *Definition
}

func (i *Index) childEntries(fqn string) []entry {
	fqn = Normalize(fqn)
	parts := SplitFQN(fqn)
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	n := i.lookup(parts)
	if n == nil || n.terminal() {
		return nil
	}
	var out []entry
	for _, name := range sortedKeys(n.children) {
		if name == "" {
			continue
		}
		child := n.children[name]
		var def *Definition
		if child.terminal() {
			def = child.def
		} else if self, ok := child.children[""]; ok && self.terminal() {
			def = self.def
		}
		if def == nil {
			continue
		}
		key := NameConcat(fqn, name)
		if IsMember(name) {
			key = fqn + name
		}
		out = append(out, entry{fqn: key, def: def})
	}
	return out
}

// RemoveDefinition deletes the definition stored under fqn, prunes
// ancestors left without children and drops the references to fqn.
func (i *Index) RemoveDefinition(fqn string) {
	parts := SplitFQN(fqn)

	i.mu.Lock()
	defer i.mu.Unlock()
	if len(parts) > 0 {
		prune(i.root, parts)
	}
	delete(i.references, JoinFQN(parts))
}

// prune removes the leaf at parts below n and reports whether n is left
// empty.
func prune(n *node, parts []string) bool {
	child, ok := n.children[parts[0]]
	if !ok {
		return false
	}
	if len(parts) == 1 {
		delete(n.children, parts[0])
	} else {
		if child.terminal() {
			return false
		}
		if prune(child, parts[1:]) {
			delete(n.children, parts[0])
		}
	}
	return len(n.children) == 0
}

// Definitions yields every stored definition with its full name, depth
// first in name order.
func (i *Index) Definitions() iter.Seq2[string, *Definition] {
	return func(yield func(string, *Definition) bool) {
		i.mu.RLock()
		var all []entry
		walk(i.root, nil, &all)
		i.mu.RUnlock()

		for _, e := range all {
			if !yield(e.fqn, e.def) {
				return
			}
		}
	}
}

func walk(n *node, path []string, out *[]entry) {
	for _, key := range sortedKeys(n.children) {
		child := n.children[key]
		p := append(path[:len(path):len(path)], key)
		if child.terminal() {
			*out = append(*out, entry{fqn: JoinFQN(p), def: child.def})
			continue
		}
		walk(child, p, out)
	}
}

// Len returns the number of stored definitions.
func (i *Index) Len() int {
	n := 0
	for range i.Definitions() {
		n++
	}
	return n
}

// AddReferenceURI records that uri references fqn.
func (i *Index) AddReferenceURI(fqn, uri string) {
	fqn = referenceKey(fqn)
	i.mu.Lock()
	defer i.mu.Unlock()
	set, ok := i.references[fqn]
	if !ok {
		set = make(map[string]struct{})
		i.references[fqn] = set
	}
	set[uri] = struct{}{}
}

// RemoveReferenceURI removes uri from the documents referencing fqn.
func (i *Index) RemoveReferenceURI(fqn, uri string) {
	fqn = referenceKey(fqn)
	i.mu.Lock()
	defer i.mu.Unlock()
	set, ok := i.references[fqn]
	if !ok {
		return
	}
	delete(set, uri)
	if len(set) == 0 {
		delete(i.references, fqn)
	}
}

// ReferenceURIs yields the documents referencing fqn in sorted order.
func (i *Index) ReferenceURIs(fqn string) iter.Seq[string] {
	fqn = referenceKey(fqn)
	return func(yield func(string) bool) {
		i.mu.RLock()
		uris := sortedKeys(i.references[fqn])
		i.mu.RUnlock()
		for _, uri := range uris {
			if !yield(uri) {
				return
			}
		}
	}
}

// referenceKey is the spelling of fqn the reference map is keyed by, the
// same path the definition tree uses.
func referenceKey(fqn string) string {
	return JoinFQN(SplitFQN(fqn))
}

// References returns a copy of the full reference map.
func (i *Index) References() map[string][]string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string][]string, len(i.references))
	for fqn, set := range i.references {
		out[fqn] = sortedKeys(set)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// listeners calls registered functions in registration order.
type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]Listener
}

func (ls *listeners) add(l Listener) (cancel func()) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.fns == nil {
		ls.fns = make(map[int]Listener)
	}
	id := ls.next
	ls.next++
	ls.fns[id] = l
	return func() {
		ls.mu.Lock()
		delete(ls.fns, id)
		ls.mu.Unlock()
	}
}

func (ls *listeners) emit(ev Event) {
	ls.mu.Lock()
	ids := make([]int, 0, len(ls.fns))
	for id := range ls.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, len(ids))
	for k, id := range ids {
		fns[k] = ls.fns[id]
	}
	ls.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
