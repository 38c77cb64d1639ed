package index

import (
	"iter"

	"github.com/gossip-lsp/lexis/protocol"
)

// Definition describes a declared symbol. Definitions are built by the
// analyzer and never mutated once handed to an index.
type Definition struct {
	// FQN is the fully qualified name, e.g. `pkg\Type->Method()`.
	FQN string

	// Extends lists the FQNs of embedded or implemented types.
	Extends []string

	// IsMember is true for methods, fields and type-scoped constants.
	IsMember bool

	// IsStatic is false for instance methods and fields.
	IsStatic bool

	// Roamed marks symbols that resolve from any namespace.
	Roamed bool

	CanBeInstantiated bool

	Symbol protocol.SymbolInformation

	// Type is the resolved type of a reference to the symbol, if known.
	Type string

	// DeclarationLine is the first line of the declaration, for hover.
	DeclarationLine string

	Documentation string

	Signature *protocol.SignatureInformation
}

// Ancestors yields the definitions of all types d extends, closest first.
// With includeSelf, d itself is yielded first.
func (d *Definition) Ancestors(idx ReadableIndex, includeSelf bool) iter.Seq2[string, *Definition] {
	return func(yield func(string, *Definition) bool) {
		seen := map[string]bool{d.FQN: true}
		if includeSelf && !yield(d.FQN, d) {
			return
		}
		level := []*Definition{d}
		for len(level) > 0 {
			var next []*Definition
			for _, def := range level {
				for _, fqn := range def.Extends {
					if seen[fqn] {
						continue
					}
					seen[fqn] = true
					parent := idx.Definition(fqn, false)
					if parent == nil {
						continue
					}
					if !yield(parent.FQN, parent) {
						return
					}
					next = append(next, parent)
				}
			}
			level = next
		}
	}
}
