// Package treesitter analyzes source documents with tree-sitter grammars.
// An Analyzer picks a Language by file name, parses the content and lets
// the language's extractor turn the syntax tree into index definitions and
// references.
package treesitter

import (
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	ts_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/gossip-lsp/lexis/document"
)

// ExtractFunc turns a parsed tree into an analysis.
type ExtractFunc func(tree *Tree, uri string) *document.Analysis

// Language couples a grammar with its symbol extractor.
type Language struct {
	Name       string
	Grammar    *tree_sitter.Language
	Extensions []string // e.g. [".go"]
	Filenames  []string // exact base names
	Pattern    string   // glob matched against the URI path
	Extract    ExtractFunc
}

// Go returns the Go language definition.
func Go() *Language {
	return &Language{
		Name:       "go",
		Grammar:    tree_sitter.NewLanguage(unsafe.Pointer(ts_go.Language())),
		Extensions: []string{".go"},
		Extract:    extractGo,
	}
}

// Tree is a parse tree together with the source it was parsed from.
type Tree struct {
	raw   *tree_sitter.Tree
	src   []byte
	lines *document.LineIndex
}

// Parse parses src with lang. The caller must Close the tree.
func Parse(lang *tree_sitter.Language, src []byte) (*Tree, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return nil, err
	}
	return &Tree{
		raw:   parser.Parse(src, nil),
		src:   src,
		lines: document.NewLineIndex(string(src)),
	}, nil
}

// RootNode returns the root node of the parse tree.
func (t *Tree) RootNode() *tree_sitter.Node {
	if t == nil || t.raw == nil {
		return nil
	}
	return t.raw.RootNode()
}

// Source returns the parsed bytes.
func (t *Tree) Source() []byte { return t.src }

// Close releases the tree-sitter tree.
func (t *Tree) Close() {
	if t != nil && t.raw != nil {
		t.raw.Close()
	}
}
