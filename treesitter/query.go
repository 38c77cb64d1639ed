package treesitter

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/gossip-lsp/lexis/protocol"
)

// Capture is a single query capture.
type Capture struct {
	Name string
	Node *tree_sitter.Node
	Text string
}

// NodeText returns the source text of node.
func (t *Tree) NodeText(node *tree_sitter.Node) string {
	if t == nil || node == nil {
		return ""
	}
	return node.Utf8Text(t.src)
}

// NodeRange converts the node's byte span to an LSP range in UTF-16 units.
func (t *Tree) NodeRange(node *tree_sitter.Node) protocol.Range {
	if node == nil {
		return protocol.Range{}
	}
	return t.lines.Range(int(node.StartByte()), int(node.EndByte()))
}

// QueryCaptures runs pattern against the whole tree.
func (t *Tree) QueryCaptures(lang *tree_sitter.Language, pattern string) ([]Capture, error) {
	if t == nil || t.raw == nil {
		return nil, nil
	}

	query, err := tree_sitter.NewQuery(lang, pattern)
	if err != nil {
		return nil, err
	}
	defer query.Close()

	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	names := query.CaptureNames()
	matches := cursor.Matches(query, t.raw.RootNode(), t.src)
	var captures []Capture
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, c := range match.Captures {
			name := ""
			if int(c.Index) < len(names) {
				name = names[c.Index]
			}
			node := c.Node
			captures = append(captures, Capture{Name: name, Node: &node, Text: t.NodeText(&node)})
		}
	}
	return captures, nil
}

// SyntaxDiagnostics reports every ERROR and MISSING node in the tree.
func (t *Tree) SyntaxDiagnostics() []protocol.Diagnostic {
	root := t.RootNode()
	if root == nil || !root.HasError() {
		return nil
	}
	var out []protocol.Diagnostic
	var visit func(n *tree_sitter.Node)
	visit = func(n *tree_sitter.Node) {
		switch {
		case n.IsMissing():
			out = append(out, t.diagnostic(n, "missing "+n.Kind()))
			return
		case n.IsError():
			out = append(out, t.diagnostic(n, "syntax error"))
			return
		case !n.HasError():
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)
	return out
}

func (t *Tree) diagnostic(n *tree_sitter.Node, msg string) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    t.NodeRange(n),
		Severity: protocol.SeverityError,
		Source:   "lexis",
		Message:  msg,
	}
}
