package treesitter

import (
	"path"
	"slices"
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/gossip-lsp/lexis/document"
	"github.com/gossip-lsp/lexis/index"
	"github.com/gossip-lsp/lexis/protocol"
)

var goBuiltinTypes = map[string]bool{
	"any": true, "bool": true, "byte": true, "comparable": true, "complex64": true,
	"complex128": true, "error": true, "float32": true, "float64": true, "int": true,
	"int8": true, "int16": true, "int32": true, "int64": true, "rune": true,
	"string": true, "uint": true, "uint8": true, "uint16": true, "uint32": true,
	"uint64": true, "uintptr": true,
}

var goBuiltinFuncs = map[string]bool{
	"append": true, "cap": true, "clear": true, "close": true, "complex": true,
	"copy": true, "delete": true, "imag": true, "len": true, "make": true,
	"max": true, "min": true, "new": true, "panic": true, "print": true,
	"println": true, "real": true, "recover": true,
}

// goExtractor names symbols `pkg\Func()`, `pkg\Type`, `pkg\Type->Method()`,
// `pkg\Type->field` and `pkg\Name` for constants and variables, where pkg
// is the package clause name.
type goExtractor struct {
	tree     *Tree
	uri      string
	pkg      string
	imports  map[string]string // local name -> package name
	declared map[uintptr]bool
	out      *document.Analysis
}

func extractGo(tree *Tree, uri string) *document.Analysis {
	x := &goExtractor{
		tree:     tree,
		uri:      uri,
		imports:  make(map[string]string),
		declared: make(map[uintptr]bool),
		out: &document.Analysis{
			Definitions: make(map[string]*index.Definition),
			References:  make(map[string][]protocol.Range),
		},
	}
	root := tree.RootNode()
	x.out.Diagnostics = tree.SyntaxDiagnostics()
	if root == nil {
		return x.out
	}

	x.header(root)
	if x.pkg == "" {
		return x.out
	}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		n := root.NamedChild(i)
		switch n.Kind() {
		case "function_declaration":
			x.function(n)
		case "method_declaration":
			x.method(n)
		case "type_declaration":
			x.types(n)
		case "const_declaration":
			x.values(n, protocol.SymbolConstant)
		case "var_declaration":
			x.values(n, protocol.SymbolVariable)
		}
	}
	x.references(root)
	return x.out
}

func (x *goExtractor) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return x.tree.NodeText(n)
}

func (x *goExtractor) header(root *tree_sitter.Node) {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		n := root.NamedChild(i)
		switch n.Kind() {
		case "package_clause":
			if id := n.NamedChild(0); id != nil {
				x.pkg = x.text(id)
			}
		case "import_declaration":
			x.importSpecs(n)
		}
	}
}

func (x *goExtractor) importSpecs(n *tree_sitter.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "import_spec_list":
			x.importSpecs(c)
		case "import_spec":
			p, err := strconv.Unquote(x.text(c.ChildByFieldName("path")))
			if err != nil {
				continue
			}
			pkg := importName(p)
			local := pkg
			if name := c.ChildByFieldName("name"); name != nil {
				local = x.text(name)
			}
			if local != "_" && local != "." {
				x.imports[local] = pkg
			}
		}
	}
}

// importName guesses the package name of an import path from its last
// element, skipping a major version suffix.
func importName(importPath string) string {
	base := path.Base(importPath)
	if len(base) > 1 && base[0] == 'v' {
		if _, err := strconv.Atoi(base[1:]); err == nil {
			base = path.Base(path.Dir(importPath))
		}
	}
	return strings.TrimPrefix(base, "go-")
}

// define records a definition for decl, named by the name node.
func (x *goExtractor) define(fqn string, decl, name *tree_sitter.Node, kind protocol.SymbolKind, container string) *index.Definition {
	x.declared[name.Id()] = true
	def := &index.Definition{
		FQN:      fqn,
		IsMember: index.IsMember(fqn),
		IsStatic: !index.IsMember(fqn),
		Symbol: protocol.SymbolInformation{
			Name:          x.text(name),
			Kind:          kind,
			Location:      protocol.Location{URI: protocol.DocumentURI(x.uri), Range: x.tree.NodeRange(decl)},
			ContainerName: container,
		},
		DeclarationLine: firstLine(x.text(decl)),
		Documentation:   x.doc(decl),
	}
	x.out.Definitions[fqn] = def
	return def
}

func (x *goExtractor) function(n *tree_sitter.Node) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return
	}
	def := x.define(index.NameConcat(x.pkg, x.text(name)+"()"), n, name, protocol.SymbolFunction, x.pkg)
	def.Type = x.text(n.ChildByFieldName("result"))
	def.Signature = x.signature(n, x.text(name), def.Documentation)
}

func (x *goExtractor) method(n *tree_sitter.Node) {
	name := n.ChildByFieldName("name")
	recv := receiverType(n.ChildByFieldName("receiver"))
	if name == nil || recv == nil {
		return
	}
	typeName := x.text(recv)
	fqn := index.NameConcat(x.pkg, typeName) + "->" + x.text(name) + "()"
	def := x.define(fqn, n, name, protocol.SymbolMethod, typeName)
	def.Type = x.text(n.ChildByFieldName("result"))
	def.Signature = x.signature(n, x.text(name), def.Documentation)
}

// receiverType returns the type_identifier of a method receiver.
func receiverType(params *tree_sitter.Node) *tree_sitter.Node {
	if params == nil {
		return nil
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p.Kind() != "parameter_declaration" {
			continue
		}
		t := p.ChildByFieldName("type")
		for t != nil {
			switch t.Kind() {
			case "type_identifier":
				return t
			case "pointer_type", "parenthesized_type":
				t = t.NamedChild(0)
			case "generic_type":
				t = t.ChildByFieldName("type")
			default:
				return nil
			}
		}
	}
	return nil
}

func (x *goExtractor) types(n *tree_sitter.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		spec := n.NamedChild(i)
		if spec.Kind() != "type_spec" && spec.Kind() != "type_alias" {
			continue
		}
		name := spec.ChildByFieldName("name")
		if name == nil {
			continue
		}
		decl := spec
		if n.NamedChildCount() == 1 {
			decl = n
		}
		fqn := index.NameConcat(x.pkg, x.text(name))
		typ := spec.ChildByFieldName("type")

		kind := protocol.SymbolClass
		switch {
		case typ == nil:
		case typ.Kind() == "struct_type":
			kind = protocol.SymbolStruct
		case typ.Kind() == "interface_type":
			kind = protocol.SymbolInterface
		}
		def := x.define(fqn, decl, name, kind, x.pkg)
		def.CanBeInstantiated = kind != protocol.SymbolInterface

		switch kind {
		case protocol.SymbolStruct:
			x.fields(def, typ)
		case protocol.SymbolInterface:
			x.interfaceElems(def, typ)
		default:
			def.Type = x.text(typ)
		}
	}
}

func (x *goExtractor) fields(owner *index.Definition, st *tree_sitter.Node) {
	list := st.NamedChild(0)
	if list == nil || list.Kind() != "field_declaration_list" {
		return
	}
	for i := uint(0); i < list.NamedChildCount(); i++ {
		fd := list.NamedChild(i)
		if fd.Kind() != "field_declaration" {
			continue
		}
		typ := fd.ChildByFieldName("type")
		named := false
		for j := uint(0); j < fd.NamedChildCount(); j++ {
			name := fd.NamedChild(j)
			if name.Kind() != "field_identifier" {
				continue
			}
			named = true
			def := x.define(owner.FQN+"->"+x.text(name), fd, name, protocol.SymbolField, owner.Symbol.Name)
			def.Type = x.text(typ)
		}
		if !named {
			if fqn := x.typeFQN(typ); fqn != "" {
				owner.Extends = append(owner.Extends, fqn)
			}
		}
	}
}

func (x *goExtractor) interfaceElems(owner *index.Definition, it *tree_sitter.Node) {
	for i := uint(0); i < it.NamedChildCount(); i++ {
		el := it.NamedChild(i)
		switch el.Kind() {
		case "method_elem", "method_spec":
			name := el.ChildByFieldName("name")
			if name == nil {
				continue
			}
			def := x.define(owner.FQN+"->"+x.text(name)+"()", el, name, protocol.SymbolMethod, owner.Symbol.Name)
			def.Type = x.text(el.ChildByFieldName("result"))
			def.Signature = x.signature(el, x.text(name), def.Documentation)
		case "type_elem", "constraint_elem":
			for j := uint(0); j < el.NamedChildCount(); j++ {
				if fqn := x.typeFQN(el.NamedChild(j)); fqn != "" {
					owner.Extends = append(owner.Extends, fqn)
				}
			}
		case "type_identifier", "qualified_type":
			if fqn := x.typeFQN(el); fqn != "" {
				owner.Extends = append(owner.Extends, fqn)
			}
		}
	}
}

func (x *goExtractor) values(n *tree_sitter.Node, kind protocol.SymbolKind) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		spec := n.NamedChild(i)
		switch spec.Kind() {
		case "var_spec_list":
			x.values(spec, kind)
		case "const_spec", "var_spec":
			decl := spec
			if n.NamedChildCount() == 1 {
				decl = n
			}
			typ := spec.ChildByFieldName("type")
			for j := uint(0); j < spec.NamedChildCount(); j++ {
				name := spec.NamedChild(j)
				if name.Kind() != "identifier" || x.text(name) == "_" {
					continue
				}
				def := x.define(index.NameConcat(x.pkg, x.text(name)), decl, name, kind, x.pkg)
				def.Type = x.text(typ)
			}
		}
	}
}

// typeFQN resolves a type expression naming a declared type.
func (x *goExtractor) typeFQN(t *tree_sitter.Node) string {
	for t != nil {
		switch t.Kind() {
		case "type_identifier":
			name := x.text(t)
			if goBuiltinTypes[name] {
				return ""
			}
			return index.NameConcat(x.pkg, name)
		case "qualified_type":
			pkg, ok := x.imports[x.text(t.ChildByFieldName("package"))]
			if !ok {
				return ""
			}
			return index.NameConcat(pkg, x.text(t.ChildByFieldName("name")))
		case "pointer_type", "parenthesized_type":
			t = t.NamedChild(0)
		case "generic_type":
			t = t.ChildByFieldName("type")
		default:
			return ""
		}
	}
	return ""
}

func (x *goExtractor) references(n *tree_sitter.Node) {
	switch n.Kind() {
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fqn := x.callee(fn); fqn != "" {
			x.reference(fqn, fn)
		}
	case "type_identifier":
		if !x.declared[n.Id()] {
			if fqn := x.typeFQN(n); fqn != "" {
				x.reference(fqn, n)
			}
		}
		return
	case "qualified_type":
		if fqn := x.typeFQN(n); fqn != "" {
			x.reference(fqn, n)
		}
		return
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		x.references(n.NamedChild(i))
	}
}

func (x *goExtractor) callee(fn *tree_sitter.Node) string {
	if fn == nil {
		return ""
	}
	switch fn.Kind() {
	case "identifier":
		name := x.text(fn)
		if goBuiltinFuncs[name] {
			return ""
		}
		return index.NameConcat(x.pkg, name+"()")
	case "selector_expression":
		operand := fn.ChildByFieldName("operand")
		if operand == nil || operand.Kind() != "identifier" {
			return ""
		}
		pkg, ok := x.imports[x.text(operand)]
		if !ok {
			return ""
		}
		return index.NameConcat(pkg, x.text(fn.ChildByFieldName("field"))+"()")
	}
	return ""
}

func (x *goExtractor) reference(fqn string, n *tree_sitter.Node) {
	x.out.References[fqn] = append(x.out.References[fqn], x.tree.NodeRange(n))
}

func (x *goExtractor) signature(n *tree_sitter.Node, name, doc string) *protocol.SignatureInformation {
	params := n.ChildByFieldName("parameters")
	sig := &protocol.SignatureInformation{
		Label:         strings.TrimSpace(name + x.text(params) + " " + x.text(n.ChildByFieldName("result"))),
		Documentation: doc,
	}
	if params == nil {
		return sig
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p.Kind() == "parameter_declaration" || p.Kind() == "variadic_parameter_declaration" {
			sig.Parameters = append(sig.Parameters, protocol.ParameterInformation{Label: x.text(p)})
		}
	}
	return sig
}

// doc collects the comment lines directly above n.
func (x *goExtractor) doc(n *tree_sitter.Node) string {
	var lines []string
	row := n.StartPosition().Row
	for c := n.PrevNamedSibling(); c != nil && c.Kind() == "comment"; c = c.PrevNamedSibling() {
		if c.EndPosition().Row+1 != row {
			break
		}
		lines = append(lines, commentText(x.text(c)))
		row = c.StartPosition().Row
	}
	slices.Reverse(lines)
	return strings.Join(lines, "\n")
}

func commentText(c string) string {
	if strings.HasPrefix(c, "//") {
		return strings.TrimPrefix(strings.TrimPrefix(c, "//"), " ")
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(c, "/*"), "*/"))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
