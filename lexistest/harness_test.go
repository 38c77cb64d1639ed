package lexistest_test

import (
	"strings"
	"testing"

	"github.com/gossip-lsp/lexis/lexistest"
	"github.com/gossip-lsp/lexis/protocol"
)

const shapes = `package shapes

// Area returns the area.
func Area(w, h int) int {
	return w * h
}

func use() int {
	return Area(2, 3)
}
`

func TestClientHover(t *testing.T) {
	s := lexistest.NewServer(t)
	c := lexistest.NewClient(t, s)

	uri := lexistest.FileURI("/shapes/shapes.go")
	diags := c.Open(uri, shapes)
	lexistest.AssertDiagnosticCount(t, diags, 0)

	hover, err := c.Hover(uri, lexistest.Pos(8, 9))
	if err != nil {
		t.Fatalf("hover error: %v", err)
	}
	lexistest.AssertHoverContains(t, hover, "func Area(w, h int) int {")
	lexistest.AssertHoverContains(t, hover, "Area returns the area.")
}

func TestClientDefinition(t *testing.T) {
	s := lexistest.NewServer(t)
	c := lexistest.NewClient(t, s)

	uri := lexistest.FileURI("/shapes/shapes.go")
	c.Open(uri, shapes)

	locs, err := c.Definition(uri, lexistest.Pos(8, 9))
	if err != nil {
		t.Fatalf("definition error: %v", err)
	}
	lexistest.AssertLocationCount(t, locs, 1)
	if len(locs) == 1 && locs[0].Range.Start != lexistest.Pos(3, 0) {
		t.Errorf("definition starts at %v, want 3:0", locs[0].Range.Start)
	}

	// Whitespace has no symbol.
	locs, err = c.Definition(uri, lexistest.Pos(1, 0))
	if err != nil {
		t.Fatalf("definition error: %v", err)
	}
	lexistest.AssertLocationCount(t, locs, 0)
}

func TestClientXDefinition(t *testing.T) {
	s := lexistest.NewServer(t)
	c := lexistest.NewClient(t, s)

	uri := lexistest.FileURI("/shapes/shapes.go")
	c.Open(uri, shapes)

	infos, err := c.XDefinition(uri, lexistest.Pos(8, 9))
	if err != nil {
		t.Fatalf("xdefinition error: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 result, got %d: %+v", len(infos), infos)
	}
	if infos[0].Symbol.FQN != `shapes\Area()` {
		t.Errorf("symbol = %q", infos[0].Symbol.FQN)
	}
	loc := infos[0].Location
	if loc == nil {
		t.Fatal("missing location")
	}
	if string(loc.URI) != uri || loc.Range.Start != lexistest.Pos(3, 0) {
		t.Errorf("location = %+v", loc)
	}

	infos, err = c.XDefinition(uri, lexistest.Pos(1, 0))
	if err != nil {
		t.Fatalf("xdefinition error: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("whitespace resolved to %+v", infos)
	}
}

func TestClientDocumentSymbol(t *testing.T) {
	s := lexistest.NewServer(t)
	c := lexistest.NewClient(t, s)

	uri := lexistest.FileURI("/shapes/shapes.go")
	c.Open(uri, shapes)

	symbols, err := c.DocumentSymbol(uri)
	if err != nil {
		t.Fatalf("documentSymbol error: %v", err)
	}
	lexistest.AssertSymbolNames(t, symbols, "Area", "use")
}

func TestClientSyntaxDiagnostics(t *testing.T) {
	s := lexistest.NewServer(t)
	c := lexistest.NewClient(t, s)

	uri := lexistest.FileURI("/broken.go")
	diags := c.Open(uri, "package broken\n\nfunc f( {\n")
	if len(diags) == 0 {
		t.Fatal("expected syntax diagnostics")
	}

	diags = c.Change(uri, 2, "package broken\n\nfunc f() {}\n")
	lexistest.AssertDiagnosticCount(t, diags, 0)

	c.Close(uri)
	lexistest.AssertDiagnosticCount(t, c.LatestDiagnostics(uri), 0)
}

func TestClientServesWorkspace(t *testing.T) {
	files := lexistest.Workspace("/ws", map[string]string{
		"go.mod":          "module example.com/ws\n\ngo 1.22\n",
		"shapes/area.go":  "package shapes\n\n// Area returns the area.\nfunc Area(w, h int) int { return w * h }\n",
		"shapes/use.go":   "package shapes\n\nfunc use() int {\n\treturn Area(2, 3)\n}\n",
		"shapes/other.go": "package shapes\n\nfunc other() {}\n",
	})

	s := lexistest.NewServer(t)
	c := lexistest.NewClient(t, s,
		lexistest.WithRootURI("file:///ws"),
		lexistest.WithFiles(files),
	)

	symbols, err := c.WorkspaceSymbol("Area")
	if err != nil {
		t.Fatalf("workspace/symbol error: %v", err)
	}
	lexistest.AssertSymbolNames(t, symbols, "Area")

	refs, err := c.References(`shapes\Area()`, 0)
	if err != nil {
		t.Fatalf("workspace/xreferences error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d: %v", len(refs), refs)
	}
	if got := string(refs[0].Reference.URI); !strings.HasSuffix(got, "/shapes/use.go") {
		t.Errorf("reference in %s, want use.go", got)
	}
	if refs[0].Symbol.FQN != `shapes\Area()` {
		t.Errorf("reference symbol = %q", refs[0].Symbol.FQN)
	}
}

func TestClientInitializeResult(t *testing.T) {
	s := lexistest.NewServer(t)
	c := lexistest.NewClient(t, s, lexistest.WithoutInitialize())

	result := c.Initialize()
	caps := result.Capabilities
	if caps.TextDocumentSync == nil || caps.TextDocumentSync.Change != protocol.SyncFull {
		t.Errorf("TextDocumentSync = %+v", caps.TextDocumentSync)
	}
	if !caps.HoverProvider || !caps.DefinitionProvider || !caps.XDefinitionProvider {
		t.Errorf("missing providers: %+v", caps)
	}
	if !caps.WorkspaceSymbolProvider || !caps.XWorkspaceReferencesProvider {
		t.Errorf("missing workspace providers: %+v", caps)
	}
	if result.ServerInfo == nil || result.ServerInfo.Name != "lexistest" {
		t.Errorf("ServerInfo = %+v", result.ServerInfo)
	}
}
