package treesitter

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/gossip-lsp/lexis/protocol"
)

const sample = `package shapes

import (
	"fmt"
	str "strings"
)

// MaxSides bounds polygons.
const MaxSides = 12

var registry = map[string]Shape{}

// Shape is anything with an area.
type Shape interface {
	fmt.Stringer
	Area() float64
}

// Square is a regular quadrilateral.
type Square struct {
	Base
	Side, Scale float64
}

// Area returns the square's area.
func (s *Square) Area() float64 {
	return s.Side * s.Side
}

// NewSquare creates a square.
func NewSquare(side float64) *Square {
	fmt.Println(str.ToUpper("new"))
	describe()
	return &Square{Side: side}
}

func describe() {}
`

func analyze(t *testing.T, src string) map[string]bool {
	t.Helper()
	a := NewAnalyzer(nil)
	res, err := a.Analyze(context.Background(), "file:///shapes/shapes.go", []byte(src))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	got := make(map[string]bool)
	for fqn := range res.Definitions {
		got[fqn] = true
	}
	return got
}

func TestGoDefinitions(t *testing.T) {
	got := analyze(t, sample)
	want := []string{
		`shapes\MaxSides`,
		`shapes\registry`,
		`shapes\Shape`,
		`shapes\Shape->Area()`,
		`shapes\Square`,
		`shapes\Square->Side`,
		`shapes\Square->Scale`,
		`shapes\Square->Area()`,
		`shapes\NewSquare()`,
		`shapes\describe()`,
	}
	for _, fqn := range want {
		if !got[fqn] {
			t.Errorf("missing definition %s", fqn)
		}
	}
	if len(got) != len(want) {
		t.Errorf("got %d definitions, want %d: %v", len(got), len(want), got)
	}
}

func TestGoDefinitionDetails(t *testing.T) {
	res, err := NewAnalyzer(nil).Analyze(context.Background(), "file:///shapes/shapes.go", []byte(sample))
	if err != nil {
		t.Fatal(err)
	}

	sq := res.Definitions[`shapes\Square`]
	if sq.Documentation != "Square is a regular quadrilateral." {
		t.Errorf("Documentation = %q", sq.Documentation)
	}
	if sq.Symbol.Kind != protocol.SymbolStruct || !sq.CanBeInstantiated {
		t.Errorf("Square kind = %v, instantiable = %v", sq.Symbol.Kind, sq.CanBeInstantiated)
	}
	if !slices.Equal(sq.Extends, []string{`shapes\Base`}) {
		t.Errorf("Extends = %v", sq.Extends)
	}

	shape := res.Definitions[`shapes\Shape`]
	if !slices.Equal(shape.Extends, []string{`fmt\Stringer`}) {
		t.Errorf("Shape.Extends = %v", shape.Extends)
	}

	area := res.Definitions[`shapes\Square->Area()`]
	if !area.IsMember || area.IsStatic {
		t.Errorf("Area member = %v static = %v", area.IsMember, area.IsStatic)
	}
	if area.Symbol.ContainerName != "Square" {
		t.Errorf("ContainerName = %q", area.Symbol.ContainerName)
	}
	if area.DeclarationLine != "func (s *Square) Area() float64 {" {
		t.Errorf("DeclarationLine = %q", area.DeclarationLine)
	}

	ns := res.Definitions[`shapes\NewSquare()`]
	if ns.Signature == nil || ns.Signature.Label != "NewSquare(side float64) *Square" {
		t.Errorf("Signature = %+v", ns.Signature)
	}
	if len(ns.Signature.Parameters) != 1 || ns.Signature.Parameters[0].Label != "side float64" {
		t.Errorf("Parameters = %+v", ns.Signature.Parameters)
	}
	if ns.Symbol.Location.Range.Start.Line != 30 {
		t.Errorf("NewSquare starts on line %d", ns.Symbol.Location.Range.Start.Line)
	}
}

func TestGoReferences(t *testing.T) {
	res, err := NewAnalyzer(nil).Analyze(context.Background(), "file:///shapes/shapes.go", []byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	for _, fqn := range []string{
		`fmt\Println()`,
		`strings\ToUpper()`,
		`shapes\describe()`,
		`shapes\Square`,
		`shapes\Shape`,
		`fmt\Stringer`,
	} {
		if len(res.References[fqn]) == 0 {
			t.Errorf("no reference to %s", fqn)
		}
	}
	if _, ok := res.References[`shapes\float64`]; ok {
		t.Error("builtin type reported as reference")
	}
	// Only the receiver and the NewSquare result/literal refer to Square;
	// the declaration name itself does not.
	if n := len(res.References[`shapes\Square`]); n != 3 {
		t.Errorf("Square referenced %d times, want 3", n)
	}
}

func TestGoSyntaxDiagnostics(t *testing.T) {
	res, err := NewAnalyzer(nil).Analyze(context.Background(), "file:///bad.go", []byte("package bad\n\nfunc Broken( {\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Diagnostics) == 0 {
		t.Fatal("expected syntax diagnostics")
	}
	for _, d := range res.Diagnostics {
		if d.Severity != protocol.SeverityError || d.Source != "lexis" {
			t.Errorf("diagnostic = %+v", d)
		}
	}
}

func TestUnknownLanguage(t *testing.T) {
	_, err := NewAnalyzer(nil).Analyze(context.Background(), "file:///README.md", []byte("# hi"))
	if err == nil || !strings.Contains(err.Error(), "no language") {
		t.Errorf("err = %v", err)
	}
}

func TestImportName(t *testing.T) {
	tests := map[string]string{
		"fmt":                           "fmt",
		"github.com/spf13/cobra":        "cobra",
		"github.com/oklog/ulid/v2":      "ulid",
		"github.com/go-git/go-billy/v5": "billy",
	}
	for in, want := range tests {
		if got := importName(in); got != want {
			t.Errorf("importName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(Go(), &Language{Name: "mod", Filenames: []string{"go.mod"}})
	if l, err := r.LanguageFor("file:///x/main.go"); err != nil || l.Name != "go" {
		t.Errorf("main.go -> %v, %v", l, err)
	}
	if l, err := r.LanguageFor("file:///x/go.mod"); err != nil || l.Name != "mod" {
		t.Errorf("go.mod -> %v, %v", l, err)
	}
	if r.HasLanguage("file:///x/a.py") {
		t.Error("unexpected language for .py")
	}
}
