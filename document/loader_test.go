package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gossip-lsp/lexis/index"
	"github.com/gossip-lsp/lexis/protocol"
)

type mapRetriever map[string]string

func (m mapRetriever) Retrieve(_ context.Context, uri string) ([]byte, error) {
	s, ok := m[uri]
	if !ok {
		return nil, errors.New("not found: " + uri)
	}
	return []byte(s), nil
}

// lineAnalyzer declares `pkg\<word>` for every "def <word>" line and
// references `pkg\<word>` for every "use <word>" line.
var lineAnalyzer = AnalyzerFunc(func(_ context.Context, uri string, content []byte) (*Analysis, error) {
	a := &Analysis{
		Definitions: make(map[string]*index.Definition),
		References:  make(map[string][]protocol.Range),
	}
	for i, line := range strings.Split(string(content), "\n") {
		kind, word, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		fqn := `pkg\` + word
		rng := protocol.Range{
			Start: protocol.Position{Line: uint32(i), Character: 0},
			End:   protocol.Position{Line: uint32(i), Character: uint32(len(line))},
		}
		switch kind {
		case "def":
			a.Definitions[fqn] = &index.Definition{
				FQN:      fqn,
				IsStatic: true,
				Symbol: protocol.SymbolInformation{
					Name:     word,
					Kind:     protocol.SymbolFunction,
					Location: protocol.Location{URI: protocol.DocumentURI(uri), Range: rng},
				},
			}
		case "use":
			a.References[fqn] = append(a.References[fqn], rng)
		}
	}
	return a, nil
})

func newTestLoader(files mapRetriever, opts ...LoaderOption) (*Loader, *index.Index) {
	source := index.New()
	project := index.NewProjectIndex(source, index.NewDependenciesIndex(), func(string) string { return "" })
	return NewLoader(files, project, lineAnalyzer, opts...), source
}

func TestLoaderOpenRegistersSymbols(t *testing.T) {
	ctx := context.Background()
	l, idx := newTestLoader(nil)

	if _, err := l.Open(ctx, "file:///a.go", []byte("def A\nuse B")); err != nil {
		t.Fatal(err)
	}
	if !l.IsOpen("file:///a.go") {
		t.Fatal("expected document to be open")
	}
	if idx.Definition(`pkg\A`, false) == nil {
		t.Error(`pkg\A not registered`)
	}
	var uris []string
	for uri := range idx.ReferenceURIs(`pkg\B`) {
		uris = append(uris, uri)
	}
	if len(uris) != 1 || uris[0] != "file:///a.go" {
		t.Errorf("ReferenceURIs = %v", uris)
	}
}

func TestDocumentUpdateReplacesSymbols(t *testing.T) {
	ctx := context.Background()
	l, idx := newTestLoader(nil)

	d, err := l.Open(ctx, "file:///a.go", []byte("def A\nuse B"))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Update(ctx, []byte("def C\nuse D")); err != nil {
		t.Fatal(err)
	}

	if idx.Definition(`pkg\A`, false) != nil {
		t.Error(`pkg\A still registered after update`)
	}
	if idx.Definition(`pkg\C`, false) == nil {
		t.Error(`pkg\C not registered`)
	}
	for range idx.ReferenceURIs(`pkg\B`) {
		t.Error(`reference to pkg\B survived update`)
	}
	if got := d.Definitions(); len(got) != 1 || got[0] != `pkg\C` {
		t.Errorf("Definitions() = %v", got)
	}
	if d.Content() != "def C\nuse D" {
		t.Errorf("Content() = %q", d.Content())
	}
}

func TestLoaderSizeLimit(t *testing.T) {
	ctx := context.Background()
	big := "def Big\n" + strings.Repeat("x", 200000-len("def Big\n"))
	l, idx := newTestLoader(mapRetriever{"file:///big.go": big})

	_, err := l.Load(ctx, "file:///big.go")
	var tooLarge *ContentTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("Load() error = %v, want ContentTooLargeError", err)
	}
	if tooLarge.Limit != 150000 || tooLarge.Size != 200000 {
		t.Errorf("error = %+v", tooLarge)
	}
	want := "file:///big.go exceeds size limit of 150000 bytes (200000)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if idx.Len() != 0 {
		t.Errorf("index has %d definitions, want 0", idx.Len())
	}

	l.SetLimit(300000)
	if _, err := l.Load(ctx, "file:///big.go"); err != nil {
		t.Fatalf("Load() after raising limit: %v", err)
	}
	if idx.Definition(`pkg\Big`, false) == nil {
		t.Error(`pkg\Big not registered`)
	}
}

func TestLoaderLoadUntracked(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLoader(mapRetriever{"file:///b.go": "def B"})

	d, err := l.GetOrLoad(ctx, "file:///b.go")
	if err != nil {
		t.Fatal(err)
	}
	if !d.IsDefined(`pkg\B`) {
		t.Error(`expected pkg\B to be defined`)
	}
	if l.IsOpen("file:///b.go") {
		t.Error("loaded document must not be tracked as open")
	}
	if _, err := l.GetOrLoad(ctx, "file:///missing.go"); err == nil {
		t.Error("expected error for missing document")
	}
}

func TestLoaderClose(t *testing.T) {
	ctx := context.Background()
	l, idx := newTestLoader(nil)
	if _, err := l.Open(ctx, "file:///a.go", []byte("def A")); err != nil {
		t.Fatal(err)
	}
	l.Close("file:///a.go")
	if l.IsOpen("file:///a.go") {
		t.Error("document still open")
	}
	if idx.Definition(`pkg\A`, false) == nil {
		t.Error("definitions must survive Close")
	}
}

func TestSymbolAt(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLoader(nil)
	d, err := l.Open(ctx, "file:///a.go", []byte("def A\nuse B"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		pos  protocol.Position
		want string
		ok   bool
	}{
		{protocol.Position{Line: 0, Character: 2}, `pkg\A`, true},
		{protocol.Position{Line: 1, Character: 4}, `pkg\B`, true},
		{protocol.Position{Line: 5, Character: 0}, "", false},
	}
	for _, tt := range tests {
		got, ok := d.SymbolAt(tt.pos)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SymbolAt(%v) = %q, %v; want %q, %v", tt.pos, got, ok, tt.want, tt.ok)
		}
	}
}
