package lexistest

import (
	"errors"
	"strings"
	"testing"

	"github.com/gossip-lsp/lexis/jsonrpc"
	"github.com/gossip-lsp/lexis/protocol"
)

// AssertHoverContains asserts that the hover result contains the expected substring.
func AssertHoverContains(t testing.TB, hover *protocol.Hover, substr string) {
	t.Helper()
	if hover == nil {
		t.Fatal("hover result is nil")
	}
	if !strings.Contains(hover.Contents.Value, substr) {
		t.Errorf("hover contents %q does not contain %q", hover.Contents.Value, substr)
	}
}

// AssertSymbolNames asserts that symbols contain every given name.
func AssertSymbolNames(t testing.TB, symbols []protocol.SymbolInformation, names ...string) {
	t.Helper()
	have := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		have[s.Name] = true
	}
	for _, name := range names {
		if !have[name] {
			got := make([]string, len(symbols))
			for i, s := range symbols {
				got[i] = s.Name
			}
			t.Errorf("symbols do not contain %q, got: %v", name, got)
		}
	}
}

// AssertDiagnosticCount asserts the number of diagnostics.
func AssertDiagnosticCount(t testing.TB, diags []protocol.Diagnostic, count int) {
	t.Helper()
	if len(diags) != count {
		t.Errorf("expected %d diagnostics, got %d: %v", count, len(diags), diags)
	}
}

// AssertLocationCount asserts the number of locations returned.
func AssertLocationCount(t testing.TB, locations []protocol.Location, count int) {
	t.Helper()
	if len(locations) != count {
		t.Errorf("expected %d locations, got %d", count, len(locations))
	}
}

// AssertErrorCode asserts that err is a JSON-RPC error with the given code.
func AssertErrorCode(t testing.TB, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", code)
	}
	var rpcErr *jsonrpc.Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *jsonrpc.Error, got %T: %v", err, err)
	}
	if rpcErr.Code != code {
		t.Errorf("expected error code %d, got %d (%s)", code, rpcErr.Code, rpcErr.Message)
	}
}
