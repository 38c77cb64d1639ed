package document

import (
	"testing"

	"github.com/gossip-lsp/lexis/protocol"
)

func TestOffsetAt(t *testing.T) {
	text := "hello\nworld\nfoo"
	tests := []struct {
		pos  protocol.Position
		want int
	}{
		{protocol.Position{Line: 0, Character: 0}, 0},
		{protocol.Position{Line: 0, Character: 5}, 5},
		{protocol.Position{Line: 1, Character: 0}, 6},
		{protocol.Position{Line: 1, Character: 5}, 11},
		{protocol.Position{Line: 2, Character: 0}, 12},
		{protocol.Position{Line: 2, Character: 3}, 15},
	}
	for _, tt := range tests {
		got := OffsetAt(text, tt.pos)
		if got != tt.want {
			t.Errorf("OffsetAt(%v) = %d, want %d", tt.pos, got, tt.want)
		}
	}
}

func TestPositionAt(t *testing.T) {
	text := "hello\nworld\nfoo"
	tests := []struct {
		offset int
		want   protocol.Position
	}{
		{0, protocol.Position{Line: 0, Character: 0}},
		{5, protocol.Position{Line: 0, Character: 5}},
		{6, protocol.Position{Line: 1, Character: 0}},
		{11, protocol.Position{Line: 1, Character: 5}},
		{12, protocol.Position{Line: 2, Character: 0}},
	}
	for _, tt := range tests {
		got := PositionAt(text, tt.offset)
		if got != tt.want {
			t.Errorf("PositionAt(%d) = %v, want %v", tt.offset, got, tt.want)
		}
	}
}

func TestUTF16Handling(t *testing.T) {
	// U+1F600 is a surrogate pair (2 UTF-16 code units)
	text := "a\U0001F600b"
	// UTF-16 offsets: a=0, emoji=1-2, b=3
	offset := OffsetAt(text, protocol.Position{Line: 0, Character: 3})
	if text[offset] != 'b' {
		t.Errorf("expected 'b' at UTF-16 offset 3, got %q (byte offset %d)", text[offset], offset)
	}
}

func TestLineIndexMatchesPositionAt(t *testing.T) {
	texts := []string{
		"hello\nworld\nfoo",
		"a\U0001F600b\n\nlast",
		"",
		"trailing\n",
	}
	for _, text := range texts {
		li := NewLineIndex(text)
		for off := 0; off <= len(text); off++ {
			if got, want := li.PositionAt(off), PositionAt(text, off); got != want {
				t.Errorf("text %q offset %d: LineIndex = %v, PositionAt = %v", text, off, got, want)
			}
		}
	}
}

func TestLineAt(t *testing.T) {
	text := "first\nsecond\nthird"
	tests := []struct {
		line uint32
		want string
	}{
		{0, "first"},
		{1, "second"},
		{2, "third"},
		{3, ""},
	}
	for _, tt := range tests {
		if got := LineAt(text, tt.line); got != tt.want {
			t.Errorf("LineAt(%d) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestApplyChanges(t *testing.T) {
	text := "hello world"
	changes := []protocol.TextDocumentContentChangeEvent{
		{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 0, Character: 6},
				End:   protocol.Position{Line: 0, Character: 11},
			},
			Text: "lexis",
		},
	}
	got := ApplyChanges(text, changes)
	want := "hello lexis"
	if got != want {
		t.Errorf("ApplyChanges = %q, want %q", got, want)
	}
}

func TestApplyChangesFullSync(t *testing.T) {
	changes := []protocol.TextDocumentContentChangeEvent{{Text: "replaced"}}
	if got := ApplyChanges("old text", changes); got != "replaced" {
		t.Errorf("ApplyChanges = %q, want %q", got, "replaced")
	}
}
