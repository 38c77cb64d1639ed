package lexistest

import (
	"fmt"
	"strings"

	"github.com/gossip-lsp/lexis/protocol"
)

// FileURI creates a file:// URI from a path.
func FileURI(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("file://%s", path)
}

// Pos creates a protocol.Position from line and character (0-indexed).
func Pos(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

// Rng creates a protocol.Range from start and end positions.
func Rng(startLine, startChar, endLine, endChar uint32) protocol.Range {
	return protocol.Range{
		Start: Pos(startLine, startChar),
		End:   Pos(endLine, endChar),
	}
}

// Workspace builds a file map for WithFiles from paths relative to root.
func Workspace(root string, files map[string]string) map[string]string {
	out := make(map[string]string, len(files))
	for path, text := range files {
		out[FileURI(strings.TrimSuffix(root, "/")+"/"+path)] = text
	}
	return out
}
