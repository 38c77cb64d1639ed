package document

import (
	"context"
	"fmt"
	"os"

	"github.com/gossip-lsp/lexis/protocol"
)

// ContentRetriever fetches the current content of a document that is not
// open in the editor.
type ContentRetriever interface {
	Retrieve(ctx context.Context, uri string) ([]byte, error)
}

// FileSystemRetriever reads file:// URIs from the local filesystem.
type FileSystemRetriever struct{}

func (FileSystemRetriever) Retrieve(ctx context.Context, uri string) ([]byte, error) {
	data, err := os.ReadFile(URIToPath(uri))
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", uri, err)
	}
	return data, nil
}

// Caller sends a request to the editor and decodes its result.
type Caller interface {
	Call(ctx context.Context, method string, params, result interface{}) error
}

// ClientRetriever asks the editor for content with textDocument/xcontent,
// for clients that announce xcontentProvider.
type ClientRetriever struct {
	caller Caller
}

// NewClientRetriever returns a retriever backed by the editor.
func NewClientRetriever(caller Caller) *ClientRetriever {
	return &ClientRetriever{caller: caller}
}

func (r *ClientRetriever) Retrieve(ctx context.Context, uri string) ([]byte, error) {
	params := protocol.ContentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(uri)},
	}
	var item protocol.TextDocumentItem
	if err := r.caller.Call(ctx, protocol.MethodXContent, params, &item); err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", uri, err)
	}
	return []byte(item.Text), nil
}
