package finder

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gossip-lsp/lexis/protocol"
)

// Caller sends a request to the editor and decodes its result.
type Caller interface {
	Call(ctx context.Context, method string, params, result interface{}) error
}

// Client asks the editor for the workspace files with workspace/xfiles,
// for clients that announce xfilesProvider.
type Client struct {
	caller  Caller
	rootURI string
}

// NewClient creates a finder listing files below rootURI.
func NewClient(caller Caller, rootURI string) *Client {
	return &Client{caller: caller, rootURI: rootURI}
}

func (c *Client) Find(ctx context.Context, glob string) ([]string, error) {
	var files []protocol.TextDocumentIdentifier
	if err := c.caller.Call(ctx, protocol.MethodXFiles, protocol.FilesParams{Base: c.rootURI}, &files); err != nil {
		return nil, fmt.Errorf("list workspace files: %w", err)
	}

	base := uriPath(c.rootURI)
	var uris []string
	for _, f := range files {
		rel := strings.TrimPrefix(uriPath(string(f.URI)), base)
		if Match(glob, rel) {
			uris = append(uris, string(f.URI))
		}
	}
	SortURIsLevelOrder(uris)
	return uris, nil
}

func uriPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return u.Path
}
