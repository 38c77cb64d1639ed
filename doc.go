// Package lexis is a language-intelligence server speaking LSP-style
// JSON-RPC. It keeps a symbol index of the workspace, its dependencies and
// an optional stubs snapshot, and answers symbol, hover, definition and
// reference queries from it.
//
// A server needs a name, a version and a transport:
//
//	s := lexis.NewServer("lexis", "0.3.0")
//	err := lexis.Serve(ctx, s, lexis.WithStdio())
//
// Custom methods are added with HandleRequest and HandleNotification. The
// lexistest package drives a server over an in-memory transport.
package lexis
