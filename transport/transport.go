// Package transport provides the byte streams a language server talks
// over: stdio, TCP, Unix domain sockets, WebSocket, Node.js IPC and an
// in-memory pipe for tests.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Transport is a bidirectional byte stream for JSON-RPC frames.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open creates the transport described by spec:
//
//	stdio               standard input and output
//	node-ipc            fd 3 in, stdout out (VS Code extension host)
//	tcp:<addr>          connect to an editor listening on addr
//	tcp-listen:<addr>   accept one editor connection on addr
//	unix:<path>         connect to a Unix domain socket
//	unix-listen:<path>  accept one connection on a Unix domain socket
//	ws:<addr>           accept one WebSocket connection on addr
func Open(ctx context.Context, spec string, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kind, addr, _ := strings.Cut(spec, ":")
	switch kind {
	case "", "stdio":
		return Stdio(), nil
	case "node-ipc":
		return NodeIPC(), nil
	case "tcp":
		return Dial(ctx, "tcp", addr)
	case "tcp-listen":
		return ListenOnce(ctx, "tcp", addr)
	case "unix":
		return Dial(ctx, "unix", addr)
	case "unix-listen":
		return ListenOnce(ctx, "unix", addr)
	case "ws":
		return ListenWebSocket(ctx, addr, logger)
	default:
		return nil, fmt.Errorf("unknown transport %q", spec)
	}
}
