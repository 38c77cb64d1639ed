package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"
)

// ListenWebSocket serves WebSocket upgrades on addr and returns the first
// connection as a transport. Each WebSocket message carries a chunk of the
// framed stream, as sent by Monaco-based editors.
func ListenWebSocket(ctx context.Context, addr string, logger *slog.Logger) (Transport, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return serveWebSocket(ctx, ln, logger)
}

func serveWebSocket(ctx context.Context, ln net.Listener, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	connCh := make(chan *wsTransport, 1)
	var once sync.Once

	srv := &http.Server{Handler: websocket.Handler(func(ws *websocket.Conn) {
		t := &wsTransport{conn: ws, done: make(chan struct{})}
		accepted := false
		once.Do(func() {
			accepted = true
			connCh <- t
		})
		if !accepted {
			ws.Close()
			return
		}
		// The handler owns the connection; keep it open until Close.
		<-t.done
	})}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket server error", "error", err)
		}
	}()

	select {
	case t := <-connCh:
		t.srv = srv
		return t, nil
	case <-ctx.Done():
		srv.Close()
		return nil, ctx.Err()
	}
}

type wsTransport struct {
	conn *websocket.Conn
	srv  *http.Server

	mu      sync.Mutex
	pending []byte // unread rest of the last message

	closeOnce sync.Once
	done      chan struct{}
}

func (w *wsTransport) Read(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		var msg []byte
		if err := websocket.Message.Receive(w.conn, &msg); err != nil {
			return 0, err
		}
		w.pending = msg
	}
	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

func (w *wsTransport) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(w.conn, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsTransport) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.conn.Close()
		close(w.done)
		if w.srv != nil {
			w.srv.Close()
		}
	})
	return err
}
