package transport

import (
	"context"
	"net"
	"os"
)

type netTransport struct {
	net.Conn
	cleanup string // unix socket path to remove on Close
}

func (t *netTransport) Close() error {
	err := t.Conn.Close()
	if t.cleanup != "" {
		os.Remove(t.cleanup)
	}
	return err
}

// FromConn wraps an established connection.
func FromConn(conn net.Conn) Transport {
	return &netTransport{Conn: conn}
}

// Dial connects to an editor waiting on network ("tcp" or "unix") addr.
func Dial(ctx context.Context, network, addr string) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return FromConn(conn), nil
}

// ListenOnce listens on addr and returns the first accepted connection.
// Cancelling ctx aborts the wait.
func ListenOnce(ctx context.Context, network, addr string) (Transport, error) {
	if network == "unix" {
		os.Remove(addr)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return acceptOne(ctx, ln, network)
}

func acceptOne(ctx context.Context, ln net.Listener, network string) (Transport, error) {
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	t := &netTransport{Conn: conn}
	if network == "unix" {
		t.cleanup = ln.Addr().String()
	}
	return t, nil
}
