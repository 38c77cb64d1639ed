package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gossip-lsp/lexis/fault"
)

type duplex struct {
	io.Reader
	io.Writer
	r *io.PipeReader
	w *io.PipeWriter
}

func (d *duplex) Close() error {
	d.r.Close()
	return d.w.Close()
}

func newDuplexPair() (*duplex, *duplex) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &duplex{Reader: ar, Writer: aw, r: ar, w: aw},
		&duplex{Reader: br, Writer: bw, r: br, w: bw}
}

type spyReporter struct {
	count atomic.Int32
}

func (s *spyReporter) Report(ctx context.Context, err error) string {
	s.count.Add(1)
	return "fault-1"
}

// startPair wires a server Conn running handler to a bare client Conn.
func startPair(t *testing.T, handler Handler, opts ...ConnOption) (client, server *Conn) {
	t.Helper()
	a, b := newDuplexPair()
	server = NewConn(b, handler, opts...)
	client = NewConn(a, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go server.Run(ctx)
	go client.Run(ctx)
	t.Cleanup(func() {
		cancel()
		client.Close()
		server.Close()
	})
	return client, server
}

func callCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConnConcurrentRequestsOutOfOrder(t *testing.T) {
	const n = 10
	handler := func(ctx context.Context, method string, params RawMessage) (interface{}, error) {
		var v int
		if err := json.Unmarshal(params, &v); err != nil {
			return nil, Errorf(CodeInvalidParams, "bad params")
		}
		// Later requests finish first.
		time.Sleep(time.Duration(n-v) * 5 * time.Millisecond)
		return v * 10, nil
	}
	client, _ := startPair(t, handler)
	ctx := callCtx(t)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var got int
			if err := client.Call(ctx, "scale", i, &got); err != nil {
				errs <- err
				return
			}
			if got != i*10 {
				errs <- fmt.Errorf("call %d got %d", i, got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if p := client.Client().Pending(); p != 0 {
		t.Errorf("Pending() = %d after all responses", p)
	}
}

func TestConnErrorMapping(t *testing.T) {
	spy := &spyReporter{}
	handler := func(ctx context.Context, method string, params RawMessage) (interface{}, error) {
		switch method {
		case "protocol":
			return nil, &Error{Code: CodeInvalidParams, Message: "bad", Data: "detail"}
		case "wrapped":
			return nil, fmt.Errorf("context: %w", Errorf(CodeServerNotInitialized, "not yet"))
		case "plain":
			return nil, errors.New("disk on fire")
		case "panic":
			panic("kaboom")
		}
		return nil, Errorf(CodeMethodNotFound, "method not found: %s", method)
	}
	client, _ := startPair(t, handler, WithFaultReporter(spy))
	ctx := callCtx(t)

	tests := []struct {
		method  string
		code    int
		message string
		fault   bool
	}{
		{"protocol", CodeInvalidParams, "bad", false},
		{"wrapped", CodeServerNotInitialized, "not yet", false},
		{"plain", CodeInternalError, "disk on fire", true},
		{"panic", CodeInternalError, "panic: kaboom", true},
		{"missing", CodeMethodNotFound, "method not found: missing", false},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			before := spy.count.Load()
			err := client.Call(ctx, tt.method, nil, nil)
			var rpcErr *Error
			if !errors.As(err, &rpcErr) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if rpcErr.Code != tt.code || rpcErr.Message != tt.message {
				t.Errorf("got (%d, %q), want (%d, %q)", rpcErr.Code, rpcErr.Message, tt.code, tt.message)
			}
			if reported := spy.count.Load() > before; reported != tt.fault {
				t.Errorf("fault reported = %v, want %v", reported, tt.fault)
			}
			if tt.fault {
				data, _ := rpcErr.Data.(map[string]interface{})
				if data["faultId"] != "fault-1" {
					t.Errorf("data = %v, want faultId", rpcErr.Data)
				}
			}
		})
	}
}

func TestConnUnknownMethodKeepsID(t *testing.T) {
	a, b := newDuplexPair()
	server := NewConn(b, func(ctx context.Context, method string, params RawMessage) (interface{}, error) {
		return nil, Errorf(CodeMethodNotFound, "method not found: %s", method)
	})
	go server.Run(context.Background())
	defer server.Close()

	w := NewStreamWriter(a)
	r := NewStreamReader(a)
	got := make(chan *Frame, 4)
	r.Subscribe(func(f *Frame) { got <- f })
	go r.Run(context.Background())

	ctx := callCtx(t)
	// A notification for an unknown method must not produce a reply.
	if err := w.Write(ctx, NewFrame(&Notification{Method: "nope/notify"})); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(ctx, NewFrame(&Request{ID: StringID("req-1"), Method: "nope/request"})); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-got:
		resp, ok := f.Body.(*ErrorResponse)
		if !ok {
			t.Fatalf("first reply = %T, want *ErrorResponse", f.Body)
		}
		if resp.ID.String() != StringID("req-1").String() {
			t.Errorf("reply id = %s, want \"req-1\"", resp.ID)
		}
		if resp.Error.Code != CodeMethodNotFound {
			t.Errorf("code = %d, want %d", resp.Error.Code, CodeMethodNotFound)
		}
	case <-ctx.Done():
		t.Fatal("no reply")
	}

	select {
	case f := <-got:
		t.Errorf("unexpected extra frame %T", f.Body)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnCloseRejectsPending(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	handler := func(ctx context.Context, method string, params RawMessage) (interface{}, error) {
		<-release
		return nil, nil
	}
	client, server := startPair(t, handler)

	closed := make(chan struct{})
	client.OnClose(func() { close(closed) })

	errc := make(chan error, 1)
	go func() { errc <- client.Call(context.Background(), "block", nil, nil) }()

	deadline := time.Now().Add(5 * time.Second)
	for client.Client().Pending() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("call never became pending")
		}
		time.Sleep(time.Millisecond)
	}
	server.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("err = %v, want ErrConnectionClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending call not rejected")
	}
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Error("OnClose hook not run")
	}
}

func TestConnNotifyReachesHandler(t *testing.T) {
	got := make(chan string, 1)
	handler := func(ctx context.Context, method string, params RawMessage) (interface{}, error) {
		got <- method + " " + string(params)
		return "ignored", nil
	}
	client, _ := startPair(t, handler, WithFaultReporter(fault.ReporterFunc(func(context.Context, error) string { return "" })))

	if err := client.Notify(callCtx(t), "initialized", map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-got:
		if m != `initialized {"a":1}` {
			t.Errorf("handler saw %q", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestConnNotificationsInArrivalOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{})
	handler := func(ctx context.Context, method string, params RawMessage) (interface{}, error) {
		if method == "slow" {
			time.Sleep(100 * time.Millisecond)
		}
		mu.Lock()
		seen = append(seen, method)
		n := len(seen)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil, nil
	}
	client, _ := startPair(t, handler)

	for _, m := range []string{"slow", "fast", "last"} {
		if err := client.Notify(callCtx(t), m, nil); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("notifications not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"slow", "fast", "last"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("handled %v, want %v", seen, want)
		}
	}
}

func TestConnNotificationMayAwaitResponse(t *testing.T) {
	got := make(chan string, 1)
	var server *Conn
	handler := func(ctx context.Context, method string, params RawMessage) (interface{}, error) {
		var echoed string
		if err := server.Call(ctx, "echo", "ping", &echoed); err != nil {
			return nil, err
		}
		got <- echoed
		return nil, nil
	}

	a, b := newDuplexPair()
	server = NewConn(b, handler)
	client := NewConn(a, func(ctx context.Context, method string, params RawMessage) (interface{}, error) {
		return params, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	go server.Run(ctx)
	go client.Run(ctx)
	t.Cleanup(func() {
		cancel()
		client.Close()
		server.Close()
	})

	if err := client.Notify(callCtx(t), "changed", nil); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-got:
		if v != "ping" {
			t.Errorf("echoed %q", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("notification handler blocked awaiting its response")
	}
}
