package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gossip-lsp/lexis/fault"
	"github.com/gossip-lsp/lexis/jsonrpc"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, method string, params jsonrpc.RawMessage) (interface{}, error) {
				order = append(order, name)
				return next(ctx, method, params)
			}
		}
	}
	h := Chain(tag("outer"), tag("inner"))(func(context.Context, string, jsonrpc.RawMessage) (interface{}, error) {
		order = append(order, "handler")
		return nil, nil
	})
	h(context.Background(), "m", nil)
	if strings.Join(order, ",") != "outer,inner,handler" {
		t.Errorf("order = %v", order)
	}
}

func TestRecovery(t *testing.T) {
	var reported error
	reporter := fault.ReporterFunc(func(_ context.Context, err error) string {
		reported = err
		return "FAULT1"
	})
	h := Recovery(reporter)(func(context.Context, string, jsonrpc.RawMessage) (interface{}, error) {
		panic("boom")
	})

	_, err := h(context.Background(), "textDocument/hover", nil)
	var rpcErr *jsonrpc.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != jsonrpc.CodeInternalError {
		t.Fatalf("err = %v", err)
	}
	if data, _ := rpcErr.Data.(map[string]string); data["faultId"] != "FAULT1" {
		t.Errorf("data = %v", rpcErr.Data)
	}
	var p *fault.Panic
	if !errors.As(reported, &p) || p.Value != "boom" || len(p.Stack) == 0 {
		t.Errorf("reported = %v", reported)
	}
}

func TestTelemetry(t *testing.T) {
	metrics := NewMetrics()
	h := Telemetry(metrics)(func(_ context.Context, method string, _ jsonrpc.RawMessage) (interface{}, error) {
		if method == "bad" {
			return nil, errors.New("nope")
		}
		return nil, nil
	})
	h(context.Background(), "good", nil)
	h(context.Background(), "good", nil)
	h(context.Background(), "bad", nil)

	stats, inFlight := metrics.Snapshot()
	if inFlight != 0 {
		t.Errorf("inFlight = %d", inFlight)
	}
	if len(stats) != 2 || stats[0].Method != "bad" || stats[1].Method != "good" {
		t.Fatalf("stats = %+v", stats)
	}
	if stats[0].Count != 1 || stats[0].Errors != 1 {
		t.Errorf("bad = %+v", stats[0])
	}
	if stats[1].Count != 2 || stats[1].Errors != 0 || stats[1].Max < stats[1].Mean {
		t.Errorf("good = %+v", stats[1])
	}
}

func TestLoggingAndTracing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var method, id string
	h := Chain(Tracing(), Logging(logger))(func(ctx context.Context, _ string, params jsonrpc.RawMessage) (interface{}, error) {
		method, id = TraceMethod(ctx), TraceID(ctx)
		switch string(params) {
		case "cancel":
			return nil, context.Canceled
		case "fail":
			return nil, errors.New("disk on fire")
		}
		return nil, nil
	})

	h(context.Background(), "workspace/symbol", nil)
	h(context.Background(), "workspace/symbol", jsonrpc.RawMessage("cancel"))
	if buf.Len() != 0 {
		t.Errorf("unexpected log output: %s", buf.String())
	}
	if method != "workspace/symbol" || len(id) != 26 {
		t.Errorf("trace = %q %q", method, id)
	}

	h(context.Background(), "workspace/symbol", jsonrpc.RawMessage("fail"))
	out := buf.String()
	if !strings.Contains(out, "request failed") || !strings.Contains(out, "disk on fire") || !strings.Contains(out, "trace_id=") {
		t.Errorf("log = %s", out)
	}
}
