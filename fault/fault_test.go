package fault

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestNewIDMonotonic(t *testing.T) {
	prev := NewID()
	for i := 0; i < 100; i++ {
		id := NewID()
		if _, err := ulid.ParseStrict(id); err != nil {
			t.Fatalf("NewID() = %q: %v", id, err)
		}
		if id <= prev {
			t.Fatalf("NewID() = %q, not after %q", id, prev)
		}
		prev = id
	}
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewTextHandler(&buf, nil)))

	id := r.Report(context.Background(), errors.New("boom"))
	out := buf.String()
	if !strings.Contains(out, id) {
		t.Errorf("log output %q missing fault id %q", out, id)
	}
	if !strings.Contains(out, "boom") {
		t.Errorf("log output %q missing error", out)
	}

	buf.Reset()
	r.Report(context.Background(), &Panic{Value: "bad", Stack: []byte("goroutine 1")})
	if !strings.Contains(buf.String(), "goroutine 1") {
		t.Errorf("panic report %q missing stack", buf.String())
	}
}
