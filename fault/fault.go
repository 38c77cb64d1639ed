// Package fault records unexpected failures that must not take the server
// down: handler errors that are not protocol errors, recovered panics and
// background indexing failures. Every report gets a ULID so a reply sent to
// the editor can be matched with the log line.
package fault

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Reporter receives faults. Report returns the id assigned to the fault.
type Reporter interface {
	Report(ctx context.Context, err error) string
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, err error) string

func (f ReporterFunc) Report(ctx context.Context, err error) string { return f(ctx, err) }

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewID generates a monotonic ULID string.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Panic wraps a value recovered from a panic together with its stack.
type Panic struct {
	Value interface{}
	Stack []byte
}

func (p *Panic) Error() string { return fmt.Sprintf("panic: %v", p.Value) }

// LogReporter writes faults to a slog logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter returns a reporter logging at error level. A nil logger
// falls back to slog.Default.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(ctx context.Context, err error) string {
	id := NewID()
	attrs := []slog.Attr{
		slog.String("fault_id", id),
		slog.String("error", err.Error()),
	}
	if p, ok := err.(*Panic); ok {
		attrs = append(attrs, slog.String("stack", string(p.Stack)))
	}
	r.logger.LogAttrs(ctx, slog.LevelError, "fault", attrs...)
	return id
}
