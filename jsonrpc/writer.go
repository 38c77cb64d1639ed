package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
)

// StreamWriter queues outbound frames and feeds them to a sink one at a
// time. Enqueue never blocks on I/O: a flush goroutine is started when the
// queue goes from empty to non-empty and exits when it drains again.
type StreamWriter struct {
	sink   io.Writer
	logger *slog.Logger

	mu     sync.Mutex
	queue  []*outbound
	armed  bool
	closed bool
	err    error
}

type outbound struct {
	remaining []byte
	done      chan error
}

// WriterOption configures a StreamWriter.
type WriterOption func(*StreamWriter)

// WithWriterLogger sets the logger used for sink failures.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *StreamWriter) { w.logger = l }
}

// NewStreamWriter creates a writer over sink. The sink may accept fewer
// bytes than offered; the remainder is retried.
func NewStreamWriter(sink io.Writer, opts ...WriterOption) *StreamWriter {
	w := &StreamWriter{sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue serializes f and appends it to the queue. The returned channel
// receives exactly one value once the frame was fully written or failed.
func (w *StreamWriter) Enqueue(f *Frame) <-chan error {
	done := make(chan error, 1)
	data, err := f.Marshal()
	if err != nil {
		done <- err
		return done
	}

	w.mu.Lock()
	if w.closed {
		err := w.err
		w.mu.Unlock()
		if err == nil {
			err = ErrWriterClosed
		}
		done <- err
		return done
	}
	w.queue = append(w.queue, &outbound{remaining: data, done: done})
	arm := !w.armed
	w.armed = true
	w.mu.Unlock()

	if arm {
		go w.flush()
	}
	return done
}

// Write enqueues f and waits for it to be written. A cancelled ctx stops the
// wait but leaves the frame queued.
func (w *StreamWriter) Write(ctx context.Context, f *Frame) error {
	select {
	case err := <-w.Enqueue(f):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush drains the queue head first. Only one flush runs at a time and it
// is the only goroutine touching the head entry's remaining bytes.
func (w *StreamWriter) flush() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.armed = false
			w.mu.Unlock()
			return
		}
		head := w.queue[0]
		w.mu.Unlock()

		n, err := w.sink.Write(head.remaining)
		if n > len(head.remaining) {
			n = len(head.remaining)
		}
		if err != nil && !errors.Is(err, io.ErrShortWrite) {
			w.fail(fmt.Errorf("write frame: %w", err))
			return
		}
		if n < len(head.remaining) {
			head.remaining = head.remaining[n:]
			if n == 0 {
				runtime.Gosched()
			}
			continue
		}

		w.mu.Lock()
		w.queue = w.queue[1:]
		w.mu.Unlock()
		head.done <- nil
	}
}

// fail resolves every queued entry with err and refuses further frames.
func (w *StreamWriter) fail(err error) {
	w.mu.Lock()
	queue := w.queue
	w.queue = nil
	w.armed = false
	w.closed = true
	w.err = err
	w.mu.Unlock()

	w.logger.Error("stream writer failed", "error", err, "dropped", len(queue))
	for _, e := range queue {
		e.done <- err
	}
}

// Close stops accepting frames. Frames already queued are still written.
func (w *StreamWriter) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// Pending reports the number of frames not yet fully written.
func (w *StreamWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}
