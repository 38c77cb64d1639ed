package jsonrpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"sync"
	"sync/atomic"
)

// StreamReader turns a byte stream into frames and fans each frame out to
// its subscribers in registration order.
type StreamReader struct {
	src     *textproto.Reader
	logger  *slog.Logger
	maxSize int

	mu      sync.Mutex
	subs    []*subscription
	onClose []func(error)

	closeOnce sync.Once
}

type subscription struct {
	fn     func(*Frame)
	active atomic.Bool
}

// ReaderOption configures a StreamReader.
type ReaderOption func(*StreamReader)

// WithReaderLogger sets the logger used for skipped frames.
func WithReaderLogger(l *slog.Logger) ReaderOption {
	return func(r *StreamReader) { r.logger = l }
}

// WithMaxFrameSize bounds the body length of accepted frames. Larger
// frames are skipped as malformed.
func WithMaxFrameSize(n int) ReaderOption {
	return func(r *StreamReader) {
		if n > 0 {
			r.maxSize = n
		}
	}
}

// NewStreamReader creates a reader over src.
func NewStreamReader(src io.Reader, opts ...ReaderOption) *StreamReader {
	r := &StreamReader{src: newTextprotoReader(src), logger: slog.Default(), maxSize: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers fn for every subsequent frame. The returned function
// removes the subscription; it is safe to call from inside fn and only the
// calling subscriber is affected.
func (r *StreamReader) Subscribe(fn func(*Frame)) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	r.register(sub)
	return func() { r.remove(sub) }
}

// SubscribeOnce delivers the first frame accepted by match to fn and then
// removes itself, before later subscribers see the frame.
func (r *StreamReader) SubscribeOnce(match func(*Frame) bool, fn func(*Frame)) (cancel func()) {
	sub := &subscription{}
	sub.fn = func(f *Frame) {
		if !match(f) {
			return
		}
		if r.remove(sub) {
			fn(f)
		}
	}
	r.register(sub)
	return func() { r.remove(sub) }
}

func (r *StreamReader) register(sub *subscription) {
	sub.active.Store(true)
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
}

// remove deactivates sub and reports whether it was still active.
func (r *StreamReader) remove(sub *subscription) bool {
	if !sub.active.Swap(false) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s == sub {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			break
		}
	}
	return true
}

// Subscribers reports the number of active subscriptions.
func (r *StreamReader) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// OnClose registers fn to run once when the stream ends.
func (r *StreamReader) OnClose(fn func(error)) {
	r.mu.Lock()
	r.onClose = append(r.onClose, fn)
	r.mu.Unlock()
}

// Run reads frames until the stream ends or ctx is done. Malformed frames
// are logged and skipped. Run returns nil on a clean EOF.
func (r *StreamReader) Run(ctx context.Context) error {
	var runErr error
	defer func() { r.close(runErr) }()

	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			return err
		}

		raw, err := readRawFrame(r.src, r.maxSize)
		if errors.Is(err, ErrMalformedFrame) {
			r.logger.Warn("skipping malformed frame", "error", err)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			runErr = err
			return err
		}

		frame, err := ParseFrame(raw)
		if err != nil {
			r.logger.Warn("skipping malformed frame", "error", err)
			continue
		}
		r.deliver(frame)
	}
}

func (r *StreamReader) deliver(f *Frame) {
	r.mu.Lock()
	subs := make([]*subscription, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn(f)
		}
	}
}

func (r *StreamReader) close(err error) {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		hooks := r.onClose
		r.mu.Unlock()
		for _, fn := range hooks {
			fn(err)
		}
	})
}
