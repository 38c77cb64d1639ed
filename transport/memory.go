package transport

import (
	"bytes"
	"io"
	"sync"
)

// MemoryPipe creates a pair of connected in-memory transports for tests.
// Data written to one side can be read from the other.
func MemoryPipe() (client, server Transport) {
	return MemoryPipeLimit(0)
}

// MemoryPipeLimit is MemoryPipe with writes accepting at most limit bytes
// per call; the rest is reported with io.ErrShortWrite. A limit of 0 means
// unlimited.
func MemoryPipeLimit(limit int) (client, server Transport) {
	c2s, s2c := newPipe(limit), newPipe(limit)
	return &memoryTransport{r: s2c, w: c2s}, &memoryTransport{r: c2s, w: s2c}
}

type memoryTransport struct {
	r *pipe
	w *pipe
}

func (m *memoryTransport) Read(p []byte) (int, error)  { return m.r.Read(p) }
func (m *memoryTransport) Write(p []byte) (int, error) { return m.w.Write(p) }
func (m *memoryTransport) Close() error {
	m.r.Close()
	m.w.Close()
	return nil
}

// pipe is a blocking in-memory byte pipe.
type pipe struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	limit  int
	closed bool
}

func newPipe(limit int) *pipe {
	p := &pipe{limit: limit}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pipe) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	var err error
	if p.limit > 0 && len(data) > p.limit {
		data, err = data[:p.limit], io.ErrShortWrite
	}
	n, _ := p.buf.Write(data)
	p.cond.Broadcast()
	return n, err
}

func (p *pipe) Read(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.buf.Len() == 0 {
		if p.closed {
			return 0, io.EOF
		}
		p.cond.Wait()
	}
	return p.buf.Read(data)
}

func (p *pipe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
}
