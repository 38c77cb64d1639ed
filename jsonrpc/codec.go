package jsonrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
)

const (
	HeaderContentLength = "Content-Length"
	HeaderContentType   = "Content-Type"

	// DefaultContentType is sent when a frame carries no Content-Type.
	DefaultContentType = "application/vscode-jsonrpc; charset=utf8"

	// DefaultMaxFrameSize bounds the body length a StreamReader accepts.
	DefaultMaxFrameSize = 64 << 20
)

// Headers is an insertion-ordered set of frame headers. Names compare
// case-insensitively; the first spelling seen is kept.
type Headers struct {
	names  []string
	values map[string]string
}

// NewHeaders returns an empty header set.
func NewHeaders() *Headers {
	return &Headers{values: make(map[string]string)}
}

func headerKey(name string) string { return strings.ToLower(name) }

// Set assigns value to name, keeping the original position if present.
func (h *Headers) Set(name, value string) {
	key := headerKey(name)
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, name)
	}
	h.values[key] = value
}

// Get returns the value for name.
func (h *Headers) Get(name string) (string, bool) {
	v, ok := h.values[headerKey(name)]
	return v, ok
}

// Names returns header names in insertion order.
func (h *Headers) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Len reports the number of headers.
func (h *Headers) Len() int { return len(h.names) }

// Frame is one wire unit: headers plus a JSON-RPC body.
type Frame struct {
	Headers *Headers
	Body    Message
}

// NewFrame wraps a message with an empty header set.
func NewFrame(body Message) *Frame {
	return &Frame{Headers: NewHeaders(), Body: body}
}

// Marshal renders the frame for the wire. Content-Length always reflects
// the exact byte length of the body; Content-Type is defaulted.
func (f *Frame) Marshal() ([]byte, error) {
	body, err := json.Marshal(f.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	headers := f.Headers
	if headers == nil {
		headers = NewHeaders()
	}
	out := NewHeaders()
	for _, name := range headers.names {
		out.Set(name, headers.values[headerKey(name)])
	}
	out.Set(HeaderContentLength, strconv.Itoa(len(body)))
	if _, ok := out.Get(HeaderContentType); !ok {
		out.Set(HeaderContentType, DefaultContentType)
	}

	var buf bytes.Buffer
	for _, name := range out.names {
		fmt.Fprintf(&buf, "%s: %s\r\n", name, out.values[headerKey(name)])
	}
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// ParseFrame parses one complete frame. The header block ends at the first
// empty CRLF line; everything after it is the JSON-RPC body.
func ParseFrame(raw []byte) (*Frame, error) {
	head, body, found := bytes.Cut(raw, []byte("\r\n\r\n"))
	if !found {
		return nil, fmt.Errorf("%w: missing header terminator", ErrMalformedFrame)
	}

	headers := NewHeaders()
	for _, line := range strings.Split(string(head), "\r\n") {
		if line == "" {
			continue
		}
		name, value, ok := splitHeader(line)
		if !ok {
			return nil, fmt.Errorf("%w: invalid header line %q", ErrMalformedFrame, line)
		}
		headers.Set(name, value)
	}

	msg, err := DecodeMessage(body)
	if err != nil {
		return nil, err
	}
	return &Frame{Headers: headers, Body: msg}, nil
}

// splitHeader splits a "Name: value" line. The space after the colon is
// optional and the name must be an HTTP token.
func splitHeader(line string) (name, value string, ok bool) {
	name, value, ok = strings.Cut(line, ":")
	if !ok || !isToken(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}

// resync returns the part of line where a header block starts. Bytes left
// over from a skipped frame may precede it on the same line.
func resync(line string) (string, bool) {
	if _, _, ok := splitHeader(line); ok {
		return line, true
	}
	i := strings.Index(strings.ToLower(line), strings.ToLower(HeaderContentLength)+":")
	if i < 0 {
		return "", false
	}
	return line[i:], true
}

// readRawFrame reads bytes from r until one complete frame is available and
// returns them unparsed. Header blocks without a usable Content-Length and
// bodies larger than maxSize yield an error wrapping ErrMalformedFrame; the
// body of such a frame is not read and the next call resynchronizes on the
// following header block. Other errors mean the stream itself is unusable.
func readRawFrame(r *textproto.Reader, maxSize int) ([]byte, error) {
	var head bytes.Buffer
	contentLen := -1
	var bad error
	for {
		line, err := r.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		if head.Len() == 0 {
			if line == "" {
				// Stray blank line between frames.
				continue
			}
			start, ok := resync(line)
			if !ok {
				continue
			}
			line = start
		}
		if line == "" {
			break
		}
		head.WriteString(line)
		head.WriteString("\r\n")

		name, val, ok := splitHeader(line)
		if !ok || !strings.EqualFold(name, HeaderContentLength) {
			continue
		}
		n, err := strconv.ParseInt(val, 10, 64)
		switch {
		case err != nil || n < 0:
			bad = fmt.Errorf("%w: invalid Content-Length %q", ErrMalformedFrame, val)
		case n > int64(maxSize):
			bad = fmt.Errorf("%w: Content-Length %d exceeds limit of %d bytes", ErrMalformedFrame, n, maxSize)
		default:
			contentLen = int(n)
		}
	}

	if bad != nil {
		return nil, bad
	}
	if contentLen < 0 {
		return nil, fmt.Errorf("%w: missing Content-Length header", ErrMalformedFrame)
	}

	raw := make([]byte, head.Len()+2+contentLen)
	n := copy(raw, head.Bytes())
	n += copy(raw[n:], "\r\n")
	if _, err := io.ReadFull(r.R, raw[n:]); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return raw, nil
}

func newTextprotoReader(src io.Reader) *textproto.Reader {
	return textproto.NewReader(bufio.NewReaderSize(src, 64*1024))
}
