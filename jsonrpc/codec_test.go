package jsonrpc

import (
	"bufio"
	"bytes"
	"errors"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
)

func TestFrameMarshalHeaders(t *testing.T) {
	f := NewFrame(&Notification{Method: "initialized", Params: RawMessage(`{}`)})
	f.Headers.Set("X-Trace", "abc")
	f.Headers.Set("Content-Length", "999")

	data, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	head, body, ok := strings.Cut(string(data), "\r\n\r\n")
	if !ok {
		t.Fatalf("no header terminator in %q", data)
	}
	lines := strings.Split(head, "\r\n")
	want := []string{
		"X-Trace: abc",
		"Content-Length: " + strconv.Itoa(len(body)),
		"Content-Type: " + DefaultContentType,
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("headers = %q, want %q", lines, want)
	}
}

func TestFrameMarshalKeepsContentType(t *testing.T) {
	f := NewFrame(&Notification{Method: "x"})
	f.Headers.Set("content-type", "application/json")
	data, err := f.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), DefaultContentType) {
		t.Errorf("default content type overrode explicit one: %q", data)
	}
}

func TestParseFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"request", &Request{ID: IntID(7), Method: "textDocument/hover", Params: RawMessage(`{"a":1}`)}},
		{"string id", &Request{ID: StringID("abc"), Method: "shutdown"}},
		{"notification", &Notification{Method: "exit"}},
		{"success", &SuccessResponse{ID: IntID(3), Result: RawMessage(`[1,2]`)}},
		{"null result", &SuccessResponse{ID: IntID(4), Result: RawMessage(`null`)}},
		{"error", &ErrorResponse{ID: IntID(5), Error: &Error{Code: CodeMethodNotFound, Message: "nope"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFrame(tt.msg)
			f.Headers.Set("X-Extra", "1")
			raw, err := f.Marshal()
			if err != nil {
				t.Fatal(err)
			}
			got, err := ParseFrame(raw)
			if err != nil {
				t.Fatalf("ParseFrame: %v", err)
			}
			if v, _ := got.Headers.Get("x-extra"); v != "1" {
				t.Errorf("X-Extra = %q", v)
			}
			if _, ok := got.Headers.Get(HeaderContentLength); !ok {
				t.Error("Content-Length missing after round trip")
			}

			again, err := NewFrame(got.Body).Marshal()
			if err != nil {
				t.Fatal(err)
			}
			_, wantBody, _ := bytes.Cut(raw, []byte("\r\n\r\n"))
			_, gotBody, _ := bytes.Cut(again, []byte("\r\n\r\n"))
			if !bytes.Equal(wantBody, gotBody) {
				t.Errorf("body = %s, want %s", gotBody, wantBody)
			}
		})
	}
}

func TestParseFrameMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no terminator", "Content-Length: 2\r\n{}"},
		{"bad header", "Content-Length 2\r\n\r\n{}"},
		{"not json", "Content-Length: 3\r\n\r\n{x}"},
		{"empty object", "Content-Length: 2\r\n\r\n{}"},
		{"space in header name", "Content Length: 2\r\n\r\n{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame([]byte(tt.raw))
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("err = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestParseFrameHeaderSpacing(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"a"}`
	n := strconv.Itoa(len(body))
	for _, header := range []string{
		"Content-Length:" + n,
		"Content-Length: " + n,
		"Content-Length:\t" + n + "  ",
	} {
		f, err := ParseFrame([]byte(header + "\r\n\r\n" + body))
		if err != nil {
			t.Errorf("ParseFrame(%q): %v", header, err)
			continue
		}
		if got, _ := f.Headers.Get("Content-Length"); got != n {
			t.Errorf("ParseFrame(%q) Content-Length = %q, want %q", header, got, n)
		}
	}
}

func TestDecodeMessageKinds(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"jsonrpc":"2.0","id":1,"method":"a"}`, "*jsonrpc.Request"},
		{`{"jsonrpc":"2.0","method":"a"}`, "*jsonrpc.Notification"},
		{`{"jsonrpc":"2.0","id":null,"method":"a"}`, "*jsonrpc.Notification"},
		{`{"jsonrpc":"2.0","id":1,"result":null}`, "*jsonrpc.SuccessResponse"},
		{`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"x"}}`, "*jsonrpc.ErrorResponse"},
	}
	for _, tt := range tests {
		msg, err := DecodeMessage([]byte(tt.body))
		if err != nil {
			t.Errorf("DecodeMessage(%s): %v", tt.body, err)
			continue
		}
		if got := typeName(msg); got != tt.want {
			t.Errorf("DecodeMessage(%s) = %s, want %s", tt.body, got, tt.want)
		}
	}
}

func TestReadRawFrameSequence(t *testing.T) {
	var stream bytes.Buffer
	for _, m := range []string{"a", "b"} {
		raw, err := NewFrame(&Notification{Method: m}).Marshal()
		if err != nil {
			t.Fatal(err)
		}
		stream.Write(raw)
	}
	r := textproto.NewReader(bufio.NewReader(&stream))
	for _, want := range []string{"a", "b"} {
		raw, err := readRawFrame(r, DefaultMaxFrameSize)
		if err != nil {
			t.Fatalf("readRawFrame: %v", err)
		}
		f, err := ParseFrame(raw)
		if err != nil {
			t.Fatal(err)
		}
		if n := f.Body.(*Notification); n.Method != want {
			t.Errorf("method = %q, want %q", n.Method, want)
		}
	}
}

func typeName(m Message) string {
	switch m.(type) {
	case *Request:
		return "*jsonrpc.Request"
	case *Notification:
		return "*jsonrpc.Notification"
	case *SuccessResponse:
		return "*jsonrpc.SuccessResponse"
	case *ErrorResponse:
		return "*jsonrpc.ErrorResponse"
	}
	return "unknown"
}
