package jsonrpc

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"testing"
)

func frameBytes(t *testing.T, msgs ...Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, m := range msgs {
		raw, err := NewFrame(m).Marshal()
		if err != nil {
			t.Fatal(err)
		}
		buf.Write(raw)
	}
	return buf.Bytes()
}

func TestStreamReaderDeliversInOrder(t *testing.T) {
	src := frameBytes(t, &Notification{Method: "a"}, &Notification{Method: "b"})
	r := NewStreamReader(bytes.NewReader(src))

	var got []string
	r.Subscribe(func(f *Frame) { got = append(got, "1:"+f.Body.(*Notification).Method) })
	r.Subscribe(func(f *Frame) { got = append(got, "2:"+f.Body.(*Notification).Method) })

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"1:a", "2:a", "1:b", "2:b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStreamReaderUnsubscribeDuringDelivery(t *testing.T) {
	src := frameBytes(t, &Notification{Method: "a"}, &Notification{Method: "b"})
	r := NewStreamReader(bytes.NewReader(src))

	var once, other []string
	var unsubscribe func()
	unsubscribe = r.Subscribe(func(f *Frame) {
		once = append(once, f.Body.(*Notification).Method)
		unsubscribe()
	})
	r.Subscribe(func(f *Frame) { other = append(other, f.Body.(*Notification).Method) })

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(once) != 1 || once[0] != "a" {
		t.Errorf("self-removing subscriber saw %v, want [a]", once)
	}
	if len(other) != 2 {
		t.Errorf("other subscriber saw %v, want [a b]", other)
	}
}

func TestStreamReaderSubscribeOnce(t *testing.T) {
	src := frameBytes(t,
		&SuccessResponse{ID: IntID(1), Result: RawMessage(`1`)},
		&SuccessResponse{ID: IntID(2), Result: RawMessage(`2`)},
		&SuccessResponse{ID: IntID(2), Result: RawMessage(`3`)},
	)
	r := NewStreamReader(bytes.NewReader(src))

	var hits []string
	r.SubscribeOnce(func(f *Frame) bool {
		return responseID(f.Body) == IntID(2).String()
	}, func(f *Frame) {
		hits = append(hits, string(f.Body.(*SuccessResponse).Result))
	})

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0] != "2" {
		t.Errorf("hits = %v, want [2]", hits)
	}
	if n := r.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}
}

func TestStreamReaderSkipsMalformed(t *testing.T) {
	var src bytes.Buffer
	src.WriteString("Content-Length: 3\r\n\r\n{x}")
	src.Write(frameBytes(t, &Notification{Method: "ok"}))

	r := NewStreamReader(&src)
	var got []string
	r.Subscribe(func(f *Frame) { got = append(got, f.Body.(*Notification).Method) })

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "ok" {
		t.Errorf("got %v, want [ok]", got)
	}
}

func TestStreamReaderOnClose(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewStreamReader(pr)

	closed := make(chan error, 1)
	r.OnClose(func(err error) { closed <- err })

	data := frameBytes(t, &Notification{Method: "a"})
	go func() {
		pw.Write(data)
		pw.Close()
	}()
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("close error = %v, want nil on EOF", err)
		}
	default:
		t.Error("OnClose callback not invoked")
	}
}

func TestStreamReaderSkipsOversizedFrame(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		bogus string
	}{
		{"length beyond memory", 0, "Content-Length: 1125899906842624\r\n\r\n{}"},
		{"length beyond limit", 16, "Content-Length: 29\r\n\r\n" + `{"jsonrpc":"2.0","method":"x"}`[:29]},
		{"negative length", 0, "Content-Length: -4\r\n\r\n"},
		{"missing length", 0, "Content-Type: text/plain\r\n\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var src bytes.Buffer
			src.WriteString(tt.bogus)
			src.Write(frameBytes(t, &Notification{Method: "ok"}))

			r := NewStreamReader(&src, WithMaxFrameSize(tt.max))
			var got []string
			r.Subscribe(func(f *Frame) { got = append(got, f.Body.(*Notification).Method) })

			if err := r.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(got) != 1 || got[0] != "ok" {
				t.Errorf("got %v, want [ok]", got)
			}
		})
	}
}

func TestStreamReaderHeaderWithoutSpace(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"tight"}`
	src := bytes.NewBufferString("Content-Length:" + strconv.Itoa(len(body)) + "\r\n\r\n" + body)

	r := NewStreamReader(src)
	var got []string
	r.Subscribe(func(f *Frame) { got = append(got, f.Body.(*Notification).Method) })

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "tight" {
		t.Errorf("got %v, want [tight]", got)
	}
}
