package index

import (
	"encoding/binary"
	"errors"
	"reflect"
	"runtime"
	"testing"

	"github.com/gossip-lsp/lexis/protocol"
)

func TestSnapshotRoundTrip(t *testing.T) {
	src := New()
	full := &Definition{
		FQN:               `pkg\Server->Serve()`,
		Extends:           []string{`pkg\Base`},
		IsMember:          true,
		CanBeInstantiated: false,
		Type:              "error",
		DeclarationLine:   "func (s *Server) Serve() error",
		Documentation:     "Serve runs the server.",
		Symbol: protocol.SymbolInformation{
			Name:          "Serve",
			Kind:          protocol.SymbolMethod,
			ContainerName: `pkg\Server`,
			Location: protocol.Location{
				URI:   "file:///srv/server.go",
				Range: protocol.Range{Start: protocol.Position{Line: 3, Character: 1}, End: protocol.Position{Line: 9, Character: 2}},
			},
		},
		Signature: &protocol.SignatureInformation{
			Label:      "Serve() error",
			Parameters: []protocol.ParameterInformation{{Label: "ctx context.Context"}},
		},
	}
	src.SetDefinition(full.FQN, full)
	src.SetDefinition(`pkg\Server`, &Definition{FQN: `pkg\Server`, CanBeInstantiated: true, Roamed: true})
	src.SetDefinition(`pkg\VERSION`, &Definition{FQN: `pkg\VERSION`, IsStatic: true})
	src.AddReferenceURI(`pkg\Server`, "file:///a.go")
	src.AddReferenceURI(`pkg\Server`, "file:///b.go")
	src.SetStaticComplete()

	data, err := src.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	added := 0
	dst := New(WithListener(func(ev Event) {
		if ev == EventDefinitionAdded {
			added++
		}
	}))
	if err := dst.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}

	if added != 3 {
		t.Errorf("definition-added events = %d, want 3", added)
	}
	if !reflect.DeepEqual(collect(src.Definitions()), collect(dst.Definitions())) {
		t.Error("definitions differ after round trip")
	}
	if !reflect.DeepEqual(src.References(), dst.References()) {
		t.Errorf("references = %v, want %v", dst.References(), src.References())
	}
	if dst.IsComplete() || !dst.IsStaticComplete() {
		t.Errorf("flags = (%v, %v), want (false, true)", dst.IsComplete(), dst.IsStaticComplete())
	}
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	idx := New()
	if err := idx.UnmarshalBinary([]byte("nope")); !errors.Is(err, ErrInvalidSnapshot) {
		t.Errorf("err = %v, want ErrInvalidSnapshot", err)
	}

	data, err := New().MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	data[4] = 99
	if err := idx.UnmarshalBinary(data); !errors.Is(err, ErrSnapshotVersion) {
		t.Errorf("err = %v, want ErrSnapshotVersion", err)
	}

	good, _ := New().MarshalBinary()
	if err := idx.UnmarshalBinary(good[:len(good)-2]); !errors.Is(err, ErrInvalidSnapshot) {
		t.Errorf("truncated: err = %v, want ErrInvalidSnapshot", err)
	}
}

func TestSnapshotInflatedCounts(t *testing.T) {
	header := func() []byte {
		b := append([]byte{}, snapshotMagic...)
		b = binary.LittleEndian.AppendUint32(b, snapshotVersion)
		return append(b, 0)
	}
	tests := []struct {
		name string
		blob []byte
	}{
		{"definitions", binary.LittleEndian.AppendUint32(header(), 40_000_000)},
		{"max definitions", binary.LittleEndian.AppendUint32(header(), 0xFFFFFFFF)},
		{"references", binary.LittleEndian.AppendUint32(binary.LittleEndian.AppendUint32(header(), 0), 0xFFFFFFFF)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			err := New().UnmarshalBinary(tt.blob)
			runtime.ReadMemStats(&after)

			if !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("err = %v, want ErrInvalidSnapshot", err)
			}
			if alloc := after.TotalAlloc - before.TotalAlloc; alloc > 16<<20 {
				t.Errorf("decoding allocated %d bytes", alloc)
			}
		})
	}
}
