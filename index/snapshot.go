package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gossip-lsp/lexis/protocol"
)

// Snapshot format version
const snapshotVersion = 1

// Magic bytes for snapshot identification
var snapshotMagic = []byte("LXIX")

// Snapshot errors
var (
	ErrInvalidSnapshot = errors.New("invalid index snapshot")
	ErrSnapshotVersion = errors.New("index snapshot version mismatch")
)

// Maximum string length in a snapshot.
const maxStringLength = 16 * 1024 * 1024

const (
	flagComplete = 1 << iota
	flagStaticComplete
)

const (
	defMember = 1 << iota
	defStatic
	defRoamed
	defInstantiable
	defSignature
)

// MarshalBinary encodes the index as a self-contained snapshot.
func (i *Index) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := i.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the contents of i with a snapshot.
func (i *Index) UnmarshalBinary(data []byte) error {
	return i.Load(bytes.NewReader(data))
}

// Save writes a snapshot of the index.
// Format:
//
//	[4 bytes] Magic "LXIX"
//	[4 bytes] Version (little endian)
//	[1 byte]  Flags (complete, staticComplete)
//	[4 bytes] Definition count
//	[definitions...] FQN followed by the encoded Definition
//	[4 bytes] Reference count
//	[references...] FQN, URI count, URIs
func (i *Index) Save(w io.Writer) error {
	var defs []entry
	for fqn, def := range i.Definitions() {
		defs = append(defs, entry{fqn: fqn, def: def})
	}
	refs := i.References()

	i.mu.RLock()
	var flags byte
	if i.complete {
		flags |= flagComplete
	}
	if i.staticComplete {
		flags |= flagStaticComplete
	}
	i.mu.RUnlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(snapshotMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(snapshotVersion)); err != nil {
		return err
	}
	if err := bw.WriteByte(flags); err != nil {
		return err
	}

	if err := writeUint32(bw, len(defs)); err != nil {
		return err
	}
	for _, e := range defs {
		if err := writeString(bw, e.fqn); err != nil {
			return err
		}
		if err := writeDefinition(bw, e.def); err != nil {
			return fmt.Errorf("definition %s: %w", e.fqn, err)
		}
	}

	if err := writeUint32(bw, len(refs)); err != nil {
		return err
	}
	for _, fqn := range sortedKeys(refs) {
		if err := writeString(bw, fqn); err != nil {
			return err
		}
		if err := writeStrings(bw, refs[fqn]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load replaces the contents of the index with a snapshot read from r.
// Definitions are replayed through SetDefinition, so listeners see one
// EventDefinitionAdded per definition.
func (i *Index) Load(r io.Reader) error {
	br := bufio.NewReader(r)

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if !bytes.Equal(magic, snapshotMagic) {
		return ErrInvalidSnapshot
	}
	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if version != snapshotVersion {
		return ErrSnapshotVersion
	}
	flags, err := br.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	count, err := readUint32(br)
	if err != nil {
		return err
	}
	defs := make([]entry, 0, min(count, 1024))
	for n := uint32(0); n < count; n++ {
		fqn, err := readString(br)
		if err != nil {
			return err
		}
		def, err := readDefinition(br)
		if err != nil {
			return err
		}
		defs = append(defs, entry{fqn: fqn, def: def})
	}

	count, err = readUint32(br)
	if err != nil {
		return err
	}
	refs := make(map[string]map[string]struct{}, min(count, 1024))
	for n := uint32(0); n < count; n++ {
		fqn, err := readString(br)
		if err != nil {
			return err
		}
		uris, err := readStrings(br)
		if err != nil {
			return err
		}
		set := make(map[string]struct{}, len(uris))
		for _, uri := range uris {
			set[uri] = struct{}{}
		}
		refs[fqn] = set
	}

	i.mu.Lock()
	i.root = newBranch()
	i.mu.Unlock()
	for _, e := range defs {
		i.SetDefinition(e.fqn, e.def)
	}

	i.mu.Lock()
	i.references = refs
	i.complete = flags&flagComplete != 0
	i.staticComplete = flags&flagStaticComplete != 0
	i.mu.Unlock()
	return nil
}

func writeDefinition(w *bufio.Writer, d *Definition) error {
	var flags byte
	if d.IsMember {
		flags |= defMember
	}
	if d.IsStatic {
		flags |= defStatic
	}
	if d.Roamed {
		flags |= defRoamed
	}
	if d.CanBeInstantiated {
		flags |= defInstantiable
	}
	if d.Signature != nil {
		flags |= defSignature
	}
	if err := w.WriteByte(flags); err != nil {
		return err
	}

	for _, s := range []string{d.FQN, d.Type, d.DeclarationLine, d.Documentation} {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	if err := writeStrings(w, d.Extends); err != nil {
		return err
	}
	if err := writeSymbol(w, d.Symbol); err != nil {
		return err
	}

	if d.Signature == nil {
		return nil
	}
	if err := writeString(w, d.Signature.Label); err != nil {
		return err
	}
	if err := writeString(w, d.Signature.Documentation); err != nil {
		return err
	}
	if err := writeUint32(w, len(d.Signature.Parameters)); err != nil {
		return err
	}
	for _, p := range d.Signature.Parameters {
		if err := writeString(w, p.Label); err != nil {
			return err
		}
		if err := writeString(w, p.Documentation); err != nil {
			return err
		}
	}
	return nil
}

func readDefinition(r *bufio.Reader) (*Definition, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	d := &Definition{
		IsMember:          flags&defMember != 0,
		IsStatic:          flags&defStatic != 0,
		Roamed:            flags&defRoamed != 0,
		CanBeInstantiated: flags&defInstantiable != 0,
	}
	for _, dst := range []*string{&d.FQN, &d.Type, &d.DeclarationLine, &d.Documentation} {
		if *dst, err = readString(r); err != nil {
			return nil, err
		}
	}
	if d.Extends, err = readStrings(r); err != nil {
		return nil, err
	}
	if d.Symbol, err = readSymbol(r); err != nil {
		return nil, err
	}

	if flags&defSignature == 0 {
		return d, nil
	}
	sig := &protocol.SignatureInformation{}
	if sig.Label, err = readString(r); err != nil {
		return nil, err
	}
	if sig.Documentation, err = readString(r); err != nil {
		return nil, err
	}
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	for k := uint32(0); k < n; k++ {
		var p protocol.ParameterInformation
		if p.Label, err = readString(r); err != nil {
			return nil, err
		}
		if p.Documentation, err = readString(r); err != nil {
			return nil, err
		}
		sig.Parameters = append(sig.Parameters, p)
	}
	d.Signature = sig
	return d, nil
}

func writeSymbol(w *bufio.Writer, s protocol.SymbolInformation) error {
	if err := writeString(w, s.Name); err != nil {
		return err
	}
	if err := writeString(w, s.ContainerName); err != nil {
		return err
	}
	if err := writeString(w, string(s.Location.URI)); err != nil {
		return err
	}
	rng := s.Location.Range
	return binary.Write(w, binary.LittleEndian, [5]uint32{
		uint32(s.Kind),
		rng.Start.Line, rng.Start.Character,
		rng.End.Line, rng.End.Character,
	})
}

func readSymbol(r *bufio.Reader) (protocol.SymbolInformation, error) {
	var s protocol.SymbolInformation
	var err error
	if s.Name, err = readString(r); err != nil {
		return s, err
	}
	if s.ContainerName, err = readString(r); err != nil {
		return s, err
	}
	uri, err := readString(r)
	if err != nil {
		return s, err
	}
	s.Location.URI = protocol.DocumentURI(uri)

	var nums [5]uint32
	if err := binary.Read(r, binary.LittleEndian, &nums); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	s.Kind = protocol.SymbolKind(nums[0])
	s.Location.Range = protocol.Range{
		Start: protocol.Position{Line: nums[1], Character: nums[2]},
		End:   protocol.Position{Line: nums[3], Character: nums[4]},
	}
	return s, nil
}

func writeUint32(w io.Writer, n int) error {
	return binary.Write(w, binary.LittleEndian, uint32(n))
}

func readUint32(r io.Reader) (uint32, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return n, nil
}

func writeString(w *bufio.Writer, s string) error {
	if err := writeUint32(w, len(s)); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readString(r *bufio.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	if n > maxStringLength {
		return "", fmt.Errorf("%w: string length %d", ErrInvalidSnapshot, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return string(buf), nil
}

func writeStrings(w *bufio.Writer, ss []string) error {
	if err := writeUint32(w, len(ss)); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r *bufio.Reader) ([]string, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, min(n, 1024))
	for k := uint32(0); k < n; k++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
