package dwarf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/unit"
)

// buildPubnames assembles one classic .debug_pubnames header-block
// (DWARFv2 section 6.1.1) naming a single DIE.
func buildPubnames(debugInfoOffset uint64, dieOffset uint64, name string) []byte {
	var block bytes.Buffer
	binary.Write(&block, binary.LittleEndian, uint16(2)) // version
	binary.Write(&block, binary.LittleEndian, uint32(debugInfoOffset))
	binary.Write(&block, binary.LittleEndian, uint32(0)) // debug_info_length
	binary.Write(&block, binary.LittleEndian, uint32(dieOffset))
	block.WriteString(name)
	block.WriteByte(0)
	binary.Write(&block, binary.LittleEndian, uint32(0)) // terminating die_offset

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, uint32(block.Len()))
	out.Write(block.Bytes())
	return out.Bytes()
}

func TestNamesLookupAndPrefix(t *testing.T) {
	s := &Session{
		pubnames:  buildPubnames(0, 0x42, "mainFunc"),
		resources: &unit.Resources{Order: binary.LittleEndian},
		harmless:  newHarmlessErrors(),
	}

	idx := s.Names()
	off, ok := idx.Lookup("mainFunc")
	require.True(t, ok)
	require.Equal(t, uint64(0x42), off)

	_, ok = idx.Lookup("missing")
	require.False(t, ok)

	require.Equal(t, []string{"mainFunc"}, idx.WithPrefix("main"))
	require.Equal(t, 1, idx.Len())

	// Names() must cache: a second call returns the same index without
	// re-parsing pubnames.
	require.Same(t, idx, s.Names())
}

func TestNamesEmptySection(t *testing.T) {
	s := &Session{resources: &unit.Resources{Order: binary.LittleEndian}, harmless: newHarmlessErrors()}
	idx := s.Names()
	require.Equal(t, 0, idx.Len())
}
