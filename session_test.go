package dwarf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/addrtab"
)

// fakeAddrSection builds a minimal DWARF5 .debug_addr section (header +
// 8-byte little-endian address slots), mirroring pkg/dwarf/loclist's own
// test fixture for the same section.
func fakeAddrSection(t *testing.T, vals ...uint64) *addrtab.Section {
	t.Helper()
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(0)) // unit_length, ignored by Parse
	binary.Write(buf, binary.LittleEndian, uint16(5)) // version
	buf.WriteByte(8)                                  // address_size
	buf.WriteByte(0)                                  // segment_selector_size
	for _, v := range vals {
		binary.Write(buf, binary.LittleEndian, v)
	}
	return addrtab.Parse(buf.Bytes())
}

func uleb(b []byte, x uint64) []byte {
	for {
		c := byte(x & 0x7f)
		x >>= 7
		if x != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if x == 0 {
			break
		}
	}
	return b
}

// buildUnitFixture assembles a minimal DWARF5 compile unit with a root
// DW_TAG_compile_unit (DW_AT_name "main") containing one
// DW_TAG_subprogram child, mirroring pkg/dwarf/unit's own test fixture.
func buildUnitFixture() (abbrevData, infoData []byte) {
	var ab []byte
	ab = uleb(ab, 1)
	ab = uleb(ab, tagCompileUnit)
	ab = append(ab, 1) // has children
	ab = uleb(ab, atName)
	ab = uleb(ab, 0x08) // DW_FORM_string
	ab = uleb(ab, 0)
	ab = uleb(ab, 0)

	ab = uleb(ab, 2)
	ab = uleb(ab, tagSubprogram)
	ab = append(ab, 0) // no children
	ab = uleb(ab, 0)
	ab = uleb(ab, 0)

	ab = uleb(ab, 0) // table terminator

	var body []byte
	body = uleb(body, 1) // code 1: compile_unit
	body = append(body, []byte("main")...)
	body = append(body, 0)
	body = uleb(body, 2)   // code 2: subprogram (child)
	body = append(body, 0) // terminate children of root

	hdr := make([]byte, 0, 8)
	hdr = append(hdr, 5, 0)       // version 5, little endian
	hdr = append(hdr, 0x01)       // DW_UT_compile
	hdr = append(hdr, 8)          // addr_size
	hdr = append(hdr, 0, 0, 0, 0) // abbrev_offset 0
	unitBody := append(hdr, body...)

	length := make([]byte, 4)
	binary.LittleEndian.PutUint32(length, uint32(len(unitBody)))

	info := append(length, unitBody...)
	return ab, info
}

// fakeReader is a minimal ObjectReader over an in-memory section set,
// used to exercise OpenMemory without constructing a real ELF/Mach-O
// container.
type fakeReader struct {
	ptrSz    int
	sections []SectionInfo
	data     [][]byte
	relocs   map[int][]Relocation
}

func (f *fakeReader) ObjectSize() int64            { return 0 }
func (f *fakeReader) Endianness() binary.ByteOrder { return binary.LittleEndian }
func (f *fakeReader) PointerSize() int             { return f.ptrSz }
func (f *fakeReader) MachineType() string          { return "fake" }
func (f *fakeReader) GetFilesize() int64           { return 0 }
func (f *fakeReader) SectionCount() int            { return len(f.sections) }
func (f *fakeReader) SectionInfo(i int) SectionInfo {
	return f.sections[i]
}
func (f *fakeReader) LoadSection(i int) ([]byte, error) { return f.data[i], nil }
func (f *fakeReader) RelocationsFor(i int) []Relocation { return f.relocs[i] }

func newFakeReader(abbrevData, infoData []byte) *fakeReader {
	return &fakeReader{
		ptrSz: 8,
		sections: []SectionInfo{
			{Name: ".debug_abbrev", Size: uint64(len(abbrevData))},
			{Name: ".debug_info", Size: uint64(len(infoData))},
		},
		data: [][]byte{abbrevData, infoData},
	}
}

// S1: a session opened over one compile unit decodes its root and child
// DIEs, and resolves the root's DW_AT_name.
func TestOpenMemoryDecodesUnit(t *testing.T) {
	ab, info := buildUnitFixture()
	sess, err := OpenMemory(newFakeReader(ab, info), nil)
	require.NoError(t, err)

	units := sess.Units()
	require.Len(t, units, 1)

	root, err := units[0].Root()
	require.NoError(t, err)
	require.Equal(t, uint64(tagCompileUnit), root.Tag())

	v, ok, err := root.Val(atName)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "main", v.Str)

	r := sess.NewReader(units[0])
	_, err = r.Next()
	require.NoError(t, err)
	child, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(tagSubprogram), child.Tag())
}

// S5: a .debug_info section truncated inside its own unit header yields
// a Truncated *Error rather than a crash.
func TestOpenMemoryTruncatedInfo(t *testing.T) {
	ab, info := buildUnitFixture()
	truncated := info[:6] // unit_length + version only, header cut short

	_, err := OpenMemory(newFakeReader(ab, truncated), nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTruncated)
}

// S2: a skeleton session with no .debug_addr of its own resolves an
// addrx-backed DW_AT_low_pc lookup through its tied (executable)
// session once AttachTied runs.
func TestAttachTiedBackfillsDebugAddr(t *testing.T) {
	ab, info := buildUnitFixture()
	tied, err := OpenMemory(newFakeReader(ab, info), nil)
	require.NoError(t, err)
	tied.resources.DebugAddr = fakeAddrSection(t, 0x4000, 0x5000)

	skeleton, err := OpenMemory(newFakeReader(ab, info), nil)
	require.NoError(t, err)
	require.Nil(t, skeleton.resources.DebugAddr)

	skeleton.AttachTied(tied)
	require.NotNil(t, skeleton.resources.DebugAddr)
	require.Equal(t, tied, skeleton.Tied())

	got, err := skeleton.resources.DebugAddr.Table(8).Get(1)
	require.NoError(t, err)
	require.Equal(t, uint64(0x5000), got)
}
