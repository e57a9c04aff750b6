package loclist

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/addrtab"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

// fakeDebugAddr builds a minimal .debug_addr section (DWARFv5 section
// 7.27) with address size 8 and one entry per value in vals, and returns
// a Table rooted right after the header (addr_base == 8, matching a real
// producer's convention of pointing addr_base past the header).
func fakeDebugAddr(vals ...uint64) *addrtab.Table {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(0)) // unit_length, ignored by Parse
	binary.Write(buf, binary.LittleEndian, uint16(5)) // version
	buf.WriteByte(8)                                  // address_size
	buf.WriteByte(0)                                  // segment_selector_size
	for _, v := range vals {
		binary.Write(buf, binary.LittleEndian, v)
	}
	sec := addrtab.Parse(buf.Bytes())
	return sec.Table(8)
}

func TestRngListDwarf5(t *testing.T) {
	buf := new(bytes.Buffer)

	p32 := func(n uint32) { binary.Write(buf, binary.LittleEndian, n) }
	p8 := func(n uint8) { binary.Write(buf, binary.LittleEndian, n) }
	uleb := func(n uint64) { util.EncodeULEB128(buf, n) }

	p32(0x0) // unit_length (ignored)
	binary.Write(buf, binary.LittleEndian, uint16(5)) // version
	p8(8)                                             // address size
	p8(0)                                             // segment selector size
	p32(0)                                            // offset_entry_count

	off := buf.Len()

	// base_addressx(1); offset_pair(0x10, 0x20) with debug_addr[1] == 0x8000
	p8(_DW_RLE_base_addressx)
	uleb(1)
	p8(_DW_RLE_offset_pair)
	uleb(0x10)
	uleb(0x20)

	// base_address -> 0x3000; start_end 0x3100..0x3200
	p8(_DW_RLE_base_address)
	binary.Write(buf, binary.LittleEndian, uint64(0x3000))
	p8(_DW_RLE_start_end)
	binary.Write(buf, binary.LittleEndian, uint64(0x3100))
	binary.Write(buf, binary.LittleEndian, uint64(0x3200))

	// start_length 0x4000, len 0x10
	p8(_DW_RLE_start_length)
	binary.Write(buf, binary.LittleEndian, uint64(0x4000))
	uleb(0x10)

	p8(_DW_RLE_end_of_list)

	debugAddr := fakeDebugAddr(0, 0x8000)

	rdr := NewRngReader(buf.Bytes())
	ranges, err := rdr.Ranges(off, 0, 0, debugAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []RangeEntry{
		{Low: 0x8010, High: 0x8020},
		{Low: 0x3100, High: 0x3200},
		{Low: 0x4000, High: 0x4010},
	}
	if len(ranges) != len(expected) {
		t.Fatalf("expected %d ranges, got %d: %#v", len(expected), len(ranges), ranges)
	}
	for i, e := range expected {
		if ranges[i] != e {
			t.Errorf("range %d: expected %#v, got %#v", i, e, ranges[i])
		}
	}
}

func TestRngListDebugAddrUnavailable(t *testing.T) {
	buf := new(bytes.Buffer)

	p32 := func(n uint32) { binary.Write(buf, binary.LittleEndian, n) }
	p8 := func(n uint8) { binary.Write(buf, binary.LittleEndian, n) }
	uleb := func(n uint64) { util.EncodeULEB128(buf, n) }

	p32(0x0)
	binary.Write(buf, binary.LittleEndian, uint16(5))
	p8(8)
	p8(0)
	p32(0)

	off := buf.Len()

	p8(_DW_RLE_base_addressx)
	uleb(1)
	p8(_DW_RLE_offset_pair)
	uleb(0x10)
	uleb(0x20)
	p8(_DW_RLE_end_of_list)

	rdr := NewRngReader(buf.Bytes())
	ranges, err := rdr.Ranges(off, 0, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("expected 1 range, got %d: %#v", len(ranges), ranges)
	}
	if !ranges[0].DebugAddrUnavailable {
		t.Fatalf("expected DebugAddrUnavailable, got %#v", ranges[0])
	}
}

func TestRngListEmptySection(t *testing.T) {
	rdr := NewRngReader(nil)
	if !rdr.Empty() {
		t.Fatal("expected a nil-data RngReader to be Empty")
	}
}
