package loclist

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/addrtab"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

// RangeEntry is a single cooked (low, high) address range decoded out of
// a DWARF5 .debug_rnglists range list. DebugAddrUnavailable is set
// instead of an error when an indexed entry (base_addressx/startx_endx/
// startx_length) needed .debug_addr but no address table was supplied
// (a skeleton unit opened without its tied split-DWARF object), and on
// offset_pair entries whose base came from such a base_addressx.
type RangeEntry struct {
	Low, High            uint64
	DebugAddrUnavailable bool
}

// DWARF5 DW_RLE_* range list entry kinds (DWARFv5 section 7.28, table
// 7.30), the .debug_rnglists counterpart of the _DW_LLE_* constants in
// dwarf5_loclist.go -- same numbering scheme, same iterator shape,
// different payload (address ranges instead of location expressions).
const (
	_DW_RLE_end_of_list   uint8 = 0x0
	_DW_RLE_base_addressx uint8 = 0x1
	_DW_RLE_startx_endx   uint8 = 0x2
	_DW_RLE_startx_length uint8 = 0x3
	_DW_RLE_offset_pair   uint8 = 0x4
	_DW_RLE_base_address  uint8 = 0x5
	_DW_RLE_start_end     uint8 = 0x6
	_DW_RLE_start_length  uint8 = 0x7
)

// RngReader parses .debug_rnglists (DWARFv5 section 7.28, the range-list
// counterpart of .debug_loclists). It shares Dwarf5Reader's per-unit
// header layout (unit length, version, address_size, segment_selector_
// size ahead of the offset table this reader doesn't need) but exposes
// Ranges instead of Find, since rnglist lookups resolve a whole list
// (every range a DW_AT_ranges attribute covers) rather than a single PC.
type RngReader struct {
	byteOrder binary.ByteOrder
	ptrSz     int
	data      []byte
}

// NewRngReader returns a reader over a .debug_rnglists section, or nil
// if data is empty (mirrors NewDwarf5Reader's empty-section contract).
func NewRngReader(data []byte) *RngReader {
	if len(data) == 0 {
		return nil
	}
	r := &RngReader{data: data}

	_, dwarf64, _, byteOrder := util.ReadDwarfLengthVersion(data)
	r.byteOrder = byteOrder

	data = data[6:]
	if dwarf64 {
		data = data[8:]
	}

	addrSz := data[0]
	segSelSz := data[1]
	r.ptrSz = int(addrSz + segSelSz)

	return r
}

// Empty reports whether rdr has no backing section.
func (rdr *RngReader) Empty() bool {
	return rdr == nil
}

// Ranges decodes every range in the list starting at byte offset off
// within the section, base is the compile unit's base address (from
// DW_AT_low_pc, or updated by a base_address/base_addressx entry) and
// staticBase is the load bias applied to every absolute address. A nil
// debugAddr is legal: indexed entries degrade to DebugAddrUnavailable
// ranges instead of failing the whole decode.
func (rdr *RngReader) Ranges(off int, staticBase, base uint64, debugAddr *addrtab.Table) ([]RangeEntry, error) {
	it := &rngIterator{rdr: rdr, debugAddr: debugAddr, buf: bytes.NewBuffer(rdr.data), base: base, staticBase: staticBase}
	it.buf.Next(off)

	var out []RangeEntry
	for it.next() {
		if it.onRange {
			out = append(out, RangeEntry{Low: it.start, High: it.end, DebugAddrUnavailable: it.addrUnavailable})
		}
	}
	if it.err != nil {
		return out, it.err
	}
	return out, nil
}

type rngIterator struct {
	rdr        *RngReader
	debugAddr  *addrtab.Table
	buf        *bytes.Buffer
	staticBase uint64
	base       uint64

	onRange        bool
	atEnd          bool
	start, end     uint64
	addrUnavailable bool
	baseUnavailable bool
	err            error
}

// addrGet resolves addrx index idx, reporting DebugAddrUnavailable
// instead of an error when no address table was supplied.
func (it *rngIterator) addrGet(idx uint64) (uint64, bool) {
	if it.debugAddr == nil {
		return 0, true
	}
	v, err := it.debugAddr.Get(idx)
	if err != nil {
		it.err = err
		return 0, true
	}
	return v, false
}

func (it *rngIterator) next() bool {
	if it.err != nil || it.atEnd {
		return false
	}
	it.addrUnavailable = false

	opcode, err := it.buf.ReadByte()
	if err != nil {
		it.err = err
		return false
	}
	switch opcode {
	case _DW_RLE_end_of_list:
		it.atEnd = true
		it.onRange = false
		return false

	case _DW_RLE_base_addressx:
		baseIdx, _ := util.DecodeULEB128(it.buf)
		v, unavail := it.addrGet(baseIdx)
		it.addrUnavailable = unavail
		it.baseUnavailable = unavail
		it.base = v + it.staticBase
		it.onRange = false

	case _DW_RLE_startx_endx:
		startIdx, _ := util.DecodeULEB128(it.buf)
		endIdx, _ := util.DecodeULEB128(it.buf)
		s, su := it.addrGet(startIdx)
		e, eu := it.addrGet(endIdx)
		it.addrUnavailable = su || eu
		it.start, it.end = s, e
		it.onRange = true

	case _DW_RLE_startx_length:
		startIdx, _ := util.DecodeULEB128(it.buf)
		length, _ := util.DecodeULEB128(it.buf)
		s, unavail := it.addrGet(startIdx)
		it.addrUnavailable = unavail
		it.start = s
		it.end = s + length
		it.onRange = true

	case _DW_RLE_offset_pair:
		off1, _ := util.DecodeULEB128(it.buf)
		off2, _ := util.DecodeULEB128(it.buf)
		it.start = it.base + off1
		it.end = it.base + off2
		it.addrUnavailable = it.baseUnavailable
		it.onRange = true

	case _DW_RLE_base_address:
		it.baseUnavailable = false
		it.base, it.err = util.ReadUintRaw(it.buf, it.rdr.byteOrder, it.rdr.ptrSz)
		it.base += it.staticBase
		it.onRange = false

	case _DW_RLE_start_end:
		it.start, it.err = util.ReadUintRaw(it.buf, it.rdr.byteOrder, it.rdr.ptrSz)
		if it.err == nil {
			it.end, it.err = util.ReadUintRaw(it.buf, it.rdr.byteOrder, it.rdr.ptrSz)
		}
		it.onRange = true

	case _DW_RLE_start_length:
		it.start, it.err = util.ReadUintRaw(it.buf, it.rdr.byteOrder, it.rdr.ptrSz)
		length, _ := util.DecodeULEB128(it.buf)
		it.end = it.start + length
		it.onRange = true

	default:
		it.err = fmt.Errorf("unknown rnglist opcode %#x at %#x", opcode, len(it.rdr.data)-it.buf.Len())
		it.onRange = false
		it.atEnd = true
		return false
	}

	return true
}
