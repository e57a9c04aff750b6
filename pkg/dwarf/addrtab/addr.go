// Package addrtab reads the .debug_addr section introduced in DWARF 5,
// which the form decoder consults whenever it resolves a DW_FORM_addrx
// family attribute or a DW_OP_addrx location expression operand.
package addrtab

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

// ErrNoSection is returned by Table.Get when no .debug_addr section was
// present in the object being read.
var ErrNoSection = errors.New("addrtab: .debug_addr section not present")

// Section represents the whole .debug_addr section (DWARFv5 section
// 7.27), which may back address tables for more than one unit.
type Section struct {
	byteOrder binary.ByteOrder
	ptrSz     int
	data      []byte
}

// Parse parses the header of a .debug_addr section.
func Parse(data []byte) *Section {
	if len(data) == 0 {
		return nil
	}
	r := &Section{data: data}
	_, dwarf64, _, byteOrder := util.ReadDwarfLengthVersion(data)
	r.byteOrder = byteOrder

	hdr := data[6:]
	if dwarf64 {
		hdr = data[8:]
	}
	if len(hdr) < 2 {
		return nil
	}

	addrSz := hdr[0]
	segSelSz := hdr[1]
	r.ptrSz = int(addrSz) + int(segSelSz)

	return r
}

// Table returns the subsection of .debug_addr rooted at addrBase, the
// value carried by a unit's DW_AT_addr_base attribute.
func (s *Section) Table(addrBase uint64) *Table {
	if s == nil {
		return nil
	}
	return &Table{Section: s, addrBase: addrBase}
}

// Table is a per-unit view of a Section, indexed relative to that
// unit's DW_AT_addr_base.
type Table struct {
	*Section
	addrBase uint64
}

// Get returns the address-sized value at index idx, relative to the
// table's base.
func (t *Table) Get(idx uint64) (uint64, error) {
	if t == nil || t.Section == nil {
		return 0, ErrNoSection
	}
	off := idx*uint64(t.ptrSz) + t.addrBase
	if off+uint64(t.ptrSz) > uint64(len(t.data)) {
		return 0, errors.New("addrtab: index out of range")
	}
	return util.ReadUintRaw(bytes.NewReader(t.data[off:]), t.byteOrder, t.ptrSz)
}
