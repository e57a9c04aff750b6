package form

import (
	"encoding/binary"
	"errors"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/addrtab"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

// ErrMissingBase is returned by ResolveIndexed when a unit uses an
// addrx/strx/loclistx/rnglistx form before its DW_AT_addr_base (or
// str_offsets_base/loclists_base/rnglists_base) attribute has been
// decoded. The raw index is still returned alongside the error so a
// caller that wants to retry once the base is known doesn't have to
// re-decode the attribute.
var ErrMissingBase = errors.New("form: index used before its *_base attribute was seen")

// noBase marks a base offset as not-yet-known. DWARF offsets of this
// value are not representable (it would place the base past the end of
// any real section), so it's safe as a sentinel.
const noBase = ^uint64(0)

// OffsetTable is the shape shared by .debug_str_offsets,
// .debug_loclists and .debug_rnglists' per-unit offset arrays: a flat
// array of offset-sized (4 or 8 byte) entries starting at a base
// recorded on the unit.
type OffsetTable struct {
	data      []byte
	order     binary.ByteOrder
	base      uint64
	entrySize int // 4 or 8, per the unit's offset_size
}

// NewOffsetTable builds an OffsetTable over section, indexed relative to
// base (the unit's corresponding *_base attribute) using entrySize-byte
// entries. base == noBase (pass through NoBase()) marks the table as not
// yet usable.
func NewOffsetTable(section []byte, order binary.ByteOrder, base uint64, entrySize int) OffsetTable {
	return OffsetTable{data: section, order: order, base: base, entrySize: entrySize}
}

// NoBase is the value to pass to NewOffsetTable when a unit's *_base
// attribute hasn't been seen yet.
func NoBase() uint64 { return noBase }

// Get returns the offset-sized entry at index idx.
func (t OffsetTable) Get(idx uint64) (uint64, error) {
	if t.base == noBase {
		return 0, ErrMissingBase
	}
	off := t.base + idx*uint64(t.entrySize)
	if off+uint64(t.entrySize) > uint64(len(t.data)) {
		return 0, errors.New("form: offset table index out of range")
	}
	switch t.entrySize {
	case 4:
		return uint64(t.order.Uint32(t.data[off:])), nil
	case 8:
		return t.order.Uint64(t.data[off:]), nil
	}
	return 0, errors.New("form: invalid offset table entry size")
}

// Bases carries every per-unit base offset form.ResolveIndexed needs,
// gathered by the unit package as it decodes a unit's root DIE (DWARF v5
// section 7.5.1.2 calls these DW_AT_str_offsets_base, DW_AT_addr_base,
// DW_AT_loclists_base, DW_AT_rnglists_base). A base the root DIE does
// not carry is left unset (NoBase for the offset tables, nil Addr),
// whatever the DWARF version, and resolving an indexed form against it
// fails.
type Bases struct {
	Addr        *addrtab.Table
	StrOffsets  OffsetTable
	Loclists    OffsetTable
	Rnglists    OffsetTable
	DebugStr    []byte
	DebugLineStr []byte
}

// ResolveIndexed finishes decoding an indexed Value (strx*, addrx*,
// loclistx, rnglistx) into its final string/address/offset, given the
// unit's base offsets. v.Class must be ClassIndexed; callers distinguish
// strx from addrx etc. by v.Form.
func ResolveIndexed(v Value, b Bases) (Value, error) {
	switch v.Form {
	case Strx, Strx1, Strx2, Strx3, Strx4:
		off, err := b.StrOffsets.Get(v.U)
		if err != nil {
			return v, err
		}
		s, err := readCString(b.DebugStr, off)
		if err != nil {
			return v, err
		}
		return Value{Form: v.Form, Class: ClassString, Str: s}, nil

	case Addrx, Addrx1, Addrx2, Addrx3, Addrx4:
		if b.Addr == nil {
			return v, ErrMissingBase
		}
		addr, err := b.Addr.Get(v.U)
		if err != nil {
			return v, err
		}
		return Value{Form: v.Form, Class: ClassAddress, U: addr}, nil

	case Loclistx:
		// The offset table entry is relative to DW_AT_loclists_base
		// itself (DWARFv5 section 7.29), unlike .debug_str_offsets
		// entries which are already absolute section offsets.
		off, err := b.Loclists.Get(v.U)
		if err != nil {
			return v, err
		}
		return Value{Form: v.Form, Class: ClassLocListPtr, U: off + b.Loclists.base}, nil

	case Rnglistx:
		// Same convention as Loclistx, relative to DW_AT_rnglists_base
		// (DWARFv5 section 7.28).
		off, err := b.Rnglists.Get(v.U)
		if err != nil {
			return v, err
		}
		return Value{Form: v.Form, Class: ClassRngListPtr, U: off + b.Rnglists.base}, nil
	}
	return v, errors.New("form: value is not an indexed form")
}

func readCString(data []byte, off uint64) (string, error) {
	buf := util.NewBuf("debug_str", off, sliceFrom(data, off), nil)
	if buf.Err != nil {
		return "", buf.Err
	}
	s := buf.String()
	return s, buf.Err
}

func sliceFrom(data []byte, off uint64) []byte {
	if off > uint64(len(data)) {
		return nil
	}
	return data[off:]
}
