package unit

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/abbrev"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/addrtab"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/form"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

// Resources bundles every section a unit's DIEs may need to fully
// resolve their attributes, shared read-only across every unit in an
// Index.
type Resources struct {
	Order           binary.ByteOrder
	Abbrev          *abbrev.Cache
	DebugStr        []byte
	DebugLineStr    []byte
	DebugStrOffsets []byte
	DebugAddr       *addrtab.Section
	DebugLoclists   []byte
	DebugRnglists   []byte
}

// Unit is a parsed unit header bound to the section bytes it lives in
// and the abbreviation table its debug_abbrev_offset selects.
type Unit struct {
	Header    Header
	Abbrev    abbrev.Table
	Section   []byte // the whole .debug_info or .debug_types section
	Resources *Resources

	basesReady bool
	bases      form.Bases
}

// Index is every unit parsed out of one section, ordered by offset and
// indexed for the cross-unit reference resolution DW_FORM_ref_addr and
// DW_FORM_ref_sig8 need.
type Index struct {
	Units       []*Unit
	byOffset    []uint64 // parallel to Units, sorted ascending
	bySignature map[uint64]*Unit
}

// ParseIndex walks every unit header in section (isTypeSection selects
// the legacy DWARF <5 .debug_types layout) and returns an Index over
// them. DIEs are not decoded here: unit header parsing is eager, DIE
// decoding is lazy per spec's control-flow split between section
// discovery and query-driven decoding.
func ParseIndex(section []byte, isTypeSection bool, res *Resources) (*Index, error) {
	idx := &Index{bySignature: make(map[uint64]*Unit)}

	off := uint64(0)
	for off < uint64(len(section)) {
		b := util.NewBuf("debug_info", off, section[off:], byteOrderOrDefault(res.Order))
		hdr, err := ParseHeader(b, isTypeSection)
		if err != nil {
			return nil, fmt.Errorf("unit: parsing header at %#x: %w", off, err)
		}

		table, err := res.Abbrev.Get(hdr.AbbrevOffset)
		if err != nil {
			return nil, fmt.Errorf("unit: abbrev table for unit at %#x: %w", off, err)
		}

		u := &Unit{Header: hdr, Abbrev: table, Section: section, Resources: res}
		idx.Units = append(idx.Units, u)
		idx.byOffset = append(idx.byOffset, hdr.Offset)
		if hdr.Kind == KindType || hdr.Kind == KindSplitType {
			idx.bySignature[hdr.TypeSignature] = u
		}

		next := hdr.End()
		if next <= off {
			return nil, fmt.Errorf("unit: non-advancing unit header at %#x", off)
		}
		off = next
	}

	return idx, nil
}

// UnitContaining returns the unit whose span contains the section
// offset off, or nil if none does.
func (idx *Index) UnitContaining(off uint64) *Unit {
	i := sort.Search(len(idx.byOffset), func(i int) bool { return idx.byOffset[i] > off }) - 1
	if i < 0 || i >= len(idx.Units) {
		return nil
	}
	u := idx.Units[i]
	if off >= u.Header.End() {
		return nil
	}
	return u
}

// UnitBySignature returns the type unit with the given
// DW_AT_signature/type-unit signature, or nil.
func (idx *Index) UnitBySignature(sig uint64) *Unit {
	return idx.bySignature[sig]
}

// byteOrder returns the unit's section byte order.
func (u *Unit) byteOrder() binary.ByteOrder { return byteOrderOrDefault(u.Resources.Order) }

// addrSize returns the unit's address size, defaulting to 8 for the
// (malformed) case of a header that didn't carry one.
func (u *Unit) addrSize() int {
	if u.Header.AddrSize == 0 {
		return 8
	}
	return int(u.Header.AddrSize)
}

// Root decodes and returns the unit's root DIE, also priming the
// unit's *_base attributes (DW_AT_str_offsets_base, DW_AT_addr_base,
// DW_AT_loclists_base, DW_AT_rnglists_base) so later attribute decodes
// on this unit's DIEs can resolve indexed forms.
func (u *Unit) Root() (*DIE, error) {
	die, _, err := u.decodeDIEAt(u.Header.HeaderEnd)
	if err != nil {
		return nil, err
	}
	u.primeBases(die)
	return die, nil
}

// AddrTable returns u's resolved .debug_addr view (primed by Root), or
// nil before Root has been called, when the unit carries no
// DW_AT_addr_base, or when the section itself is absent.
func (u *Unit) AddrTable() *addrtab.Table {
	if !u.basesReady {
		return nil
	}
	return u.bases.Addr
}

func (u *Unit) primeBases(root *DIE) {
	if u.basesReady {
		return
	}
	b := form.Bases{
		DebugStr:     u.Resources.DebugStr,
		DebugLineStr: u.Resources.DebugLineStr,
		StrOffsets:   form.NewOffsetTable(u.Resources.DebugStrOffsets, u.byteOrder(), form.NoBase(), offsetSize(u.Header.DWARF64)),
		Loclists:     form.NewOffsetTable(u.Resources.DebugLoclists, u.byteOrder(), form.NoBase(), offsetSize(u.Header.DWARF64)),
		Rnglists:     form.NewOffsetTable(u.Resources.DebugRnglists, u.byteOrder(), form.NoBase(), offsetSize(u.Header.DWARF64)),
	}
	if root != nil {
		if v, ok := root.rawAttr(dwAtStrOffsetsBase); ok {
			b.StrOffsets = form.NewOffsetTable(u.Resources.DebugStrOffsets, u.byteOrder(), v.U, offsetSize(u.Header.DWARF64))
		}
		if v, ok := root.rawAttr(dwAtAddrBase); ok {
			b.Addr = u.Resources.DebugAddr.Table(v.U)
		}
		if v, ok := root.rawAttr(dwAtLoclistsBase); ok {
			b.Loclists = form.NewOffsetTable(u.Resources.DebugLoclists, u.byteOrder(), v.U, offsetSize(u.Header.DWARF64))
		}
		if v, ok := root.rawAttr(dwAtRnglistsBase); ok {
			b.Rnglists = form.NewOffsetTable(u.Resources.DebugRnglists, u.byteOrder(), v.U, offsetSize(u.Header.DWARF64))
		}
	}
	u.bases = b
	u.basesReady = true
}

func offsetSize(dwarf64 bool) int {
	if dwarf64 {
		return 8
	}
	return 4
}

// DWARF attribute numbers needed before pkg/dwarf/attr exists to name
// them: the four per-unit base attributes (DWARFv5 section 7.5.1.2).
const (
	dwAtStrOffsetsBase = 0x72
	dwAtAddrBase       = 0x73
	dwAtRnglistsBase   = 0x74
	dwAtLoclistsBase   = 0x8c
	dwAtSibling        = 0x01
)
