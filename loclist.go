package dwarf

import (
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/addrtab"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/form"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/loclist"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/op"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/unit"
	"github.com/dwarfkit/dwarfkit/pkg/logflags"
)

// Location resolves d's attr (typically DW_AT_location) into the
// location-list entry active at pc, dispatching on d.Unit.Header.Version
// between the DWARF2-4 .debug_loc format and the DWARF5 .debug_loclists
// format. base is the owning compile unit's base address, usually its
// DW_AT_low_pc. A DIE whose attr holds a plain exprloc/block (DW_FORM_exprloc
// or one of the DW_FORM_block* forms) rather than a loclist-section offset
// is returned as a synthetic entry covering every PC, its Instr set
// directly from the attribute's bytes. A DIE that lacks attr entirely
// returns nil, nil.
func (s *Session) Location(d *unit.DIE, attr uint64, base, pc uint64) (*loclist.Entry, error) {
	v, ok, err := d.Val(attr)
	if err != nil {
		return nil, wrapError(ErrMissingBase, "resolving location attribute", err)
	}
	if !ok {
		return nil, nil
	}

	if v.Class == form.ClassExprLoc || v.Class == form.ClassBlock {
		return &loclist.Entry{LowPC: 0, HighPC: ^uint64(0), Instr: v.Bytes}, nil
	}

	if d.Unit.Header.Version >= 5 {
		rdr := loclist.NewDwarf5Reader(s.resources.DebugLoclists)
		if rdr.Empty() {
			s.warnEmptyLoclist(".debug_loclists")
			return nil, nil
		}
		return rdr.Find(int(v.U), 0, base, pc, s.addrTableFor(d.Unit))
	}

	rdr := loclist.NewDwarf2Reader(s.locSection, s.ptrSize)
	if rdr.Empty() {
		s.warnEmptyLoclist(".debug_loc")
		return nil, nil
	}
	return rdr.Find(int(v.U), 0, base, pc, nil)
}

// EvalLocation runs entry's raw DWARF expression bytes through the
// op package's stack machine, the same evaluator a caller would use
// to turn Location's (or CFAAddress's) output into an address, a
// register number, or a set of composite-location Pieces.
func (s *Session) EvalLocation(entry *loclist.Entry, regs op.DwarfRegisters) (int64, []op.Piece, error) {
	if entry == nil {
		return 0, nil, newError(ErrMissingBase, "evaluating location: nil entry")
	}
	return op.ExecuteStackProgram(regs, entry.Instr, s.ptrSize)
}

func (s *Session) warnEmptyLoclist(section string) {
	if logflags.LoclistDecodeErrors() {
		logflags.LoclistLogger().WithField("section", section).Debug("attribute referenced a loclist offset but the section is empty")
	}
}

// Ranges resolves d's attr (typically DW_AT_ranges) into its list of
// non-contiguous PC ranges, dispatching on d.Unit.Header.Version between
// the DWARF2-4 .debug_ranges format and the DWARF5 .debug_rnglists
// format.
func (s *Session) Ranges(d *unit.DIE, attr uint64, base uint64) ([]loclist.RangeEntry, error) {
	v, ok, err := d.Val(attr)
	if err != nil {
		return nil, wrapError(ErrMissingBase, "resolving ranges attribute", err)
	}
	if !ok {
		return nil, nil
	}

	if d.Unit.Header.Version >= 5 {
		rdr := loclist.NewRngReader(s.resources.DebugRnglists)
		if rdr.Empty() {
			s.warnEmptyLoclist(".debug_rnglists")
			return nil, nil
		}
		return rdr.Ranges(int(v.U), 0, base, s.addrTableFor(d.Unit))
	}

	rdr := loclist.NewRangesReader(s.rangesSection, s.ptrSize)
	if rdr.Empty() {
		s.warnEmptyLoclist(".debug_ranges")
		return nil, nil
	}
	return rdr.Ranges(int(v.U), 0, base)
}

// addrTableFor returns u's .debug_addr view, bound to u's
// DW_AT_addr_base. Nil if the session has no .debug_addr at all, if
// u's root DIE has no DW_AT_addr_base, or if u.Root fails to decode,
// in which case addrx operands inside
// loclist/rnglist entries degrade to DebugAddrUnavailable rather than
// an error.
func (s *Session) addrTableFor(u *unit.Unit) *addrtab.Table {
	if _, err := u.Root(); err != nil {
		return nil
	}
	return u.AddrTable()
}
