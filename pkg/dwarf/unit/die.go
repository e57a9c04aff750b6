package unit

import (
	"fmt"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/abbrev"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/form"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

// AttrValue is one decoded attribute on a DIE. Indexed forms
// (strx/addrx/loclistx/rnglistx) are resolved lazily the first time
// Val/Attr asks for them, since resolving needs the unit's *_base
// attributes which may not be primed yet when the attribute list itself
// is decoded (an earlier DIE's attribute can't depend on a later DIE's
// base, but the root DIE's own str_offsets_base/addr_base attributes
// are themselves plain, non-indexed forms, so this never recurses).
type AttrValue struct {
	Attr uint64
	form.Value
}

// DIE is a single Debugging Information Entry: a tag, whether it opens
// a span of children, and its attribute list. A DIE with Declaration ==
// nil is a sibling-chain terminator (abbreviation code 0), matching the
// null entries debug/dwarf.Reader also surfaces to callers.
type DIE struct {
	Offset      uint64
	Unit        *Unit
	Declaration *abbrev.Declaration
	Attrs       []AttrValue

	// end is the section offset of the byte immediately following this
	// DIE's attribute list, i.e. where its first child (if any) begins.
	end uint64
}

// Tag returns the DIE's tag, or 0 for a terminator entry.
func (d *DIE) Tag() uint64 {
	if d.Declaration == nil {
		return 0
	}
	return d.Declaration.Tag
}

// HasChildren reports whether this DIE opens a span of child entries.
func (d *DIE) HasChildren() bool {
	return d.Declaration != nil && d.Declaration.HasChildren
}

// rawAttr returns an attribute's value exactly as decoded, without
// resolving indexed forms, used internally for the per-unit *_base
// attributes which must never themselves be indexed (DWARF forbids it).
func (d *DIE) rawAttr(attr uint64) (form.Value, bool) {
	for _, a := range d.Attrs {
		if a.Attr == attr {
			return a.Value, true
		}
	}
	return form.Value{}, false
}

// Val returns attr's fully resolved value: indexed forms are resolved
// against the unit's base offsets on first access.
func (d *DIE) Val(attr uint64) (form.Value, bool, error) {
	for i := range d.Attrs {
		if d.Attrs[i].Attr != attr {
			continue
		}
		v := d.Attrs[i].Value
		if v.Class == form.ClassIndexed {
			if !d.Unit.basesReady {
				return v, true, form.ErrMissingBase
			}
			resolved, err := form.ResolveIndexed(v, d.Unit.bases)
			if err != nil {
				return v, true, err
			}
			d.Attrs[i].Value = resolved
			return resolved, true, nil
		}
		return v, true, nil
	}
	return form.Value{}, false, nil
}

// Sibling returns the section offset of this DIE's next sibling, taken
// from DW_AT_sibling when present and valid within the unit. Otherwise
// it returns (0, false), and a caller must find the sibling by skipping
// over any children itself.
func (d *DIE) sibling() (uint64, bool) {
	if v, ok := d.rawAttr(dwAtSibling); ok {
		off := v.U
		if off > d.Unit.Header.Offset && off < d.Unit.Header.End() {
			return off, true
		}
	}
	return 0, false
}

// decodeDIEAt decodes one DIE (or terminator) at section offset off,
// returning it and the offset of the next entry at the same depth's
// sibling position (i.e. right after this DIE's own attributes, not
// skipping children).
func (u *Unit) decodeDIEAt(off uint64) (*DIE, uint64, error) {
	end := u.Header.End()
	if off >= end {
		return nil, off, fmt.Errorf("unit: DIE offset %#x past end of unit at %#x", off, end)
	}

	b := util.NewBuf("debug_info", off, u.Section[off:end], u.byteOrder())
	b.SetAddrSize(u.addrSize())

	code := b.ULEB()
	if b.Err != nil {
		return nil, off, fmt.Errorf("unit: decoding abbrev code at %#x: %w", off, b.Err)
	}
	if code == 0 {
		return &DIE{Offset: off, Unit: u, end: b.Off}, b.Off, nil
	}

	decl, ok := u.Abbrev[code]
	if !ok {
		return nil, off, fmt.Errorf("unit: abbrev code %d at %#x not in table", code, off)
	}

	die := &DIE{Offset: off, Unit: u, Declaration: decl}
	die.Attrs = make([]AttrValue, 0, len(decl.Attrs))
	for _, spec := range decl.Attrs {
		v, err := form.Decode(b, form.Form(spec.Form), u.Header.Version, u.addrSize(), u.Header.DWARF64, spec.ImplicitConst)
		if err != nil {
			return nil, off, fmt.Errorf("unit: decoding attribute %#x of DIE at %#x: %w", spec.Attr, off, err)
		}
		die.Attrs = append(die.Attrs, AttrValue{Attr: spec.Attr, Value: v})
	}
	die.end = b.Off

	return die, b.Off, nil
}

// Child decodes and returns die's first child, or nil if it has none.
func (d *DIE) Child() (*DIE, error) {
	if !d.HasChildren() {
		return nil, nil
	}
	child, _, err := d.Unit.decodeDIEAt(d.end)
	if err != nil {
		return nil, err
	}
	if child.Tag() == 0 {
		return nil, nil
	}
	return child, nil
}
