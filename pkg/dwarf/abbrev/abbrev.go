// Package abbrev decodes .debug_abbrev declarations (DWARF v5 section
// 7.5.3): the table of (tag, has_children, attribute/form pairs)
// templates that the unit/DIE deliverer expands each DIE against.
package abbrev

import (
	"fmt"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

// AttrSpec is one (attribute, form) pair within a Declaration, plus the
// value DW_FORM_implicit_const carries inline (the only form whose
// value lives in .debug_abbrev instead of .debug_info).
type AttrSpec struct {
	Attr          uint64
	Form          uint64
	ImplicitConst int64
}

// Declaration is a single abbreviation code's template: the DIE tag it
// expands to, whether the DIE has children, and the ordered list of
// attributes the DIE's data in .debug_info supplies values for.
type Declaration struct {
	Code        uint64
	Tag         uint64
	HasChildren bool
	Attrs       []AttrSpec
}

// Table maps abbreviation code to its Declaration, scoped to the
// abbreviation table a single unit's debug_abbrev_offset selects.
type Table map[uint64]*Declaration

const implicitConst = 0x21 // DW_FORM_implicit_const

// Parse decodes one abbreviation table starting at the beginning of
// data (callers slice .debug_abbrev at the unit's debug_abbrev_offset
// first). Parsing stops at the first code-0 terminator.
func Parse(data []byte) (Table, error) {
	// Abbreviation tables have no multi-byte fixed-width fields of
	// their own, only ULEB128/SLEB128 values and single bytes, so byte
	// order never matters here.
	buf := util.NewBuf("abbrev", 0, data, nil)

	t := make(Table)
	for {
		code := buf.ULEB()
		if buf.Err != nil {
			return nil, fmt.Errorf("abbrev: %w", buf.Err)
		}
		if code == 0 {
			break
		}

		tag := buf.ULEB()
		hasChildrenByte := buf.Uint8()
		if buf.Err != nil {
			return nil, fmt.Errorf("abbrev: %w", buf.Err)
		}

		decl := &Declaration{Code: code, Tag: tag, HasChildren: hasChildrenByte != 0}

		for {
			attr := buf.ULEB()
			form := buf.ULEB()
			if buf.Err != nil {
				return nil, fmt.Errorf("abbrev: %w", buf.Err)
			}
			if attr == 0 && form == 0 {
				break
			}
			spec := AttrSpec{Attr: attr, Form: form}
			if form == implicitConst {
				spec.ImplicitConst = buf.SLEB()
				if buf.Err != nil {
					return nil, fmt.Errorf("abbrev: %w", buf.Err)
				}
			}
			decl.Attrs = append(decl.Attrs, spec)
		}

		t[code] = decl
	}

	return t, nil
}
