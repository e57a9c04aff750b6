package object

import (
	"debug/elf"
	"strings"
)

// Reserved group numbers: ANY (no group restriction), BASE (sections
// outside every COMDAT group) and DWO (split-DWARF sections named with
// a ".dwo" suffix, whether or not an SHT_GROUP section also claims
// them).
const (
	GroupANY  = 0
	GroupBASE = 1
	GroupDWO  = 2

	firstCOMDATGroup = 3
)

// GroupTable maps object sections to the group numbers Session.Open's
// group-selection option chooses between. An SHT_GROUP section's
// membership always takes precedence over the ".dwo"-suffix heuristic,
// and groups are numbered in section-table order, matching libdwarf's
// dwarf_elf_load_headers.c / showsectiongroups.c.
type GroupTable struct {
	// sectionGroup maps a section's index (in object file order) to its
	// group number.
	sectionGroup map[int]int
	// names records, for COMDAT groups (number >= firstCOMDATGroup), the
	// signature/name of the group as reported by the SHT_GROUP section.
	names map[int]string
}

// GroupOf returns the group number of the section with the given
// Section.FileIndex, or GroupBASE if it belongs to no explicit group.
func (g *GroupTable) GroupOf(sectionIndex int) int {
	if g == nil {
		return GroupBASE
	}
	if n, ok := g.sectionGroup[sectionIndex]; ok {
		return n
	}
	return GroupBASE
}

// Name returns the COMDAT group signature for a group number, or "" for
// the reserved ANY/BASE/DWO numbers.
func (g *GroupTable) Name(group int) string {
	if g == nil {
		return ""
	}
	return g.names[group]
}

// buildELFGroups classifies every section into ANY/BASE/DWO/COMDAT
// groups. SHT_GROUP sections are read first and win over the ".dwo"
// name-suffix heuristic when both apply to the same section, matching
// the original libdwarf precedence this behavior was supplemented from.
func buildELFGroups(ef *elf.File, f *File) (*GroupTable, error) {
	g := &GroupTable{
		sectionGroup: make(map[int]int),
		names:        make(map[int]string),
	}

	nextGroup := firstCOMDATGroup
	for i, s := range ef.Sections {
		if s.Type != elf.SHT_GROUP {
			continue
		}
		data, err := s.Data()
		if err != nil || len(data) < 4 {
			continue
		}
		groupNum := nextGroup
		nextGroup++
		g.names[groupNum] = s.Name

		// First 4 bytes are the GRP_COMDAT flag word; the rest is a
		// list of uint32 section indices that belong to the group.
		for off := 4; off+4 <= len(data); off += 4 {
			memberIdx := int(ef.ByteOrder.Uint32(data[off : off+4]))
			g.sectionGroup[memberIdx] = groupNum
		}
		_ = i
	}

	for i, s := range ef.Sections {
		if _, already := g.sectionGroup[i]; already {
			continue
		}
		if strings.HasSuffix(s.Name, ".dwo") {
			g.sectionGroup[i] = GroupDWO
		}
	}

	return g, nil
}
