package dwarf

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/abbrev"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/addrtab"
	"github.com/dwarfkit/dwarfkit/pkg/dwarf/unit"
)

// OpenMemory builds a Session directly off a caller-supplied
// ObjectReader, for containers this package's own ELF/Mach-O/PE sniffing
// doesn't recognize (already-mapped shared memory, a network-fetched
// blob, a custom packaging format). Every relocation the reader reports
// is recorded as a harmless ErrUnhandledRelocation, since ObjectReader
// exposes no symbol table this package could resolve SymbolIndex
// against.
func OpenMemory(reader ObjectReader, opts *OpenOptions) (*Session, error) {
	opts = opts.orDefaults()

	data := make(map[string][]byte, reader.SectionCount())
	for i := 0; i < reader.SectionCount(); i++ {
		info := reader.SectionInfo(i)

		sectionData, err := reader.LoadSection(i)
		if err != nil {
			return nil, wrapError(ErrIoError, "loading section "+info.Name, err)
		}
		data[info.Name] = sectionData
	}

	lineCache, err := lru.New(lineCacheSize)
	if err != nil {
		panic(err)
	}

	s := &Session{
		group:     opts.Group,
		ptrSize:   reader.PointerSize(),
		compDir:   make(map[*unit.Unit]string),
		lineCache: lineCache,
		log:       opts.Log,
		harmless:  newHarmlessErrors(),
	}

	res := &unit.Resources{
		Order:           reader.Endianness(),
		DebugStr:        data[".debug_str"],
		DebugLineStr:    data[".debug_line_str"],
		DebugStrOffsets: data[".debug_str_offsets"],
		DebugLoclists:   data[".debug_loclists"],
		DebugRnglists:   data[".debug_rnglists"],
	}
	if addrSec := data[".debug_addr"]; len(addrSec) > 0 {
		res.DebugAddr = addrtab.Parse(addrSec)
	}
	res.Abbrev = abbrev.NewCache(data[".debug_abbrev"])
	s.resources = res

	s.debugLine = data[".debug_line"]
	s.debugLineStr = res.DebugLineStr
	s.frameSection = data[".debug_frame"]
	s.ehFrameSection = data[".eh_frame"]
	s.rangesSection = data[".debug_ranges"]
	s.locSection = data[".debug_loc"]
	s.pubnames = data[".debug_pubnames"]

	for i := 0; i < reader.SectionCount(); i++ {
		for _, reloc := range reader.RelocationsFor(i) {
			s.recordHarmless(newSectionError(ErrUnhandledRelocation, reader.SectionInfo(i).Name, reloc.Offset,
				"relocation against a custom ObjectReader cannot be resolved without a symbol table"))
		}
	}

	if infoSec := data[".debug_info"]; len(infoSec) > 0 {
		idx, err := unit.ParseIndex(infoSec, false, res)
		if err != nil {
			return nil, wrapError(ErrTruncated, "parsing .debug_info", err)
		}
		s.infoIndex = idx
	}
	if typesSec := data[".debug_types"]; len(typesSec) > 0 {
		idx, err := unit.ParseIndex(typesSec, true, res)
		if err != nil {
			s.recordHarmless(wrapError(ErrTruncated, "parsing .debug_types", err))
		} else {
			s.typesIndex = idx
		}
	}

	return s, nil
}
