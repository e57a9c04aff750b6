package dwarf

import "encoding/binary"

// SectionInfo describes one section of a custom object: its name, size,
// load address, link index, flags, and entry size (the same handful of
// fields debug/elf.Section and debug/macho.Section both expose).
type SectionInfo struct {
	Name      string
	Size      uint64
	Address   uint64
	Link      int
	Flags     uint64
	EntrySize uint64
}

// Relocation describes one relocation entry against a section: the
// offset it applies at, its type, the symbol it references, and an
// addend. ObjectReader has no symbol-table accessor, so OpenMemory
// cannot resolve SymbolIndex to an address itself; every relocation a
// custom ObjectReader reports is recorded as an ErrUnhandledRelocation
// harmless error rather than silently dropped, and the section is still
// presented unmodified.
type Relocation struct {
	Offset      uint64
	Type        uint32
	SymbolIndex int
	Addend      int64
}

// ObjectReader is the boundary a caller crosses to hand this module a
// custom object container: already-mapped shared memory, a
// network-fetched blob, or a format debug/elf|macho|pe don't parse.
// OpenMemory builds a Session directly off this interface without going
// through pkg/dwarf/object at all.
type ObjectReader interface {
	ObjectSize() int64
	Endianness() binary.ByteOrder
	PointerSize() int
	MachineType() string
	GetFilesize() int64

	SectionCount() int
	SectionInfo(i int) SectionInfo
	LoadSection(i int) ([]byte, error)
	RelocationsFor(i int) []Relocation
}
