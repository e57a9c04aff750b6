// Package unit parses .debug_info/.debug_types unit headers and walks
// the DIE tree each unit roots, dispatching attribute values to
// pkg/dwarf/form and abbreviation declarations to pkg/dwarf/abbrev.
// Follows the bounded-cursor style of pkg/dwarf/util.Buf and the
// Seek/Next/SkipChildren navigation shape of a debug/dwarf.Reader
// wrapper.
package unit

import (
	"encoding/binary"
	"fmt"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

// Kind distinguishes the six unit shapes DWARF 5 introduces a
// unit_type byte to tell apart (DWARF 2-4 units are always Compile or,
// in the legacy .debug_types, Type).
type Kind uint8

const (
	KindCompile Kind = iota
	KindPartial
	KindType
	KindSkeleton
	KindSplitCompile
	KindSplitType
)

func (k Kind) String() string {
	switch k {
	case KindCompile:
		return "compile"
	case KindPartial:
		return "partial"
	case KindType:
		return "type"
	case KindSkeleton:
		return "skeleton"
	case KindSplitCompile:
		return "split_compile"
	case KindSplitType:
		return "split_type"
	}
	return "unknown"
}

// DWARF5 unit_type byte values (section 7.5.1.1).
const (
	dwUtCompile      = 0x01
	dwUtType         = 0x02
	dwUtPartial      = 0x03
	dwUtSkeleton     = 0x04
	dwUtSplitCompile = 0x05
	dwUtSplitType    = 0x06
)

// Header is a parsed unit header (DWARF v5 section 7.5.1).
type Header struct {
	Offset       uint64 // offset of the initial-length field, within its section
	Length       uint64 // payload length, i.e. bytes following the initial-length field
	DWARF64      bool
	Version      uint16
	Kind         Kind
	AddrSize     uint8
	AbbrevOffset uint64

	// Type units only (Kind == KindType or KindSplitType).
	TypeSignature uint64
	TypeOffset    uint64

	// Skeleton/split-compile units only.
	DWOID uint64

	// HeaderEnd is the offset, within the section, of the first byte
	// after the header: where the root DIE begins.
	HeaderEnd uint64
}

// End returns the offset of the byte following this unit, i.e. where
// the next unit header (if any) begins.
func (h Header) End() uint64 {
	lengthFieldSize := uint64(4)
	if h.DWARF64 {
		lengthFieldSize = 12
	}
	return h.Offset + lengthFieldSize + h.Length
}

// ParseHeader decodes one unit header starting at the cursor's current
// position. isTypeSection selects the legacy DWARF <5 .debug_types
// layout (type signature/offset follow the address size, with no
// unit_type byte since that section predates it).
func ParseHeader(b *util.Buf, isTypeSection bool) (Header, error) {
	start := b.Off
	length, dwarf64 := b.InitialLength()
	if b.Err != nil {
		return Header{}, b.Err
	}
	h := Header{Offset: start, Length: length, DWARF64: dwarf64}

	h.Version = b.Uint16()
	if b.Err != nil {
		return Header{}, b.Err
	}

	if h.Version >= 5 {
		unitType := b.Uint8()
		h.AddrSize = b.Uint8()
		h.AbbrevOffset = b.Offset(dwarf64)
		if b.Err != nil {
			return Header{}, b.Err
		}
		switch unitType {
		case dwUtCompile:
			h.Kind = KindCompile
		case dwUtPartial:
			h.Kind = KindPartial
		case dwUtType, dwUtSplitType:
			if unitType == dwUtType {
				h.Kind = KindType
			} else {
				h.Kind = KindSplitType
			}
			h.TypeSignature = b.Uint64()
			h.TypeOffset = b.Offset(dwarf64)
		case dwUtSkeleton, dwUtSplitCompile:
			if unitType == dwUtSkeleton {
				h.Kind = KindSkeleton
			} else {
				h.Kind = KindSplitCompile
			}
			h.DWOID = b.Uint64()
		default:
			return Header{}, fmt.Errorf("unit: unknown unit_type %#x at offset %#x", unitType, start)
		}
	} else {
		h.AbbrevOffset = b.Offset(dwarf64)
		h.AddrSize = b.Uint8()
		if isTypeSection {
			h.Kind = KindType
			h.TypeSignature = b.Uint64()
			h.TypeOffset = b.Offset(dwarf64)
		} else {
			h.Kind = KindCompile
		}
	}
	if b.Err != nil {
		return Header{}, b.Err
	}

	h.HeaderEnd = b.Off
	return h, nil
}

// byteOrderOrDefault returns order, defaulting to little-endian (the
// overwhelmingly common case, and what every object-file front end in
// this module already resolves before unit parsing begins).
func byteOrderOrDefault(order binary.ByteOrder) binary.ByteOrder {
	if order == nil {
		return binary.LittleEndian
	}
	return order
}
