// Package form decodes DWARF attribute values out of a DIE's span of
// .debug_info according to the form code its abbreviation declaration
// assigned it (DWARF v5 section 7.5.6, table 7.6 class mapping). It
// mirrors the shape of pkg/dwarf/line/parse_util.go's formReader, which
// implements this exact content-type/form-code decoding for the line
// table's file/directory entry formats, generalized here to every
// attribute form DWARF 2 through 5 defines.
package form

import (
	"fmt"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

// Form identifies a DW_FORM_* code.
type Form uint64

const (
	Addr         Form = 0x01
	Block2       Form = 0x03
	Block4       Form = 0x04
	Data2        Form = 0x05
	Data4        Form = 0x06
	Data8        Form = 0x07
	String       Form = 0x08
	Block        Form = 0x09
	Block1       Form = 0x0a
	Data1        Form = 0x0b
	Flag         Form = 0x0c
	Sdata        Form = 0x0d
	Strp         Form = 0x0e
	Udata        Form = 0x0f
	RefAddr      Form = 0x10
	Ref1         Form = 0x11
	Ref2         Form = 0x12
	Ref4         Form = 0x13
	Ref8         Form = 0x14
	RefUdata     Form = 0x15
	Indirect     Form = 0x16
	SecOffset    Form = 0x17
	ExprLoc      Form = 0x18
	FlagPresent  Form = 0x19
	Strx         Form = 0x1a
	Addrx        Form = 0x1b
	RefSup4      Form = 0x1c
	StrpSup      Form = 0x1d
	Data16       Form = 0x1e
	LineStrp     Form = 0x1f
	RefSig8      Form = 0x20
	ImplicitConst Form = 0x21
	Loclistx     Form = 0x22
	Rnglistx     Form = 0x23
	RefSup8      Form = 0x24
	Strx1        Form = 0x25
	Strx2        Form = 0x26
	Strx3        Form = 0x27
	Strx4        Form = 0x28
	Addrx1       Form = 0x29
	Addrx2       Form = 0x2a
	Addrx3       Form = 0x2b
	Addrx4       Form = 0x2c
)

// Class is the attribute-value class a form decodes to (DWARFv5
// section 7.5.6 table 7.6), used by callers to know how to interpret a
// Value without a form-code switch of their own.
type Class int

const (
	ClassUnknown Class = iota
	ClassAddress
	ClassAddrPtr
	ClassBlock
	ClassConstant
	ClassExprLoc
	ClassFlag
	ClassLinePtr
	ClassLocListPtr
	ClassMacPtr
	ClassRngListPtr
	ClassReference
	ClassString
	ClassStrOffsetsPtr
	ClassIndexed // strx/addrx/loclistx/rnglistx: an index, not yet resolved to an offset/address
)

// Value is a decoded attribute value. Exactly one of U/I/Bytes/Str is
// meaningful, per Class; Indexed forms leave the resolved
// address/offset for a later pass (see ResolveIndexed) since resolving
// them needs the unit's DW_AT_*_base attribute, which may not have
// been decoded yet when this attribute is.
type Value struct {
	Form  Form
	Class Class
	U     uint64
	I     int64
	Bytes []byte
	Str   string
}

// Decode reads one attribute value from b for the given form. version,
// addrSize and dwarf64 come from the enclosing unit's header.
// implicitConst is only consulted for Form == ImplicitConst, whose value
// lives in the abbreviation declaration rather than .debug_info itself.
func Decode(b *util.Buf, f Form, version uint16, addrSize int, dwarf64 bool, implicitConst int64) (Value, error) {
	switch f {
	case Addr:
		return Value{Form: f, Class: ClassAddress, U: b.UintSize(addrSize)}, checkErr(b)

	case Block2:
		n := b.Uint16()
		return Value{Form: f, Class: ClassBlock, Bytes: b.Bytes(int(n))}, checkErr(b)
	case Block4:
		n := b.Uint32()
		return Value{Form: f, Class: ClassBlock, Bytes: b.Bytes(int(n))}, checkErr(b)
	case Block:
		n := b.ULEB()
		return Value{Form: f, Class: ClassBlock, Bytes: b.Bytes(int(n))}, checkErr(b)
	case Block1:
		n := b.Uint8()
		return Value{Form: f, Class: ClassBlock, Bytes: b.Bytes(int(n))}, checkErr(b)

	case Data1:
		return Value{Form: f, Class: ClassConstant, U: uint64(b.Uint8())}, checkErr(b)
	case Data2:
		return Value{Form: f, Class: ClassConstant, U: uint64(b.Uint16())}, checkErr(b)
	case Data4:
		return Value{Form: f, Class: ClassConstant, U: uint64(b.Uint32())}, checkErr(b)
	case Data8:
		return Value{Form: f, Class: ClassConstant, U: b.Uint64()}, checkErr(b)
	case Data16:
		return Value{Form: f, Class: ClassConstant, Bytes: b.Bytes(16)}, checkErr(b)
	case Sdata:
		return Value{Form: f, Class: ClassConstant, I: b.SLEB()}, checkErr(b)
	case Udata:
		return Value{Form: f, Class: ClassConstant, U: b.ULEB()}, checkErr(b)
	case ImplicitConst:
		return Value{Form: f, Class: ClassConstant, I: implicitConst}, nil

	case String:
		return Value{Form: f, Class: ClassString, Str: b.String()}, checkErr(b)
	case Strp:
		return Value{Form: f, Class: ClassString, U: b.Offset(dwarf64)}, checkErr(b)
	case LineStrp:
		return Value{Form: f, Class: ClassLinePtr, U: b.Offset(dwarf64)}, checkErr(b)
	case StrpSup:
		return Value{Form: f, Class: ClassString, U: b.Offset(dwarf64)}, checkErr(b)
	case Strx:
		return Value{Form: f, Class: ClassIndexed, U: b.ULEB()}, checkErr(b)
	case Strx1:
		return Value{Form: f, Class: ClassIndexed, U: uint64(b.Uint8())}, checkErr(b)
	case Strx2:
		return Value{Form: f, Class: ClassIndexed, U: uint64(b.Uint16())}, checkErr(b)
	case Strx3:
		return Value{Form: f, Class: ClassIndexed, U: read3(b)}, checkErr(b)
	case Strx4:
		return Value{Form: f, Class: ClassIndexed, U: uint64(b.Uint32())}, checkErr(b)

	case Addrx:
		return Value{Form: f, Class: ClassIndexed, U: b.ULEB()}, checkErr(b)
	case Addrx1:
		return Value{Form: f, Class: ClassIndexed, U: uint64(b.Uint8())}, checkErr(b)
	case Addrx2:
		return Value{Form: f, Class: ClassIndexed, U: uint64(b.Uint16())}, checkErr(b)
	case Addrx3:
		return Value{Form: f, Class: ClassIndexed, U: read3(b)}, checkErr(b)
	case Addrx4:
		return Value{Form: f, Class: ClassIndexed, U: uint64(b.Uint32())}, checkErr(b)

	case RefAddr:
		return Value{Form: f, Class: ClassReference, U: b.Offset(dwarf64)}, checkErr(b)
	case Ref1:
		return Value{Form: f, Class: ClassReference, U: uint64(b.Uint8())}, checkErr(b)
	case Ref2:
		return Value{Form: f, Class: ClassReference, U: uint64(b.Uint16())}, checkErr(b)
	case Ref4:
		return Value{Form: f, Class: ClassReference, U: uint64(b.Uint32())}, checkErr(b)
	case Ref8:
		return Value{Form: f, Class: ClassReference, U: b.Uint64()}, checkErr(b)
	case RefUdata:
		return Value{Form: f, Class: ClassReference, U: b.ULEB()}, checkErr(b)
	case RefSig8:
		return Value{Form: f, Class: ClassReference, U: b.Uint64()}, checkErr(b)
	case RefSup4:
		return Value{Form: f, Class: ClassReference, U: uint64(b.Uint32())}, checkErr(b)
	case RefSup8:
		return Value{Form: f, Class: ClassReference, U: b.Uint64()}, checkErr(b)

	case SecOffset:
		return Value{Form: f, Class: ClassRngListPtr, U: b.Offset(dwarf64)}, checkErr(b)
	case ExprLoc:
		n := b.ULEB()
		return Value{Form: f, Class: ClassExprLoc, Bytes: b.Bytes(int(n))}, checkErr(b)
	case Flag:
		return Value{Form: f, Class: ClassFlag, U: uint64(b.Uint8())}, checkErr(b)
	case FlagPresent:
		return Value{Form: f, Class: ClassFlag, U: 1}, nil
	case Loclistx:
		return Value{Form: f, Class: ClassIndexed, U: b.ULEB()}, checkErr(b)
	case Rnglistx:
		return Value{Form: f, Class: ClassIndexed, U: b.ULEB()}, checkErr(b)

	case Indirect:
		inner := Form(b.ULEB())
		if b.Err != nil {
			return Value{}, b.Err
		}
		return Decode(b, inner, version, addrSize, dwarf64, implicitConst)

	default:
		return Value{}, fmt.Errorf("form: unsupported form code %#x", uint64(f))
	}
}

func read3(b *util.Buf) uint64 {
	bs := b.Bytes(3)
	if b.Err != nil {
		return 0
	}
	// DW_FORM_strx3/addrx3 are always stored little-endian regardless
	// of the unit's byte order (DWARFv5 section 7.26).
	return uint64(bs[0]) | uint64(bs[1])<<8 | uint64(bs[2])<<16
}

func checkErr(b *util.Buf) error { return b.Err }

// IsIndexed reports whether c is one of the indexed classes
// (strx/addrx/loclistx/rnglistx) that ResolveIndexed knows how to
// finish decoding once the unit's *_base attribute is known.
func (c Class) IsIndexed() bool { return c == ClassIndexed }
