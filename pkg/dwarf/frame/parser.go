// Package frame contains data structures and
// related functions for parsing and searching
// through Dwarf .debug_frame data.
package frame

import (
	"bytes"
	"encoding/binary"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

type parsefunc func(*parseContext) parsefunc

type parseContext struct {
	staticBase uint64

	buf     *bytes.Buffer
	entries FrameDescriptionEntries
	common  *CommonInformationEntry
	frame   *FrameDescriptionEntry
	length  uint32
	ptrSize int

	// ehFrame is true when parsing a .eh_frame section rather than
	// .debug_frame: the two sections use different CIE id sentinels
	// (eh_frame: 0, debug_frame: 0xffffffff) and only eh_frame CIEs carry
	// z-augmentation data.
	ehFrame bool
}

// Parse takes in data (a byte slice) and returns FrameDescriptionEntries,
// which is a slice of FrameDescriptionEntry. Each FrameDescriptionEntry
// has a pointer to CommonInformationEntry. data must come from a
// .debug_frame section; use ParseEH for .eh_frame.
func Parse(data []byte, order binary.ByteOrder, staticBase uint64, ptrSize int) FrameDescriptionEntries {
	return parse(data, order, staticBase, ptrSize, false)
}

// ParseEH is Parse for a .eh_frame section: the GCC/Clang runtime-unwind
// counterpart of .debug_frame, distinguished by a CIE id of 0 instead of
// 0xffffffff and by carrying z-augmentation data (personality routine,
// LSDA pointer encoding, FDE pointer encoding) that .debug_frame CIEs
// never have.
func ParseEH(data []byte, order binary.ByteOrder, staticBase uint64, ptrSize int) FrameDescriptionEntries {
	return parse(data, order, staticBase, ptrSize, true)
}

func parse(data []byte, order binary.ByteOrder, staticBase uint64, ptrSize int, ehFrame bool) FrameDescriptionEntries {
	var (
		buf  = bytes.NewBuffer(data)
		pctx = &parseContext{buf: buf, entries: NewFrameIndex(), staticBase: staticBase, ptrSize: ptrSize, ehFrame: ehFrame}
	)

	for fn := parselength; buf.Len() != 0; {
		fn = fn(pctx)
	}

	for i := range pctx.entries {
		pctx.entries[i].order = order
	}

	return pctx.entries
}

// cieEntry reports whether the 4-byte CIE id/CIE-pointer field data just
// read identifies this record as a CIE rather than an FDE: 0xffffffff in
// .debug_frame, 0 in .eh_frame (DWARF v3 section 7.23 vs. the LSB "Linux
// Standard Base Core Specification" eh_frame appendix). A real FDE's CIE
// pointer in .eh_frame is always nonzero (it's a backwards byte distance
// to its CIE, which can never be this record itself), so the two
// sentinels never collide within one section.
func cieEntry(data []byte, ehFrame bool) bool {
	if ehFrame {
		return bytes.Equal(data, []byte{0x00, 0x00, 0x00, 0x00})
	}
	return bytes.Equal(data, []byte{0xff, 0xff, 0xff, 0xff})
}

func parselength(ctx *parseContext) parsefunc {
	binary.Read(ctx.buf, binary.LittleEndian, &ctx.length)

	if ctx.length == 0 {
		// ZERO terminator
		return parselength
	}

	var data = ctx.buf.Next(4)

	ctx.length -= 4 // take off the length of the CIE id / CIE pointer.

	if cieEntry(data, ctx.ehFrame) {
		ctx.common = &CommonInformationEntry{Length: ctx.length, staticBase: ctx.staticBase, EHFrame: ctx.ehFrame}
		return parseCIE
	}

	ctx.frame = &FrameDescriptionEntry{Length: ctx.length, CIE: ctx.common}
	return parseFDE
}

func parseFDE(ctx *parseContext) parsefunc {
	var num uint64
	r := ctx.buf.Next(int(ctx.length))

	reader := bytes.NewReader(r)
	num, _ = util.ReadUintRaw(reader, binary.LittleEndian, ctx.ptrSize)
	ctx.frame.begin = num + ctx.staticBase
	num, _ = util.ReadUintRaw(reader, binary.LittleEndian, ctx.ptrSize)
	ctx.frame.size = num

	rest := r[2*ctx.ptrSize:]
	if ctx.frame.CIE != nil && ctx.frame.CIE.HasAugmentationData {
		abuf := bytes.NewBuffer(rest)
		augLen, _ := util.DecodeULEB128(abuf)
		augData := abuf.Next(int(augLen))
		rest = abuf.Bytes()
		if ctx.frame.CIE.HasLSDA {
			ctx.frame.LSDA, _ = readEncodedPointer(bytes.NewBuffer(augData), ctx.frame.CIE.LSDAEncoding, ctx.ptrSize)
		}
	}

	// Insert into the tree after setting address range begin
	// otherwise compares won't work.
	ctx.entries = append(ctx.entries, ctx.frame)

	// The rest of this entry consists of the instructions
	// so we can just grab all of the data from the buffer
	// cursor to length.
	ctx.frame.Instructions = rest
	ctx.length = 0

	return parselength
}

func parseCIE(ctx *parseContext) parsefunc {
	data := ctx.buf.Next(int(ctx.length))
	buf := bytes.NewBuffer(data)
	// parse version
	ctx.common.Version, _ = buf.ReadByte()

	// parse augmentation
	ctx.common.Augmentation, _ = util.ParseString(buf)

	if ctx.common.EHFrame && ctx.common.Version == 4 {
		// address_size/segment_selector_size, eh_frame CIEs never use
		// segmented addressing and ptrSize already carries address_size.
		buf.Next(2)
	}

	// parse code alignment factor
	ctx.common.CodeAlignmentFactor, _ = util.DecodeULEB128(buf)

	// parse data alignment factor
	ctx.common.DataAlignmentFactor, _ = util.DecodeSLEB128(buf)

	// return_address_register is a single byte in CIE version 1 (DWARFv2,
	// and virtually every real .eh_frame CIE); DWARFv3 and later widen it
	// to ULEB128 to allow architectures with large register files.
	if ctx.common.Version == 1 {
		b, _ := buf.ReadByte()
		ctx.common.ReturnAddressRegister = uint64(b)
	} else {
		ctx.common.ReturnAddressRegister, _ = util.DecodeULEB128(buf)
	}

	parseZAugmentation(ctx.common, buf, ctx.ptrSize)

	// parse initial instructions
	// The rest of this entry consists of the instructions
	// so we can just grab all of the data from the buffer
	// cursor to length.
	ctx.common.InitialInstructions = buf.Bytes() //ctx.buf.Next(int(ctx.length))
	ctx.length = 0

	return parselength
}

// parseZAugmentation decodes a CIE's augmentation data, present whenever
// Augmentation starts with 'z' (the GCC/LLVM convention for .eh_frame,
// LSB Core Spec appendix on exception frames): a ULEB128 byte length
// followed by one field per remaining augmentation-string letter, in the
// order the letters appear. 'L' is a one-byte LSDA pointer encoding, 'P'
// is a personality routine pointer (encoding byte + encoded value), 'R'
// is a one-byte FDE pointer encoding, and 'S' (signal frame) carries no
// data. Augmentation strings that don't start with 'z' (or any CIE from
// .debug_frame, which never uses this convention) carry no augmentation
// data at all.
func parseZAugmentation(common *CommonInformationEntry, buf *bytes.Buffer, ptrSize int) {
	if len(common.Augmentation) == 0 || common.Augmentation[0] != 'z' {
		return
	}
	common.HasAugmentationData = true

	augLen, _ := util.DecodeULEB128(buf)
	augData := buf.Next(int(augLen))
	r := bytes.NewBuffer(augData)

	for _, c := range common.Augmentation[1:] {
		switch c {
		case 'L':
			common.HasLSDA = true
			b, _ := r.ReadByte()
			common.LSDAEncoding = ptrEnc(b)
		case 'P':
			common.HasPersonality = true
			b, _ := r.ReadByte()
			common.PersonalityEncoding = ptrEnc(b)
			common.Personality, _ = readEncodedPointer(r, common.PersonalityEncoding, ptrSize)
		case 'R':
			b, _ := r.ReadByte()
			common.ptrEncAddr = ptrEnc(b)
		case 'S':
			common.IsSignalFrame = true
		}
	}
}

// readEncodedPointer reads one pointer value out of r encoded per enc
// (the low nibble selects the storage width/signedness; see the ptrEnc
// comment in entries.go). PC/text/data/func-relative flags are recorded
// in enc but not applied here — resolving them needs the file offset the
// pointer was read from, which a caller consuming Personality/LSDA
// against a loaded image already has.
func readEncodedPointer(r *bytes.Buffer, enc ptrEnc, ptrSize int) (uint64, error) {
	if enc == ptrEncOmit {
		return 0, nil
	}
	switch enc & 0x0f {
	case ptrEncUleb:
		v, _ := util.DecodeULEB128(r)
		return v, nil
	case ptrEncSleb:
		v, _ := util.DecodeSLEB128(r)
		return uint64(v), nil
	case ptrEncUdata2, ptrEncSdata2:
		return util.ReadUintRaw(r, binary.LittleEndian, 2)
	case ptrEncUdata4, ptrEncSdata4:
		return util.ReadUintRaw(r, binary.LittleEndian, 4)
	case ptrEncUdata8, ptrEncSdata8:
		return util.ReadUintRaw(r, binary.LittleEndian, 8)
	default: // ptrEncAbs, ptrEncSigned
		return util.ReadUintRaw(r, binary.LittleEndian, ptrSize)
	}
}

// DwarfEndian determines the endianness of the DWARF by using the version number field in the debug_info section
// Trick borrowed from "debug/dwarf".New()
func DwarfEndian(infoSec []byte) binary.ByteOrder {
	if len(infoSec) < 6 {
		return binary.BigEndian
	}
	x, y := infoSec[4], infoSec[5]
	switch {
	case x == 0 && y == 0:
		return binary.BigEndian
	case x == 0:
		return binary.BigEndian
	case y == 0:
		return binary.LittleEndian
	default:
		return binary.BigEndian
	}
}
