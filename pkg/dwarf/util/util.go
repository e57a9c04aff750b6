package util

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/leb128"
)

// DecodeULEB128 decodes an unsigned Little Endian Base 128 represented
// number. It is a thin, panic-free wrapper around leb128.DecodeUnsigned
// kept for the call sites (pkg/dwarf/frame, pkg/dwarf/line,
// pkg/dwarf/loclist, pkg/dwarf/op) that predate leb128's error-returning
// API and are bounded by their own length-prefixed sections; a decode
// error there means the data was already truncated upstream, so it
// collapses to the zero value instead of panicking.
func DecodeULEB128(buf *bytes.Buffer) (uint64, uint32) {
	v, n, err := leb128.DecodeUnsigned(buf)
	if err != nil {
		return 0, n
	}
	return v, n
}

// DecodeSLEB128 decodes a signed Little Endian Base 128 represented
// number. See DecodeULEB128 for why errors are swallowed here.
func DecodeSLEB128(buf *bytes.Buffer) (int64, uint32) {
	v, n, err := leb128.DecodeSigned(buf)
	if err != nil {
		return 0, n
	}
	return v, n
}

// EncodeULEB128 encodes x to the unsigned Little Endian Base 128 format
// into out.
func EncodeULEB128(out io.ByteWriter, x uint64) {
	leb128.EncodeUnsigned(out, x)
}

// EncodeSLEB128 encodes x to the signed Little Endian Base 128 format
// into out.
func EncodeSLEB128(out io.ByteWriter, x int64) {
	leb128.EncodeSigned(out, x)
}

// ParseString reads a NUL-terminated string from data, stopping at and
// consuming the terminator. The returned length includes the terminator.
func ParseString(data *bytes.Buffer) (string, uint32) {
	str, err := data.ReadString(0x0)
	if err != nil {
		return str, uint32(len(str))
	}

	return str[:len(str)-1], uint32(len(str))
}

// ReadDwarfLengthVersion reads the initial length field of a DWARF unit
// or list header (section 7.4), detecting the DWARF64 escape value
// (0xffffffff) and the two-byte version field that follows it, and
// recovers the byte order of data the same way "debug/dwarf".New does:
// a real DWARF version number is a small integer, so whichever order
// makes bytes 4-5 (or 12-13, in the 64-bit format) look small is the
// correct one. This lets .debug_loclists/.debug_rnglists headers, which
// carry no byte-order marker of their own, be read standalone.
func ReadDwarfLengthVersion(data []byte) (length uint64, dwarf64 bool, version uint8, byteOrder binary.ByteOrder) {
	if len(data) < 4 {
		return 0, false, 0, binary.LittleEndian
	}

	byteOrder = binary.LittleEndian
	if len(data) >= 6 {
		x, y := data[4], data[5]
		switch {
		case x != 0 && y == 0:
			byteOrder = binary.LittleEndian
		case x == 0 && y != 0:
			byteOrder = binary.BigEndian
		}
	}

	length = uint64(byteOrder.Uint32(data[0:4]))
	versionOff := 4
	if length == 0xffffffff {
		if len(data) < 12 {
			return 0, true, 0, byteOrder
		}
		dwarf64 = true
		length = byteOrder.Uint64(data[4:12])
		versionOff = 12
	}

	if len(data) >= versionOff+2 {
		version = uint8(byteOrder.Uint16(data[versionOff : versionOff+2]))
	}

	return length, dwarf64, version, byteOrder
}

// ReadUintRaw reads an integer of ptrSize bytes, with the specified byte order, from reader.
func ReadUintRaw(reader io.Reader, order binary.ByteOrder, ptrSize int) (uint64, error) {
	switch ptrSize {
	case 4:
		var n uint32
		if err := binary.Read(reader, order, &n); err != nil {
			return 0, err
		}
		return uint64(n), nil
	case 8:
		var n uint64
		if err := binary.Read(reader, order, &n); err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, fmt.Errorf("not supprted ptr size %d", ptrSize)
}

// WriteUint writes an integer of ptrSize bytes to writer, in the specified byte order.
func WriteUint(writer io.Writer, order binary.ByteOrder, ptrSize int, data uint64) error {
	switch ptrSize {
	case 4:
		return binary.Write(writer, order, uint32(data))
	case 8:
		return binary.Write(writer, order, data)
	}
	return fmt.Errorf("not support prt size %d", ptrSize)
}
