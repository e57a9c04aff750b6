// Buffered reading and decoding of DWARF data streams.
//
// This generalizes the bounded byte-cursor shape the Go standard
// library's debug/dwarf package uses internally (buf.go there), but
// reports every short read or malformed value as an error on the cursor
// instead of a package-private panic, since this cursor underlies a
// library whose callers, not its own test suite, decide what to do with
// a truncated section.
package util

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/leb128"
)

// Buf is a bounded cursor over a single DWARF section (or a sub-slice of
// one, e.g. a single compilation unit's span of .debug_info). Every
// accessor advances the cursor and records the first error encountered
// in Err; once Err is set, further reads are no-ops that keep returning
// the zero value, so a long decode sequence can defer error checking to
// its end.
type Buf struct {
	Err error

	Name string // section name, used in error messages
	Off  uint64 // offset of data[0] from the start of the section

	data     []byte
	order    binary.ByteOrder
	addrSize int // address size for this unit, 0 if not yet known
}

// NewBuf creates a cursor over data, which begins at offset off within
// section name, using order for multi-byte fields.
func NewBuf(name string, off uint64, data []byte, order binary.ByteOrder) *Buf {
	return &Buf{Name: name, Off: off, data: data, order: order}
}

// SetAddrSize fixes the address size (4 or 8) used by Addr.
func (b *Buf) SetAddrSize(n int) { b.addrSize = n }

// Len returns the number of unread bytes.
func (b *Buf) Len() int { return len(b.data) }

// BytesRemaining returns the unread tail of the cursor without consuming it.
func (b *Buf) BytesRemaining() []byte { return b.data }

// Uint8 reads a single byte.
func (b *Buf) Uint8() uint8 {
	if len(b.data) < 1 {
		b.error("underflow reading uint8")
		return 0
	}
	v := b.data[0]
	b.data = b.data[1:]
	b.Off++
	return v
}

// Uint16 reads a two-byte unsigned integer in the cursor's byte order.
func (b *Buf) Uint16() uint16 {
	buf := b.Bytes(2)
	if b.Err != nil {
		return 0
	}
	return b.order.Uint16(buf)
}

// Uint32 reads a four-byte unsigned integer in the cursor's byte order.
func (b *Buf) Uint32() uint32 {
	buf := b.Bytes(4)
	if b.Err != nil {
		return 0
	}
	return b.order.Uint32(buf)
}

// Uint64 reads an eight-byte unsigned integer in the cursor's byte order.
func (b *Buf) Uint64() uint64 {
	buf := b.Bytes(8)
	if b.Err != nil {
		return 0
	}
	return b.order.Uint64(buf)
}

// UintSize reads an unsigned integer of the given width (1, 2, 4 or 8
// bytes) in the cursor's byte order.
func (b *Buf) UintSize(size int) uint64 {
	switch size {
	case 1:
		return uint64(b.Uint8())
	case 2:
		return uint64(b.Uint16())
	case 4:
		return uint64(b.Uint32())
	case 8:
		return b.Uint64()
	}
	b.error(fmt.Sprintf("unsupported integer width %d", size))
	return 0
}

// Addr reads an address-sized value, per SetAddrSize.
func (b *Buf) Addr() uint64 {
	if b.addrSize == 0 {
		b.error("address size not set")
		return 0
	}
	return b.UintSize(b.addrSize)
}

// Offset reads a section offset, 4 bytes in 32-bit DWARF or 8 bytes in
// the 64-bit format.
func (b *Buf) Offset(dwarf64 bool) uint64 {
	if dwarf64 {
		return b.Uint64()
	}
	return uint64(b.Uint32())
}

// InitialLength reads a DWARF initial-length field (section 7.4),
// recognizing the 0xffffffff escape value that selects the 64-bit
// format.
func (b *Buf) InitialLength() (length uint64, dwarf64 bool) {
	x := b.Uint32()
	if b.Err != nil {
		return 0, false
	}
	if x != 0xffffffff {
		return uint64(x), false
	}
	return b.Uint64(), true
}

// Bytes reads and returns the next n bytes without copying.
func (b *Buf) Bytes(n int) []byte {
	if n < 0 || len(b.data) < n {
		b.error("underflow")
		return nil
	}
	data := b.data[:n]
	b.data = b.data[n:]
	b.Off += uint64(n)
	return data
}

// Skip discards the next n bytes.
func (b *Buf) Skip(n int) { b.Bytes(n) }

// String returns the NUL-terminated string at the start of the cursor.
// The terminating NUL is consumed but not included in the result.
func (b *Buf) String() string {
	for i := 0; i < len(b.data); i++ {
		if b.data[i] == 0 {
			s := string(b.data[:i])
			b.data = b.data[i+1:]
			b.Off += uint64(i + 1)
			return s
		}
	}
	b.error("unterminated string")
	return ""
}

// ULEB reads an unsigned LEB128 value.
func (b *Buf) ULEB() uint64 {
	v, n, err := leb128.DecodeUnsigned(byteSliceReader{b})
	if err != nil {
		b.error(fmt.Sprintf("malformed ULEB128: %v", err))
		return 0
	}
	b.Off += uint64(n)
	return v
}

// SLEB reads a signed LEB128 value.
func (b *Buf) SLEB() int64 {
	v, n, err := leb128.DecodeSigned(byteSliceReader{b})
	if err != nil {
		b.error(fmt.Sprintf("malformed SLEB128: %v", err))
		return 0
	}
	b.Off += uint64(n)
	return v
}

// Slice carves out a bounded sub-cursor covering the next length bytes,
// sharing this cursor's byte order and address size but reporting
// errors independently.
func (b *Buf) Slice(length int) *Buf {
	n := &Buf{Name: b.Name, Off: b.Off, order: b.order, addrSize: b.addrSize}
	data := b.Bytes(length)
	n.data = data
	return n
}

// AssertEmpty records an error if any bytes remain unread.
func (b *Buf) AssertEmpty() {
	if len(b.data) == 0 {
		return
	}
	if len(b.data) > 5 {
		b.error(fmt.Sprintf("unexpected extra data: %x...", b.data[:5]))
		return
	}
	b.error(fmt.Sprintf("unexpected extra data: %x", b.data))
}

func (b *Buf) error(s string) {
	if b.Err == nil {
		b.data = nil
		b.Err = &DecodeError{Name: b.Name, Offset: b.Off, Err: s}
	}
}

// DecodeError describes a malformed-data error at a specific offset
// within a named section, the shape debug/dwarf.DecodeError uses,
// generalized to apply to every section this module reads rather than
// only .debug_info.
type DecodeError struct {
	Name   string
	Offset uint64
	Err    string
}

func (e *DecodeError) Error() string {
	return "decoding dwarf section " + e.Name + " at offset 0x" + fmt.Sprintf("%x", e.Offset) + ": " + e.Err
}

// byteSliceReader adapts Buf to leb128.Reader. It consumes b.data
// directly as the decoder reads; b.Off is not moved, so the caller
// advances it by the byte count the decoder reports having used.
type byteSliceReader struct{ b *Buf }

func (r byteSliceReader) ReadByte() (byte, error) {
	if len(r.b.data) == 0 {
		return 0, fmt.Errorf("underflow")
	}
	c := r.b.data[0]
	r.b.data = r.b.data[1:]
	return c, nil
}

func (r byteSliceReader) Read(p []byte) (int, error) {
	n := copy(p, r.b.data)
	r.b.data = r.b.data[n:]
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (r byteSliceReader) Len() int {
	return len(r.b.data)
}
