package leb128

import "io"

// EncodeUnsigned encodes x to the unsigned Little Endian Base 128 format
// into out. The producer side of DWARF is out of scope for this module,
// but the encoder is kept so that decoders can be exercised with a
// round-trip property test (DecodeUnsigned(EncodeUnsigned(x)) == x).
func EncodeUnsigned(out io.ByteWriter, x uint64) error {
	for {
		b := byte(x & 0x7f)
		x >>= 7
		if x != 0 {
			b |= 0x80
		}
		if err := out.WriteByte(b); err != nil {
			return err
		}
		if x == 0 {
			return nil
		}
	}
}

// EncodeSigned encodes x to the signed Little Endian Base 128 format into
// out.
func EncodeSigned(out io.ByteWriter, x int64) error {
	for {
		b := byte(x & 0x7f)
		x >>= 7

		signb := b & 0x40
		last := (x == 0 && signb == 0) || (x == -1 && signb != 0)
		if !last {
			b |= 0x80
		}
		if err := out.WriteByte(b); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}
