package leb128

import (
	"bytes"
	"io"
	"testing"
)

func TestDecodeUnsigned(t *testing.T) {
	leb128 := bytes.NewBuffer([]byte{0xE5, 0x8E, 0x26})

	n, c, err := DecodeUnsigned(leb128)
	if err != nil {
		t.Fatal(err)
	}
	if n != 624485 {
		t.Fatal("Number was not decoded properly, got: ", n, c)
	}

	if c != 3 {
		t.Fatal("Count not returned correctly")
	}
}

func TestDecodeSigned(t *testing.T) {
	sleb128 := bytes.NewBuffer([]byte{0x9b, 0xf1, 0x59})

	n, _, err := DecodeSigned(sleb128)
	if err != nil {
		t.Fatal(err)
	}
	if n != -624485 {
		t.Fatal("Number was not decoded properly, got: ", n)
	}
}

func TestDecodeUnsignedShortBuffer(t *testing.T) {
	leb128 := bytes.NewBuffer([]byte{0x80, 0x80})
	if _, _, err := DecodeUnsigned(leb128); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestDecodeUnsignedOverflow(t *testing.T) {
	overlong := bytes.Repeat([]byte{0x80}, 11)
	overlong = append(overlong, 0x01)
	if _, _, err := DecodeUnsigned(bytes.NewBuffer(overlong)); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}
