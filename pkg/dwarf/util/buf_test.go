package util

import (
	"encoding/binary"
	"testing"
)

func TestBufUintSize(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	b := NewBuf("test", 0, data, binary.LittleEndian)
	if got := b.Uint32(); got != 0x04030201 {
		t.Fatalf("got %#x", got)
	}
	if b.Err != nil {
		t.Fatal(b.Err)
	}
}

func TestBufUnderflow(t *testing.T) {
	b := NewBuf("test", 0, []byte{0x01}, binary.LittleEndian)
	b.Uint32()
	if b.Err == nil {
		t.Fatal("expected underflow error")
	}
}

func TestBufInitialLength64(t *testing.T) {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 0xffffffff)
	binary.LittleEndian.PutUint64(data[4:12], 0x123456789a)
	b := NewBuf("test", 0, data, binary.LittleEndian)
	length, dwarf64 := b.InitialLength()
	if !dwarf64 {
		t.Fatal("expected dwarf64")
	}
	if length != 0x123456789a {
		t.Fatalf("got %#x", length)
	}
}

func TestBufULEBSLEB(t *testing.T) {
	b := NewBuf("test", 0, []byte{0xE5, 0x8E, 0x26, 0x9b, 0xf1, 0x59}, binary.LittleEndian)
	if v := b.ULEB(); v != 624485 {
		t.Fatalf("got %d", v)
	}
	if v := b.SLEB(); v != -624485 {
		t.Fatalf("got %d", v)
	}
	if b.Err != nil {
		t.Fatal(b.Err)
	}
}

func TestBufString(t *testing.T) {
	b := NewBuf("test", 0, []byte("hello\x00rest"), binary.LittleEndian)
	if s := b.String(); s != "hello" {
		t.Fatalf("got %q", s)
	}
	if string(b.BytesRemaining()) != "rest" {
		t.Fatalf("got %q", b.BytesRemaining())
	}
}

func TestReadDwarfLengthVersion(t *testing.T) {
	data := []byte{0x10, 0x00, 0x00, 0x00, 0x04, 0x00}
	length, dwarf64, version, order := ReadDwarfLengthVersion(data)
	if dwarf64 {
		t.Fatal("unexpected dwarf64")
	}
	if length != 0x10 {
		t.Fatalf("got length %d", length)
	}
	if version != 4 {
		t.Fatalf("got version %d", version)
	}
	if order != binary.LittleEndian {
		t.Fatalf("got order %v", order)
	}
}
