package object

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"
)

func TestDecompressMaybeZlib(t *testing.T) {
	payload := []byte("hello debug info")

	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	if _, err := w.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var framed bytes.Buffer
	framed.WriteString("ZLIB")
	sizeBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(sizeBuf, uint64(len(payload)))
	framed.Write(sizeBuf)
	framed.Write(compressed.Bytes())

	out, err := decompressMaybe(framed.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("got %q, want %q", out, payload)
	}
}

func TestDecompressMaybeUncompressed(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	out, err := decompressMaybe(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("expected passthrough, got %x", out)
	}
}

func TestGroupTableDefaults(t *testing.T) {
	var g *GroupTable
	if got := g.GroupOf(5); got != GroupBASE {
		t.Fatalf("nil GroupTable should default to GroupBASE, got %d", got)
	}
	if got := g.Name(GroupANY); got != "" {
		t.Fatalf("expected empty name, got %q", got)
	}
}
