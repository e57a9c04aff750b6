package debuglink

import (
	"encoding/binary"
	"testing"
)

func TestParseGNUDebuglink(t *testing.T) {
	data := []byte{'a', '.', 'd', 'b', 'g', 0, 0, 0, 0xef, 0xbe, 0xad, 0xde}
	name, crc, err := ParseGNUDebuglink(data, binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	if name != "a.dbg" {
		t.Fatalf("got name %q", name)
	}
	if crc != 0xdeadbeef {
		t.Fatalf("got crc %#x", crc)
	}
}

func TestParseGNUBuildID(t *testing.T) {
	name := []byte("GNU\x00")
	desc := []byte{0x01, 0x02, 0x03, 0x04}

	data := make([]byte, 0, 12+len(name)+len(desc))
	hdr := make([]byte, 12)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(name)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(desc)))
	binary.LittleEndian.PutUint32(hdr[8:12], 3) // NT_GNU_BUILD_ID
	data = append(data, hdr...)
	data = append(data, name...)
	data = append(data, desc...)

	id, err := ParseGNUBuildID(data, binary.LittleEndian)
	if err != nil {
		t.Fatal(err)
	}
	if id != "01020304" {
		t.Fatalf("got %q", id)
	}
}

func TestBuildIDPath(t *testing.T) {
	p := BuildIDPath("/usr/lib/debug", "abcdef0123456789")
	want := "/usr/lib/debug/.build-id/ab/cdef0123456789.debug"
	if p != want {
		t.Fatalf("got %q want %q", p, want)
	}
}

func TestDefaultDebugPathConfig(t *testing.T) {
	c := DefaultDebugPathConfig()
	if len(c.DebugInfoDirectories) != 1 || c.DebugInfoDirectories[0] != "/usr/lib/debug/.build-id" {
		t.Fatalf("unexpected default: %+v", c)
	}
}
