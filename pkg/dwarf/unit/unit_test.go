package unit

import (
	"encoding/binary"
	"testing"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/abbrev"
)

func uleb(b []byte, x uint64) []byte {
	for {
		c := byte(x & 0x7f)
		x >>= 7
		if x != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if x == 0 {
			break
		}
	}
	return b
}

// buildUnit assembles a minimal DWARF5 compile unit with a root
// DW_TAG_compile_unit (DW_AT_name, DW_FORM_string) containing one child
// DW_TAG_subprogram with no attributes.
func buildUnit() (abbrevData, infoData []byte) {
	var ab []byte
	ab = uleb(ab, 1)
	ab = uleb(ab, 0x11) // DW_TAG_compile_unit
	ab = append(ab, 1)  // has children
	ab = uleb(ab, 0x03) // DW_AT_name
	ab = uleb(ab, 0x08) // DW_FORM_string
	ab = uleb(ab, 0)
	ab = uleb(ab, 0)

	ab = uleb(ab, 2)
	ab = uleb(ab, 0x2e) // DW_TAG_subprogram
	ab = append(ab, 0)  // no children
	ab = uleb(ab, 0)
	ab = uleb(ab, 0)

	ab = uleb(ab, 0) // table terminator

	var body []byte
	body = uleb(body, 1) // code 1: compile_unit
	body = append(body, []byte("main")...)
	body = append(body, 0)
	body = uleb(body, 2) // code 2: subprogram (child)
	body = append(body, 0) // terminate children of root

	// version(2) unit_type(1) addr_size(1) abbrev_offset(4)
	hdr := make([]byte, 0, 8)
	hdr = append(hdr, 5, 0)        // version 5, little endian
	hdr = append(hdr, 0x01)        // DW_UT_compile
	hdr = append(hdr, 8)           // addr_size
	hdr = append(hdr, 0, 0, 0, 0)  // abbrev_offset 0
	unitBody := append(hdr, body...)

	length := make([]byte, 4)
	binary.LittleEndian.PutUint32(length, uint32(len(unitBody)))

	info := append(length, unitBody...)
	return ab, info
}

func testResources(abbrevData []byte) *Resources {
	return &Resources{
		Order:  binary.LittleEndian,
		Abbrev: abbrev.NewCache(abbrevData),
	}
}

func TestParseIndexAndRoot(t *testing.T) {
	ab, info := buildUnit()
	idx, err := ParseIndex(info, false, testResources(ab))
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Units) != 1 {
		t.Fatalf("got %d units", len(idx.Units))
	}
	u := idx.Units[0]
	if u.Header.Version != 5 || u.Header.Kind != KindCompile {
		t.Fatalf("unexpected header: %+v", u.Header)
	}

	root, err := u.Root()
	if err != nil {
		t.Fatal(err)
	}
	if root.Tag() != 0x11 || !root.HasChildren() {
		t.Fatalf("unexpected root: %+v", root)
	}
	v, ok, err := root.Val(0x03)
	if err != nil || !ok || v.Str != "main" {
		t.Fatalf("got %+v ok=%v err=%v", v, ok, err)
	}
}

func TestReaderWalksChildren(t *testing.T) {
	ab, info := buildUnit()
	idx, err := ParseIndex(info, false, testResources(ab))
	if err != nil {
		t.Fatal(err)
	}
	u := idx.Units[0]
	if _, err := u.Root(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(u)
	root, err := r.Next()
	if err != nil || root.Tag() != 0x11 {
		t.Fatalf("got %+v err=%v", root, err)
	}
	child, err := r.Next()
	if err != nil || child.Tag() != 0x2e {
		t.Fatalf("got %+v err=%v", child, err)
	}
	term, err := r.Next()
	if err != nil || term.Tag() != 0 {
		t.Fatalf("expected terminator, got %+v err=%v", term, err)
	}
	end, err := r.Next()
	if err != nil || end != nil {
		t.Fatalf("expected end of unit, got %+v err=%v", end, err)
	}
}

func TestUnitContaining(t *testing.T) {
	ab, info := buildUnit()
	idx, err := ParseIndex(info, false, testResources(ab))
	if err != nil {
		t.Fatal(err)
	}
	u := idx.UnitContaining(idx.Units[0].Header.HeaderEnd)
	if u != idx.Units[0] {
		t.Fatalf("UnitContaining returned wrong unit")
	}
	if idx.UnitContaining(uint64(len(info))) != nil {
		t.Fatalf("expected nil past end of section")
	}
}
