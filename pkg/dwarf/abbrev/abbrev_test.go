package abbrev

import "testing"

func buildTestTable() []byte {
	var b []byte
	uleb := func(x uint64) {
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
	}

	// Declaration 1: DW_TAG_compile_unit (0x11), has children,
	// DW_AT_name (0x03) DW_FORM_string (0x08).
	uleb(1)
	uleb(0x11)
	b = append(b, 1)
	uleb(0x03)
	uleb(0x08)
	uleb(0)
	uleb(0)

	// Terminator.
	uleb(0)

	return b
}

func TestParse(t *testing.T) {
	data := buildTestTable()
	table, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	decl, ok := table[1]
	if !ok {
		t.Fatal("missing declaration 1")
	}
	if decl.Tag != 0x11 || !decl.HasChildren {
		t.Fatalf("unexpected declaration: %+v", decl)
	}
	if len(decl.Attrs) != 1 || decl.Attrs[0].Attr != 0x03 || decl.Attrs[0].Form != 0x08 {
		t.Fatalf("unexpected attrs: %+v", decl.Attrs)
	}
}

func TestCacheGetCaches(t *testing.T) {
	data := buildTestTable()
	c := NewCache(data)

	t1, err := c.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	t2, err := c.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(t1) != len(t2) {
		t.Fatalf("cached table mismatch")
	}
}
