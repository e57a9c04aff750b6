package form

import (
	"encoding/binary"
	"testing"

	"github.com/dwarfkit/dwarfkit/pkg/dwarf/util"
)

func TestDecodeUdata(t *testing.T) {
	data := []byte{0xe5, 0x8e, 0x26} // ULEB128 624485
	b := util.NewBuf("debug_info", 0, data, binary.LittleEndian)
	v, err := Decode(b, Udata, 5, 8, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Class != ClassConstant || v.U != 624485 {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeString(t *testing.T) {
	data := append([]byte("hello"), 0)
	b := util.NewBuf("debug_info", 0, data, binary.LittleEndian)
	v, err := Decode(b, String, 5, 8, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Str != "hello" {
		t.Fatalf("got %q", v.Str)
	}
}

func TestDecodeStrx3LittleEndianAlways(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	b := util.NewBuf("debug_info", 0, data, binary.BigEndian)
	v, err := Decode(b, Strx3, 5, 8, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Class != ClassIndexed || v.U != 0x030201 {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeImplicitConst(t *testing.T) {
	b := util.NewBuf("debug_info", 0, nil, binary.LittleEndian)
	v, err := Decode(b, ImplicitConst, 5, 8, false, -7)
	if err != nil {
		t.Fatal(err)
	}
	if v.I != -7 {
		t.Fatalf("got %d", v.I)
	}
}

func TestDecodeFlagPresentConsumesNothing(t *testing.T) {
	b := util.NewBuf("debug_info", 0, []byte{0xff}, binary.LittleEndian)
	v, err := Decode(b, FlagPresent, 5, 8, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.U != 1 {
		t.Fatalf("got %+v", v)
	}
	if b.Len() != 1 {
		t.Fatalf("flag_present consumed a byte")
	}
}

func TestDecodeIndirect(t *testing.T) {
	var data []byte
	data = append(data, 0x0f) // ULEB128 form code for DW_FORM_udata
	data = append(data, 0x2a) // ULEB128 42
	b := util.NewBuf("debug_info", 0, data, binary.LittleEndian)
	v, err := Decode(b, Indirect, 5, 8, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Form != Udata || v.U != 42 {
		t.Fatalf("got %+v", v)
	}
}

func TestResolveIndexedMissingBase(t *testing.T) {
	v := Value{Form: Strx, Class: ClassIndexed, U: 3}
	_, err := ResolveIndexed(v, Bases{StrOffsets: NewOffsetTable(nil, binary.LittleEndian, NoBase(), 4)})
	if err != ErrMissingBase {
		t.Fatalf("got %v", err)
	}
}

func TestResolveIndexedStrx(t *testing.T) {
	str := append([]byte("abc\x00world\x00"))
	offsets := make([]byte, 8)
	binary.LittleEndian.PutUint32(offsets[4:], 4) // index 1 -> "world"
	v := Value{Form: Strx, Class: ClassIndexed, U: 1}
	got, err := ResolveIndexed(v, Bases{
		DebugStr:   str,
		StrOffsets: NewOffsetTable(offsets, binary.LittleEndian, 0, 4),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Str != "world" {
		t.Fatalf("got %q", got.Str)
	}
}
