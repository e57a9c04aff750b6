package frame

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"
	"os"
	"testing"
)

func TestParseCIE(t *testing.T) {
	ctx := &parseContext{
		buf:    bytes.NewBuffer([]byte{3, 0, 1, 124, 16, 12, 7, 8, 5, 16, 2, 0, 36, 0, 0, 0, 0, 0, 0, 0, 0, 16, 64, 0, 0, 0, 0, 0}),
		common: &CommonInformationEntry{Length: 12},
		length: 12,
	}
	_ = parseCIE(ctx)

	common := ctx.common

	if common.Version != 3 {
		t.Fatalf("Expected Version 3, but get %d", common.Version)
	}
	if common.Augmentation != "" {
		t.Fatalf("Expected Augmentation \"\", but get %s", common.Augmentation)
	}
	if common.CodeAlignmentFactor != 1 {
		t.Fatalf("Expected CodeAlignmentFactor 1, but get %d", common.CodeAlignmentFactor)
	}
	if common.DataAlignmentFactor != -4 {
		t.Fatalf("Expected DataAlignmentFactor -4, but get %d", common.DataAlignmentFactor)
	}
	if common.ReturnAddressRegister != 16 {
		t.Fatalf("Expected ReturnAddressRegister 16, but get %d", common.ReturnAddressRegister)
	}
	initialInstructions := []byte{12, 7, 8, 5, 16, 2, 0}
	if !bytes.Equal(common.InitialInstructions, initialInstructions) {
		t.Fatalf("Expected InitialInstructions %v, but get %v", initialInstructions, common.InitialInstructions)
	}
}

func BenchmarkParse(b *testing.B) {
	f, err := os.Open("testdata/frame")
	if err != nil {
		b.Fatal(err)
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Parse(data, binary.BigEndian, 0, ptrSizeByRuntimeArch())
	}
}

func TestParseCIEVersion1ReturnAddressRegisterIsU8(t *testing.T) {
	// version 1, augmentation "", code align 1, data align -4, RA register
	// byte 0x90 (144) -- in version 3+ this field is a ULEB128, where 0x90
	// has its continuation bit set, so a wrongly ULEB128-decoded read would
	// not yield register 144 here.
	ctx := &parseContext{
		buf:    bytes.NewBuffer([]byte{1, 0, 1, 124, 0x90}),
		common: &CommonInformationEntry{Length: 5},
		length: 5,
	}
	_ = parseCIE(ctx)
	if ctx.common.ReturnAddressRegister != 0x90 {
		t.Fatalf("Expected ReturnAddressRegister 0x90 read as a raw byte, got %d", ctx.common.ReturnAddressRegister)
	}
}

func TestCIEEntrySentinels(t *testing.T) {
	if !cieEntry([]byte{0xff, 0xff, 0xff, 0xff}, false) {
		t.Fatal("expected 0xffffffff to be recognized as a .debug_frame CIE id")
	}
	if cieEntry([]byte{0x00, 0x00, 0x00, 0x00}, false) {
		t.Fatal("0 is not a .debug_frame CIE id")
	}
	if !cieEntry([]byte{0x00, 0x00, 0x00, 0x00}, true) {
		t.Fatal("expected 0 to be recognized as a .eh_frame CIE id")
	}
	if cieEntry([]byte{0xff, 0xff, 0xff, 0xff}, true) {
		t.Fatal("0xffffffff is not a .eh_frame CIE id")
	}
}

func TestParseZAugmentation(t *testing.T) {
	common := &CommonInformationEntry{Augmentation: "zR"}
	// augmentation data length (1), then the 'R' FDE pointer encoding byte.
	buf := bytes.NewBuffer([]byte{1, byte(ptrEncPCRel | ptrEncSdata4)})
	parseZAugmentation(common, buf, 8)
	if !common.HasAugmentationData {
		t.Fatal("expected HasAugmentationData")
	}
	if common.ptrEncAddr != ptrEncPCRel|ptrEncSdata4 {
		t.Fatalf("expected FDE pointer encoding %#x, got %#x", ptrEncPCRel|ptrEncSdata4, common.ptrEncAddr)
	}
}
