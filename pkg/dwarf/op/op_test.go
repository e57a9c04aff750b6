package op

import "testing"

func TestExecuteStackProgram(t *testing.T) {
	var (
		instructions = []byte{byte(DW_OP_consts), 0x1c, byte(DW_OP_consts), 0x1c, byte(DW_OP_plus)}
		expected     = int64(56)
	)
	actual, _, err := ExecuteStackProgram(DwarfRegisters{}, instructions, 8)
	if err != nil {
		t.Fatal(err)
	}

	if actual != expected {
		t.Fatalf("actual %d != expected %d", actual, expected)
	}
}

func TestExecuteStackProgramLiteral(t *testing.T) {
	instructions := []byte{byte(DW_OP_lit0 + 5)}
	actual, _, err := ExecuteStackProgram(DwarfRegisters{}, instructions, 8)
	if err != nil {
		t.Fatal(err)
	}
	if actual != 5 {
		t.Fatalf("actual %d != expected 5", actual)
	}
}

func TestExecuteStackProgramFrameBase(t *testing.T) {
	instructions := []byte{byte(DW_OP_fbreg), 0x10} // SLEB128 16
	regs := DwarfRegisters{FrameBase: 100}
	actual, _, err := ExecuteStackProgram(regs, instructions, 8)
	if err != nil {
		t.Fatal(err)
	}
	if actual != 116 {
		t.Fatalf("actual %d != expected 116", actual)
	}
}
