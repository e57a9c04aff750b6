package op

import "fmt"

// DW_OP_* opcode values (DWARF v5 section 7.7.1, table 7.9), plus the
// DWARF2-4 numbers that predate DW_OP_implicit_value/stack_value/addrx.
const (
	DW_OP_addr        Opcode = 0x03
	DW_OP_deref       Opcode = 0x06
	DW_OP_const1u     Opcode = 0x08
	DW_OP_const1s     Opcode = 0x09
	DW_OP_const2u     Opcode = 0x0a
	DW_OP_const2s     Opcode = 0x0b
	DW_OP_const4u     Opcode = 0x0c
	DW_OP_const4s     Opcode = 0x0d
	DW_OP_const8u     Opcode = 0x0e
	DW_OP_const8s     Opcode = 0x0f
	DW_OP_constu      Opcode = 0x10
	DW_OP_consts      Opcode = 0x11
	DW_OP_dup         Opcode = 0x12
	DW_OP_drop        Opcode = 0x13
	DW_OP_over        Opcode = 0x14
	DW_OP_pick        Opcode = 0x15
	DW_OP_swap        Opcode = 0x16
	DW_OP_rot         Opcode = 0x17
	DW_OP_xderef      Opcode = 0x18
	DW_OP_abs         Opcode = 0x19
	DW_OP_and         Opcode = 0x1a
	DW_OP_div         Opcode = 0x1b
	DW_OP_minus       Opcode = 0x1c
	DW_OP_mod         Opcode = 0x1d
	DW_OP_mul         Opcode = 0x1e
	DW_OP_neg         Opcode = 0x1f
	DW_OP_not         Opcode = 0x20
	DW_OP_or          Opcode = 0x21
	DW_OP_plus        Opcode = 0x22
	DW_OP_plus_uconst Opcode = 0x23
	DW_OP_shl         Opcode = 0x24
	DW_OP_shr         Opcode = 0x25
	DW_OP_shra        Opcode = 0x26
	DW_OP_xor         Opcode = 0x27
	DW_OP_bra         Opcode = 0x28
	DW_OP_eq          Opcode = 0x29
	DW_OP_ge          Opcode = 0x2a
	DW_OP_gt          Opcode = 0x2b
	DW_OP_le          Opcode = 0x2c
	DW_OP_lt          Opcode = 0x2d
	DW_OP_ne          Opcode = 0x2e
	DW_OP_skip        Opcode = 0x2f

	DW_OP_lit0 Opcode = 0x30 // DW_OP_lit0..DW_OP_lit31 are 0x30..0x4f
	DW_OP_reg0 Opcode = 0x50 // DW_OP_reg0..DW_OP_reg31 are 0x50..0x6f
	DW_OP_breg0 Opcode = 0x70 // DW_OP_breg0..DW_OP_breg31 are 0x70..0x8f

	DW_OP_regx           Opcode = 0x90
	DW_OP_fbreg          Opcode = 0x91
	DW_OP_bregx          Opcode = 0x92
	DW_OP_piece          Opcode = 0x93
	DW_OP_deref_size     Opcode = 0x94
	DW_OP_xderef_size    Opcode = 0x95
	DW_OP_nop            Opcode = 0x96
	DW_OP_push_object_address Opcode = 0x97
	DW_OP_call2          Opcode = 0x98
	DW_OP_call4          Opcode = 0x99
	DW_OP_call_ref       Opcode = 0x9a
	DW_OP_form_tls_address Opcode = 0x9b
	DW_OP_call_frame_cfa Opcode = 0x9c
	DW_OP_bit_piece      Opcode = 0x9d
	DW_OP_implicit_value Opcode = 0x9e
	DW_OP_stack_value    Opcode = 0x9f

	// DWARF5 additions (section 7.7.1).
	DW_OP_implicit_pointer Opcode = 0xa0
	DW_OP_addrx            Opcode = 0xa1
	DW_OP_constx           Opcode = 0xa2
	DW_OP_entry_value      Opcode = 0xa3
	DW_OP_const_type       Opcode = 0xa4
	DW_OP_regval_type      Opcode = 0xa5
	DW_OP_deref_type       Opcode = 0xa6
	DW_OP_xderef_type      Opcode = 0xa7
	DW_OP_convert          Opcode = 0xa8
	DW_OP_reinterpret      Opcode = 0xa9

	DW_OP_lo_user Opcode = 0xe0
	DW_OP_hi_user Opcode = 0xff
)

func regOpcodeName(n int) string   { return fmt.Sprintf("DW_OP_reg%d", n) }
func bregOpcodeName(n int) string  { return fmt.Sprintf("DW_OP_breg%d", n) }
func litOpcodeName(n int) string   { return fmt.Sprintf("DW_OP_lit%d", n) }

// oplut dispatches opcodes ExecuteStackProgram knows how to run. Only
// the subset that the Go compiler's own DWARF output actually emits in
// variable/parameter location lists is implemented (call_frame_cfa,
// addr, the plus/plus_uconst/consts family, fbreg, reg*/breg*, piece);
// anything else surfaces as an "invalid instruction" error from
// ExecuteStackProgram.
var oplut = map[Opcode]stackfn{
	DW_OP_call_frame_cfa: callframecfa,
	DW_OP_addr:           addr,
	DW_OP_plus:           plus,
	DW_OP_plus_uconst:    plusuconsts,
	DW_OP_consts:         consts,
	DW_OP_constu:         constu,
	DW_OP_fbreg:          framebase,
	DW_OP_regx:           register,
	DW_OP_bregx:          bregn,
	DW_OP_piece:          piece,
}

func init() {
	for i := 0; i < 32; i++ {
		oplut[DW_OP_lit0+Opcode(i)] = litn
		oplut[DW_OP_reg0+Opcode(i)] = register
		oplut[DW_OP_breg0+Opcode(i)] = bregn
	}
}

// opcodeName names every opcode PrettyPrint knows how to render by
// name rather than raw hex.
var opcodeName = func() map[Opcode]string {
	m := map[Opcode]string{
		DW_OP_addr: "DW_OP_addr", DW_OP_deref: "DW_OP_deref",
		DW_OP_const1u: "DW_OP_const1u", DW_OP_const1s: "DW_OP_const1s",
		DW_OP_const2u: "DW_OP_const2u", DW_OP_const2s: "DW_OP_const2s",
		DW_OP_const4u: "DW_OP_const4u", DW_OP_const4s: "DW_OP_const4s",
		DW_OP_const8u: "DW_OP_const8u", DW_OP_const8s: "DW_OP_const8s",
		DW_OP_constu: "DW_OP_constu", DW_OP_consts: "DW_OP_consts",
		DW_OP_dup: "DW_OP_dup", DW_OP_drop: "DW_OP_drop", DW_OP_over: "DW_OP_over",
		DW_OP_pick: "DW_OP_pick", DW_OP_swap: "DW_OP_swap", DW_OP_rot: "DW_OP_rot",
		DW_OP_xderef: "DW_OP_xderef", DW_OP_abs: "DW_OP_abs", DW_OP_and: "DW_OP_and",
		DW_OP_div: "DW_OP_div", DW_OP_minus: "DW_OP_minus", DW_OP_mod: "DW_OP_mod",
		DW_OP_mul: "DW_OP_mul", DW_OP_neg: "DW_OP_neg", DW_OP_not: "DW_OP_not",
		DW_OP_or: "DW_OP_or", DW_OP_plus: "DW_OP_plus", DW_OP_plus_uconst: "DW_OP_plus_uconst",
		DW_OP_shl: "DW_OP_shl", DW_OP_shr: "DW_OP_shr", DW_OP_shra: "DW_OP_shra",
		DW_OP_xor: "DW_OP_xor", DW_OP_bra: "DW_OP_bra", DW_OP_eq: "DW_OP_eq",
		DW_OP_ge: "DW_OP_ge", DW_OP_gt: "DW_OP_gt", DW_OP_le: "DW_OP_le",
		DW_OP_lt: "DW_OP_lt", DW_OP_ne: "DW_OP_ne", DW_OP_skip: "DW_OP_skip",
		DW_OP_regx: "DW_OP_regx", DW_OP_fbreg: "DW_OP_fbreg", DW_OP_bregx: "DW_OP_bregx",
		DW_OP_piece: "DW_OP_piece", DW_OP_deref_size: "DW_OP_deref_size",
		DW_OP_xderef_size: "DW_OP_xderef_size", DW_OP_nop: "DW_OP_nop",
		DW_OP_push_object_address: "DW_OP_push_object_address",
		DW_OP_call2: "DW_OP_call2", DW_OP_call4: "DW_OP_call4", DW_OP_call_ref: "DW_OP_call_ref",
		DW_OP_form_tls_address: "DW_OP_form_tls_address",
		DW_OP_call_frame_cfa: "DW_OP_call_frame_cfa", DW_OP_bit_piece: "DW_OP_bit_piece",
		DW_OP_implicit_value: "DW_OP_implicit_value", DW_OP_stack_value: "DW_OP_stack_value",
		DW_OP_implicit_pointer: "DW_OP_implicit_pointer", DW_OP_addrx: "DW_OP_addrx",
		DW_OP_constx: "DW_OP_constx", DW_OP_entry_value: "DW_OP_entry_value",
		DW_OP_const_type: "DW_OP_const_type", DW_OP_regval_type: "DW_OP_regval_type",
		DW_OP_deref_type: "DW_OP_deref_type", DW_OP_xderef_type: "DW_OP_xderef_type",
		DW_OP_convert: "DW_OP_convert", DW_OP_reinterpret: "DW_OP_reinterpret",
	}
	for i := 0; i < 32; i++ {
		m[DW_OP_lit0+Opcode(i)] = litOpcodeName(i)
		m[DW_OP_reg0+Opcode(i)] = regOpcodeName(i)
		m[DW_OP_breg0+Opcode(i)] = bregOpcodeName(i)
	}
	return m
}()

// opcodeArgs names the trailing-operand shape PrettyPrint decodes for
// each opcode: 's'/'u' are LEB128, '1'/'2'/'4'/'8' are fixed-width
// little-endian integers, 'B' is a ULEB128-prefixed byte block.
var opcodeArgs = map[Opcode][]byte{
	DW_OP_addr:        {'8'},
	DW_OP_const1u:      {'1'},
	DW_OP_const1s:      {'1'},
	DW_OP_const2u:      {'2'},
	DW_OP_const2s:      {'2'},
	DW_OP_const4u:      {'4'},
	DW_OP_const4s:      {'4'},
	DW_OP_const8u:      {'8'},
	DW_OP_const8s:      {'8'},
	DW_OP_constu:       {'u'},
	DW_OP_consts:       {'s'},
	DW_OP_pick:         {'1'},
	DW_OP_plus_uconst:  {'u'},
	DW_OP_bra:          {'2'},
	DW_OP_skip:         {'2'},
	DW_OP_regx:         {'u'},
	DW_OP_fbreg:        {'s'},
	DW_OP_bregx:        {'u', 's'},
	DW_OP_piece:        {'u'},
	DW_OP_deref_size:   {'1'},
	DW_OP_xderef_size:  {'1'},
	DW_OP_call2:        {'2'},
	DW_OP_call4:        {'4'},
	DW_OP_call_ref:     {'4'},
	DW_OP_bit_piece:    {'u', 'u'},
	DW_OP_implicit_value: {'B'},
	DW_OP_addrx:        {'u'},
	DW_OP_constx:       {'u'},
	DW_OP_entry_value:  {'B'},
}

func init() {
	for i := 0; i < 32; i++ {
		opcodeArgs[DW_OP_breg0+Opcode(i)] = []byte{'s'}
	}
}
