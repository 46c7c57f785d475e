package insts

// Fields is a bit-field view over one 32-bit PowerPC instruction word.
//
// PowerPC documentation numbers bits from the most significant bit (bit 0)
// to the least significant bit (bit 31). Each accessor documents its range in
// that numbering.
type Fields uint32

// OPCD returns the primary opcode, bits 0-5.
func (f Fields) OPCD() uint8 {
	return uint8(f >> 26)
}

// RD returns the destination register, bits 6-10.
func (f Fields) RD() uint8 {
	return uint8(f>>21) & 0x1F
}

// RS returns the source register of a store, bits 6-10.
func (f Fields) RS() uint8 {
	return f.RD()
}

// FRD returns the floating-point destination register, bits 6-10.
func (f Fields) FRD() uint8 {
	return f.RD()
}

// FRS returns the floating-point source register, bits 6-10.
func (f Fields) FRS() uint8 {
	return f.RD()
}

// RA returns the base (or first source) register, bits 11-15.
func (f Fields) RA() uint8 {
	return uint8(f>>16) & 0x1F
}

// RB returns the index (or second source) register, bits 16-20.
func (f Fields) RB() uint8 {
	return uint8(f>>11) & 0x1F
}

// D returns the sign-extended 16-bit displacement, bits 16-31.
func (f Fields) D() int64 {
	return int64(int16(f))
}

// SIMM returns the sign-extended 16-bit immediate, bits 16-31.
func (f Fields) SIMM() int64 {
	return f.D()
}

// UIMM returns the zero-extended 16-bit immediate, bits 16-31.
func (f Fields) UIMM() uint64 {
	return uint64(uint16(f))
}

// DS returns the DS-form displacement, bits 16-29, sign-extended and
// already multiplied by 4.
func (f Fields) DS() int64 {
	return int64(int16(f & 0xFFFC))
}

// DSXO returns the DS-form extended opcode, bits 30-31.
func (f Fields) DSXO() uint8 {
	return uint8(f & 0x3)
}

// XO returns the X-form extended opcode, bits 21-30.
func (f Fields) XO() uint16 {
	return uint16(f>>1) & 0x3FF
}

// Rc returns the record bit, bit 31.
func (f Fields) Rc() bool {
	return f&1 != 0
}

// LI returns the I-form branch displacement, bits 6-29, sign-extended and
// multiplied by 4.
func (f Fields) LI() int64 {
	return int64(int32(uint32(f)<<6)>>6) &^ 3
}

// BD returns the B-form branch displacement, bits 16-29, sign-extended and
// multiplied by 4.
func (f Fields) BD() int64 {
	return int64(int16(f & 0xFFFC))
}

// AA returns the absolute-address bit, bit 30.
func (f Fields) AA() bool {
	return (f>>1)&1 != 0
}

// LK returns the link bit, bit 31.
func (f Fields) LK() bool {
	return f&1 != 0
}

// BO returns the branch options, bits 6-10.
func (f Fields) BO() uint8 {
	return f.RD()
}

// BI returns the condition register bit tested by a branch, bits 11-15.
func (f Fields) BI() uint8 {
	return f.RA()
}

// CRFD returns the condition register field written by a compare, bits 6-8.
func (f Fields) CRFD() uint8 {
	return uint8(f>>23) & 0x7
}

// L returns the compare length bit, bit 10. 1 means 64-bit compare.
func (f Fields) L() bool {
	return (f>>21)&1 != 0
}

// SPR returns the special-purpose register number, bits 11-20. The two
// 5-bit halves are swapped in the encoding.
func (f Fields) SPR() uint16 {
	return uint16(f>>16)&0x1F | (uint16(f>>11)&0x1F)<<5
}

// SH returns the shift amount, bits 16-20.
func (f Fields) SH() uint8 {
	return f.RB()
}

// MB returns the mask begin, bits 21-25.
func (f Fields) MB() uint8 {
	return uint8(f>>6) & 0x1F
}

// ME returns the mask end, bits 26-30.
func (f Fields) ME() uint8 {
	return uint8(f>>1) & 0x1F
}
