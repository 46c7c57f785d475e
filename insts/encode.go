package insts

// Encoders for the instruction forms used by tests and by hand-written guest
// stubs. They perform no range checking beyond masking each field.

// EncodeD encodes a D-form instruction: opcd | rt | ra | d.
func EncodeD(opcd, rt, ra uint8, d int16) uint32 {
	return uint32(opcd&0x3F)<<26 | uint32(rt&0x1F)<<21 | uint32(ra&0x1F)<<16 | uint32(uint16(d))
}

// EncodeDS encodes a DS-form instruction. ds is the byte displacement and
// must be a multiple of 4.
func EncodeDS(opcd, rt, ra uint8, ds int16, xo uint8) uint32 {
	return uint32(opcd&0x3F)<<26 | uint32(rt&0x1F)<<21 | uint32(ra&0x1F)<<16 |
		uint32(uint16(ds))&0xFFFC | uint32(xo&0x3)
}

// EncodeX encodes an X-form instruction under primary opcode 31.
func EncodeX(xo uint16, rt, ra, rb uint8, rc bool) uint32 {
	w := uint32(opcdX)<<26 | uint32(rt&0x1F)<<21 | uint32(ra&0x1F)<<16 |
		uint32(rb&0x1F)<<11 | uint32(xo&0x3FF)<<1
	if rc {
		w |= 1
	}
	return w
}

// EncodeI encodes an unconditional branch. li is the byte offset.
func EncodeI(li int32, aa, lk bool) uint32 {
	w := uint32(opcdB)<<26 | uint32(li)&0x03FFFFFC
	if aa {
		w |= 2
	}
	if lk {
		w |= 1
	}
	return w
}

// EncodeB encodes a conditional branch. bd is the byte offset.
func EncodeB(bo, bi uint8, bd int16, aa, lk bool) uint32 {
	w := uint32(opcdBC)<<26 | uint32(bo&0x1F)<<21 | uint32(bi&0x1F)<<16 | uint32(uint16(bd))&0xFFFC
	if aa {
		w |= 2
	}
	if lk {
		w |= 1
	}
	return w
}

// EncodeXL encodes a primary opcode 19 instruction such as bclr or bcctr.
func EncodeXL(xo uint16, bo, bi uint8, lk bool) uint32 {
	w := uint32(opcdXL)<<26 | uint32(bo&0x1F)<<21 | uint32(bi&0x1F)<<16 | uint32(xo&0x3FF)<<1
	if lk {
		w |= 1
	}
	return w
}

// EncodeSPR encodes mfspr (xo 339) or mtspr (xo 467) for register rt.
func EncodeSPR(xo uint16, rt uint8, spr uint16) uint32 {
	lo := uint8(spr & 0x1F)
	hi := uint8(spr>>5) & 0x1F
	return EncodeX(xo, rt, lo, hi, false)
}

// EncodeM encodes rlwinm ra, rs, sh, mb, me.
func EncodeM(ra, rs, sh, mb, me uint8) uint32 {
	return uint32(opcdRLWINM)<<26 | uint32(rs&0x1F)<<21 | uint32(ra&0x1F)<<16 |
		uint32(sh&0x1F)<<11 | uint32(mb&0x1F)<<6 | uint32(me&0x1F)<<1
}

// Common fixed encodings.
const (
	// Nop is ori r0, r0, 0.
	Nop uint32 = 0x60000000
	// Blr is an unconditional branch to the link register.
	Blr uint32 = 0x4E800020
	// Bctr is an unconditional branch to the count register.
	Bctr uint32 = 0x4E800420
	// Sc is the system call instruction.
	Sc uint32 = 0x44000002
)
