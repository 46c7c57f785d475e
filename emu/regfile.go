// Package emu provides functional PowerPC (PPU) emulation.
package emu

// Special-purpose register numbers.
const (
	SPRXER    uint16 = 1
	SPRLR     uint16 = 8
	SPRCTR    uint16 = 9
	SPRVRSAVE uint16 = 256
	SPRTBL    uint16 = 268
	SPRTBU    uint16 = 269
)

// XER bits.
const (
	XERSO uint64 = 1 << 31 // Summary overflow
	XEROV uint64 = 1 << 30 // Overflow
	XERCA uint64 = 1 << 29 // Carry
)

// Condition register field bits.
const (
	CRLT uint8 = 0x8 // Less than
	CRGT uint8 = 0x4 // Greater than
	CREQ uint8 = 0x2 // Equal
	CRSO uint8 = 0x1 // Summary overflow
)

// RegFile represents the architectural state of one PPU thread.
type RegFile struct {
	// PC is the program counter. 0 means the thread function returned.
	PC uint32

	// GPR holds the 64-bit general-purpose registers.
	GPR [32]uint64

	// FPR holds the floating-point registers as doubles.
	FPR [32]float64

	// CR is the condition register, eight 4-bit fields with field 0 in the
	// most significant nibble.
	CR uint32

	// LR is the link register.
	LR uint64

	// CTR is the count register.
	CTR uint64

	// XER is the fixed-point exception register.
	XER uint64

	// TB is the time base.
	TB TimeBase

	// VRSAVE is reserved for vector state.
	VRSAVE uint32
}

// TimeBase is the 64-bit time base counter split in two 32-bit halves.
type TimeBase struct {
	TBU uint32
	TBL uint32
}

// Value returns the time base as a single 64-bit counter.
func (t TimeBase) Value() uint64 {
	return uint64(t.TBU)<<32 | uint64(t.TBL)
}

// Set stores a 64-bit counter value.
func (t *TimeBase) Set(v uint64) {
	t.TBU = uint32(v >> 32)
	t.TBL = uint32(v)
}

// Advance moves the counter forward by n ticks.
func (t *TimeBase) Advance(n uint64) {
	t.Set(t.Value() + n)
}

// ReadGPR reads a general-purpose register.
func (r *RegFile) ReadGPR(reg uint8) uint64 {
	return r.GPR[reg&0x1F]
}

// WriteGPR writes a general-purpose register.
func (r *RegFile) WriteGPR(reg uint8, value uint64) {
	r.GPR[reg&0x1F] = value
}

// ReadGPROrZero reads a register, treating register 0 as the constant 0.
// This is the (RA|0) operand used by base-form addressing and addi.
func (r *RegFile) ReadGPROrZero(reg uint8) uint64 {
	if reg == 0 {
		return 0
	}
	return r.ReadGPR(reg)
}

// ReadFPR reads a floating-point register.
func (r *RegFile) ReadFPR(reg uint8) float64 {
	return r.FPR[reg&0x1F]
}

// WriteFPR writes a floating-point register.
func (r *RegFile) WriteFPR(reg uint8, value float64) {
	r.FPR[reg&0x1F] = value
}

// CRField returns condition register field n (0-7).
func (r *RegFile) CRField(n uint8) uint8 {
	shift := 28 - 4*uint32(n&7)
	return uint8(r.CR>>shift) & 0xF
}

// SetCRField replaces condition register field n (0-7).
func (r *RegFile) SetCRField(n uint8, value uint8) {
	shift := 28 - 4*uint32(n&7)
	r.CR = r.CR&^(0xF<<shift) | uint32(value&0xF)<<shift
}

// CRBit returns condition register bit n in PowerPC numbering (0 is the most
// significant bit).
func (r *RegFile) CRBit(n uint8) bool {
	return (r.CR>>(31-uint32(n&31)))&1 != 0
}
