// Package emu provides functional PowerPC (PPU) emulation.
package emu

import (
	"math/bits"

	"github.com/nucleus-emu/nucleus/insts"
)

// ALU implements the PowerPC fixed-point instructions run by the interpreter.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Execute runs a fixed-point instruction. It returns false if the opcode is
// not handled by the ALU.
func (a *ALU) Execute(inst *insts.Instruction) bool {
	r := a.regFile

	switch inst.Op {
	case insts.OpADDI:
		r.WriteGPR(inst.RD(), r.ReadGPROrZero(inst.RA())+uint64(inst.SIMM()))
	case insts.OpADDIS:
		r.WriteGPR(inst.RD(), r.ReadGPROrZero(inst.RA())+uint64(inst.SIMM()<<16))
	case insts.OpADDIC:
		a.addCarrying(inst.RD(), r.ReadGPR(inst.RA()), uint64(inst.SIMM()))
	case insts.OpMULLI:
		r.WriteGPR(inst.RD(), uint64(int64(r.ReadGPR(inst.RA()))*inst.SIMM()))
	case insts.OpORI:
		r.WriteGPR(inst.RA(), r.ReadGPR(inst.RS())|inst.UIMM())
	case insts.OpORIS:
		r.WriteGPR(inst.RA(), r.ReadGPR(inst.RS())|inst.UIMM()<<16)
	case insts.OpXORI:
		r.WriteGPR(inst.RA(), r.ReadGPR(inst.RS())^inst.UIMM())
	case insts.OpANDI:
		// andi. always records.
		result := r.ReadGPR(inst.RS()) & inst.UIMM()
		r.WriteGPR(inst.RA(), result)
		a.recordCR0(result)
	case insts.OpCMPI:
		a.compareSigned(inst.CRFD(), inst.L(), r.ReadGPR(inst.RA()), uint64(inst.SIMM()))
	case insts.OpCMPLI:
		a.compareUnsigned(inst.CRFD(), inst.L(), r.ReadGPR(inst.RA()), inst.UIMM())
	case insts.OpCMP:
		a.compareSigned(inst.CRFD(), inst.L(), r.ReadGPR(inst.RA()), r.ReadGPR(inst.RB()))
	case insts.OpCMPL:
		a.compareUnsigned(inst.CRFD(), inst.L(), r.ReadGPR(inst.RA()), r.ReadGPR(inst.RB()))
	case insts.OpADD:
		a.writeRecord(inst, inst.RD(), r.ReadGPR(inst.RA())+r.ReadGPR(inst.RB()))
	case insts.OpSUBF:
		a.writeRecord(inst, inst.RD(), r.ReadGPR(inst.RB())-r.ReadGPR(inst.RA()))
	case insts.OpNEG:
		a.writeRecord(inst, inst.RD(), -r.ReadGPR(inst.RA()))
	case insts.OpMULLW:
		product := int64(int32(r.ReadGPR(inst.RA()))) * int64(int32(r.ReadGPR(inst.RB())))
		a.writeRecord(inst, inst.RD(), uint64(product))
	case insts.OpAND:
		a.writeRecord(inst, inst.RA(), r.ReadGPR(inst.RS())&r.ReadGPR(inst.RB()))
	case insts.OpOR:
		a.writeRecord(inst, inst.RA(), r.ReadGPR(inst.RS())|r.ReadGPR(inst.RB()))
	case insts.OpXOR:
		a.writeRecord(inst, inst.RA(), r.ReadGPR(inst.RS())^r.ReadGPR(inst.RB()))
	case insts.OpEXTSB:
		a.writeRecord(inst, inst.RA(), uint64(int64(int8(r.ReadGPR(inst.RS())))))
	case insts.OpEXTSH:
		a.writeRecord(inst, inst.RA(), uint64(int64(int16(r.ReadGPR(inst.RS())))))
	case insts.OpEXTSW:
		a.writeRecord(inst, inst.RA(), uint64(int64(int32(r.ReadGPR(inst.RS())))))
	case insts.OpRLWINM:
		a.writeRecord(inst, inst.RA(), RotateWordMask(r.ReadGPR(inst.RS()), inst.SH(), inst.MB(), inst.ME()))
	default:
		return false
	}

	return true
}

// writeRecord writes a result and updates CR0 when the record bit is set.
func (a *ALU) writeRecord(inst *insts.Instruction, rd uint8, value uint64) {
	a.regFile.WriteGPR(rd, value)
	if inst.Rc() {
		a.recordCR0(value)
	}
}

// addCarrying adds and sets XER[CA] on unsigned overflow.
func (a *ALU) addCarrying(rd uint8, x, y uint64) {
	sum, carry := bits.Add64(x, y, 0)
	a.regFile.WriteGPR(rd, sum)
	if carry != 0 {
		a.regFile.XER |= XERCA
	} else {
		a.regFile.XER &^= XERCA
	}
}

// recordCR0 sets CR0 from a signed comparison of value against zero.
func (a *ALU) recordCR0(value uint64) {
	a.setCompareField(0, compareSigned(int64(value), 0))
}

func (a *ALU) compareSigned(field uint8, doubleword bool, x, y uint64) {
	if doubleword {
		a.setCompareField(field, compareSigned(int64(x), int64(y)))
		return
	}
	a.setCompareField(field, compareSigned(int64(int32(x)), int64(int32(y))))
}

func (a *ALU) compareUnsigned(field uint8, doubleword bool, x, y uint64) {
	if !doubleword {
		x, y = uint64(uint32(x)), uint64(uint32(y))
	}
	switch {
	case x < y:
		a.setCompareField(field, CRLT)
	case x > y:
		a.setCompareField(field, CRGT)
	default:
		a.setCompareField(field, CREQ)
	}
}

// setCompareField writes LT/GT/EQ and copies XER[SO] into the field.
func (a *ALU) setCompareField(field uint8, flags uint8) {
	if a.regFile.XER&XERSO != 0 {
		flags |= CRSO
	}
	a.regFile.SetCRField(field, flags)
}

func compareSigned(x, y int64) uint8 {
	switch {
	case x < y:
		return CRLT
	case x > y:
		return CRGT
	default:
		return CREQ
	}
}

// RotateWordMask implements the rlwinm data path: the low word of value is
// rotated left by sh, replicated into both halves, and masked with
// MASK(mb+32, me+32).
func RotateWordMask(value uint64, sh, mb, me uint8) uint64 {
	rotated := uint64(bits.RotateLeft32(uint32(value), int(sh&31)))
	rotated |= rotated << 32
	return rotated & Mask64(mb+32, me+32)
}

// Mask64 returns the PowerPC MASK(mb, me) in 64-bit mode. Bits are numbered
// from the most significant bit. When mb > me the mask wraps around.
func Mask64(mb, me uint8) uint64 {
	mb &= 63
	me &= 63
	begin := ^uint64(0) >> mb
	end := ^uint64(0) << (63 - me)
	if mb <= me {
		return begin & end
	}
	return begin | end
}
