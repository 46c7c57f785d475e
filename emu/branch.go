// Package emu provides functional PowerPC (PPU) emulation.
package emu

import "github.com/nucleus-emu/nucleus/insts"

// BO field bits, numbered as in the PowerPC books.
const (
	boIgnoreCR  uint8 = 0x10 // BO[0]: do not test the CR bit
	boCRTrue    uint8 = 0x08 // BO[1]: branch if the CR bit is set
	boIgnoreCTR uint8 = 0x04 // BO[2]: do not decrement or test CTR
	boCTRZero   uint8 = 0x02 // BO[3]: branch if CTR reaches zero
)

// BranchUnit implements PowerPC branch operations.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// B performs an unconditional branch, relative or absolute, optionally
// saving the return address in LR.
func (b *BranchUnit) B(inst *insts.Instruction) {
	target := uint64(inst.LI())
	if !inst.AA() {
		target += uint64(b.regFile.PC)
	}
	b.link(inst)
	b.regFile.PC = uint32(target)
}

// BC performs a conditional branch to a relative or absolute displacement.
func (b *BranchUnit) BC(inst *insts.Instruction) {
	taken := b.condition(inst.BO(), inst.BI(), true)

	target := uint64(inst.BD())
	if !inst.AA() {
		target += uint64(b.regFile.PC)
	}
	b.link(inst)

	if taken {
		b.regFile.PC = uint32(target)
	} else {
		b.regFile.PC += 4
	}
}

// BCLR performs a conditional branch to the link register.
func (b *BranchUnit) BCLR(inst *insts.Instruction) {
	taken := b.condition(inst.BO(), inst.BI(), true)

	// Read LR before a possible link overwrites it.
	target := b.regFile.LR &^ 3
	b.link(inst)

	if taken {
		b.regFile.PC = uint32(target)
	} else {
		b.regFile.PC += 4
	}
}

// BCCTR performs a conditional branch to the count register. CTR is never
// decremented by this form.
func (b *BranchUnit) BCCTR(inst *insts.Instruction) {
	taken := b.condition(inst.BO(), inst.BI(), false)

	target := b.regFile.CTR &^ 3
	b.link(inst)

	if taken {
		b.regFile.PC = uint32(target)
	} else {
		b.regFile.PC += 4
	}
}

// link saves PC+4 into LR when the LK bit is set.
func (b *BranchUnit) link(inst *insts.Instruction) {
	if inst.LK() {
		b.regFile.LR = uint64(b.regFile.PC) + 4
	}
}

// condition evaluates the BO/BI branch condition, decrementing CTR when BO
// asks for it and useCTR allows it.
func (b *BranchUnit) condition(bo, bi uint8, useCTR bool) bool {
	ctrOK := true
	if useCTR && bo&boIgnoreCTR == 0 {
		b.regFile.CTR--
		ctrZero := b.regFile.CTR == 0
		ctrOK = ctrZero == (bo&boCTRZero != 0)
	}

	condOK := bo&boIgnoreCR != 0 || b.regFile.CRBit(bi) == (bo&boCRTrue != 0)

	return ctrOK && condOK
}
