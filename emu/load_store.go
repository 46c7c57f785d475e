// Package emu provides functional PowerPC (PPU) emulation.
package emu

import (
	"math"

	"github.com/nucleus-emu/nucleus/insts"
)

// Bus is the guest address space as seen by an execution unit. Addresses are
// effective addresses; the implementation maps them onto the 32-bit guest
// space.
type Bus interface {
	Read8(addr uint64) uint8
	Read16(addr uint64) uint16
	Read32(addr uint64) uint32
	Read64(addr uint64) uint64
	Write8(addr uint64, value uint8)
	Write16(addr uint64, value uint16)
	Write32(addr uint64, value uint32)
	Write64(addr uint64, value uint64)
}

// LoadStoreUnit implements PowerPC load and store operations.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  Bus

	// onStore is called with the effective address of every store.
	onStore func(addr uint64)
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory Bus) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// EffectiveAddress computes the address of a load or store.
//
//	base:           D + (RA|0)
//	update:         D + RA
//	indexed:        RA + RB
//	indexed-update: RA + RB
//
// Only the base form treats r0 as zero.
func (lsu *LoadStoreUnit) EffectiveAddress(f insts.Fields, a insts.Access) uint64 {
	r := lsu.regFile

	switch a.Mode {
	case insts.AddrBase:
		ea := uint64(a.Displacement(f))
		if ra := f.RA(); ra != 0 {
			ea += r.ReadGPR(ra)
		}
		return ea
	case insts.AddrUpdate:
		return uint64(a.Displacement(f)) + r.ReadGPR(f.RA())
	default:
		return r.ReadGPR(f.RA()) + r.ReadGPR(f.RB())
	}
}

// Execute performs the load or store described by a. The update forms write
// the effective address back into RA.
func (lsu *LoadStoreUnit) Execute(f insts.Fields, a insts.Access) {
	ea := lsu.EffectiveAddress(f, a)

	if a.Store {
		lsu.store(f, a, ea)
		if a.Mode.Writeback() {
			lsu.regFile.WriteGPR(f.RA(), ea)
		}
		return
	}

	if a.Float {
		value := lsu.loadFloat(a.Width, ea)
		if a.Mode.Writeback() {
			lsu.regFile.WriteGPR(f.RA(), ea)
		}
		lsu.regFile.WriteFPR(f.FRD(), value)
		return
	}

	value := lsu.loadInt(a.Width, a.Ext, ea)
	if a.Mode.Writeback() {
		lsu.regFile.WriteGPR(f.RA(), ea)
	}
	lsu.regFile.WriteGPR(f.RD(), value)
}

// loadInt reads width bytes and extends them to 64 bits.
func (lsu *LoadStoreUnit) loadInt(width uint8, ext insts.Extension, addr uint64) uint64 {
	switch width {
	case 1:
		v := lsu.memory.Read8(addr)
		if ext == insts.ExtSign {
			return uint64(int64(int8(v)))
		}
		return uint64(v)
	case 2:
		v := lsu.memory.Read16(addr)
		if ext == insts.ExtSign {
			return uint64(int64(int16(v)))
		}
		return uint64(v)
	case 4:
		v := lsu.memory.Read32(addr)
		if ext == insts.ExtSign {
			return uint64(int64(int32(v)))
		}
		return uint64(v)
	default:
		return lsu.memory.Read64(addr)
	}
}

// loadFloat reads a single or double and returns it as a double.
func (lsu *LoadStoreUnit) loadFloat(width uint8, addr uint64) float64 {
	if width == 4 {
		return float64(math.Float32frombits(lsu.memory.Read32(addr)))
	}
	return math.Float64frombits(lsu.memory.Read64(addr))
}

// store writes the low width bytes of RS, or the single/double image of FRS.
func (lsu *LoadStoreUnit) store(f insts.Fields, a insts.Access, addr uint64) {
	if a.Float {
		frs := lsu.regFile.ReadFPR(f.FRS())
		if a.Width == 4 {
			lsu.memory.Write32(addr, math.Float32bits(float32(frs)))
		} else {
			lsu.memory.Write64(addr, math.Float64bits(frs))
		}
	} else {
		rs := lsu.regFile.ReadGPR(f.RS())
		switch a.Width {
		case 1:
			lsu.memory.Write8(addr, uint8(rs))
		case 2:
			lsu.memory.Write16(addr, uint16(rs))
		case 4:
			lsu.memory.Write32(addr, uint32(rs))
		default:
			lsu.memory.Write64(addr, rs)
		}
	}

	if lsu.onStore != nil {
		lsu.onStore(addr)
	}
}
