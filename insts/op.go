package insts

// Op represents a PowerPC opcode.
type Op uint16

// PowerPC opcodes.
const (
	OpUnknown Op = iota

	// Integer loads
	OpLBZ
	OpLBZU
	OpLBZUX
	OpLBZX
	OpLD
	OpLDARX
	OpLDBRX
	OpLDU
	OpLDUX
	OpLDX
	OpLHA
	OpLHAU
	OpLHAUX
	OpLHAX
	OpLHBRX
	OpLHZ
	OpLHZU
	OpLHZUX
	OpLHZX
	OpLMW
	OpLSWI
	OpLSWX
	OpLWA
	OpLWARX
	OpLWAUX
	OpLWAX
	OpLWBRX
	OpLWZ
	OpLWZU
	OpLWZUX
	OpLWZX

	// Floating-point loads
	OpLFD
	OpLFDU
	OpLFDUX
	OpLFDX
	OpLFS
	OpLFSU
	OpLFSUX
	OpLFSX

	// Integer stores
	OpSTB
	OpSTBU
	OpSTBUX
	OpSTBX
	OpSTD
	OpSTDBRX
	OpSTDCX
	OpSTDU
	OpSTDUX
	OpSTDX
	OpSTH
	OpSTHBRX
	OpSTHU
	OpSTHUX
	OpSTHX
	OpSTMW
	OpSTSWI
	OpSTSWX
	OpSTW
	OpSTWBRX
	OpSTWCX
	OpSTWU
	OpSTWUX
	OpSTWX

	// Floating-point stores
	OpSTFD
	OpSTFDU
	OpSTFDUX
	OpSTFDX
	OpSTFIWX
	OpSTFS
	OpSTFSU
	OpSTFSUX
	OpSTFSX

	// Memory synchronization
	OpSYNC
	OpEIEIO
	OpISYNC
	OpICBI

	// Integer arithmetic and logic
	OpADDI
	OpADDIS
	OpADDIC
	OpMULLI
	OpORI
	OpORIS
	OpXORI
	OpANDI
	OpCMPI
	OpCMPLI
	OpCMP
	OpCMPL
	OpADD
	OpSUBF
	OpNEG
	OpAND
	OpOR
	OpXOR
	OpMULLW
	OpEXTSB
	OpEXTSH
	OpEXTSW
	OpRLWINM

	// Branch and system
	OpB
	OpBC
	OpBCLR
	OpBCCTR
	OpSC

	// Special-purpose register access
	OpMFSPR
	OpMTSPR
	OpMFCR
	OpMFTB

	// NumOps is the number of defined opcodes.
	NumOps
)

var opNames = [NumOps]string{
	OpUnknown: "unknown",
	OpLBZ: "lbz", OpLBZU: "lbzu", OpLBZUX: "lbzux", OpLBZX: "lbzx",
	OpLD: "ld", OpLDARX: "ldarx", OpLDBRX: "ldbrx", OpLDU: "ldu", OpLDUX: "ldux", OpLDX: "ldx",
	OpLHA: "lha", OpLHAU: "lhau", OpLHAUX: "lhaux", OpLHAX: "lhax", OpLHBRX: "lhbrx",
	OpLHZ: "lhz", OpLHZU: "lhzu", OpLHZUX: "lhzux", OpLHZX: "lhzx",
	OpLMW: "lmw", OpLSWI: "lswi", OpLSWX: "lswx",
	OpLWA: "lwa", OpLWARX: "lwarx", OpLWAUX: "lwaux", OpLWAX: "lwax", OpLWBRX: "lwbrx",
	OpLWZ: "lwz", OpLWZU: "lwzu", OpLWZUX: "lwzux", OpLWZX: "lwzx",
	OpLFD: "lfd", OpLFDU: "lfdu", OpLFDUX: "lfdux", OpLFDX: "lfdx",
	OpLFS: "lfs", OpLFSU: "lfsu", OpLFSUX: "lfsux", OpLFSX: "lfsx",
	OpSTB: "stb", OpSTBU: "stbu", OpSTBUX: "stbux", OpSTBX: "stbx",
	OpSTD: "std", OpSTDBRX: "stdbrx", OpSTDCX: "stdcx.", OpSTDU: "stdu", OpSTDUX: "stdux", OpSTDX: "stdx",
	OpSTH: "sth", OpSTHBRX: "sthbrx", OpSTHU: "sthu", OpSTHUX: "sthux", OpSTHX: "sthx",
	OpSTMW: "stmw", OpSTSWI: "stswi", OpSTSWX: "stswx",
	OpSTW: "stw", OpSTWBRX: "stwbrx", OpSTWCX: "stwcx.", OpSTWU: "stwu", OpSTWUX: "stwux", OpSTWX: "stwx",
	OpSTFD: "stfd", OpSTFDU: "stfdu", OpSTFDUX: "stfdux", OpSTFDX: "stfdx", OpSTFIWX: "stfiwx",
	OpSTFS: "stfs", OpSTFSU: "stfsu", OpSTFSUX: "stfsux", OpSTFSX: "stfsx",
	OpSYNC: "sync", OpEIEIO: "eieio", OpISYNC: "isync", OpICBI: "icbi",
	OpADDI: "addi", OpADDIS: "addis", OpADDIC: "addic", OpMULLI: "mulli",
	OpORI: "ori", OpORIS: "oris", OpXORI: "xori", OpANDI: "andi.",
	OpCMPI: "cmpi", OpCMPLI: "cmpli", OpCMP: "cmp", OpCMPL: "cmpl",
	OpADD: "add", OpSUBF: "subf", OpNEG: "neg", OpAND: "and", OpOR: "or", OpXOR: "xor",
	OpMULLW: "mullw", OpEXTSB: "extsb", OpEXTSH: "extsh", OpEXTSW: "extsw", OpRLWINM: "rlwinm",
	OpB: "b", OpBC: "bc", OpBCLR: "bclr", OpBCCTR: "bcctr", OpSC: "sc",
	OpMFSPR: "mfspr", OpMTSPR: "mtspr", OpMFCR: "mfcr", OpMFTB: "mftb",
}

// String returns the assembler mnemonic of the opcode.
func (op Op) String() string {
	if op >= NumOps {
		return "invalid"
	}
	return opNames[op]
}

// IsBranch reports whether the opcode transfers control.
func (op Op) IsBranch() bool {
	switch op {
	case OpB, OpBC, OpBCLR, OpBCCTR, OpSC:
		return true
	}
	return false
}

// Unimplemented reports whether the opcode is decoded but intentionally left
// without semantics: byte-reversed accesses, string and multiple-word
// transfers, reservation-based atomics, stfiwx and memory barriers.
//
// Both the interpreter and the translator count these instead of executing
// them, so coverage gaps stay visible.
func (op Op) Unimplemented() bool {
	switch op {
	case OpLDBRX, OpLHBRX, OpLWBRX, OpSTDBRX, OpSTHBRX, OpSTWBRX,
		OpLMW, OpSTMW, OpLSWI, OpLSWX, OpSTSWI, OpSTSWX,
		OpLDARX, OpLWARX, OpSTDCX, OpSTWCX,
		OpSTFIWX,
		OpSYNC, OpEIEIO, OpISYNC:
		return true
	}
	return false
}
