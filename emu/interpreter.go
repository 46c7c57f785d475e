// Package emu provides functional PowerPC (PPU) emulation.
package emu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nucleus-emu/nucleus/cache"
	"github.com/nucleus-emu/nucleus/insts"
)

// ErrMaxInstructions is reported by Step once the instruction limit is hit.
var ErrMaxInstructions = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (via exit syscall).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set if an error occurred during execution.
	Err error
}

// Interpreter executes PPU instructions one at a time against a register
// file and a guest address space.
type Interpreter struct {
	regFile        *RegFile
	memory         Bus
	decoder        *insts.Decoder
	decodeCache    *cache.DecodeCache
	syscallHandler SyscallHandler

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	// I/O
	stdout io.Writer
	stderr io.Writer

	// Execution state
	inst             insts.Instruction
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
	unimplemented    [insts.NumOps]uint64
}

// InterpreterOption is a functional option for configuring the Interpreter.
type InterpreterOption func(*Interpreter)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) InterpreterOption {
	return func(i *Interpreter) {
		i.stdout = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) InterpreterOption {
	return func(i *Interpreter) {
		i.stderr = w
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) InterpreterOption {
	return func(i *Interpreter) {
		i.syscallHandler = handler
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) InterpreterOption {
	return func(i *Interpreter) {
		i.maxInstructions = max
	}
}

// WithDecodeCache fetches instructions through a decode cache of the given
// geometry. Stores executed by the interpreter invalidate the lines they
// touch.
func WithDecodeCache(config cache.Config) InterpreterOption {
	return func(i *Interpreter) {
		i.decodeCache = cache.New(config, i.memory)
	}
}

// NewInterpreter creates an interpreter for the thread state in regFile.
func NewInterpreter(regFile *RegFile, memory Bus, opts ...InterpreterOption) *Interpreter {
	i := &Interpreter{
		regFile: regFile,
		memory:  memory,
		decoder: insts.NewDecoder(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	// Apply options first (may set stdout/stderr)
	for _, opt := range opts {
		opt(i)
	}

	i.alu = NewALU(regFile)
	i.lsu = NewLoadStoreUnit(regFile, memory)
	i.branchUnit = NewBranchUnit(regFile)

	if i.decodeCache != nil {
		i.lsu.onStore = i.decodeCache.Invalidate
	}

	if i.syscallHandler == nil {
		i.syscallHandler = NewDefaultSyscallHandler(regFile, memory, i.stdout, i.stderr)
	}

	return i
}

// RegFile returns the interpreter's register file.
func (i *Interpreter) RegFile() *RegFile {
	return i.regFile
}

// Memory returns the interpreter's guest memory.
func (i *Interpreter) Memory() Bus {
	return i.memory
}

// DecodeCache returns the decode cache, or nil if none is configured.
func (i *Interpreter) DecodeCache() *cache.DecodeCache {
	return i.decodeCache
}

// InstructionCount returns the number of instructions executed.
func (i *Interpreter) InstructionCount() uint64 {
	return i.instructionCount
}

// Unimplemented returns how many times each unimplemented or unknown
// instruction was stepped over.
func (i *Interpreter) Unimplemented() map[insts.Op]uint64 {
	counts := make(map[insts.Op]uint64)
	for op, n := range i.unimplemented {
		if n > 0 {
			counts[insts.Op(op)] = n
		}
	}
	return counts
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (i *Interpreter) Step() StepResult {
	if i.maxInstructions > 0 && i.instructionCount >= i.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := uint64(i.regFile.PC)
	if i.decodeCache != nil {
		i.inst = i.decodeCache.Fetch(pc)
	} else {
		i.decoder.DecodeInto(i.memory.Read32(pc), &i.inst)
	}

	result := i.execute(&i.inst)

	i.instructionCount++
	i.regFile.TB.Advance(1)

	return result
}

// Run executes instructions until the program exits, the thread function
// returns (PC becomes 0) or an error occurs.
// Returns the exit code (-1 if error).
func (i *Interpreter) Run() int64 {
	for {
		result := i.Step()
		if result.Exited {
			return result.ExitCode
		}
		if result.Err != nil {
			_, _ = fmt.Fprintf(i.stderr, "Emulation error: %v\n", result.Err)
			return -1
		}
		if i.regFile.PC == 0 {
			return int64(int32(i.regFile.ReadGPR(3)))
		}
	}
}

// execute dispatches and executes a decoded instruction.
func (i *Interpreter) execute(inst *insts.Instruction) StepResult {
	if inst.Op.Unimplemented() || inst.Op == insts.OpUnknown {
		i.unimplemented[inst.Op]++
		i.regFile.PC += 4
		return StepResult{}
	}

	if access, ok := inst.Op.Access(); ok {
		i.lsu.Execute(inst.Fields, access)
		i.regFile.PC += 4
		return StepResult{}
	}

	switch inst.Op {
	case insts.OpB:
		i.branchUnit.B(inst)
		return StepResult{}
	case insts.OpBC:
		i.branchUnit.BC(inst)
		return StepResult{}
	case insts.OpBCLR:
		i.branchUnit.BCLR(inst)
		return StepResult{}
	case insts.OpBCCTR:
		i.branchUnit.BCCTR(inst)
		return StepResult{}
	case insts.OpSC:
		result := i.syscallHandler.Handle()
		i.regFile.PC += 4
		return StepResult{Exited: result.Exited, ExitCode: result.ExitCode}
	case insts.OpICBI:
		if i.decodeCache != nil {
			i.decodeCache.Invalidate(i.regFile.ReadGPROrZero(inst.RA()) + i.regFile.ReadGPR(inst.RB()))
		}
	case insts.OpMFSPR, insts.OpMFTB:
		value, ok := i.readSPR(inst.SPR())
		if !ok {
			i.unimplemented[inst.Op]++
		} else {
			i.regFile.WriteGPR(inst.RD(), value)
		}
	case insts.OpMTSPR:
		if !i.writeSPR(inst.SPR(), i.regFile.ReadGPR(inst.RS())) {
			i.unimplemented[inst.Op]++
		}
	case insts.OpMFCR:
		i.regFile.WriteGPR(inst.RD(), uint64(i.regFile.CR))
	default:
		if !i.alu.Execute(inst) {
			i.unimplemented[inst.Op]++
		}
	}

	i.regFile.PC += 4
	return StepResult{}
}

func (i *Interpreter) readSPR(spr uint16) (uint64, bool) {
	r := i.regFile
	switch spr {
	case SPRXER:
		return r.XER, true
	case SPRLR:
		return r.LR, true
	case SPRCTR:
		return r.CTR, true
	case SPRVRSAVE:
		return uint64(r.VRSAVE), true
	case SPRTBL:
		return r.TB.Value(), true
	case SPRTBU:
		return uint64(r.TB.TBU), true
	default:
		return 0, false
	}
}

func (i *Interpreter) writeSPR(spr uint16, value uint64) bool {
	r := i.regFile
	switch spr {
	case SPRXER:
		r.XER = value
	case SPRLR:
		r.LR = value
	case SPRCTR:
		r.CTR = value
	case SPRVRSAVE:
		r.VRSAVE = uint32(value)
	default:
		return false
	}
	return true
}
