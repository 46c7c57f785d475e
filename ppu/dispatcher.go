package ppu

import (
	"fmt"
	"sync/atomic"

	"github.com/nucleus-emu/nucleus/emu"
	"github.com/nucleus-emu/nucleus/recompiler"
	"github.com/nucleus-emu/nucleus/recompiler/ir"
)

// Dispatcher runs the compiled function registered at a thread's PC.
type Dispatcher struct {
	sys *System

	invocations atomic.Uint64
	misses      atomic.Uint64
	vectorArgs  atomic.Uint64
}

func newDispatcher(sys *System) *Dispatcher {
	return &Dispatcher{sys: sys}
}

// Invocations returns the number of compiled functions invoked.
func (d *Dispatcher) Invocations() uint64 {
	return d.invocations.Load()
}

// Misses returns the number of dispatches that found no function.
func (d *Dispatcher) Misses() uint64 {
	return d.misses.Load()
}

// VectorArgs returns the number of vector arguments passed as empty values.
func (d *Dispatcher) VectorArgs() uint64 {
	return d.vectorArgs.Load()
}

// Dispatch invokes the function at state.PC. The first segment containing
// PC is searched for a function at exactly that address. Integer arguments
// are taken from r3 upwards and float arguments from f1 upwards; the result
// is written to r3 or f1 according to the function's output kind.
//
// It returns false, without touching state, when no function is found.
func (d *Dispatcher) Dispatch(state *emu.RegFile) bool {
	pc := state.PC

	seg := d.sys.segmentFor(pc)
	if seg == nil {
		d.misses.Add(1)
		d.sys.logger.V(1).Info("no segment for pc", "pc", fmt.Sprintf("%#08x", pc))
		return false
	}

	f, ok := seg.Lookup(pc)
	if !ok {
		d.misses.Add(1)
		d.sys.logger.V(1).Info("no function at pc", "pc", fmt.Sprintf("%#08x", pc))
		return false
	}

	ret := f.Invoke(callerContext(state), d.marshal(state, f.In))
	d.invocations.Add(1)
	d.sys.logger.V(2).Info("invoked", "function", f.Name, "pc", fmt.Sprintf("%#08x", pc))

	switch f.Out {
	case recompiler.Int:
		state.WriteGPR(3, ret.Int)
	case recompiler.Float:
		state.WriteFPR(1, ret.Float)
	}

	return true
}

func (d *Dispatcher) marshal(state *emu.RegFile, in []recompiler.InputKind) []ir.GenericValue {
	args := make([]ir.GenericValue, 0, len(in))
	gpr, fpr := uint8(3), uint8(1)

	for _, kind := range in {
		switch kind {
		case recompiler.Int:
			args = append(args, ir.IntValue(state.ReadGPR(gpr)))
			gpr++
		case recompiler.Float:
			args = append(args, ir.FloatValue(state.ReadFPR(fpr)))
			fpr++
		default:
			// Vector arguments are not marshalled.
			d.vectorArgs.Add(1)
			args = append(args, ir.GenericValue{Kind: kind})
		}
	}

	return args
}

func callerContext(state *emu.RegFile) ir.Context {
	return ir.Context{
		SP:  state.ReadGPR(1),
		TOC: state.ReadGPR(2),
		TLS: state.ReadGPR(13),
		LR:  state.LR,
	}
}
