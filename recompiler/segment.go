// Package recompiler lowers guest PowerPC functions into the ir backend and
// organises the compiled results into segments the dispatcher looks up by
// program counter.
package recompiler

import (
	"errors"

	"github.com/nucleus-emu/nucleus/recompiler/ir"
)

var (
	// ErrUnsupportedControlFlow is returned when a function contains a
	// branch or system call other than its final blr.
	ErrUnsupportedControlFlow = errors.New("unsupported control flow")

	// ErrFunctionTooLong is returned when no blr is found within the
	// translator's instruction limit.
	ErrFunctionTooLong = errors.New("function too long")
)

// InputKind is the calling-convention class of one function argument.
type InputKind = ir.Kind

// OutputKind is the calling-convention class of a function result.
type OutputKind = ir.Kind

// Argument and result kinds.
const (
	Void   = ir.KindVoid
	Int    = ir.KindInt
	Float  = ir.KindFloat
	Vector = ir.KindVector
)

// Function is a compiled guest function registered at an entry address.
type Function struct {
	Addr uint32
	Name string
	In   []InputKind
	Out  OutputKind

	native  ir.NativeFunc
	program *ir.Program
}

// NewFunction registers an arbitrary native implementation for a guest
// address.
func NewFunction(addr uint32, name string, in []InputKind, out OutputKind, native ir.NativeFunc) *Function {
	return &Function{
		Addr:   addr,
		Name:   name,
		In:     append([]InputKind(nil), in...),
		Out:    out,
		native: native,
	}
}

// Invoke calls the compiled function.
func (f *Function) Invoke(ctx ir.Context, args []ir.GenericValue) ir.GenericValue {
	return f.native(ctx, args)
}

// Program returns the IR the function was compiled from, or nil for
// functions registered through NewFunction.
func (f *Function) Program() *ir.Program {
	return f.program
}

// Segment is an immutable guest address range [Start, End) with the
// functions compiled from it.
type Segment struct {
	Start     uint32
	End       uint32
	Functions map[uint32]*Function
}

// NewSegment builds a segment from a set of functions. Functions outside
// the range are still registered; lookups only happen for PCs the segment
// contains.
func NewSegment(start, end uint32, functions ...*Function) *Segment {
	s := &Segment{
		Start:     start,
		End:       end,
		Functions: make(map[uint32]*Function, len(functions)),
	}
	for _, f := range functions {
		s.Functions[f.Addr] = f
	}
	return s
}

// Contains reports whether pc lies in the segment.
func (s *Segment) Contains(pc uint32) bool {
	return pc >= s.Start && pc < s.End
}

// Lookup returns the function whose entry address is exactly pc.
func (s *Segment) Lookup(pc uint32) (*Function, bool) {
	f, ok := s.Functions[pc]
	return f, ok
}
