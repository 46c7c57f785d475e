package ir

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// OpCode identifies an IR primitive.
type OpCode uint8

// IR primitives.
const (
	OpConst OpCode = iota
	OpAdd
	OpSub
	OpMul
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpRotl32
	OpReadGPR
	OpWriteGPR
	OpReadFPR
	OpWriteFPR
	OpReadSPR
	OpWriteSPR
	OpLoad
	OpStore
	OpSExt
	OpZExt
	OpTrunc
	OpFPTrunc
	OpFPExt
	OpBitCast
	OpUnimplemented
	numOpCodes
)

var opNames = [numOpCodes]string{
	OpConst:         "const",
	OpAdd:           "add",
	OpSub:           "sub",
	OpMul:           "mul",
	OpAnd:           "and",
	OpOr:            "or",
	OpXor:           "xor",
	OpShl:           "shl",
	OpShr:           "shr",
	OpRotl32:        "rotl32",
	OpReadGPR:       "rdgpr",
	OpWriteGPR:      "wrgpr",
	OpReadFPR:       "rdfpr",
	OpWriteFPR:      "wrfpr",
	OpReadSPR:       "rdspr",
	OpWriteSPR:      "wrspr",
	OpLoad:          "load",
	OpStore:         "store",
	OpSExt:          "sext",
	OpZExt:          "zext",
	OpTrunc:         "trunc",
	OpFPTrunc:       "fptrunc",
	OpFPExt:         "fpext",
	OpBitCast:       "bitcast",
	OpUnimplemented: "unimplemented",
}

func (op OpCode) String() string {
	if op < numOpCodes {
		return opNames[op]
	}
	return "invalid"
}

// Instr is one IR instruction. Dst, A and B index the value slots of the
// program; Imm holds constants, register numbers and SPR numbers.
type Instr struct {
	Op   OpCode
	Type Type
	Dst  int32
	A    int32
	B    int32
	Imm  uint64
	Name string
}

func (p *Instr) String() string {
	switch p.Op {
	case OpConst:
		return fmt.Sprintf("%%%d = const.%s %#x", p.Dst, p.Type, p.Imm)
	case OpReadGPR, OpReadFPR, OpReadSPR:
		return fmt.Sprintf("%%%d = %s %d", p.Dst, p.Op, p.Imm)
	case OpWriteGPR, OpWriteFPR, OpWriteSPR:
		return fmt.Sprintf("%s %d, %%%d", p.Op, p.Imm, p.A)
	case OpLoad:
		return fmt.Sprintf("%%%d = load.%s [%%%d]", p.Dst, p.Type, p.A)
	case OpStore:
		return fmt.Sprintf("store.%s [%%%d], %%%d", p.Type, p.A, p.B)
	case OpUnimplemented:
		return fmt.Sprintf("unimplemented %q", p.Name)
	case OpSExt, OpZExt, OpTrunc, OpFPTrunc, OpFPExt, OpBitCast:
		return fmt.Sprintf("%%%d = %s.%s %%%d:%s", p.Dst, p.Op, p.Type, p.A, Type(p.Imm))
	default:
		return fmt.Sprintf("%%%d = %s.%s %%%d, %%%d", p.Dst, p.Op, p.Type, p.A, p.B)
	}
}

// Builder accumulates IR instructions. Type errors are programming errors
// and panic.
type Builder struct {
	instrs  []Instr
	nvals   int32
	markers []string
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Len returns the number of instructions emitted so far.
func (b *Builder) Len() int {
	return len(b.instrs)
}

func (b *Builder) value(t Type) Value {
	v := Value{id: b.nvals, typ: t}
	b.nvals++
	return v
}

func (b *Builder) emit(p Instr) {
	b.instrs = append(b.instrs, p)
}

func (b *Builder) def(op OpCode, t Type, x, y Value, imm uint64) Value {
	v := b.value(t)
	b.emit(Instr{Op: op, Type: t, Dst: v.id, A: x.id, B: y.id, Imm: imm})
	return v
}

func checkInt(op OpCode, vals ...Value) {
	for _, v := range vals {
		if v.typ.IsFloat() {
			panic(fmt.Sprintf("ir: %s: float operand %s", op, v))
		}
	}
}

func checkSame(op OpCode, x, y Value) {
	if x.typ != y.typ {
		panic(fmt.Sprintf("ir: %s: type mismatch %s vs %s", op, x, y))
	}
}

// Const materialises an integer constant, or the raw bit pattern of a float
// constant.
func (b *Builder) Const(t Type, bits uint64) Value {
	return b.def(OpConst, t, Value{}, Value{}, bits&t.mask())
}

func (b *Builder) arith(op OpCode, x, y Value) Value {
	checkInt(op, x, y)
	checkSame(op, x, y)
	return b.def(op, x.typ, x, y, 0)
}

// Add returns x + y.
func (b *Builder) Add(x, y Value) Value { return b.arith(OpAdd, x, y) }

// Sub returns x - y.
func (b *Builder) Sub(x, y Value) Value { return b.arith(OpSub, x, y) }

// Mul returns the low bits of x * y.
func (b *Builder) Mul(x, y Value) Value { return b.arith(OpMul, x, y) }

// And returns x & y.
func (b *Builder) And(x, y Value) Value { return b.arith(OpAnd, x, y) }

// Or returns x | y.
func (b *Builder) Or(x, y Value) Value { return b.arith(OpOr, x, y) }

// Xor returns x ^ y.
func (b *Builder) Xor(x, y Value) Value { return b.arith(OpXor, x, y) }

// Shl shifts x left by n bits. Amounts of the type width or more yield 0.
func (b *Builder) Shl(x, n Value) Value { return b.arith(OpShl, x, n) }

// Shr shifts x right logically by n bits.
func (b *Builder) Shr(x, n Value) Value { return b.arith(OpShr, x, n) }

// Rotl32 rotates a 32-bit value left by n mod 32 bits.
func (b *Builder) Rotl32(x, n Value) Value {
	if x.typ != I32 || n.typ != I32 {
		panic(fmt.Sprintf("ir: rotl32: operands %s, %s", x, n))
	}
	return b.def(OpRotl32, I32, x, n, 0)
}

// ReadGPR reads a 64-bit general-purpose register.
func (b *Builder) ReadGPR(reg uint8) Value {
	return b.def(OpReadGPR, I64, Value{}, Value{}, uint64(reg&31))
}

// WriteGPR writes a 64-bit general-purpose register.
func (b *Builder) WriteGPR(reg uint8, v Value) {
	if v.typ != I64 {
		panic(fmt.Sprintf("ir: wrgpr: operand %s", v))
	}
	b.emit(Instr{Op: OpWriteGPR, Type: I64, A: v.id, Imm: uint64(reg & 31)})
}

// ReadFPR reads a floating-point register as a double.
func (b *Builder) ReadFPR(reg uint8) Value {
	return b.def(OpReadFPR, F64, Value{}, Value{}, uint64(reg&31))
}

// WriteFPR writes a double into a floating-point register.
func (b *Builder) WriteFPR(reg uint8, v Value) {
	if v.typ != F64 {
		panic(fmt.Sprintf("ir: wrfpr: operand %s", v))
	}
	b.emit(Instr{Op: OpWriteFPR, Type: F64, A: v.id, Imm: uint64(reg & 31)})
}

// ReadSPR reads a special-purpose register.
func (b *Builder) ReadSPR(spr SPR) Value {
	return b.def(OpReadSPR, I64, Value{}, Value{}, uint64(spr))
}

// WriteSPR writes a special-purpose register.
func (b *Builder) WriteSPR(spr SPR, v Value) {
	if v.typ != I64 {
		panic(fmt.Sprintf("ir: wrspr: operand %s", v))
	}
	b.emit(Instr{Op: OpWriteSPR, Type: I64, A: v.id, Imm: uint64(spr)})
}

// Load reads a value of type t from guest memory at addr.
func (b *Builder) Load(addr Value, t Type) Value {
	if addr.typ != I64 {
		panic(fmt.Sprintf("ir: load: address %s", addr))
	}
	return b.def(OpLoad, t, addr, Value{}, 0)
}

// Store writes v to guest memory at addr using the width of v's type.
func (b *Builder) Store(addr, v Value) {
	if addr.typ != I64 {
		panic(fmt.Sprintf("ir: store: address %s", addr))
	}
	b.emit(Instr{Op: OpStore, Type: v.typ, A: addr.id, B: v.id})
}

// convert records the source type in Imm.
func (b *Builder) convert(op OpCode, v Value, t Type) Value {
	return b.def(op, t, v, Value{}, uint64(v.typ))
}

// SExt sign-extends an integer to a wider integer type.
func (b *Builder) SExt(v Value, t Type) Value {
	checkInt(OpSExt, v, Value{typ: t})
	if t.Size() < v.typ.Size() {
		panic(fmt.Sprintf("ir: sext: %s to %s", v, t))
	}
	return b.convert(OpSExt, v, t)
}

// ZExt zero-extends an integer to a wider integer type.
func (b *Builder) ZExt(v Value, t Type) Value {
	checkInt(OpZExt, v, Value{typ: t})
	if t.Size() < v.typ.Size() {
		panic(fmt.Sprintf("ir: zext: %s to %s", v, t))
	}
	return b.convert(OpZExt, v, t)
}

// Trunc keeps the low bits of an integer.
func (b *Builder) Trunc(v Value, t Type) Value {
	checkInt(OpTrunc, v, Value{typ: t})
	if t.Size() > v.typ.Size() {
		panic(fmt.Sprintf("ir: trunc: %s to %s", v, t))
	}
	return b.convert(OpTrunc, v, t)
}

// FPTrunc rounds a double to a single.
func (b *Builder) FPTrunc(v Value) Value {
	if v.typ != F64 {
		panic(fmt.Sprintf("ir: fptrunc: operand %s", v))
	}
	return b.convert(OpFPTrunc, v, F32)
}

// FPExt widens a single to a double.
func (b *Builder) FPExt(v Value) Value {
	if v.typ != F32 {
		panic(fmt.Sprintf("ir: fpext: operand %s", v))
	}
	return b.convert(OpFPExt, v, F64)
}

// BitCast reinterprets the bits of v as another type of the same size.
func (b *Builder) BitCast(v Value, t Type) Value {
	if v.typ.Size() != t.Size() {
		panic(fmt.Sprintf("ir: bitcast: %s to %s", v, t))
	}
	return b.convert(OpBitCast, v, t)
}

// Unimplemented emits a marker for a guest instruction the backend does not
// implement. Executing it is a no-op that bumps the program's hit counter.
func (b *Builder) Unimplemented(name string) {
	b.emit(Instr{Op: OpUnimplemented, Name: name})
	b.markers = append(b.markers, name)
}

// Build finalises the program. The result of the compiled function is taken
// from gpr3 or fpr1 according to out.
func (b *Builder) Build(out Kind) *Program {
	p := &Program{
		Instrs:  append([]Instr(nil), b.instrs...),
		Slots:   int(b.nvals),
		Out:     out,
		markers: append([]string(nil), b.markers...),
	}
	return p
}

// Program is a finished, immutable IR sequence.
type Program struct {
	Instrs []Instr
	Slots  int
	Out    Kind

	markers []string
	hits    atomic.Uint64
}

// Markers returns the names of the unimplemented instructions in the
// program, in emission order.
func (p *Program) Markers() []string {
	return append([]string(nil), p.markers...)
}

// UnimplementedHits returns how many unimplemented markers have executed.
func (p *Program) UnimplementedHits() uint64 {
	return p.hits.Load()
}

// Disassemble returns a textual listing of the program.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	for i := range p.Instrs {
		sb.WriteString(p.Instrs[i].String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
