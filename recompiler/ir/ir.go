// Package ir is the code-generation backend of the recompiler. Guest
// instructions are lowered into a small typed primitive vocabulary through a
// Builder; the resulting Program is compiled into a NativeFunc that executes
// it against guest memory on a private register frame.
package ir

import "fmt"

// Type is the type of an IR value.
type Type uint8

// IR value types.
const (
	I8 Type = iota
	I16
	I32
	I64
	F32
	F64
)

var typeNames = [...]string{
	I8:  "i8",
	I16: "i16",
	I32: "i32",
	I64: "i64",
	F32: "f32",
	F64: "f64",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Size returns the width of the type in bytes.
func (t Type) Size() int {
	switch t {
	case I8:
		return 1
	case I16:
		return 2
	case I32, F32:
		return 4
	default:
		return 8
	}
}

// IsFloat reports whether t is a floating-point type.
func (t Type) IsFloat() bool {
	return t == F32 || t == F64
}

func (t Type) mask() uint64 {
	if t.Size() == 8 {
		return ^uint64(0)
	}
	return 1<<(8*uint(t.Size())) - 1
}

// Value is a handle to the result of a Builder primitive.
type Value struct {
	id  int32
	typ Type
}

// Type returns the type of the value.
func (v Value) Type() Type {
	return v.typ
}

func (v Value) String() string {
	return fmt.Sprintf("%%%d:%s", v.id, v.typ)
}

// Kind classifies function arguments and results in the guest calling
// convention.
type Kind uint8

// Argument and result kinds.
const (
	KindVoid Kind = iota
	KindInt
	KindFloat
	KindVector
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindVector:
		return "vector"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// GenericValue carries one argument or result across the NativeFunc
// boundary.
type GenericValue struct {
	Kind  Kind
	Int   uint64
	Float float64
}

// IntValue wraps an integer argument.
func IntValue(v uint64) GenericValue {
	return GenericValue{Kind: KindInt, Int: v}
}

// FloatValue wraps a floating-point argument.
func FloatValue(v float64) GenericValue {
	return GenericValue{Kind: KindFloat, Float: v}
}

// Context is the caller state a compiled function needs besides its
// arguments.
type Context struct {
	SP  uint64 // r1
	TOC uint64 // r2
	TLS uint64 // r13
	LR  uint64
}

// NativeFunc is a compiled guest function.
type NativeFunc func(ctx Context, args []GenericValue) GenericValue

// SPR names a special-purpose register visible to IR code.
type SPR uint16

// Special-purpose registers, numbered as in mfspr/mtspr.
const (
	XER SPR = 1
	LR  SPR = 8
	CTR SPR = 9
)

// Memory is the guest address space seen by compiled code.
type Memory interface {
	Read8(addr uint64) uint8
	Read16(addr uint64) uint16
	Read32(addr uint64) uint32
	Read64(addr uint64) uint64
	Write8(addr uint64, value uint8)
	Write16(addr uint64, value uint16)
	Write32(addr uint64, value uint32)
	Write64(addr uint64, value uint64)
}
