// Package insts provides PowerPC (PPU) instruction definitions and decoding.
//
// This package implements decoding of 32-bit big-endian PowerPC machine words
// into structured instruction representations. It supports:
//   - Load and store instructions in all addressing forms (D, DS, X, update)
//   - Memory synchronization instructions (sync, eieio, isync)
//   - The integer and branch subset executed by the interpreter
//
// Field extraction is done with explicit shift-and-mask helpers on Fields, so
// decoding never depends on host byte order or struct layout.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x80610008) // lwz r3, 8(r1)
//	fmt.Printf("Op: %v, RD: %d, RA: %d, D: %d\n", inst.Op, inst.RD(), inst.RA(), inst.D())
package insts
