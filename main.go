// Package main provides the entry point for nucleus.
// nucleus runs PowerPC PPU programs through an interpreter or a recompiler.
//
// For the full CLI, use: go run ./cmd/nucleus
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("nucleus - PPU execution engine")
	fmt.Println("")
	fmt.Println("Usage: nucleus [options] <program.elf>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -mode      interpreter or recompiler")
	fmt.Println("  -config    Path to configuration JSON file")
	fmt.Println("  -v         Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/nucleus' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/nucleus' instead.")
	}
}
