// Package loader provides ELF loading for big-endian PPC64 executables.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// ErrNotPPC64 is returned for ELF files that are not big-endian 64-bit
// PowerPC executables.
var ErrNotPPC64 = errors.New("not a big-endian PPC64 ELF file")

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the guest address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// End returns the first address past the segment.
func (s Segment) End() uint32 {
	return s.VirtAddr + s.MemSize
}

// Contains reports whether addr lies inside the segment.
func (s Segment) Contains(addr uint32) bool {
	return addr >= s.VirtAddr && addr < s.End()
}

// Symbol is a function symbol from the ELF symbol table.
type Symbol struct {
	Name string
	Addr uint32
	Size uint32
}

// Program represents a parsed ELF program ready for installation.
type Program struct {
	// Entry is the address of the entry function descriptor: the word at
	// Entry is the code address and the word at Entry+4 the TOC.
	Entry uint32
	// Segments contains all loadable segments, sorted by address.
	Segments []Segment
	// Functions contains the FUNC symbols, sorted by address.
	Functions []Symbol
}

// Memory is the guest memory a program is installed into.
type Memory interface {
	LoadProgram(addr uint64, program []byte)
}

// Load opens and parses a PPC64 ELF file.
func Load(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse parses a PPC64 ELF image.
func Parse(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2MSB || f.Machine != elf.EM_PPC64 {
		return nil, fmt.Errorf("%w (class %v, data %v, machine %v)", ErrNotPPC64, f.Class, f.Data, f.Machine)
	}

	prog := &Program{
		Entry: uint32(f.Entry),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		seg, err := readSegment(phdr)
		if err != nil {
			return nil, err
		}
		prog.Segments = append(prog.Segments, seg)
	}
	sort.Slice(prog.Segments, func(i, j int) bool {
		return prog.Segments[i].VirtAddr < prog.Segments[j].VirtAddr
	})

	prog.Functions, err = readFunctions(f)
	if err != nil {
		return nil, err
	}

	return prog, nil
}

func readSegment(phdr *elf.Prog) (Segment, error) {
	if phdr.Vaddr+phdr.Memsz > 1<<32 {
		return Segment{}, fmt.Errorf("segment at 0x%x does not fit in the guest address space", phdr.Vaddr)
	}

	data := make([]byte, phdr.Filesz)
	if phdr.Filesz > 0 {
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return Segment{}, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return Segment{}, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Vaddr, n, phdr.Filesz)
		}
	}

	var flags SegmentFlags
	if phdr.Flags&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if phdr.Flags&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if phdr.Flags&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}

	return Segment{
		VirtAddr: uint32(phdr.Vaddr),
		Data:     data,
		MemSize:  uint32(phdr.Memsz),
		Flags:    flags,
	}, nil
}

// readFunctions returns the FUNC symbols. A stripped file has none.
func readFunctions(f *elf.File) ([]Symbol, error) {
	syms, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	}

	var funcs []Symbol
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 {
			continue
		}
		funcs = append(funcs, Symbol{
			Name: s.Name,
			Addr: uint32(s.Value),
			Size: uint32(s.Size),
		})
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Addr < funcs[j].Addr })

	return funcs, nil
}

// Install copies every segment into mem. The part of a segment beyond its
// file data is zero-filled.
func (p *Program) Install(mem Memory) {
	for _, seg := range p.Segments {
		mem.LoadProgram(uint64(seg.VirtAddr), seg.Data)
		if seg.MemSize > uint32(len(seg.Data)) {
			mem.LoadProgram(uint64(seg.VirtAddr)+uint64(len(seg.Data)),
				make([]byte, seg.MemSize-uint32(len(seg.Data))))
		}
	}
}

// ExecutableSegment returns the executable segment containing addr.
func (p *Program) ExecutableSegment(addr uint32) (Segment, bool) {
	for _, seg := range p.Segments {
		if seg.Flags&SegmentFlagExecute != 0 && seg.Contains(addr) {
			return seg, true
		}
	}
	return Segment{}, false
}
