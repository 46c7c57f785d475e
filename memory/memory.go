// Package memory provides the guest address space shared by all PPU threads.
//
// The space is a flat 4 GiB big-endian view backed by an akita storage, which
// allocates its 4 KiB units lazily and serializes access internally. On top
// of it, named regions (main memory, user memory, stack) each carry their own
// allocator.
package memory

import (
	"encoding/binary"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// AddressSpaceSize is the size of the guest address space. Guest addresses
// are 32 bits wide.
const AddressSpaceSize = uint64(1) << 32

// SegmentID names a region of the guest address space.
type SegmentID int

// Guest memory regions.
const (
	SegMainMemory SegmentID = iota
	SegUserMemory
	SegStack
	numSegments
)

var segmentLayout = [numSegments]struct {
	name string
	base uint32
	size uint32
}{
	SegMainMemory: {"main", 0x00010000, 0x2FFF0000},
	SegUserMemory: {"user", 0x30000000, 0x10000000},
	SegStack:      {"stack", 0xD0000000, 0x10000000},
}

// String returns the region name.
func (id SegmentID) String() string {
	if id < 0 || id >= numSegments {
		return fmt.Sprintf("segment(%d)", int(id))
	}
	return segmentLayout[id].name
}

// Memory is the guest address space.
type Memory struct {
	storage *mem.Storage
	regions [numSegments]*Region
}

// New creates an empty guest address space with the standard regions.
func New() *Memory {
	m := &Memory{
		storage: mem.NewStorage(AddressSpaceSize),
	}
	for id, l := range segmentLayout {
		m.regions[id] = newRegion(SegmentID(id), l.base, l.size)
	}
	return m
}

// Region returns the region with the given id.
func (m *Memory) Region(id SegmentID) *Region {
	if id < 0 || id >= numSegments {
		return nil
	}
	return m.regions[id]
}

// ReadBytes reads n bytes starting at addr. Reads that run past the top of
// the address space wrap around to address 0.
func (m *Memory) ReadBytes(addr uint64, n int) []byte {
	addr &= AddressSpaceSize - 1
	if addr+uint64(n) <= AddressSpaceSize {
		data, err := m.storage.Read(addr, uint64(n))
		if err != nil {
			panic(fmt.Sprintf("memory: read of %d bytes at 0x%X: %v", n, addr, err))
		}
		return data
	}

	data := make([]byte, n)
	for i := range data {
		data[i] = m.ReadBytes(addr+uint64(i), 1)[0]
	}
	return data
}

// WriteBytes writes data starting at addr, wrapping past the top of the
// address space like ReadBytes.
func (m *Memory) WriteBytes(addr uint64, data []byte) {
	addr &= AddressSpaceSize - 1
	if addr+uint64(len(data)) <= AddressSpaceSize {
		if err := m.storage.Write(addr, data); err != nil {
			panic(fmt.Sprintf("memory: write of %d bytes at 0x%X: %v", len(data), addr, err))
		}
		return
	}

	for i, b := range data {
		m.WriteBytes(addr+uint64(i), []byte{b})
	}
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint64) uint8 {
	return m.ReadBytes(addr, 1)[0]
}

// Read16 reads a big-endian halfword.
func (m *Memory) Read16(addr uint64) uint16 {
	return binary.BigEndian.Uint16(m.ReadBytes(addr, 2))
}

// Read32 reads a big-endian word.
func (m *Memory) Read32(addr uint64) uint32 {
	return binary.BigEndian.Uint32(m.ReadBytes(addr, 4))
}

// Read64 reads a big-endian doubleword.
func (m *Memory) Read64(addr uint64) uint64 {
	return binary.BigEndian.Uint64(m.ReadBytes(addr, 8))
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint64, value uint8) {
	m.WriteBytes(addr, []byte{value})
}

// Write16 writes a big-endian halfword.
func (m *Memory) Write16(addr uint64, value uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], value)
	m.WriteBytes(addr, buf[:])
}

// Write32 writes a big-endian word.
func (m *Memory) Write32(addr uint64, value uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], value)
	m.WriteBytes(addr, buf[:])
}

// Write64 writes a big-endian doubleword.
func (m *Memory) Write64(addr uint64, value uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	m.WriteBytes(addr, buf[:])
}

// LoadProgram copies a program image into memory at addr.
func (m *Memory) LoadProgram(addr uint64, program []byte) {
	m.WriteBytes(addr, program)
}

// LoadWords stores a sequence of instruction words at addr.
func (m *Memory) LoadWords(addr uint64, words ...uint32) {
	for i, w := range words {
		m.Write32(addr+uint64(4*i), w)
	}
}
