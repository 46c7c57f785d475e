package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrOutOfMemory is returned when a region has no free range large enough
	// for an allocation.
	ErrOutOfMemory = errors.New("out of guest memory")
	// ErrInvalidFree is returned when freeing an address that is not the start
	// of a live allocation.
	ErrInvalidFree = errors.New("invalid free")
	// ErrBadAlignment is returned for zero or non-power-of-two alignments.
	ErrBadAlignment = errors.New("alignment must be a power of two")
)

// block is a live allocation inside a region.
type block struct {
	addr uint32
	size uint32
}

// Region is a contiguous range of the guest address space with a first-fit
// allocator. It is safe for concurrent use.
type Region struct {
	id   SegmentID
	base uint32
	size uint32

	mu     sync.Mutex
	blocks []block // sorted by addr
}

func newRegion(id SegmentID, base, size uint32) *Region {
	return &Region{id: id, base: base, size: size}
}

// ID returns the region identifier.
func (r *Region) ID() SegmentID {
	return r.id
}

// Base returns the lowest address of the region.
func (r *Region) Base() uint32 {
	return r.base
}

// Size returns the region size in bytes.
func (r *Region) Size() uint32 {
	return r.size
}

// Contains reports whether addr lies inside the region.
func (r *Region) Contains(addr uint32) bool {
	return addr >= r.base && uint64(addr) < uint64(r.base)+uint64(r.size)
}

// Alloc reserves size bytes aligned to align and returns the start address.
func (r *Region) Alloc(size, align uint32) (uint32, error) {
	if align == 0 || align&(align-1) != 0 {
		return 0, fmt.Errorf("%s: %w (got 0x%X)", r.id, ErrBadAlignment, align)
	}
	if size == 0 {
		size = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	end := uint64(r.base) + uint64(r.size)
	cursor := uint64(r.base)
	for i := 0; i <= len(r.blocks); i++ {
		limit := end
		if i < len(r.blocks) {
			limit = uint64(r.blocks[i].addr)
		}

		start := alignUp(cursor, uint64(align))
		if start+uint64(size) <= limit {
			b := block{addr: uint32(start), size: size}
			r.blocks = append(r.blocks, block{})
			copy(r.blocks[i+1:], r.blocks[i:])
			r.blocks[i] = b
			return b.addr, nil
		}

		if i < len(r.blocks) {
			cursor = uint64(r.blocks[i].addr) + uint64(r.blocks[i].size)
		}
	}

	return 0, fmt.Errorf("%s: allocating 0x%X bytes: %w", r.id, size, ErrOutOfMemory)
}

// Free releases the allocation starting at addr.
func (r *Region) Free(addr uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.Search(len(r.blocks), func(i int) bool {
		return r.blocks[i].addr >= addr
	})
	if i == len(r.blocks) || r.blocks[i].addr != addr {
		return fmt.Errorf("%s: 0x%X: %w", r.id, addr, ErrInvalidFree)
	}

	r.blocks = append(r.blocks[:i], r.blocks[i+1:]...)
	return nil
}

// Used returns the number of bytes currently allocated.
func (r *Region) Used() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var used uint64
	for _, b := range r.blocks {
		used += uint64(b.size)
	}
	return used
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
