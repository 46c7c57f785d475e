// Package cache provides a decoded-instruction cache for the PPU interpreter,
// built on the Akita cache directory.
//
// The cache holds fully decoded instructions, one 128-byte PPU cache line
// (32 instructions) per block. A miss decodes the whole line. Stores to a
// cached line must be reported through Invalidate so that self-modifying code
// is re-decoded.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/nucleus-emu/nucleus/insts"
)

// LineSize is the PPU cache line size in bytes.
const LineSize = 128

const wordsPerLine = LineSize / 4

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
}

// DefaultConfig returns the geometry of the PPU L1 instruction cache:
// 32KB, 2-way, 128B lines.
func DefaultConfig() Config {
	return Config{
		Size:          32 * 1024,
		Associativity: 2,
	}
}

// Fetcher supplies instruction words on a miss.
type Fetcher interface {
	Read32(addr uint64) uint32
}

// Statistics holds cache statistics.
type Statistics struct {
	Lookups       uint64
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Invalidations uint64
}

// DecodeCache caches decoded instructions by cache line.
// It is not safe for concurrent use; each interpreter owns one.
type DecodeCache struct {
	config Config

	// Akita cache directory for tag/LRU management
	directory *akitacache.DirectoryImpl

	// Decoded lines, indexed by (setID * associativity + wayID)
	lines [][wordsPerLine]insts.Instruction

	decoder *insts.Decoder
	fetcher Fetcher
	stats   Statistics
}

// New creates a decode cache reading instruction words from fetcher.
func New(config Config, fetcher Fetcher) *DecodeCache {
	if config.Associativity <= 0 {
		config.Associativity = 1
	}
	numSets := config.Size / (config.Associativity * LineSize)
	if numSets <= 0 {
		numSets = 1
	}

	return &DecodeCache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			LineSize,
			akitacache.NewLRUVictimFinder(),
		),
		lines:   make([][wordsPerLine]insts.Instruction, numSets*config.Associativity),
		decoder: insts.NewDecoder(),
		fetcher: fetcher,
	}
}

// Config returns the cache configuration.
func (c *DecodeCache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *DecodeCache) Stats() Statistics {
	return c.stats
}

func (c *DecodeCache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// Fetch returns the decoded instruction at addr.
func (c *DecodeCache) Fetch(addr uint64) insts.Instruction {
	c.stats.Lookups++

	addr &= 0xFFFFFFFF
	lineAddr := addr &^ (LineSize - 1)
	slot := (addr % LineSize) / 4

	block := c.directory.Lookup(0, lineAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return c.lines[c.blockIndex(block)][slot]
	}

	c.stats.Misses++
	block = c.fill(lineAddr)
	if block == nil {
		return *c.decoder.Decode(c.fetcher.Read32(addr))
	}
	return c.lines[c.blockIndex(block)][slot]
}

// fill decodes a whole line into a victim block.
func (c *DecodeCache) fill(lineAddr uint64) *akitacache.Block {
	victim := c.directory.FindVictim(lineAddr)
	if victim == nil {
		return nil
	}
	if victim.IsValid {
		c.stats.Evictions++
	}

	line := &c.lines[c.blockIndex(victim)]
	for i := range line {
		c.decoder.DecodeInto(c.fetcher.Read32(lineAddr+uint64(4*i)), &line[i])
	}

	victim.Tag = lineAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return victim
}

// Invalidate drops the line containing addr, if cached.
func (c *DecodeCache) Invalidate(addr uint64) {
	lineAddr := (addr & 0xFFFFFFFF) &^ (LineSize - 1)
	block := c.directory.Lookup(0, lineAddr)
	if block != nil && block.IsValid {
		block.IsValid = false
		c.stats.Invalidations++
	}
}

// Reset invalidates every line and clears statistics.
func (c *DecodeCache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
