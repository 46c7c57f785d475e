// Package ppu runs guest PPU threads. A System ties together the guest
// address space, the translated segments and the one-time system
// initialisation; each Thread owns a register file and a stack and executes
// either through the interpreter or by dispatching into recompiled
// functions.
package ppu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/nucleus-emu/nucleus/emu"
	"github.com/nucleus-emu/nucleus/memory"
	"github.com/nucleus-emu/nucleus/recompiler"
)

// DefaultPageSize is the malloc page size handed to guest threads in r12.
const DefaultPageSize = 0x100000

// Initializer performs one-time system setup. It runs on the first thread
// that starts, before that thread executes any guest code.
type Initializer func(t *Thread) error

// System is the state shared by every thread of an emulated process.
type System struct {
	memory      *memory.Memory
	pageSize    uint32
	logger      logr.Logger
	initializer Initializer
	interpOpts  []emu.InterpreterOption

	initOnce    sync.Once
	initErr     error
	initialized atomic.Bool

	segMu    sync.RWMutex
	segments []*recompiler.Segment

	dispatcher *Dispatcher
	nextID     atomic.Uint32
}

// SystemOption configures a System.
type SystemOption func(*System)

// WithPageSize sets the page size parameter passed to threads.
func WithPageSize(size uint32) SystemOption {
	return func(s *System) {
		s.pageSize = size
	}
}

// WithLogger sets the logger used by the system and its threads.
func WithLogger(logger logr.Logger) SystemOption {
	return func(s *System) {
		s.logger = logger
	}
}

// WithInitializer sets the one-time system initializer.
func WithInitializer(init Initializer) SystemOption {
	return func(s *System) {
		s.initializer = init
	}
}

// WithInterpreterOptions passes options to the interpreter of every
// interpreter-mode thread.
func WithInterpreterOptions(opts ...emu.InterpreterOption) SystemOption {
	return func(s *System) {
		s.interpOpts = append(s.interpOpts, opts...)
	}
}

// NewSystem creates a system over the given address space.
func NewSystem(mem *memory.Memory, opts ...SystemOption) *System {
	s := &System{
		memory:   mem,
		pageSize: DefaultPageSize,
		logger:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dispatcher = newDispatcher(s)
	return s
}

// Memory returns the guest address space.
func (s *System) Memory() *memory.Memory {
	return s.memory
}

// PageSize returns the page size parameter.
func (s *System) PageSize() uint32 {
	return s.pageSize
}

// Dispatcher returns the dispatcher shared by recompiler-mode threads.
func (s *System) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// LoadSegment appends a translated segment to the segment table. Segments
// must not be loaded while recompiler-mode threads are running.
func (s *System) LoadSegment(seg *recompiler.Segment) {
	s.segMu.Lock()
	s.segments = append(s.segments, seg)
	s.segMu.Unlock()

	s.logger.Info("segment loaded",
		"start", fmt.Sprintf("%#08x", seg.Start), "end", fmt.Sprintf("%#08x", seg.End),
		"functions", len(seg.Functions))
}

// Segments returns the loaded segments in load order.
func (s *System) Segments() []*recompiler.Segment {
	s.segMu.RLock()
	defer s.segMu.RUnlock()
	return append([]*recompiler.Segment(nil), s.segments...)
}

// segmentFor returns the first loaded segment containing pc.
func (s *System) segmentFor(pc uint32) *recompiler.Segment {
	s.segMu.RLock()
	defer s.segMu.RUnlock()
	for _, seg := range s.segments {
		if seg.Contains(pc) {
			return seg
		}
	}
	return nil
}

// Initialized reports whether one-time initialisation has run.
func (s *System) Initialized() bool {
	return s.initialized.Load()
}

// initialize runs the initializer exactly once. Every caller gets the
// result of that single run.
func (s *System) initialize(t *Thread) error {
	s.initOnce.Do(func() {
		if s.initializer != nil {
			s.logger.Info("initializing system", "thread", t.ID())
			s.initErr = s.initializer(t)
		}
		s.initialized.Store(true)
	})
	return s.initErr
}
