package ppu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/nucleus-emu/nucleus/emu"
	"github.com/nucleus-emu/nucleus/memory"
)

// Stack geometry of every PPU thread.
const (
	StackSize  = 0x10000
	StackAlign = 0x100
)

// Offset of the TLS area from the base of user memory.
const tlsOffset = 0x7060

var (
	// ErrThreadRunning is returned when an operation needs the thread to be
	// stopped or paused.
	ErrThreadRunning = errors.New("thread is running")

	// ErrThreadClosed is returned when starting a closed thread.
	ErrThreadClosed = errors.New("thread is closed")
)

// Status is the lifecycle state of a thread.
type Status int32

// Thread states.
const (
	StatusCreated Status = iota
	StatusRunning
	StatusPaused
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

type event int32

const (
	eventNone event = iota
	eventRun
	eventPause
	eventStop
)

// Thread is a guest PPU thread. Its register file is only mutated by its own
// execution loop; outside callers drive it with Start, Run, Pause and Stop.
type Thread struct {
	sys    *System
	id     uint32
	mode   Mode
	entry  uint32
	logger logr.Logger

	stackAddr uint32
	state     *emu.RegFile
	interp    *emu.Interpreter
	strategy  strategy

	// lifecycle serialises Start and Close.
	lifecycle sync.Mutex

	mu     sync.Mutex
	cond   *sync.Cond
	event  atomic.Int32 // written under mu, read without it between steps
	status atomic.Int32
	done   chan struct{}
	closed bool
	err    error

	pc       atomic.Uint32
	steps    atomic.Uint64
	exitCode atomic.Int64
	exited   atomic.Bool
}

// NewThread creates a thread that will run the function whose descriptor is
// at entry. The stack is allocated from the stack region and the registers
// are set up as the PPU ABI expects on process entry.
func NewThread(sys *System, entry uint32, mode Mode) (*Thread, error) {
	mem := sys.Memory()

	stackAddr, err := mem.Region(memory.SegStack).Alloc(StackSize, StackAlign)
	if err != nil {
		return nil, fmt.Errorf("allocating thread stack: %w", err)
	}

	t := &Thread{
		sys:       sys,
		id:        sys.nextID.Add(1),
		mode:      mode,
		entry:     entry,
		stackAddr: stackAddr,
		state:     &emu.RegFile{},
	}
	t.cond = sync.NewCond(&t.mu)
	t.logger = sys.logger.WithValues("thread", t.id)
	t.initRegisters()

	switch mode {
	case ModeRecompiler:
		t.strategy = &recompilerStrategy{state: t.state, dispatcher: sys.Dispatcher()}
	default:
		t.interp = emu.NewInterpreter(t.state, mem, sys.interpOpts...)
		t.strategy = &interpreterStrategy{
			state:  t.state,
			interp: t.interp,
			exit: func(code int64) {
				t.exitCode.Store(code)
				t.exited.Store(true)
			},
		}
	}

	t.pc.Store(t.state.PC)
	return t, nil
}

func (t *Thread) initRegisters() {
	mem := t.sys.Memory()
	r := t.state
	stackTop := uint64(t.stackAddr) + StackSize

	entryPC := mem.Read32(uint64(t.entry))
	entryTOC := mem.Read32(uint64(t.entry) + 4)

	r.PC = entryPC
	r.GPR[0] = uint64(entryPC)
	r.GPR[1] = stackTop - 0x200
	r.GPR[2] = uint64(entryTOC)
	r.GPR[3] = 0
	r.GPR[4] = stackTop - 0x80
	r.GPR[5] = r.GPR[4] + 0x10
	r.GPR[11] = uint64(t.entry)
	r.GPR[12] = uint64(t.sys.PageSize())
	r.GPR[13] = uint64(mem.Region(memory.SegUserMemory).Base()) + tlsOffset
	r.CR = 0x22000082
	r.TB = emu.TimeBase{TBU: 1, TBL: 1}

	// Arguments of the TLS initialisation done by the guest's start code.
	r.GPR[7] = 0
	r.GPR[8] = 0
	r.GPR[9] = 0
	r.GPR[10] = 0x90
}

// ID returns the thread's system-unique identifier.
func (t *Thread) ID() uint32 {
	return t.id
}

// Mode returns the execution mode fixed at construction.
func (t *Thread) Mode() Mode {
	return t.mode
}

// Entry returns the entry descriptor address.
func (t *Thread) Entry() uint32 {
	return t.entry
}

// StackAddr returns the base of the thread's stack allocation.
func (t *Thread) StackAddr() uint32 {
	return t.stackAddr
}

// Interpreter returns the interpreter of an interpreter-mode thread, or nil.
func (t *Thread) Interpreter() *emu.Interpreter {
	return t.interp
}

// Status returns the lifecycle state.
func (t *Thread) Status() Status {
	return Status(t.status.Load())
}

// PC returns the program counter as of the last completed step.
func (t *Thread) PC() uint32 {
	return t.pc.Load()
}

// Steps returns the number of instructions (interpreter) or functions
// (recompiler) executed.
func (t *Thread) Steps() uint64 {
	return t.steps.Load()
}

// ExitCode returns the status passed to sys_process_exit, if the thread
// exited that way.
func (t *Thread) ExitCode() (int64, bool) {
	return t.exitCode.Load(), t.exited.Load()
}

// Err returns the error that ended the last run, if any.
func (t *Thread) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Snapshot returns a copy of the register file. It fails while the
// execution loop may be mutating it.
func (t *Thread) Snapshot() (emu.RegFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status() == StatusRunning {
		return emu.RegFile{}, ErrThreadRunning
	}
	return *t.state, nil
}

// Start launches the execution loop on its own goroutine. A thread that was
// already started is stopped first and then continues from its current
// state.
func (t *Thread) Start() error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrThreadClosed
	}
	if prev := t.done; prev != nil {
		t.setEvent(eventStop)
		t.mu.Unlock()
		<-prev
		t.mu.Lock()
		t.setEvent(eventNone)
	}

	done := make(chan struct{})
	t.done = done
	t.err = nil
	t.setStatus(StatusRunning)
	t.mu.Unlock()

	t.logger.Info("thread started", "mode", t.mode.String(), "pc", fmt.Sprintf("%#08x", t.state.PC))
	go t.main(done)
	return nil
}

// Run resumes a paused thread. A stop request is never overridden.
func (t *Thread) Run() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if event(t.event.Load()) != eventStop {
		t.setEvent(eventRun)
	}
}

// Pause asks the thread to pause at the next step boundary.
func (t *Thread) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if event(t.event.Load()) != eventStop {
		t.setEvent(eventPause)
	}
}

// Stop asks the thread to stop at the next step boundary. A paused thread
// is woken up to stop.
func (t *Thread) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setEvent(eventStop)
}

// Done returns a channel closed when the current run ends, or nil if the
// thread was never started.
func (t *Thread) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Wait blocks until the current run ends and returns its error.
func (t *Thread) Wait() error {
	done := t.Done()
	if done == nil {
		return nil
	}
	<-done
	return t.Err()
}

// Close stops the thread, waits for it and releases its stack.
func (t *Thread) Close() error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.setEvent(eventStop)
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}

	if err := t.sys.Memory().Region(memory.SegStack).Free(t.stackAddr); err != nil {
		return fmt.Errorf("freeing thread stack: %w", err)
	}
	return nil
}

// setEvent must be called with mu held.
func (t *Thread) setEvent(e event) {
	t.event.Store(int32(e))
	t.cond.Broadcast()
}

func (t *Thread) setStatus(s Status) {
	t.status.Store(int32(s))
}

func (t *Thread) main(done chan struct{}) {
	defer close(done)

	err := t.sys.initialize(t)
	if err == nil {
		err = t.loop()
	}

	t.mu.Lock()
	t.err = err
	t.setStatus(StatusStopped)
	t.mu.Unlock()

	if err != nil {
		t.logger.Error(err, "thread failed", "pc", fmt.Sprintf("%#08x", t.PC()))
		return
	}
	t.logger.Info("thread stopped", "pc", fmt.Sprintf("%#08x", t.PC()), "steps", t.Steps())
}

// loop runs the strategy until it runs out of work or a stop is requested.
// Events are only looked at between steps.
func (t *Thread) loop() error {
	for {
		if event(t.event.Load()) != eventNone && !t.handleEvent() {
			return nil
		}

		executed, more, err := t.strategy.step()
		t.pc.Store(t.state.PC)
		if executed {
			t.steps.Add(1)
		}

		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// handleEvent consumes the pending event, blocking while paused. It returns
// false if the loop must stop.
func (t *Thread) handleEvent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if event(t.event.Load()) == eventPause {
		t.setStatus(StatusPaused)
		t.logger.V(1).Info("thread paused", "pc", fmt.Sprintf("%#08x", t.state.PC))
		for event(t.event.Load()) == eventPause {
			t.cond.Wait()
		}
	}

	if event(t.event.Load()) == eventStop {
		return false
	}

	t.event.Store(int32(eventNone))
	t.setStatus(StatusRunning)
	return true
}
