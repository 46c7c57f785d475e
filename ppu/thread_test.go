package ppu_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nucleus-emu/nucleus/emu"
	"github.com/nucleus-emu/nucleus/insts"
	"github.com/nucleus-emu/nucleus/memory"
	"github.com/nucleus-emu/nucleus/ppu"
	"github.com/nucleus-emu/nucleus/recompiler"
)

const (
	codeBase  = 0x10000
	entryDesc = 0x20000
	entryTOC  = 0x28000
	stackBase = 0xD0000000
	userBase  = 0x30000000
)

var _ = Describe("Thread", func() {
	var (
		mem *memory.Memory
		sys *ppu.System
	)

	li := func(rd uint8, v int16) uint32 { return insts.EncodeD(14, rd, 0, v) }
	addi := func(rd, ra uint8, v int16) uint32 { return insts.EncodeD(14, rd, ra, v) }
	spin := insts.EncodeI(0, false, false) // b .

	load := func(words ...uint32) {
		mem.LoadWords(codeBase, words...)
	}

	newThread := func(mode ppu.Mode) *ppu.Thread {
		t, err := ppu.NewThread(sys, entryDesc, mode)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(t.Close)
		return t
	}

	BeforeEach(func() {
		mem = memory.New()
		mem.LoadWords(entryDesc, codeBase, entryTOC)
		sys = ppu.NewSystem(mem)
	})

	Describe("Construction", func() {
		It("should set up registers for process entry", func() {
			t := newThread(ppu.ModeInterpreter)

			state, err := t.Snapshot()
			Expect(err).NotTo(HaveOccurred())

			top := uint64(stackBase + ppu.StackSize)
			expected := emu.RegFile{PC: codeBase}
			expected.GPR[0] = codeBase
			expected.GPR[1] = top - 0x200
			expected.GPR[2] = entryTOC
			expected.GPR[4] = top - 0x80
			expected.GPR[5] = top - 0x70
			expected.GPR[10] = 0x90
			expected.GPR[11] = entryDesc
			expected.GPR[12] = ppu.DefaultPageSize
			expected.GPR[13] = userBase + 0x7060
			expected.CR = 0x22000082
			expected.TB = emu.TimeBase{TBU: 1, TBL: 1}

			Expect(cmp.Diff(expected, state)).To(BeEmpty())
			Expect(t.Status()).To(Equal(ppu.StatusCreated))
			Expect(t.PC()).To(Equal(uint32(codeBase)))
			Expect(t.StackAddr()).To(Equal(uint32(stackBase)))
		})

		It("should pass the configured page size", func() {
			sys = ppu.NewSystem(mem, ppu.WithPageSize(0x10000))
			t := newThread(ppu.ModeInterpreter)

			state, _ := t.Snapshot()
			Expect(state.GPR[12]).To(Equal(uint64(0x10000)))
		})

		It("should give each thread its own stack and id", func() {
			a := newThread(ppu.ModeInterpreter)
			b := newThread(ppu.ModeRecompiler)

			Expect(a.ID()).NotTo(Equal(b.ID()))
			Expect(b.StackAddr()).To(Equal(uint32(stackBase + ppu.StackSize)))
			Expect(a.Mode()).To(Equal(ppu.ModeInterpreter))
			Expect(b.Mode()).To(Equal(ppu.ModeRecompiler))
			Expect(a.Interpreter()).NotTo(BeNil())
			Expect(b.Interpreter()).To(BeNil())
		})

		It("should return stack allocation failures", func() {
			var threads []*ppu.Thread
			DeferCleanup(func() {
				for _, t := range threads {
					_ = t.Close()
				}
			})

			stackSize := mem.Region(memory.SegStack).Size()
			for i := uint32(0); i < stackSize/ppu.StackSize; i++ {
				t, err := ppu.NewThread(sys, entryDesc, ppu.ModeRecompiler)
				Expect(err).NotTo(HaveOccurred())
				threads = append(threads, t)
			}

			t, err := ppu.NewThread(sys, entryDesc, ppu.ModeRecompiler)
			Expect(err).To(MatchError(memory.ErrOutOfMemory))
			Expect(t).To(BeNil())
		})

		It("should release the stack on close", func() {
			t, err := ppu.NewThread(sys, entryDesc, ppu.ModeInterpreter)
			Expect(err).NotTo(HaveOccurred())
			Expect(mem.Region(memory.SegStack).Used()).To(Equal(uint64(ppu.StackSize)))

			Expect(t.Close()).To(Succeed())
			Expect(mem.Region(memory.SegStack).Used()).To(BeZero())
			Expect(t.Close()).To(Succeed())
			Expect(t.Start()).To(MatchError(ppu.ErrThreadClosed))
		})
	})

	Describe("Interpreter mode", func() {
		It("should run until the entry function returns", func() {
			load(li(3, 5), addi(3, 3, 2), insts.Blr)
			t := newThread(ppu.ModeInterpreter)

			Expect(t.Wait()).To(Succeed())
			Expect(t.Start()).To(Succeed())
			Expect(t.Wait()).To(Succeed())

			state, err := t.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(state.GPR[3]).To(Equal(uint64(7)))
			Expect(state.PC).To(BeZero())
			Expect(t.Status()).To(Equal(ppu.StatusStopped))
			Expect(t.Steps()).To(Equal(uint64(3)))

			_, exited := t.ExitCode()
			Expect(exited).To(BeFalse())
		})

		It("should record the exit status", func() {
			load(li(3, 9), li(11, int16(emu.SyscallProcessExit)), insts.Sc, spin)
			t := newThread(ppu.ModeInterpreter)

			Expect(t.Start()).To(Succeed())
			Expect(t.Wait()).To(Succeed())

			code, exited := t.ExitCode()
			Expect(exited).To(BeTrue())
			Expect(code).To(Equal(int64(9)))
		})

		It("should report interpreter errors", func() {
			sys = ppu.NewSystem(mem, ppu.WithInterpreterOptions(emu.WithMaxInstructions(10)))
			load(spin)
			t := newThread(ppu.ModeInterpreter)

			Expect(t.Start()).To(Succeed())
			Expect(t.Wait()).To(MatchError(emu.ErrMaxInstructions))
			Expect(t.Err()).To(MatchError(emu.ErrMaxInstructions))
			Expect(t.Status()).To(Equal(ppu.StatusStopped))
		})
	})

	Describe("Lifecycle", func() {
		var t *ppu.Thread

		BeforeEach(func() {
			load(spin)
			t = newThread(ppu.ModeInterpreter)
			Expect(t.Start()).To(Succeed())
			Eventually(t.Steps).Should(BeNumerically(">", 0))
		})

		It("should refuse snapshots while running", func() {
			_, err := t.Snapshot()
			Expect(err).To(MatchError(ppu.ErrThreadRunning))
		})

		It("should pause and resume", func() {
			t.Pause()
			Eventually(t.Status).Should(Equal(ppu.StatusPaused))

			paused := t.Steps()
			Consistently(t.Steps, 50*time.Millisecond).Should(Equal(paused))
			Expect(t.PC()).To(Equal(uint32(codeBase)))

			_, err := t.Snapshot()
			Expect(err).NotTo(HaveOccurred())

			t.Pause()
			Expect(t.Status()).To(Equal(ppu.StatusPaused))

			t.Run()
			Eventually(t.Steps).Should(BeNumerically(">", paused))
			Expect(t.Status()).To(Equal(ppu.StatusRunning))
		})

		It("should stop", func() {
			t.Stop()
			Eventually(t.Done()).Should(BeClosed())
			Expect(t.Err()).NotTo(HaveOccurred())
			Expect(t.Status()).To(Equal(ppu.StatusStopped))

			stopped := t.Steps()
			Consistently(t.Steps, 50*time.Millisecond).Should(Equal(stopped))
		})

		It("should wake a paused thread to stop", func() {
			t.Pause()
			Eventually(t.Status).Should(Equal(ppu.StatusPaused))

			t.Stop()
			Eventually(t.Done()).Should(BeClosed())
			Expect(t.Status()).To(Equal(ppu.StatusStopped))
		})

		It("should not let run override a stop", func() {
			t.Pause()
			Eventually(t.Status).Should(Equal(ppu.StatusPaused))

			t.Stop()
			t.Run()
			t.Pause()
			Expect(t.Wait()).To(Succeed())
			Expect(t.Status()).To(Equal(ppu.StatusStopped))
		})

		It("should restart a started thread", func() {
			first := t.Done()
			before := t.Steps()

			Expect(t.Start()).To(Succeed())
			Expect(first).To(BeClosed())
			Expect(t.Done()).NotTo(Equal(first))
			Eventually(t.Steps).Should(BeNumerically(">", before))
			Expect(t.Status()).To(Equal(ppu.StatusRunning))

			t.Stop()
			Expect(t.Wait()).To(Succeed())
		})
	})

	Describe("Recompiler mode", func() {
		BeforeEach(func() {
			load(addi(3, 3, 41), insts.Blr)

			translator := recompiler.NewTranslator()
			seg, err := translator.TranslateSegment(context.Background(), mem, codeBase, codeBase+0x100,
				[]recompiler.FunctionSpec{{
					Addr: codeBase,
					Name: "entry",
					In:   []recompiler.InputKind{recompiler.Int},
					Out:  recompiler.Int,
				}})
			Expect(err).NotTo(HaveOccurred())
			sys.LoadSegment(seg)
		})

		It("should run the compiled entry function and return to LR", func() {
			t := newThread(ppu.ModeRecompiler)

			Expect(t.Start()).To(Succeed())
			Expect(t.Wait()).To(Succeed())

			state, err := t.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(state.GPR[3]).To(Equal(uint64(41)))
			Expect(state.PC).To(BeZero())
			Expect(t.Steps()).To(Equal(uint64(1)))
			Expect(sys.Dispatcher().Invocations()).To(Equal(uint64(1)))
		})

		It("should stop on a dispatch miss", func() {
			mem.LoadWords(entryDesc, codeBase+0x1000, entryTOC)
			t := newThread(ppu.ModeRecompiler)

			Expect(t.Start()).To(Succeed())
			Expect(t.Wait()).To(Succeed())

			Expect(t.PC()).To(Equal(uint32(codeBase + 0x1000)))
			Expect(t.Steps()).To(BeZero())
			Expect(sys.Dispatcher().Invocations()).To(BeZero())
			Expect(sys.Dispatcher().Misses()).To(Equal(uint64(1)))
		})
	})

	Describe("System initialisation", func() {
		var calls atomic.Int32

		BeforeEach(func() {
			calls.Store(0)
			load(li(3, 1), insts.Blr)
		})

		It("should run the initializer once across threads", func() {
			var initThread uint32
			sys = ppu.NewSystem(mem, ppu.WithInitializer(func(t *ppu.Thread) error {
				calls.Add(1)
				initThread = t.ID()
				return nil
			}))
			a := newThread(ppu.ModeInterpreter)
			b := newThread(ppu.ModeInterpreter)
			Expect(sys.Initialized()).To(BeFalse())

			Expect(a.Start()).To(Succeed())
			Expect(a.Wait()).To(Succeed())
			Expect(b.Start()).To(Succeed())
			Expect(b.Wait()).To(Succeed())

			Expect(calls.Load()).To(Equal(int32(1)))
			Expect(initThread).To(Equal(a.ID()))
			Expect(sys.Initialized()).To(BeTrue())

			state, _ := a.Snapshot()
			Expect(state.GPR[3]).To(Equal(uint64(1)))
		})

		It("should fail threads when initialisation fails", func() {
			boom := errors.New("boom")
			sys = ppu.NewSystem(mem, ppu.WithInitializer(func(*ppu.Thread) error {
				calls.Add(1)
				return boom
			}))
			a := newThread(ppu.ModeInterpreter)
			b := newThread(ppu.ModeInterpreter)

			Expect(a.Start()).To(Succeed())
			Expect(a.Wait()).To(MatchError(boom))
			Expect(b.Start()).To(Succeed())
			Expect(b.Wait()).To(MatchError(boom))

			Expect(calls.Load()).To(Equal(int32(1)))
			Expect(a.Steps()).To(BeZero())
		})
	})
})

var _ = Describe("Mode", func() {
	DescribeTable("ParseMode",
		func(s string, want ppu.Mode) {
			m, err := ppu.ParseMode(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(Equal(want))
			Expect(ppu.ParseMode(m.String())).To(Equal(want))
		},
		Entry("interpreter", "interpreter", ppu.ModeInterpreter),
		Entry("recompiler", "recompiler", ppu.ModeRecompiler),
		Entry("case insensitive", "Recompiler", ppu.ModeRecompiler),
	)

	It("should reject unknown modes", func() {
		_, err := ppu.ParseMode("jit")
		Expect(err).To(HaveOccurred())
	})

	It("should name statuses", func() {
		Expect(ppu.StatusPaused.String()).To(Equal("paused"))
		Expect(ppu.Status(9).String()).To(Equal("status(9)"))
	})
})
