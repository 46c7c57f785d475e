package ppu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nucleus-emu/nucleus/emu"
	"github.com/nucleus-emu/nucleus/memory"
	"github.com/nucleus-emu/nucleus/ppu"
	"github.com/nucleus-emu/nucleus/recompiler"
	"github.com/nucleus-emu/nucleus/recompiler/ir"
)

var _ = Describe("Dispatcher", func() {
	var (
		sys   *ppu.System
		state *emu.RegFile

		gotCtx  ir.Context
		gotArgs []ir.GenericValue
	)

	record := func(ret ir.GenericValue) ir.NativeFunc {
		return func(ctx ir.Context, args []ir.GenericValue) ir.GenericValue {
			gotCtx = ctx
			gotArgs = append([]ir.GenericValue(nil), args...)
			return ret
		}
	}

	BeforeEach(func() {
		sys = ppu.NewSystem(memory.New())
		state = &emu.RegFile{}
		gotCtx = ir.Context{}
		gotArgs = nil
	})

	It("should miss when no segment is loaded", func() {
		state.PC = 0x10000
		state.GPR[3] = 42

		Expect(sys.Dispatcher().Dispatch(state)).To(BeFalse())
		Expect(state.GPR[3]).To(Equal(uint64(42)))
		Expect(sys.Dispatcher().Invocations()).To(BeZero())
		Expect(sys.Dispatcher().Misses()).To(Equal(uint64(1)))
	})

	It("should miss when the segment has no function at pc", func() {
		sys.LoadSegment(recompiler.NewSegment(0x10000, 0x20000,
			recompiler.NewFunction(0x10000, "f", nil, recompiler.Void, record(ir.GenericValue{}))))
		state.PC = 0x10004

		Expect(sys.Dispatcher().Dispatch(state)).To(BeFalse())
		Expect(gotArgs).To(BeNil())
	})

	It("should treat the segment end as exclusive", func() {
		sys.LoadSegment(recompiler.NewSegment(0x10000, 0x20000,
			recompiler.NewFunction(0x20000, "edge", nil, recompiler.Void, record(ir.GenericValue{}))))
		state.PC = 0x20000

		Expect(sys.Dispatcher().Dispatch(state)).To(BeFalse())
	})

	It("should marshal integer and float arguments separately", func() {
		in := []recompiler.InputKind{recompiler.Int, recompiler.Float, recompiler.Int, recompiler.Float}
		sys.LoadSegment(recompiler.NewSegment(0x10000, 0x20000,
			recompiler.NewFunction(0x10000, "mixed", in, recompiler.Void, record(ir.GenericValue{}))))

		state.PC = 0x10000
		state.GPR[3] = 7
		state.GPR[4] = 9
		state.FPR[1] = 1.5
		state.FPR[2] = -2.25

		Expect(sys.Dispatcher().Dispatch(state)).To(BeTrue())
		Expect(gotArgs).To(Equal([]ir.GenericValue{
			ir.IntValue(7),
			ir.FloatValue(1.5),
			ir.IntValue(9),
			ir.FloatValue(-2.25),
		}))
	})

	It("should pass vector arguments as empty values", func() {
		in := []recompiler.InputKind{recompiler.Vector, recompiler.Int}
		sys.LoadSegment(recompiler.NewSegment(0x10000, 0x20000,
			recompiler.NewFunction(0x10000, "vec", in, recompiler.Void, record(ir.GenericValue{}))))

		state.PC = 0x10000
		state.GPR[3] = 5

		Expect(sys.Dispatcher().Dispatch(state)).To(BeTrue())
		Expect(gotArgs).To(HaveLen(2))
		Expect(gotArgs[0]).To(Equal(ir.GenericValue{Kind: ir.KindVector}))
		Expect(gotArgs[1]).To(Equal(ir.IntValue(5)))
		Expect(sys.Dispatcher().VectorArgs()).To(Equal(uint64(1)))
	})

	It("should pass the caller context", func() {
		sys.LoadSegment(recompiler.NewSegment(0x10000, 0x20000,
			recompiler.NewFunction(0x10000, "ctx", nil, recompiler.Void, record(ir.GenericValue{}))))

		state.PC = 0x10000
		state.GPR[1] = 0xD000FE00
		state.GPR[2] = 0x8000
		state.GPR[13] = 0x30007060
		state.LR = 0x10100

		Expect(sys.Dispatcher().Dispatch(state)).To(BeTrue())
		Expect(gotCtx).To(Equal(ir.Context{SP: 0xD000FE00, TOC: 0x8000, TLS: 0x30007060, LR: 0x10100}))
	})

	It("should write an integer result to r3 only", func() {
		sys.LoadSegment(recompiler.NewSegment(0x10000, 0x20000,
			recompiler.NewFunction(0x10000, "i", nil, recompiler.Int,
				record(ir.GenericValue{Kind: ir.KindInt, Int: 99, Float: 3.5}))))

		state.PC = 0x10000
		state.FPR[1] = 1

		Expect(sys.Dispatcher().Dispatch(state)).To(BeTrue())
		Expect(state.GPR[3]).To(Equal(uint64(99)))
		Expect(state.FPR[1]).To(Equal(1.0))
		Expect(sys.Dispatcher().Invocations()).To(Equal(uint64(1)))
	})

	It("should write a float result to f1 only", func() {
		sys.LoadSegment(recompiler.NewSegment(0x10000, 0x20000,
			recompiler.NewFunction(0x10000, "f", nil, recompiler.Float,
				record(ir.GenericValue{Kind: ir.KindFloat, Int: 99, Float: 3.5}))))

		state.PC = 0x10000
		state.GPR[3] = 1

		Expect(sys.Dispatcher().Dispatch(state)).To(BeTrue())
		Expect(state.FPR[1]).To(Equal(3.5))
		Expect(state.GPR[3]).To(Equal(uint64(1)))
	})

	It("should leave registers alone for void functions", func() {
		sys.LoadSegment(recompiler.NewSegment(0x10000, 0x20000,
			recompiler.NewFunction(0x10000, "v", nil, recompiler.Void,
				record(ir.GenericValue{Kind: ir.KindInt, Int: 99}))))

		state.PC = 0x10000
		state.GPR[3] = 1

		Expect(sys.Dispatcher().Dispatch(state)).To(BeTrue())
		Expect(state.GPR[3]).To(Equal(uint64(1)))
	})

	It("should search the first segment containing pc", func() {
		first := recompiler.NewSegment(0x10000, 0x20000)
		second := recompiler.NewSegment(0x10000, 0x30000,
			recompiler.NewFunction(0x10000, "shadowed", nil, recompiler.Void, record(ir.GenericValue{})))
		sys.LoadSegment(first)
		sys.LoadSegment(second)
		state.PC = 0x10000

		Expect(sys.Dispatcher().Dispatch(state)).To(BeFalse())
		Expect(sys.Segments()).To(Equal([]*recompiler.Segment{first, second}))
	})
})
