package recompiler_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nucleus-emu/nucleus/insts"
	"github.com/nucleus-emu/nucleus/memory"
	"github.com/nucleus-emu/nucleus/recompiler"
	"github.com/nucleus-emu/nucleus/recompiler/ir"
)

var _ = Describe("Segment", func() {
	It("should contain its half-open range", func() {
		seg := recompiler.NewSegment(0x10000, 0x10100)

		Expect(seg.Contains(0x10000)).To(BeTrue())
		Expect(seg.Contains(0x100FC)).To(BeTrue())
		Expect(seg.Contains(0x10100)).To(BeFalse())
		Expect(seg.Contains(0x0FFFC)).To(BeFalse())
	})

	It("should look functions up by exact address", func() {
		f := recompiler.NewFunction(0x10010, "f", nil, recompiler.Void,
			func(ir.Context, []ir.GenericValue) ir.GenericValue { return ir.GenericValue{} })
		seg := recompiler.NewSegment(0x10000, 0x10100, f)

		got, ok := seg.Lookup(0x10010)
		Expect(ok).To(BeTrue())
		Expect(got).To(BeIdenticalTo(f))

		_, ok = seg.Lookup(0x10014)
		Expect(ok).To(BeFalse())
	})

	It("should invoke native functions registered by loaders", func() {
		f := recompiler.NewFunction(0x10000, "twice", []recompiler.InputKind{recompiler.Int}, recompiler.Int,
			func(_ ir.Context, args []ir.GenericValue) ir.GenericValue {
				return ir.IntValue(args[0].Int * 2)
			})

		Expect(f.Invoke(ir.Context{}, []ir.GenericValue{ir.IntValue(21)}).Int).To(Equal(uint64(42)))
		Expect(f.Program()).To(BeNil())
	})
})

var _ = Describe("TranslateSegment", func() {
	var (
		mem        *memory.Memory
		translator *recompiler.Translator
		specs      []recompiler.FunctionSpec
	)

	BeforeEach(func() {
		mem = memory.New()
		translator = recompiler.NewTranslator()
		specs = nil

		// Eight functions returning their index, plus one with a loop.
		for i := 0; i < 8; i++ {
			addr := uint32(0x10000 + 0x10*i)
			mem.LoadWords(uint64(addr), insts.EncodeD(14, 3, 0, int16(i)), insts.Blr)
			specs = append(specs, recompiler.FunctionSpec{Addr: addr, Out: recompiler.Int})
		}
		mem.LoadWords(0x10080, insts.EncodeI(0, false, false), insts.Blr)
		specs = append(specs, recompiler.FunctionSpec{Addr: 0x10080, Name: "spin"})
	})

	It("should translate every straight-line function", func() {
		seg, err := translator.TranslateSegment(context.Background(), mem, 0x10000, 0x10100, specs)
		Expect(err).NotTo(HaveOccurred())
		Expect(seg.Functions).To(HaveLen(8))

		for i := 0; i < 8; i++ {
			f, ok := seg.Lookup(uint32(0x10000 + 0x10*i))
			Expect(ok).To(BeTrue())
			Expect(f.Invoke(ir.Context{}, nil).Int).To(Equal(uint64(i)))
		}
	})

	It("should leave out and count rejected functions", func() {
		seg, err := translator.TranslateSegment(context.Background(), mem, 0x10000, 0x10100, specs)
		Expect(err).NotTo(HaveOccurred())

		_, ok := seg.Lookup(0x10080)
		Expect(ok).To(BeFalse())
		Expect(translator.Coverage().Rejected).To(Equal(uint64(1)))
	})

	It("should name anonymous functions by address", func() {
		seg, err := translator.TranslateSegment(context.Background(), mem, 0x10000, 0x10100, specs[:1])
		Expect(err).NotTo(HaveOccurred())
		Expect(seg.Functions[0x10000].Name).To(Equal("sub_00010000"))
	})

	It("should fail when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := translator.TranslateSegment(ctx, mem, 0x10000, 0x10100, specs)
		Expect(err).To(MatchError(context.Canceled))
	})
})
