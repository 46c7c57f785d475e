package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nucleus-emu/nucleus/emu"
	"github.com/nucleus-emu/nucleus/insts"
)

var _ = Describe("ALU", func() {
	var (
		regFile *emu.RegFile
		alu     *emu.ALU
		decoder *insts.Decoder
	)

	exec := func(word uint32) bool {
		return alu.Execute(decoder.Decode(word))
	}

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		alu = emu.NewALU(regFile)
		decoder = insts.NewDecoder()
	})

	Describe("Immediate arithmetic", func() {
		It("should use zero rather than r0 for addi", func() {
			regFile.WriteGPR(0, 100)
			Expect(exec(insts.EncodeD(14, 3, 0, -5))).To(BeTrue())
			Expect(regFile.ReadGPR(3)).To(Equal(uint64(0xFFFFFFFFFFFFFFFB)))
		})

		It("should shift the immediate for addis", func() {
			regFile.WriteGPR(4, 0x10)
			exec(insts.EncodeD(15, 3, 4, 1))
			Expect(regFile.ReadGPR(3)).To(Equal(uint64(0x10010)))
		})

		It("should set XER[CA] on addic carry out", func() {
			regFile.WriteGPR(4, 0xFFFFFFFFFFFFFFFF)
			exec(insts.EncodeD(12, 3, 4, 1))

			Expect(regFile.ReadGPR(3)).To(Equal(uint64(0)))
			Expect(regFile.XER & emu.XERCA).NotTo(BeZero())

			exec(insts.EncodeD(12, 3, 3, 1))
			Expect(regFile.XER & emu.XERCA).To(BeZero())
		})

		It("should multiply by a signed immediate", func() {
			regFile.WriteGPR(4, 7)
			exec(insts.EncodeD(7, 3, 4, -3))
			Expect(int64(regFile.ReadGPR(3))).To(Equal(int64(-21)))
		})
	})

	Describe("Logical immediates", func() {
		It("should always record CR0 for andi.", func() {
			regFile.WriteGPR(4, 0xF0)
			exec(insts.EncodeD(28, 4, 3, 0x0F))

			Expect(regFile.ReadGPR(3)).To(Equal(uint64(0)))
			Expect(regFile.CRField(0)).To(Equal(emu.CREQ))
		})

		It("should build a 32-bit constant with lis/ori", func() {
			exec(insts.EncodeD(15, 3, 0, 0x1234))
			exec(insts.EncodeD(24, 3, 3, 0x5678))
			Expect(regFile.ReadGPR(3)).To(Equal(uint64(0x12345678)))
		})
	})

	Describe("Compare", func() {
		It("should set LT for a signed word compare", func() {
			regFile.WriteGPR(3, 3)
			exec(insts.EncodeD(11, 0, 3, 5))
			Expect(regFile.CRField(0)).To(Equal(emu.CRLT))
		})

		It("should compare only the low word unless L is set", func() {
			regFile.WriteGPR(3, 0x1_00000000)
			exec(insts.EncodeD(11, 1<<2, 3, 0))
			Expect(regFile.CRField(1)).To(Equal(emu.CREQ))

			exec(insts.EncodeD(11, 1<<2|1, 3, 0))
			Expect(regFile.CRField(1)).To(Equal(emu.CRGT))
		})

		It("should treat operands as unsigned for cmpl", func() {
			regFile.WriteGPR(3, 0xFFFFFFFF)
			regFile.WriteGPR(4, 1)
			exec(insts.EncodeX(32, 2<<2, 3, 4, false))
			Expect(regFile.CRField(2)).To(Equal(emu.CRGT))
		})

		It("should copy XER[SO] into the field", func() {
			regFile.XER = emu.XERSO
			exec(insts.EncodeD(11, 0, 3, 0))
			Expect(regFile.CRField(0)).To(Equal(emu.CREQ | emu.CRSO))
		})
	})

	Describe("Register arithmetic", func() {
		It("should record CR0 when Rc is set", func() {
			regFile.WriteGPR(4, 1)
			regFile.WriteGPR(5, 3)
			exec(insts.EncodeX(40, 3, 5, 4, true)) // subf. r3, r5, r4

			Expect(int64(regFile.ReadGPR(3))).To(Equal(int64(-2)))
			Expect(regFile.CRField(0)).To(Equal(emu.CRLT))
		})

		It("should accept the OE variant of add", func() {
			regFile.WriteGPR(4, 2)
			regFile.WriteGPR(5, 3)
			exec(insts.EncodeX(266|0x200, 3, 4, 5, false))
			Expect(regFile.ReadGPR(3)).To(Equal(uint64(5)))
		})

		It("should multiply the low words with mullw", func() {
			regFile.WriteGPR(4, 0xFFFFFFFF_FFFFFFFE)
			regFile.WriteGPR(5, 0x7_00000003)
			exec(insts.EncodeX(235, 3, 4, 5, false))
			Expect(int64(regFile.ReadGPR(3))).To(Equal(int64(-6)))
		})

		DescribeTable("sign extension",
			func(xo uint16, in, out uint64) {
				regFile.WriteGPR(4, in)
				exec(insts.EncodeX(xo, 4, 3, 0, false))
				Expect(regFile.ReadGPR(3)).To(Equal(out))
			},
			Entry("extsb", uint16(954), uint64(0x80), uint64(0xFFFFFFFFFFFFFF80)),
			Entry("extsh", uint16(922), uint64(0x17FFF), uint64(0x7FFF)),
			Entry("extsw", uint16(986), uint64(0x80000000), uint64(0xFFFFFFFF80000000)),
		)
	})

	Describe("Rotate", func() {
		It("should extract the top byte with rlwinm", func() {
			regFile.WriteGPR(4, 0x12345678)
			exec(insts.EncodeM(3, 4, 8, 24, 31))
			Expect(regFile.ReadGPR(3)).To(Equal(uint64(0x12)))
		})

		It("should clear the high word with a full mask", func() {
			Expect(emu.RotateWordMask(0xFFFFFFFF_00000001, 0, 0, 31)).To(Equal(uint64(1)))
		})

		It("should build wrapping masks", func() {
			Expect(emu.Mask64(62, 1)).To(Equal(uint64(0xC000000000000003)))
		})
	})

	It("should reject non-ALU opcodes", func() {
		Expect(exec(insts.Blr)).To(BeFalse())
	})
})
