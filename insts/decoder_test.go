package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nucleus-emu/nucleus/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("D-form loads and stores", func() {
		// lwz r3, 8(r1) -> 0x80610008
		It("should decode lwz r3, 8(r1)", func() {
			inst := decoder.Decode(0x80610008)

			Expect(inst.Op).To(Equal(insts.OpLWZ))
			Expect(inst.Form).To(Equal(insts.FormD))
			Expect(inst.RD()).To(Equal(uint8(3)))
			Expect(inst.RA()).To(Equal(uint8(1)))
			Expect(inst.D()).To(Equal(int64(8)))
		})

		// stwu r1, -32(r1) -> 0x9421FFE0
		It("should decode stwu r1, -32(r1)", func() {
			inst := decoder.Decode(0x9421FFE0)

			Expect(inst.Op).To(Equal(insts.OpSTWU))
			Expect(inst.RS()).To(Equal(uint8(1)))
			Expect(inst.D()).To(Equal(int64(-32)))
		})

		DescribeTable("primary opcodes",
			func(opcd uint8, want insts.Op) {
				inst := decoder.Decode(insts.EncodeD(opcd, 1, 2, 4))
				Expect(inst.Op).To(Equal(want))
				Expect(inst.Form).To(Equal(insts.FormD))
			},
			Entry("lbz", uint8(34), insts.OpLBZ),
			Entry("lbzu", uint8(35), insts.OpLBZU),
			Entry("lhz", uint8(40), insts.OpLHZ),
			Entry("lha", uint8(42), insts.OpLHA),
			Entry("lhau", uint8(43), insts.OpLHAU),
			Entry("sth", uint8(44), insts.OpSTH),
			Entry("lmw", uint8(46), insts.OpLMW),
			Entry("stmw", uint8(47), insts.OpSTMW),
			Entry("lfs", uint8(48), insts.OpLFS),
			Entry("lfdu", uint8(51), insts.OpLFDU),
			Entry("stfs", uint8(52), insts.OpSTFS),
			Entry("stfdu", uint8(55), insts.OpSTFDU),
			Entry("addi", uint8(14), insts.OpADDI),
			Entry("ori", uint8(24), insts.OpORI),
		)
	})

	Describe("DS-form", func() {
		It("should decode ld, ldu and lwa", func() {
			Expect(decoder.Decode(insts.EncodeDS(58, 3, 1, 16, 0)).Op).To(Equal(insts.OpLD))
			Expect(decoder.Decode(insts.EncodeDS(58, 3, 1, 16, 1)).Op).To(Equal(insts.OpLDU))
			Expect(decoder.Decode(insts.EncodeDS(58, 3, 1, 16, 2)).Op).To(Equal(insts.OpLWA))
			Expect(decoder.Decode(insts.EncodeDS(58, 3, 1, 16, 3)).Op).To(Equal(insts.OpUnknown))
		})

		It("should decode std and stdu", func() {
			inst := decoder.Decode(insts.EncodeDS(62, 31, 1, -16, 1))
			Expect(inst.Op).To(Equal(insts.OpSTDU))
			Expect(inst.Form).To(Equal(insts.FormDS))
			Expect(inst.DS()).To(Equal(int64(-16)))

			Expect(decoder.Decode(insts.EncodeDS(62, 31, 1, 8, 0)).Op).To(Equal(insts.OpSTD))
		})
	})

	Describe("X-form", func() {
		DescribeTable("extended opcodes",
			func(xo uint16, want insts.Op) {
				inst := decoder.Decode(insts.EncodeX(xo, 3, 4, 5, false))
				Expect(inst.Op).To(Equal(want))
				Expect(inst.RB()).To(Equal(uint8(5)))
			},
			Entry("lwzx", uint16(23), insts.OpLWZX),
			Entry("lbzux", uint16(119), insts.OpLBZUX),
			Entry("lhaux", uint16(375), insts.OpLHAUX),
			Entry("lwaux", uint16(373), insts.OpLWAUX),
			Entry("ldux", uint16(53), insts.OpLDUX),
			Entry("stdux", uint16(181), insts.OpSTDUX),
			Entry("stfdux", uint16(759), insts.OpSTFDUX),
			Entry("lwbrx", uint16(534), insts.OpLWBRX),
			Entry("lwarx", uint16(20), insts.OpLWARX),
			Entry("stswi", uint16(725), insts.OpSTSWI),
			Entry("sync", uint16(598), insts.OpSYNC),
			Entry("eieio", uint16(854), insts.OpEIEIO),
			Entry("or", uint16(444), insts.OpOR),
			Entry("extsw", uint16(986), insts.OpEXTSW),
		)

		It("should decode stwcx. with the record bit", func() {
			inst := decoder.Decode(insts.EncodeX(150, 3, 0, 4, true))
			Expect(inst.Op).To(Equal(insts.OpSTWCX))
			Expect(inst.Rc()).To(BeTrue())
		})

		It("should decode XO-form arithmetic with OE set", func() {
			// addo r3, r4, r5
			inst := decoder.Decode(insts.EncodeX(266|0x200, 3, 4, 5, false))
			Expect(inst.Op).To(Equal(insts.OpADD))
		})

		It("should decode mflr as mfspr", func() {
			inst := decoder.Decode(0x7C0802A6)
			Expect(inst.Op).To(Equal(insts.OpMFSPR))
			Expect(inst.Form).To(Equal(insts.FormXFX))
			Expect(inst.SPR()).To(Equal(uint16(8)))
		})
	})

	Describe("Branches", func() {
		It("should decode b and bl", func() {
			inst := decoder.Decode(insts.EncodeI(-4, false, false))
			Expect(inst.Op).To(Equal(insts.OpB))
			Expect(inst.Form).To(Equal(insts.FormI))
			Expect(inst.LI()).To(Equal(int64(-4)))
		})

		It("should decode bc", func() {
			inst := decoder.Decode(insts.EncodeB(12, 2, 8, false, false))
			Expect(inst.Op).To(Equal(insts.OpBC))
			Expect(inst.BD()).To(Equal(int64(8)))
		})

		It("should decode blr, bctr and isync", func() {
			Expect(decoder.Decode(insts.Blr).Op).To(Equal(insts.OpBCLR))
			Expect(decoder.Decode(insts.Bctr).Op).To(Equal(insts.OpBCCTR))
			Expect(decoder.Decode(insts.EncodeXL(150, 0, 0, false)).Op).To(Equal(insts.OpISYNC))
		})

		It("should decode sc", func() {
			inst := decoder.Decode(insts.Sc)
			Expect(inst.Op).To(Equal(insts.OpSC))
			Expect(inst.Op.IsBranch()).To(BeTrue())
		})
	})

	Describe("Unknown words", func() {
		It("should decode zero as unknown", func() {
			inst := decoder.Decode(0)
			Expect(inst.Op).To(Equal(insts.OpUnknown))
			Expect(inst.Form).To(Equal(insts.FormUnknown))
		})

		It("should keep the raw word", func() {
			inst := decoder.Decode(0xFFFFFFFF)
			Expect(inst.Word()).To(Equal(uint32(0xFFFFFFFF)))
		})
	})

	Describe("DecodeInto", func() {
		It("should reset a reused instruction", func() {
			inst := decoder.Decode(insts.Nop)
			Expect(inst.Op).To(Equal(insts.OpORI))

			decoder.DecodeInto(0, inst)
			Expect(inst.Op).To(Equal(insts.OpUnknown))
		})
	})
})
