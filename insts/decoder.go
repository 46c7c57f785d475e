package insts

// Form represents an instruction encoding form.
type Form uint8

// Instruction forms.
const (
	FormUnknown Form = iota
	FormD            // 16-bit displacement or immediate
	FormDS           // 14-bit scaled displacement with 2-bit extended opcode
	FormX            // register-register with 10-bit extended opcode
	FormXL           // branch-to-register and CR logical
	FormXFX          // move to/from special-purpose registers
	FormI            // unconditional branch
	FormB            // conditional branch
	FormM            // rotate with mask
	FormSC           // system call
)

// Instruction represents a decoded PowerPC instruction.
type Instruction struct {
	Fields

	Op   Op   // Operation code
	Form Form // Encoding form
}

// Word returns the raw instruction word.
func (i *Instruction) Word() uint32 {
	return uint32(i.Fields)
}

// Primary opcodes.
const (
	opcdMULLI  = 7
	opcdCMPLI  = 10
	opcdCMPI   = 11
	opcdADDIC  = 12
	opcdADDI   = 14
	opcdADDIS  = 15
	opcdBC     = 16
	opcdSC     = 17
	opcdB      = 18
	opcdXL     = 19
	opcdRLWINM = 21
	opcdORI    = 24
	opcdORIS   = 25
	opcdXORI   = 26
	opcdANDI   = 28
	opcdX      = 31
	opcdDSLoad = 58
	opcdDSStor = 62
)

var dFormOps = map[uint8]Op{
	opcdMULLI: OpMULLI,
	opcdCMPLI: OpCMPLI,
	opcdCMPI:  OpCMPI,
	opcdADDIC: OpADDIC,
	opcdADDI:  OpADDI,
	opcdADDIS: OpADDIS,
	opcdORI:   OpORI,
	opcdORIS:  OpORIS,
	opcdXORI:  OpXORI,
	opcdANDI:  OpANDI,
	32:        OpLWZ,
	33:        OpLWZU,
	34:        OpLBZ,
	35:        OpLBZU,
	36:        OpSTW,
	37:        OpSTWU,
	38:        OpSTB,
	39:        OpSTBU,
	40:        OpLHZ,
	41:        OpLHZU,
	42:        OpLHA,
	43:        OpLHAU,
	44:        OpSTH,
	45:        OpSTHU,
	46:        OpLMW,
	47:        OpSTMW,
	48:        OpLFS,
	49:        OpLFSU,
	50:        OpLFD,
	51:        OpLFDU,
	52:        OpSTFS,
	53:        OpSTFSU,
	54:        OpSTFD,
	55:        OpSTFDU,
}

var xFormOps = map[uint16]Op{
	0:   OpCMP,
	19:  OpMFCR,
	20:  OpLWARX,
	21:  OpLDX,
	23:  OpLWZX,
	28:  OpAND,
	32:  OpCMPL,
	40:  OpSUBF,
	53:  OpLDUX,
	55:  OpLWZUX,
	84:  OpLDARX,
	87:  OpLBZX,
	104: OpNEG,
	119: OpLBZUX,
	149: OpSTDX,
	150: OpSTWCX,
	151: OpSTWX,
	181: OpSTDUX,
	183: OpSTWUX,
	214: OpSTDCX,
	215: OpSTBX,
	235: OpMULLW,
	247: OpSTBUX,
	266: OpADD,
	279: OpLHZX,
	311: OpLHZUX,
	316: OpXOR,
	339: OpMFSPR,
	341: OpLWAX,
	343: OpLHAX,
	371: OpMFTB,
	373: OpLWAUX,
	375: OpLHAUX,
	407: OpSTHX,
	439: OpSTHUX,
	444: OpOR,
	467: OpMTSPR,
	532: OpLDBRX,
	533: OpLSWX,
	534: OpLWBRX,
	535: OpLFSX,
	567: OpLFSUX,
	597: OpLSWI,
	598: OpSYNC,
	599: OpLFDX,
	631: OpLFDUX,
	660: OpSTDBRX,
	661: OpSTSWX,
	662: OpSTWBRX,
	663: OpSTFSX,
	695: OpSTFSUX,
	725: OpSTSWI,
	727: OpSTFDX,
	759: OpSTFDUX,
	790: OpLHBRX,
	854: OpEIEIO,
	918: OpSTHBRX,
	922: OpEXTSH,
	954: OpEXTSB,
	982: OpICBI,
	983: OpSTFIWX,
	986: OpEXTSW,
}

// XO-form arithmetic opcodes carry an OE bit at bit 21, leaving a 9-bit
// extended opcode.
var xoFormOps = map[uint16]Op{
	40:  OpSUBF,
	104: OpNEG,
	235: OpMULLW,
	266: OpADD,
}

// Decoder decodes PowerPC machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new PowerPC instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit PowerPC instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Fields: Fields(word), Op: OpUnknown, Form: FormUnknown}
	d.DecodeInto(word, inst)
	return inst
}

// DecodeInto decodes word into an existing Instruction, avoiding an
// allocation on hot paths.
func (d *Decoder) DecodeInto(word uint32, inst *Instruction) {
	f := Fields(word)
	inst.Fields = f
	inst.Op = OpUnknown
	inst.Form = FormUnknown

	switch opcd := f.OPCD(); opcd {
	case opcdB:
		inst.Op, inst.Form = OpB, FormI
	case opcdBC:
		inst.Op, inst.Form = OpBC, FormB
	case opcdSC:
		// sc has bit 30 set; everything else in the word is reserved.
		if word&0x2 != 0 {
			inst.Op, inst.Form = OpSC, FormSC
		}
	case opcdXL:
		d.decodeXL(f, inst)
	case opcdX:
		d.decodeX(f, inst)
	case opcdRLWINM:
		inst.Op, inst.Form = OpRLWINM, FormM
	case opcdDSLoad:
		d.decodeDSLoad(f, inst)
	case opcdDSStor:
		d.decodeDSStore(f, inst)
	default:
		if op, ok := dFormOps[opcd]; ok {
			inst.Op, inst.Form = op, FormD
		}
	}
}

// decodeXL decodes primary opcode 19: bclr, bcctr and isync.
func (d *Decoder) decodeXL(f Fields, inst *Instruction) {
	inst.Form = FormXL

	switch f.XO() {
	case 16:
		inst.Op = OpBCLR
	case 528:
		inst.Op = OpBCCTR
	case 150:
		inst.Op = OpISYNC
	default:
		inst.Form = FormUnknown
	}
}

// decodeX decodes primary opcode 31.
func (d *Decoder) decodeX(f Fields, inst *Instruction) {
	xo := f.XO()

	if op, ok := xFormOps[xo]; ok {
		inst.Op = op
		inst.Form = FormX
		if op == OpMFSPR || op == OpMTSPR || op == OpMFTB {
			inst.Form = FormXFX
		}
		return
	}

	// Retry with the OE bit masked off (addo, subfo, ...).
	if op, ok := xoFormOps[xo&0x1FF]; ok {
		inst.Op = op
		inst.Form = FormX
	}
}

// decodeDSLoad decodes primary opcode 58: ld, ldu and lwa.
func (d *Decoder) decodeDSLoad(f Fields, inst *Instruction) {
	inst.Form = FormDS

	switch f.DSXO() {
	case 0:
		inst.Op = OpLD
	case 1:
		inst.Op = OpLDU
	case 2:
		inst.Op = OpLWA
	default:
		inst.Form = FormUnknown
	}
}

// decodeDSStore decodes primary opcode 62: std and stdu.
func (d *Decoder) decodeDSStore(f Fields, inst *Instruction) {
	inst.Form = FormDS

	switch f.DSXO() {
	case 0:
		inst.Op = OpSTD
	case 1:
		inst.Op = OpSTDU
	default:
		inst.Form = FormUnknown
	}
}
