package recompiler

import (
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/nucleus-emu/nucleus/emu"
	"github.com/nucleus-emu/nucleus/insts"
	"github.com/nucleus-emu/nucleus/recompiler/ir"
)

// Emitter is the primitive vocabulary the translator lowers instructions
// into. *ir.Builder implements it.
type Emitter interface {
	Const(t ir.Type, bits uint64) ir.Value
	Add(x, y ir.Value) ir.Value
	Sub(x, y ir.Value) ir.Value
	Mul(x, y ir.Value) ir.Value
	And(x, y ir.Value) ir.Value
	Or(x, y ir.Value) ir.Value
	Xor(x, y ir.Value) ir.Value
	Shl(x, n ir.Value) ir.Value
	Shr(x, n ir.Value) ir.Value
	Rotl32(x, n ir.Value) ir.Value
	ReadGPR(reg uint8) ir.Value
	WriteGPR(reg uint8, v ir.Value)
	ReadFPR(reg uint8) ir.Value
	WriteFPR(reg uint8, v ir.Value)
	ReadSPR(spr ir.SPR) ir.Value
	WriteSPR(spr ir.SPR, v ir.Value)
	Load(addr ir.Value, t ir.Type) ir.Value
	Store(addr, v ir.Value)
	SExt(v ir.Value, t ir.Type) ir.Value
	ZExt(v ir.Value, t ir.Type) ir.Value
	Trunc(v ir.Value, t ir.Type) ir.Value
	FPTrunc(v ir.Value) ir.Value
	FPExt(v ir.Value) ir.Value
	BitCast(v ir.Value, t ir.Type) ir.Value
	Unimplemented(name string)
}

// DefaultMaxFunctionLength bounds the instructions scanned for a blr.
const DefaultMaxFunctionLength = 0x4000

// Coverage reports, per opcode, how many instructions were lowered and how
// many became unimplemented markers.
type Coverage struct {
	Translated    map[insts.Op]uint64
	Unimplemented map[insts.Op]uint64

	// Rejected counts functions left out of a segment.
	Rejected uint64
}

// Ratio returns the fraction of translated instructions that were lowered
// to real primitives.
func (c Coverage) Ratio() float64 {
	var ok, missing uint64
	for _, n := range c.Translated {
		ok += n
	}
	for _, n := range c.Unimplemented {
		missing += n
	}
	if ok+missing == 0 {
		return 1
	}
	return float64(ok) / float64(ok+missing)
}

// Translator lowers decoded instructions into an Emitter. It is safe for
// concurrent use.
type Translator struct {
	logger    logr.Logger
	maxLength int

	translated    [insts.NumOps]atomic.Uint64
	unimplemented [insts.NumOps]atomic.Uint64
	rejected      atomic.Uint64
}

// Option configures a Translator.
type Option func(*Translator)

// WithLogger sets the logger.
func WithLogger(logger logr.Logger) Option {
	return func(t *Translator) {
		t.logger = logger
	}
}

// WithMaxFunctionLength sets the instruction limit of TranslateFunction.
func WithMaxFunctionLength(n int) Option {
	return func(t *Translator) {
		t.maxLength = n
	}
}

// NewTranslator creates a translator.
func NewTranslator(opts ...Option) *Translator {
	t := &Translator{
		logger:    logr.Discard(),
		maxLength: DefaultMaxFunctionLength,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Coverage returns a snapshot of the translation counters.
func (t *Translator) Coverage() Coverage {
	c := Coverage{
		Translated:    make(map[insts.Op]uint64),
		Unimplemented: make(map[insts.Op]uint64),
		Rejected:      t.rejected.Load(),
	}
	for op := range t.translated {
		if n := t.translated[op].Load(); n > 0 {
			c.Translated[insts.Op(op)] = n
		}
		if n := t.unimplemented[op].Load(); n > 0 {
			c.Unimplemented[insts.Op(op)] = n
		}
	}
	return c
}

// Translate lowers one non-branching instruction. It returns false if the
// instruction was emitted as an unimplemented marker.
func (t *Translator) Translate(b Emitter, inst *insts.Instruction) bool {
	fn := translators[inst.Op]
	if fn == nil || inst.Op.Unimplemented() || !fn(b, inst) {
		b.Unimplemented(inst.Op.String())
		t.unimplemented[inst.Op].Add(1)
		return false
	}
	t.translated[inst.Op].Add(1)
	return true
}

// translators returns false when the instruction could only be partly
// lowered and must be flagged.
var translators [insts.NumOps]func(b Emitter, inst *insts.Instruction) bool

func init() {
	for op := insts.Op(0); op < insts.NumOps; op++ {
		if a, ok := op.Access(); ok && !op.Unimplemented() {
			translators[op] = func(b Emitter, inst *insts.Instruction) bool {
				translateLoadStore(b, inst.Fields, a)
				return true
			}
		}
	}

	translators[insts.OpADDI] = translateADDI
	translators[insts.OpADDIS] = translateADDIS
	translators[insts.OpMULLI] = translateMULLI
	translators[insts.OpORI] = translateORI
	translators[insts.OpORIS] = translateORIS
	translators[insts.OpXORI] = translateXORI
	translators[insts.OpANDI] = translateANDI
	translators[insts.OpADD] = translateADD
	translators[insts.OpSUBF] = translateSUBF
	translators[insts.OpNEG] = translateNEG
	translators[insts.OpAND] = translateAND
	translators[insts.OpOR] = translateOR
	translators[insts.OpXOR] = translateXOR
	translators[insts.OpMULLW] = translateMULLW
	translators[insts.OpEXTSB] = translateEXTSB
	translators[insts.OpEXTSH] = translateEXTSH
	translators[insts.OpEXTSW] = translateEXTSW
	translators[insts.OpRLWINM] = translateRLWINM
	translators[insts.OpMFSPR] = translateMFSPR
	translators[insts.OpMTSPR] = translateMTSPR
}

/** Load / Store **/

var intTypes = [...]ir.Type{1: ir.I8, 2: ir.I16, 4: ir.I32, 8: ir.I64}

// effectiveAddress emits the address computation of a load or store.
func effectiveAddress(b Emitter, f insts.Fields, a insts.Access) ir.Value {
	switch a.Mode {
	case insts.AddrBase:
		disp := b.Const(ir.I64, uint64(a.Displacement(f)))
		if f.RA() == 0 {
			return disp
		}
		return b.Add(b.ReadGPR(f.RA()), disp)
	case insts.AddrUpdate:
		return b.Add(b.ReadGPR(f.RA()), b.Const(ir.I64, uint64(a.Displacement(f))))
	default:
		return b.Add(b.ReadGPR(f.RA()), b.ReadGPR(f.RB()))
	}
}

func translateLoadStore(b Emitter, f insts.Fields, a insts.Access) {
	ea := effectiveAddress(b, f, a)

	switch {
	case a.Store && a.Float:
		v := b.ReadFPR(f.FRS())
		if a.Width == 4 {
			v = b.FPTrunc(v)
		}
		b.Store(ea, v)
	case a.Store:
		v := b.ReadGPR(f.RS())
		if a.Width < 8 {
			v = b.Trunc(v, intTypes[a.Width])
		}
		b.Store(ea, v)
	}

	if a.Store {
		if a.Mode.Writeback() {
			b.WriteGPR(f.RA(), ea)
		}
		return
	}

	var value ir.Value
	if a.Float {
		if a.Width == 4 {
			value = b.FPExt(b.Load(ea, ir.F32))
		} else {
			value = b.Load(ea, ir.F64)
		}
	} else {
		value = b.Load(ea, intTypes[a.Width])
		switch {
		case a.Width == 8:
		case a.Ext == insts.ExtSign:
			value = b.SExt(value, ir.I64)
		default:
			value = b.ZExt(value, ir.I64)
		}
	}

	if a.Mode.Writeback() {
		b.WriteGPR(f.RA(), ea)
	}
	if a.Float {
		b.WriteFPR(f.FRD(), value)
	} else {
		b.WriteGPR(f.RD(), value)
	}
}

/** Integer **/

func gprOrZero(b Emitter, reg uint8) ir.Value {
	if reg == 0 {
		return b.Const(ir.I64, 0)
	}
	return b.ReadGPR(reg)
}

func imm(b Emitter, v int64) ir.Value {
	return b.Const(ir.I64, uint64(v))
}

// recordable writes a result. CR is not part of the compiled frame, so
// record forms are flagged as partial.
func recordable(b Emitter, inst *insts.Instruction, rd uint8, v ir.Value) bool {
	b.WriteGPR(rd, v)
	return !inst.Rc()
}

func translateADDI(b Emitter, inst *insts.Instruction) bool {
	b.WriteGPR(inst.RD(), b.Add(gprOrZero(b, inst.RA()), imm(b, inst.SIMM())))
	return true
}

func translateADDIS(b Emitter, inst *insts.Instruction) bool {
	b.WriteGPR(inst.RD(), b.Add(gprOrZero(b, inst.RA()), imm(b, inst.SIMM()<<16)))
	return true
}

func translateMULLI(b Emitter, inst *insts.Instruction) bool {
	b.WriteGPR(inst.RD(), b.Mul(b.ReadGPR(inst.RA()), imm(b, inst.SIMM())))
	return true
}

func translateORI(b Emitter, inst *insts.Instruction) bool {
	b.WriteGPR(inst.RA(), b.Or(b.ReadGPR(inst.RS()), b.Const(ir.I64, inst.UIMM())))
	return true
}

func translateORIS(b Emitter, inst *insts.Instruction) bool {
	b.WriteGPR(inst.RA(), b.Or(b.ReadGPR(inst.RS()), b.Const(ir.I64, inst.UIMM()<<16)))
	return true
}

func translateXORI(b Emitter, inst *insts.Instruction) bool {
	b.WriteGPR(inst.RA(), b.Xor(b.ReadGPR(inst.RS()), b.Const(ir.I64, inst.UIMM())))
	return true
}

// andi. always records into CR0.
func translateANDI(b Emitter, inst *insts.Instruction) bool {
	b.WriteGPR(inst.RA(), b.And(b.ReadGPR(inst.RS()), b.Const(ir.I64, inst.UIMM())))
	return false
}

func translateADD(b Emitter, inst *insts.Instruction) bool {
	return recordable(b, inst, inst.RD(), b.Add(b.ReadGPR(inst.RA()), b.ReadGPR(inst.RB())))
}

func translateSUBF(b Emitter, inst *insts.Instruction) bool {
	return recordable(b, inst, inst.RD(), b.Sub(b.ReadGPR(inst.RB()), b.ReadGPR(inst.RA())))
}

func translateNEG(b Emitter, inst *insts.Instruction) bool {
	return recordable(b, inst, inst.RD(), b.Sub(b.Const(ir.I64, 0), b.ReadGPR(inst.RA())))
}

func translateAND(b Emitter, inst *insts.Instruction) bool {
	return recordable(b, inst, inst.RA(), b.And(b.ReadGPR(inst.RS()), b.ReadGPR(inst.RB())))
}

func translateOR(b Emitter, inst *insts.Instruction) bool {
	return recordable(b, inst, inst.RA(), b.Or(b.ReadGPR(inst.RS()), b.ReadGPR(inst.RB())))
}

func translateXOR(b Emitter, inst *insts.Instruction) bool {
	return recordable(b, inst, inst.RA(), b.Xor(b.ReadGPR(inst.RS()), b.ReadGPR(inst.RB())))
}

func translateMULLW(b Emitter, inst *insts.Instruction) bool {
	x := b.SExt(b.Trunc(b.ReadGPR(inst.RA()), ir.I32), ir.I64)
	y := b.SExt(b.Trunc(b.ReadGPR(inst.RB()), ir.I32), ir.I64)
	return recordable(b, inst, inst.RD(), b.Mul(x, y))
}

func extend(b Emitter, inst *insts.Instruction, t ir.Type) bool {
	v := b.SExt(b.Trunc(b.ReadGPR(inst.RS()), t), ir.I64)
	return recordable(b, inst, inst.RA(), v)
}

func translateEXTSB(b Emitter, inst *insts.Instruction) bool { return extend(b, inst, ir.I8) }
func translateEXTSH(b Emitter, inst *insts.Instruction) bool { return extend(b, inst, ir.I16) }
func translateEXTSW(b Emitter, inst *insts.Instruction) bool { return extend(b, inst, ir.I32) }

func translateRLWINM(b Emitter, inst *insts.Instruction) bool {
	rot := b.ZExt(b.Rotl32(b.Trunc(b.ReadGPR(inst.RS()), ir.I32), b.Const(ir.I32, uint64(inst.SH()))), ir.I64)
	dup := b.Or(rot, b.Shl(rot, b.Const(ir.I64, 32)))
	mask := b.Const(ir.I64, emu.Mask64(inst.MB()+32, inst.ME()+32))
	return recordable(b, inst, inst.RA(), b.And(dup, mask))
}

func spr(n uint16) (ir.SPR, bool) {
	switch n {
	case emu.SPRLR:
		return ir.LR, true
	case emu.SPRCTR:
		return ir.CTR, true
	case emu.SPRXER:
		return ir.XER, true
	default:
		return 0, false
	}
}

func translateMFSPR(b Emitter, inst *insts.Instruction) bool {
	r, ok := spr(inst.SPR())
	if !ok {
		return false
	}
	b.WriteGPR(inst.RD(), b.ReadSPR(r))
	return true
}

func translateMTSPR(b Emitter, inst *insts.Instruction) bool {
	r, ok := spr(inst.SPR())
	if !ok {
		return false
	}
	b.WriteSPR(r, b.ReadGPR(inst.RS()))
	return true
}
