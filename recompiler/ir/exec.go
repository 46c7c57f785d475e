package ir

import (
	"math"
	"math/bits"
)

// Frame is the register state a compiled function runs on.
type Frame struct {
	GPR [32]uint64
	FPR [32]float64
	LR  uint64
	CTR uint64
	XER uint64
}

type executor struct {
	prog  *Program
	mem   Memory
	frame Frame
	vals  []uint64
}

// Compile turns p into a callable function over mem. Each call runs on a
// fresh frame, so the returned function is safe for concurrent use as long
// as mem is.
//
// The frame is seeded from ctx (r1, r2, r13, LR) and from args: integer
// arguments fill r3 upwards and float arguments fill f1 upwards, each kind
// counted separately. Vector arguments are not supported and are skipped.
func Compile(p *Program, mem Memory) NativeFunc {
	return func(ctx Context, args []GenericValue) GenericValue {
		e := &executor{
			prog: p,
			mem:  mem,
			vals: make([]uint64, p.Slots),
		}
		e.seed(ctx, args)
		e.run()
		return e.result()
	}
}

func (e *executor) seed(ctx Context, args []GenericValue) {
	f := &e.frame
	f.GPR[1] = ctx.SP
	f.GPR[2] = ctx.TOC
	f.GPR[13] = ctx.TLS
	f.LR = ctx.LR

	nextGPR, nextFPR := 3, 1
	for _, arg := range args {
		switch arg.Kind {
		case KindInt:
			if nextGPR < 32 {
				f.GPR[nextGPR] = arg.Int
				nextGPR++
			}
		case KindFloat:
			if nextFPR < 32 {
				f.FPR[nextFPR] = arg.Float
				nextFPR++
			}
		}
	}
}

func (e *executor) result() GenericValue {
	switch e.prog.Out {
	case KindInt:
		return IntValue(e.frame.GPR[3])
	case KindFloat:
		return FloatValue(e.frame.FPR[1])
	default:
		return GenericValue{}
	}
}

func (e *executor) run() {
	for i := range e.prog.Instrs {
		p := &e.prog.Instrs[i]
		dispatchTab[p.Op](e, p)
	}
}

var dispatchTab = [numOpCodes]func(e *executor, p *Instr){
	OpConst:         (*executor).execConst,
	OpAdd:           (*executor).execAdd,
	OpSub:           (*executor).execSub,
	OpMul:           (*executor).execMul,
	OpAnd:           (*executor).execAnd,
	OpOr:            (*executor).execOr,
	OpXor:           (*executor).execXor,
	OpShl:           (*executor).execShl,
	OpShr:           (*executor).execShr,
	OpRotl32:        (*executor).execRotl32,
	OpReadGPR:       (*executor).execReadGPR,
	OpWriteGPR:      (*executor).execWriteGPR,
	OpReadFPR:       (*executor).execReadFPR,
	OpWriteFPR:      (*executor).execWriteFPR,
	OpReadSPR:       (*executor).execReadSPR,
	OpWriteSPR:      (*executor).execWriteSPR,
	OpLoad:          (*executor).execLoad,
	OpStore:         (*executor).execStore,
	OpSExt:          (*executor).execSExt,
	OpZExt:          (*executor).execZExt,
	OpTrunc:         (*executor).execTrunc,
	OpFPTrunc:       (*executor).execFPTrunc,
	OpFPExt:         (*executor).execFPExt,
	OpBitCast:       (*executor).execBitCast,
	OpUnimplemented: (*executor).execUnimplemented,
}

// Float slots hold IEEE bit patterns: f32 in the low word, f64 in all 64
// bits.

func (e *executor) execConst(p *Instr) {
	e.vals[p.Dst] = p.Imm
}

func (e *executor) execAdd(p *Instr) {
	e.vals[p.Dst] = (e.vals[p.A] + e.vals[p.B]) & p.Type.mask()
}

func (e *executor) execSub(p *Instr) {
	e.vals[p.Dst] = (e.vals[p.A] - e.vals[p.B]) & p.Type.mask()
}

func (e *executor) execMul(p *Instr) {
	e.vals[p.Dst] = (e.vals[p.A] * e.vals[p.B]) & p.Type.mask()
}

func (e *executor) execAnd(p *Instr) {
	e.vals[p.Dst] = e.vals[p.A] & e.vals[p.B]
}

func (e *executor) execOr(p *Instr) {
	e.vals[p.Dst] = e.vals[p.A] | e.vals[p.B]
}

func (e *executor) execXor(p *Instr) {
	e.vals[p.Dst] = e.vals[p.A] ^ e.vals[p.B]
}

func (e *executor) execShl(p *Instr) {
	e.vals[p.Dst] = (e.vals[p.A] << e.vals[p.B]) & p.Type.mask()
}

func (e *executor) execShr(p *Instr) {
	n := e.vals[p.B]
	if n >= uint64(8*p.Type.Size()) {
		e.vals[p.Dst] = 0
		return
	}
	e.vals[p.Dst] = e.vals[p.A] >> n
}

func (e *executor) execRotl32(p *Instr) {
	e.vals[p.Dst] = uint64(bits.RotateLeft32(uint32(e.vals[p.A]), int(e.vals[p.B]&31)))
}

func (e *executor) execReadGPR(p *Instr) {
	e.vals[p.Dst] = e.frame.GPR[p.Imm]
}

func (e *executor) execWriteGPR(p *Instr) {
	e.frame.GPR[p.Imm] = e.vals[p.A]
}

func (e *executor) execReadFPR(p *Instr) {
	e.vals[p.Dst] = math.Float64bits(e.frame.FPR[p.Imm])
}

func (e *executor) execWriteFPR(p *Instr) {
	e.frame.FPR[p.Imm] = math.Float64frombits(e.vals[p.A])
}

func (e *executor) spr(n uint64) *uint64 {
	switch SPR(n) {
	case XER:
		return &e.frame.XER
	case LR:
		return &e.frame.LR
	case CTR:
		return &e.frame.CTR
	default:
		return nil
	}
}

// Unknown SPRs read as zero and ignore writes.
func (e *executor) execReadSPR(p *Instr) {
	if r := e.spr(p.Imm); r != nil {
		e.vals[p.Dst] = *r
	} else {
		e.vals[p.Dst] = 0
	}
}

func (e *executor) execWriteSPR(p *Instr) {
	if r := e.spr(p.Imm); r != nil {
		*r = e.vals[p.A]
	}
}

func (e *executor) execLoad(p *Instr) {
	addr := e.vals[p.A]
	switch p.Type.Size() {
	case 1:
		e.vals[p.Dst] = uint64(e.mem.Read8(addr))
	case 2:
		e.vals[p.Dst] = uint64(e.mem.Read16(addr))
	case 4:
		e.vals[p.Dst] = uint64(e.mem.Read32(addr))
	default:
		e.vals[p.Dst] = e.mem.Read64(addr)
	}
}

func (e *executor) execStore(p *Instr) {
	addr, v := e.vals[p.A], e.vals[p.B]
	switch p.Type.Size() {
	case 1:
		e.mem.Write8(addr, uint8(v))
	case 2:
		e.mem.Write16(addr, uint16(v))
	case 4:
		e.mem.Write32(addr, uint32(v))
	default:
		e.mem.Write64(addr, v)
	}
}

func (e *executor) execSExt(p *Instr) {
	v := e.vals[p.A]
	shift := 64 - 8*uint(Type(p.Imm).Size())
	e.vals[p.Dst] = uint64(int64(v<<shift)>>shift) & p.Type.mask()
}

func (e *executor) execZExt(p *Instr) {
	e.vals[p.Dst] = e.vals[p.A] & p.Type.mask()
}

func (e *executor) execTrunc(p *Instr) {
	e.vals[p.Dst] = e.vals[p.A] & p.Type.mask()
}

func (e *executor) execFPTrunc(p *Instr) {
	e.vals[p.Dst] = uint64(math.Float32bits(float32(math.Float64frombits(e.vals[p.A]))))
}

func (e *executor) execFPExt(p *Instr) {
	e.vals[p.Dst] = math.Float64bits(float64(math.Float32frombits(uint32(e.vals[p.A]))))
}

func (e *executor) execBitCast(p *Instr) {
	e.vals[p.Dst] = e.vals[p.A]
}

func (e *executor) execUnimplemented(_ *Instr) {
	e.prog.hits.Add(1)
}
