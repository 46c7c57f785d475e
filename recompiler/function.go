package recompiler

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/nucleus-emu/nucleus/insts"
	"github.com/nucleus-emu/nucleus/recompiler/ir"
)

// FunctionSpec names a guest function to translate and its calling
// convention.
type FunctionSpec struct {
	Addr uint32
	Name string
	In   []InputKind
	Out  OutputKind
}

func (s FunctionSpec) label() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("sub_%08x", s.Addr)
}

// isReturn reports whether inst is an unconditional blr.
func isReturn(inst *insts.Instruction) bool {
	return inst.Op == insts.OpBCLR && inst.BO()&0x14 == 0x14 && !inst.LK()
}

// TranslateFunction lowers the straight-line guest function at spec.Addr,
// up to and excluding its terminating blr, and compiles it over mem.
func (t *Translator) TranslateFunction(mem ir.Memory, spec FunctionSpec) (*Function, error) {
	decoder := insts.NewDecoder()
	b := ir.NewBuilder()

	var inst insts.Instruction
	pc := spec.Addr
	n := 0
	for {
		if n >= t.maxLength {
			return nil, fmt.Errorf("%s at %#08x: %w", spec.label(), spec.Addr, ErrFunctionTooLong)
		}

		decoder.DecodeInto(mem.Read32(uint64(pc)), &inst)
		if isReturn(&inst) {
			break
		}
		if inst.Op.IsBranch() {
			return nil, fmt.Errorf("%s: %s at %#08x: %w", spec.label(), inst.Op, pc, ErrUnsupportedControlFlow)
		}

		t.Translate(b, &inst)
		pc += 4
		n++
	}

	p := b.Build(spec.Out)
	f := NewFunction(spec.Addr, spec.label(), spec.In, spec.Out, ir.Compile(p, mem))
	f.program = p

	t.logger.V(2).Info("translated function",
		"name", f.Name, "addr", fmt.Sprintf("%#08x", f.Addr),
		"instructions", n, "primitives", b.Len(), "unimplemented", len(p.Markers()))

	return f, nil
}

// TranslateSegment translates the functions of the range [start, end)
// concurrently. Functions the translator cannot lower are logged and left
// out of the segment; only cancellation of ctx fails the segment.
func (t *Translator) TranslateSegment(
	ctx context.Context, mem ir.Memory, start, end uint32, specs []FunctionSpec,
) (*Segment, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	functions := make([]*Function, len(specs))
	for i, spec := range specs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			f, err := t.TranslateFunction(mem, spec)
			switch {
			case errors.Is(err, ErrUnsupportedControlFlow), errors.Is(err, ErrFunctionTooLong):
				t.rejected.Add(1)
				t.logger.V(1).Info("skipping function", "reason", err.Error())
				return nil
			case err != nil:
				return err
			}

			functions[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("translate segment %#08x-%#08x: %w", start, end, err)
	}

	seg := NewSegment(start, end)
	for _, f := range functions {
		if f != nil {
			seg.Functions[f.Addr] = f
		}
	}

	t.logger.V(1).Info("translated segment",
		"start", fmt.Sprintf("%#08x", start), "end", fmt.Sprintf("%#08x", end),
		"functions", len(seg.Functions), "requested", len(specs))

	return seg, nil
}
