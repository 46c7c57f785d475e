// Package main provides the nucleus command. It loads a PPC64 ELF program,
// runs its main thread through the interpreter or the recompiler and reports
// what was executed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"golang.org/x/term"

	"github.com/nucleus-emu/nucleus/config"
	"github.com/nucleus-emu/nucleus/insts"
	"github.com/nucleus-emu/nucleus/loader"
	"github.com/nucleus-emu/nucleus/memory"
	"github.com/nucleus-emu/nucleus/ppu"
	"github.com/nucleus-emu/nucleus/recompiler"
)

var (
	configPath = flag.String("config", "", "Path to configuration JSON file")
	mode       = flag.String("mode", "", "Execution mode: interpreter or recompiler")
	verbosity  = flag.Int("v", 0, "Log verbosity")
)

// Guest functions of unknown signature receive r3-r10 and return r3.
const symbolArgs = 8

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: nucleus [options] <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Verbosity)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	exitCode, err := run(ctx, cfg, logger, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(int(exitCode))
}

// loadConfig reads the config file, if any, and applies flags on top.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Translator = *mode
		case "v":
			cfg.Verbosity = *verbosity
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger logs text to a terminal and JSON otherwise.
func newLogger(v int) logr.Logger {
	opts := funcr.Options{Verbosity: v}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return funcr.New(func(prefix, args string) {
			if prefix != "" {
				fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
				return
			}
			fmt.Fprintln(os.Stderr, args)
		}, opts)
	}

	opts.LogTimestamp = true
	return funcr.NewJSON(func(obj string) {
		fmt.Fprintln(os.Stderr, obj)
	}, opts)
}

func run(ctx context.Context, cfg *config.Config, logger logr.Logger, path string) (int64, error) {
	prog, err := loader.Load(path)
	if err != nil {
		return 0, fmt.Errorf("loading program: %w", err)
	}

	mem := memory.New()
	prog.Install(mem)
	logger.Info("program loaded", "path", path,
		"entry", fmt.Sprintf("%#08x", prog.Entry), "segments", len(prog.Segments),
		"functions", len(prog.Functions))

	sys := ppu.NewSystem(mem,
		ppu.WithLogger(logger),
		ppu.WithPageSize(cfg.PageSize),
		ppu.WithInterpreterOptions(cfg.InterpreterOptions()...),
	)

	var translator *recompiler.Translator
	if cfg.Mode() == ppu.ModeRecompiler {
		translator = recompiler.NewTranslator(append(cfg.TranslatorOptions(),
			recompiler.WithLogger(logger.WithName("recompiler")))...)
		if err := translate(ctx, translator, sys, prog); err != nil {
			return 0, err
		}
	}

	thread, err := ppu.NewThread(sys, prog.Entry, cfg.Mode())
	if err != nil {
		return 0, err
	}
	defer func() { _ = thread.Close() }()

	if err := thread.Start(); err != nil {
		return 0, err
	}

	select {
	case <-thread.Done():
	case <-ctx.Done():
		logger.Info("interrupted, stopping main thread")
		thread.Stop()
	}
	if err := thread.Wait(); err != nil {
		return 0, err
	}

	report(thread, sys, translator)

	if code, ok := thread.ExitCode(); ok {
		return code, nil
	}
	state, err := thread.Snapshot()
	if err != nil {
		return 0, err
	}
	return int64(int32(state.GPR[3])), nil
}

// translate compiles the entry function and every function symbol, one
// segment per executable ELF segment.
func translate(ctx context.Context, t *recompiler.Translator, sys *ppu.System, prog *loader.Program) error {
	mem := sys.Memory()
	entry := mem.Read32(uint64(prog.Entry))

	specs := make(map[uint32][]recompiler.FunctionSpec)
	seen := make(map[uint32]bool)
	add := func(addr uint32, name string) {
		seg, ok := prog.ExecutableSegment(addr)
		if !ok || seen[addr] {
			return
		}
		seen[addr] = true

		in := make([]recompiler.InputKind, symbolArgs)
		for i := range in {
			in[i] = recompiler.Int
		}
		specs[seg.VirtAddr] = append(specs[seg.VirtAddr], recompiler.FunctionSpec{
			Addr: addr,
			Name: name,
			In:   in,
			Out:  recompiler.Int,
		})
	}

	add(entry, "entry")
	for _, sym := range prog.Functions {
		add(sym.Addr, sym.Name)
	}

	for _, seg := range prog.Segments {
		if seg.Flags&loader.SegmentFlagExecute == 0 {
			continue
		}

		translated, err := t.TranslateSegment(ctx, mem, seg.VirtAddr, seg.End(), specs[seg.VirtAddr])
		if err != nil {
			return err
		}
		sys.LoadSegment(translated)
	}

	return nil
}

func report(t *ppu.Thread, sys *ppu.System, translator *recompiler.Translator) {
	fmt.Printf("\nMode: %s\n", t.Mode())
	fmt.Printf("Steps executed: %d\n", t.Steps())
	fmt.Printf("Final PC: 0x%08X\n", t.PC())

	if interp := t.Interpreter(); interp != nil {
		printUnimplemented(interp.Unimplemented())
		if dc := interp.DecodeCache(); dc != nil {
			stats := dc.Stats()
			fmt.Printf("Decode cache: %d lookups, %d hits, %d misses\n",
				stats.Lookups, stats.Hits, stats.Misses)
		}
	}

	if translator != nil {
		cov := translator.Coverage()
		d := sys.Dispatcher()
		fmt.Printf("Functions invoked: %d (misses %d)\n", d.Invocations(), d.Misses())
		fmt.Printf("Translation coverage: %.1f%% (%d functions rejected)\n", cov.Ratio()*100, cov.Rejected)
		printUnimplemented(cov.Unimplemented)
	}
}

func printUnimplemented(counts map[insts.Op]uint64) {
	if len(counts) == 0 {
		return
	}

	ops := make([]insts.Op, 0, len(counts))
	for op := range counts {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if counts[ops[i]] != counts[ops[j]] {
			return counts[ops[i]] > counts[ops[j]]
		}
		return ops[i] < ops[j]
	})

	fmt.Printf("Unimplemented instructions:\n")
	for _, op := range ops {
		fmt.Printf("  %-8s %d\n", op, counts[op])
	}
}
