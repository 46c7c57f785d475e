package ppu

import (
	"fmt"
	"strings"

	"github.com/nucleus-emu/nucleus/emu"
)

// Mode selects how a thread executes guest code.
type Mode uint8

// Execution modes.
const (
	ModeInterpreter Mode = iota
	ModeRecompiler
)

func (m Mode) String() string {
	switch m {
	case ModeInterpreter:
		return "interpreter"
	case ModeRecompiler:
		return "recompiler"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses "interpreter" or "recompiler".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "interpreter":
		return ModeInterpreter, nil
	case "recompiler":
		return ModeRecompiler, nil
	default:
		return 0, fmt.Errorf("unknown translator %q", s)
	}
}

// strategy advances a thread by one unit of work: one instruction for the
// interpreter, one compiled function for the recompiler. executed reports
// whether a unit ran; more is false once the thread has nothing left to run.
type strategy interface {
	step() (executed, more bool, err error)
}

type interpreterStrategy struct {
	state  *emu.RegFile
	interp *emu.Interpreter
	exit   func(code int64)
}

func (s *interpreterStrategy) step() (bool, bool, error) {
	if s.state.PC == 0 {
		return false, false, nil
	}

	result := s.interp.Step()
	switch {
	case result.Err != nil:
		return false, false, result.Err
	case result.Exited:
		s.exit(result.ExitCode)
		return true, false, nil
	}
	return true, true, nil
}

// recompilerStrategy treats a dispatch miss as the end of translated work.
// After a compiled function returns, execution continues at LR, the
// caller's return address.
type recompilerStrategy struct {
	state      *emu.RegFile
	dispatcher *Dispatcher
}

func (s *recompilerStrategy) step() (bool, bool, error) {
	if s.state.PC == 0 {
		return false, false, nil
	}

	if !s.dispatcher.Dispatch(s.state) {
		return false, false, nil
	}
	s.state.PC = uint32(s.state.LR) &^ 3
	return true, true, nil
}
