// Package emu provides functional PowerPC (PPU) emulation.
package emu

import "io"

// lv2 system call numbers handled by the default handler.
const (
	SyscallProcessExit uint64 = 22  // sys_process_exit(status)
	SyscallTTYWrite    uint64 = 403 // sys_tty_write(ch, buf, len, pwritelen)
)

// lv2 error codes, returned as sign-extended 32-bit values in r3.
const (
	CellOK     uint32 = 0
	CellEINVAL uint32 = 0x80010002
	CellENOSYS uint32 = 0x80010003
	CellEIO    uint32 = 0x8001002B
)

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64
}

// SyscallHandler is the interface for handling lv2 syscalls.
type SyscallHandler interface {
	// Handle executes the syscall indicated by the register file state.
	// lv2 syscall convention:
	//   - Syscall number in r11
	//   - Arguments in r3-r10
	//   - Return value in r3
	Handle() SyscallResult
}

// DefaultSyscallHandler provides the minimal lv2 services a bare guest
// program needs: exiting and writing to the TTY. Everything else answers
// CELL_ENOSYS.
type DefaultSyscallHandler struct {
	regFile *RegFile
	memory  Bus
	stdout  io.Writer
	stderr  io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(regFile *RegFile, memory Bus, stdout, stderr io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile: regFile,
		memory:  memory,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	switch h.regFile.ReadGPR(11) {
	case SyscallProcessExit:
		return h.handleExit()
	case SyscallTTYWrite:
		return h.handleTTYWrite()
	default:
		h.setResult(CellENOSYS)
		return SyscallResult{}
	}
}

// handleExit handles sys_process_exit.
func (h *DefaultSyscallHandler) handleExit() SyscallResult {
	return SyscallResult{
		Exited:   true,
		ExitCode: int64(int32(h.regFile.ReadGPR(3))),
	}
}

// handleTTYWrite handles sys_tty_write. Channel 0 goes to stdout, any other
// channel to stderr.
func (h *DefaultSyscallHandler) handleTTYWrite() SyscallResult {
	ch := h.regFile.ReadGPR(3)
	bufPtr := uint64(uint32(h.regFile.ReadGPR(4)))
	length := uint32(h.regFile.ReadGPR(5))
	pWritten := uint64(uint32(h.regFile.ReadGPR(6)))

	writer := h.stderr
	if ch == 0 {
		writer = h.stdout
	}
	if writer == nil {
		h.setResult(CellEINVAL)
		return SyscallResult{}
	}

	buf := make([]byte, length)
	for i := range buf {
		buf[i] = h.memory.Read8(bufPtr + uint64(i))
	}

	n, err := writer.Write(buf)
	if err != nil {
		h.setResult(CellEIO)
		return SyscallResult{}
	}

	if pWritten != 0 {
		h.memory.Write32(pWritten, uint32(n))
	}
	h.setResult(CellOK)
	return SyscallResult{}
}

// setResult stores an lv2 status code in r3.
func (h *DefaultSyscallHandler) setResult(code uint32) {
	h.regFile.WriteGPR(3, uint64(int64(int32(code))))
}
