// Package ecall implements the guest syscall shim: it services ECALL by
// reading the syscall number and arguments from the guest's register
// file per the RISC-V Linux calling convention (number in a7/x17,
// arguments in a0..a6/x10..x16, return value in a0), and dispatches the
// handful of syscalls this emulator recognizes.
//
// Grounded on original_source/src/cpu/fuzzer.rs's Fuzzer::syscall.
package ecall

import (
	"fmt"
	"io"
	"log"

	"github.com/riscfuzz/rv64emu/pkg/cpu"
)

// Recognized syscall numbers, RISC-V Linux ABI.
const (
	SysRead  = 63
	SysWrite = 64
	SysFstat = 80
	SysBrk   = 214
)

// Well-known file descriptors. Any other fd is unsupported.
const (
	FDStdin  = 0
	FDStdout = 1
)

// InputProvider supplies one fuzz-input buffer per `read` syscall. See
// package corpus for the concrete implementation.
type InputProvider interface {
	NextInput() []byte
}

// ErrUnsupportedSyscall indicates a recognized syscall number used with
// an fd this emulator does not support (e.g. read from a non-stdin fd).
// Per spec §4.E/§7, an *unrecognized* syscall number is logged, not
// fatal; this error is reserved for recognized-but-unsupported usage.
var ErrUnsupportedSyscall = fmt.Errorf("ecall: unsupported syscall usage")

// Handler implements cpu.ECALLHandler.
type Handler struct {
	// Input supplies read() buffers. Required.
	Input InputProvider

	// Stdout, if non-nil, receives write() payloads (spec's "stdout
	// redirection enabled" gate). Nil means write() is a no-op that
	// still reports the byte count, matching the reference's
	// redirect_stdout=false path.
	Stdout io.Writer
}

var _ cpu.ECALLHandler = (*Handler)(nil)

// HandleECALL dispatches on a7 and implements read/write/fstat/brk. See
// package-level doc for the register ABI.
func (h *Handler) HandleECALL(c *cpu.CPU) error {
	num := c.Regs.Get(17) // a7
	a0 := c.Regs.Get(10)
	a1 := c.Regs.Get(11)
	a2 := c.Regs.Get(12)

	switch num {
	case SysRead:
		return h.sysRead(c, a0, a1, a2)
	case SysWrite:
		return h.sysWrite(c, a0, a1, a2)
	case SysFstat:
		c.Regs.Set(10, 0)
		return nil
	case SysBrk:
		c.Regs.Set(10, 0)
		return nil
	default:
		log.Printf("ecall: unknown syscall number %d (a0=%#x a1=%#x a2=%#x)", num, a0, a1, a2)
		c.Regs.Set(10, 0)
		return nil
	}
}

// sysRead implements read(fd, ptr, len). fd must be stdin. The pulled
// input buffer is written to guest memory in full: len is advisory and
// not used to truncate the write (spec §9 Q5 — for a fuzzer this is
// often intentional, injecting larger-than-requested inputs).
func (h *Handler) sysRead(c *cpu.CPU, fd, ptr, length uint64) error {
	if fd != FDStdin {
		return fmt.Errorf("%w: read from fd %d, only stdin (0) is supported", ErrUnsupportedSyscall, fd)
	}
	buf := h.Input.NextInput()
	if err := c.Mem.Write(ptr, buf); err != nil {
		return fmt.Errorf("ecall: read: writing %d bytes to %#x: %w", len(buf), ptr, err)
	}
	c.Regs.Set(10, uint64(len(buf)))
	_ = length // advisory only, see doc comment
	return nil
}

// sysWrite implements write(fd, ptr, len). fd must be stdout. If Stdout
// is set, len bytes are copied from guest memory and published there.
func (h *Handler) sysWrite(c *cpu.CPU, fd, ptr, length uint64) error {
	if fd != FDStdout {
		return fmt.Errorf("%w: write to fd %d, only stdout (1) is supported", ErrUnsupportedSyscall, fd)
	}
	if h.Stdout != nil {
		buf := make([]byte, length)
		if err := c.Mem.Read(ptr, buf); err != nil {
			return fmt.Errorf("ecall: write: reading %d bytes from %#x: %w", length, ptr, err)
		}
		if _, err := h.Stdout.Write(buf); err != nil {
			return fmt.Errorf("ecall: write: publishing to stdout sink: %w", err)
		}
	}
	c.Regs.Set(10, length)
	return nil
}
