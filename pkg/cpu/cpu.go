// Package cpu implements the RV64I fetch-decode-execute loop, the
// breakpoint dispatcher that drives fuzzing events, branch-edge coverage
// recording, and the snapshot controller used to reset a guest to its
// ground-truth state between fuzz iterations.
package cpu

import (
	"errors"
	"fmt"

	"github.com/riscfuzz/rv64emu/pkg/gmem"
)

// The following sentinel errors mirror the teacher's ErrHalted/ErrSIGSEGV/
// ErrNotPermitted idiom: wrapped with fmt.Errorf("%w: ...") at the call
// site and tested with errors.Is by callers.
var (
	// ErrExit indicates Run stopped because the exit flag was set. Not a
	// failure; callers check for it with errors.Is the same way the
	// teacher checks for ErrHalted.
	ErrExit = errors.New("cpu: exit requested")

	// ErrDecode indicates an opcode/funct3/funct7 combination outside the
	// supported RV64I subset.
	ErrDecode = errors.New("cpu: decode error")

	// ErrUnsupported indicates a recognized-but-unimplemented instruction:
	// an M-extension instruction, EBREAK, a CSR instruction, or ECALL with
	// no handler installed. Opcodes of the A/F/D/C extensions are not
	// recognized at all and surface as ErrDecode.
	ErrUnsupported = errors.New("cpu: unsupported instruction")

	// ErrNoSnapshot indicates ResetToInitialState was called before any
	// SaveInitialState.
	ErrNoSnapshot = errors.New("cpu: no snapshot to reset to")

	// ErrGuestFailure is returned by ReportGuestFailure. A host fuzzing
	// loop calls that from its `fail` breakpoint and is expected to log a
	// register dump (see Dump) and keep running rather than abort.
	ErrGuestFailure = errors.New("cpu: guest reported failure")
)

// ECALLHandler services the ECALL opcode. Implementations read the
// syscall number and arguments from c's registers and may read/write c's
// memory. See package ecall for the concrete implementation; cpu does not
// import it; this interface is satisfied structurally.
type ECALLHandler interface {
	HandleECALL(c *CPU) error
}

// BreakpointFunc is a host callback invoked before fetch whenever
// execution reaches the PC it is registered at. It receives mutable
// access to the CPU so it can drive snapshot/reset/exit events.
type BreakpointFunc func(c *CPU)

// snapshot is the CPU's captured ground-truth state, taken by
// SaveInitialState and consumed by ResetToInitialState.
type snapshot struct {
	regs Registers
}

// CPU is one emulated RV64I hart plus its owned memory, coverage set, and
// snapshot. Each CPU instance is wholly independent: running many
// concurrently requires no locking (spec §5).
type CPU struct {
	Regs Registers
	Mem  *gmem.Space

	Exit bool

	Breakpoints map[uint64]BreakpointFunc

	CoverageEnabled bool
	Coverage        map[uint64]struct{}

	// Cycles counts retired instructions. The spec treats one cycle as
	// one retired instruction (no precise timing model).
	Cycles uint64

	// MaxInstructions, if nonzero, sets Exit once Cycles reaches it —
	// the optional watchdog backstop spec §5 recommends offering.
	MaxInstructions uint64

	// RunCount increments on every ResetToInitialState call (SPEC_FULL
	// §11's "per-run execution counter", grounded on the Rust
	// prototype's nbr_exec).
	RunCount uint64

	// GuestFailures increments on every ReportGuestFailure call, letting a
	// host distinguish how many of RunCount's resets were guest-detected
	// failures versus clean exits.
	GuestFailures uint64

	ECALL ECALLHandler

	snap *snapshot
}

// New returns a CPU over the address space mem, with boot-state registers
// and coverage recording enabled.
func New(mem *gmem.Space) *CPU {
	c := &CPU{
		Mem:             mem,
		Breakpoints:     make(map[uint64]BreakpointFunc),
		CoverageEnabled: true,
		Coverage:        make(map[uint64]struct{}),
	}
	c.Regs.Reset()
	return c
}

// SetBreakpoint installs handler at PC addr, replacing any existing
// breakpoint there.
func (c *CPU) SetBreakpoint(addr uint64, handler BreakpointFunc) {
	c.Breakpoints[addr] = handler
}

// RemoveBreakpoint removes any breakpoint at addr.
func (c *CPU) RemoveBreakpoint(addr uint64) {
	delete(c.Breakpoints, addr)
}

// recordEdge inserts the (source XOR destination) fingerprint for a taken
// control-flow transfer, per spec §3's coverage-set definition.
func (c *CPU) recordEdge(src, dst uint64) {
	if !c.CoverageEnabled {
		return
	}
	c.Coverage[src^dst] = struct{}{}
}

// SaveInitialState clones the register file and calls Mem.SaveState,
// establishing the ground-truth snapshot that ResetToInitialState
// restores to.
func (c *CPU) SaveInitialState() {
	c.snap = &snapshot{regs: c.Regs.Snapshot()}
	c.Mem.SaveState()
}

// ResetToInitialState restores registers and memory to the last
// SaveInitialState snapshot, increments RunCount, and returns a clone of
// the coverage accumulated since the last reset (or since the CPU was
// created), clearing the live set for the next iteration. Calling this
// without a prior SaveInitialState is a programmer error, per spec §4.G.
func (c *CPU) ResetToInitialState() (map[uint64]struct{}, error) {
	if c.snap == nil {
		return nil, ErrNoSnapshot
	}
	c.Regs = c.snap.regs
	if err := c.Mem.ResetToSavedState(); err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}
	c.RunCount++

	out := c.Coverage
	c.Coverage = make(map[uint64]struct{})
	return out, nil
}

// ReportGuestFailure resets to the last snapshot exactly like
// ResetToInitialState, but additionally counts the reset as a
// guest-detected failure and returns an error wrapping ErrGuestFailure
// so a host can tell this reset apart from a clean exit's. If the reset
// itself fails (for example with ErrNoSnapshot), that error is returned
// instead and GuestFailures is not incremented. Per spec §7, the core surfaces GuestFailure as fatal by
// default; a hosted fuzzing loop is expected to call this instead of
// ResetToInitialState at its `fail` breakpoint and treat the returned
// error as informational rather than aborting, which is the intended
// fuzzing behavior of resetting and continuing past guest failures.
func (c *CPU) ReportGuestFailure() (map[uint64]struct{}, error) {
	coverage, err := c.ResetToInitialState()
	if err != nil {
		return nil, err
	}
	c.GuestFailures++
	return coverage, fmt.Errorf("%w", ErrGuestFailure)
}
