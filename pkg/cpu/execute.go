package cpu

import (
	"encoding/binary"
	"fmt"

	"github.com/riscfuzz/rv64emu/pkg/decode"
)

// Run repeatedly dispatches breakpoints, fetches, decodes, and executes
// instructions starting from entry until the exit flag is set or a fatal
// error occurs. On a clean stop it returns an error wrapping ErrExit, the
// same way the teacher's cmd/vm loop checks errors.Is(err, vm.ErrHalted).
func (c *CPU) Run(entry uint64) error {
	c.Regs.PC = entry
	for {
		if err := c.Step(); err != nil {
			return err
		}
		if c.Exit {
			return fmt.Errorf("%w", ErrExit)
		}
	}
}

// Step executes exactly one fetch-decode-execute cycle: breakpoint
// dispatch, then (unless Exit was set by the breakpoint) fetch, decode,
// and execute one instruction. Breakpoints fire before fetch, so a
// callback at PC=X runs once per time execution reaches X (spec §4.D).
func (c *CPU) Step() error {
	if bp, ok := c.Breakpoints[c.Regs.PC]; ok {
		bp(c)
	}
	if c.Exit {
		return nil
	}
	if c.MaxInstructions != 0 && c.Cycles >= c.MaxInstructions {
		c.Exit = true
		return nil
	}

	var raw [4]byte
	if err := c.Mem.Read(c.Regs.PC, raw[:]); err != nil {
		return fmt.Errorf("cpu: fetch at %#x: %w", c.Regs.PC, err)
	}
	word := binary.LittleEndian.Uint32(raw[:])

	if err := c.execInstruction(word); err != nil {
		return err
	}
	c.Cycles++
	return nil
}

// execInstruction decodes and executes one instruction word, updating
// registers, memory, PC, and coverage. The branch variable tracks whether
// this instruction is a taken control-flow transfer (conditional branch
// taken, JAL, or JALR); for all other instructions PC advances by 4.
func (c *CPU) execInstruction(word uint32) error {
	opcode := decode.Opcode(word)
	f := decode.Decode(word)
	pc := c.Regs.PC

	var (
		branchTaken bool
		branchDest  uint64
	)

	switch opcode {
	case decode.OpLui:
		c.Regs.Set(f.Rd, signExt32(uint32(f.ImmU<<12)))

	case decode.OpAuipc:
		c.Regs.Set(f.Rd, pc+signExt32(uint32(f.ImmU<<12)))

	case decode.OpJal:
		if f.Rd != 0 {
			c.Regs.Set(f.Rd, pc+4)
		}
		branchTaken = true
		branchDest = pc + uint64(f.ImmJ)

	case decode.OpJalr:
		target := c.Regs.Get(f.Rs1) + uint64(f.ImmI)
		target &^= 1 // architectural bit-0 clear; the Rust prototype omits this (spec §9 Q1)
		if f.Rd != 0 {
			c.Regs.Set(f.Rd, pc+4)
		}
		branchTaken = true
		branchDest = target

	case decode.OpBranch:
		taken, err := evalBranch(f.Funct3, c.Regs.Get(f.Rs1), c.Regs.Get(f.Rs2))
		if err != nil {
			return err
		}
		if taken {
			branchTaken = true
			branchDest = pc + uint64(f.ImmB)
		}

	case decode.OpLoad:
		if err := c.execLoad(f); err != nil {
			return err
		}

	case decode.OpStore:
		if err := c.execStore(f); err != nil {
			return err
		}

	case decode.OpOpImm:
		if err := c.execOpImm(f); err != nil {
			return err
		}

	case decode.OpOp:
		if err := c.execOp(f); err != nil {
			return err
		}

	case decode.OpOpImm32:
		if err := c.execOpImm32(f); err != nil {
			return err
		}

	case decode.OpOp32:
		if err := c.execOp32(f); err != nil {
			return err
		}

	case decode.OpMiscMem:
		// FENCE is a no-op here (spec §9 Q6: treat as a no-op for
		// multi-threaded-guest-oriented implementations, rather than
		// the reference's fatal abort).

	case decode.OpSystem:
		if err := c.execSystem(f); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: opcode %#09b at pc %#x", ErrDecode, opcode, pc)
	}

	if branchTaken {
		c.recordEdge(pc, branchDest)
		c.Regs.PC = branchDest
	} else {
		c.Regs.PC = pc + 4
	}
	return nil
}

// signExt32 sign-extends a 32-bit value to 64 bits.
func signExt32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}
