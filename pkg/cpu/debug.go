package cpu

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// registerNames gives the RV64 calling-convention name for each register,
// used by Dump so a trace reads like an ABI dump rather than bare x-indices.
var registerNames = [NumRegisters]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// dumpConfig is the go-spew configuration DumpRegisters uses: methods,
// pointer addresses and capacities are left out, so the dump shows only
// the register array and PC. Dump does not use it; it formats its own
// table with fmt, four registers per line.
var dumpConfig = &spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Dump renders the CPU's register file, PC, cycle count, and coverage
// cardinality as a human-readable trace block, for -v/-d tooling and for
// the fatal GuestFailure report spec §7 calls for.
func (c *CPU) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pc: %#016x  cycles: %d  runs: %d  coverage: %d edges\n",
		c.Regs.PC, c.Cycles, c.RunCount, len(c.Coverage))
	for i := 0; i < NumRegisters; i += 4 {
		for j := i; j < i+4; j++ {
			fmt.Fprintf(&b, "%-4s(x%-2d)=%#016x  ", registerNames[j], j, c.Regs.Get(uint32(j)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// DumpRegisters returns a deep structural dump of the register file via
// go-spew, appended to Dump's formatted table in cmd/rv64run's guest
// failure report.
func (c *CPU) DumpRegisters() string {
	return dumpConfig.Sdump(c.Regs)
}
