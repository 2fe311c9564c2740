// Package disasm formats a decoded RV64I instruction as mnemonic text,
// for -v/-d trace tooling. Adapted from the teacher's pkg/asm: with a
// compiled ELF binary as input rather than assembled RiSC-32 source text,
// the teacher's line-oriented text assembler has no role, so only its
// "one switch per opcode, one Sprintf per mnemonic" formatting idiom
// survives (compare vm.Disassemble in the teacher's pkg/vm/vm.go).
package disasm

import (
	"fmt"

	"github.com/riscfuzz/rv64emu/pkg/decode"
)

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

func reg(i uint32) string {
	return regNames[i]
}

// Instruction renders word (fetched at address pc, used only to compute
// absolute branch/jump targets for display) as RV64I assembly text, or a
// "<unknown ...>" placeholder for anything outside the supported subset.
func Instruction(pc uint64, word uint32) string {
	opcode := decode.Opcode(word)
	f := decode.Decode(word)

	switch opcode {
	case decode.OpLui:
		return fmt.Sprintf("lui %s, %#x", reg(f.Rd), f.ImmU)
	case decode.OpAuipc:
		return fmt.Sprintf("auipc %s, %#x", reg(f.Rd), f.ImmU)
	case decode.OpJal:
		return fmt.Sprintf("jal %s, %#x", reg(f.Rd), pc+uint64(f.ImmJ))
	case decode.OpJalr:
		return fmt.Sprintf("jalr %s, %d(%s)", reg(f.Rd), f.ImmI, reg(f.Rs1))
	case decode.OpBranch:
		return disasmBranch(f, pc)
	case decode.OpLoad:
		return disasmLoad(f)
	case decode.OpStore:
		return disasmStore(f)
	case decode.OpOpImm:
		return disasmOpImm(f)
	case decode.OpOp:
		return disasmOp(f)
	case decode.OpOpImm32:
		return disasmOpImm32(f)
	case decode.OpOp32:
		return disasmOp32(f)
	case decode.OpMiscMem:
		return "fence"
	case decode.OpSystem:
		if f.Funct3 != 0 {
			return fmt.Sprintf("<unknown system funct3 %#05b>", f.Funct3)
		}
		switch f.ImmI & 0xfff {
		case 0:
			return "ecall"
		case 1:
			return "ebreak"
		default:
			return fmt.Sprintf("<unknown system imm %#x>", f.ImmI&0xfff)
		}
	default:
		return fmt.Sprintf("<unknown opcode %#09b: %#08x>", opcode, word)
	}
}

func disasmBranch(f decode.Fields, pc uint64) string {
	names := map[uint32]string{0: "beq", 1: "bne", 4: "blt", 5: "bge", 6: "bltu", 7: "bgeu"}
	name, ok := names[f.Funct3]
	if !ok {
		return fmt.Sprintf("<unknown branch funct3 %#05b>", f.Funct3)
	}
	return fmt.Sprintf("%s %s, %s, %#x", name, reg(f.Rs1), reg(f.Rs2), pc+uint64(f.ImmB))
}

func disasmLoad(f decode.Fields) string {
	names := map[uint32]string{0: "lb", 1: "lh", 2: "lw", 3: "ld", 4: "lbu", 5: "lhu", 6: "lwu"}
	name, ok := names[f.Funct3]
	if !ok {
		return fmt.Sprintf("<unknown load funct3 %#05b>", f.Funct3)
	}
	return fmt.Sprintf("%s %s, %d(%s)", name, reg(f.Rd), f.ImmI, reg(f.Rs1))
}

func disasmStore(f decode.Fields) string {
	names := map[uint32]string{0: "sb", 1: "sh", 2: "sw", 3: "sd"}
	name, ok := names[f.Funct3]
	if !ok {
		return fmt.Sprintf("<unknown store funct3 %#05b>", f.Funct3)
	}
	return fmt.Sprintf("%s %s, %d(%s)", name, reg(f.Rs2), f.ImmS, reg(f.Rs1))
}

func disasmOpImm(f decode.Fields) string {
	switch f.Funct3 {
	case 0:
		return fmt.Sprintf("addi %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI)
	case 0b010:
		return fmt.Sprintf("slti %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI)
	case 0b011:
		return fmt.Sprintf("sltiu %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI)
	case 0b100:
		return fmt.Sprintf("xori %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI)
	case 0b110:
		return fmt.Sprintf("ori %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI)
	case 0b111:
		return fmt.Sprintf("andi %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI)
	case 0b001:
		return fmt.Sprintf("slli %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI&0x3f)
	case 0b101:
		if (f.ImmI>>10)&1 == 1 {
			return fmt.Sprintf("srai %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI&0x3f)
		}
		return fmt.Sprintf("srli %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI&0x3f)
	default:
		return fmt.Sprintf("<unknown op-imm funct3 %#05b>", f.Funct3)
	}
}

func disasmOp(f decode.Fields) string {
	key := [2]uint32{f.Funct3, f.Funct7}
	names := map[[2]uint32]string{
		{0, 0}: "add", {0, 0x20}: "sub", {1, 0}: "sll", {2, 0}: "slt",
		{3, 0}: "sltu", {4, 0}: "xor", {5, 0}: "srl", {5, 0x20}: "sra",
		{6, 0}: "or", {7, 0}: "and",
	}
	name, ok := names[key]
	if !ok {
		return fmt.Sprintf("<unknown op funct3=%#05b funct7=%#09b>", f.Funct3, f.Funct7)
	}
	return fmt.Sprintf("%s %s, %s, %s", name, reg(f.Rd), reg(f.Rs1), reg(f.Rs2))
}

func disasmOpImm32(f decode.Fields) string {
	switch f.Funct3 {
	case 0:
		return fmt.Sprintf("addiw %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI)
	case 0b001:
		return fmt.Sprintf("slliw %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI&0x1f)
	case 0b101:
		if (f.ImmI>>10)&1 == 1 {
			return fmt.Sprintf("sraiw %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI&0x1f)
		}
		return fmt.Sprintf("srliw %s, %s, %d", reg(f.Rd), reg(f.Rs1), f.ImmI&0x1f)
	default:
		return fmt.Sprintf("<unknown op-imm-32 funct3 %#05b>", f.Funct3)
	}
}

func disasmOp32(f decode.Fields) string {
	key := [2]uint32{f.Funct3, f.Funct7}
	names := map[[2]uint32]string{
		{0, 0}: "addw", {0, 0x20}: "subw", {1, 0}: "sllw",
		{5, 0}: "srlw", {5, 0x20}: "sraw",
	}
	name, ok := names[key]
	if !ok {
		return fmt.Sprintf("<unknown op-32 funct3=%#05b funct7=%#09b>", f.Funct3, f.Funct7)
	}
	return fmt.Sprintf("%s %s, %s, %s", name, reg(f.Rd), reg(f.Rs1), reg(f.Rs2))
}
