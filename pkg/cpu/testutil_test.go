package cpu

import (
	"github.com/riscfuzz/rv64emu/pkg/decode"
	"github.com/riscfuzz/rv64emu/pkg/gmem"
)

func encodeR(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return (funct7&0x7f)<<25 | (rs2&0x1f)<<20 | (rs1&0x1f)<<15 | (funct3&0x7)<<12 | (rd&0x1f)<<7 | (opcode & 0x7f)
}

func encodeI(imm int32, rs1, funct3, rd, opcode uint32) uint32 {
	return (uint32(imm)&0xfff)<<20 | (rs1&0x1f)<<15 | (funct3&0x7)<<12 | (rd&0x1f)<<7 | (opcode & 0x7f)
}

func encodeS(offset int32, rs1, rs2, funct3 uint32) uint32 {
	u := uint32(offset) & 0xfff
	return (u>>5)<<25 | (rs2&0x1f)<<20 | (rs1&0x1f)<<15 | (funct3&0x7)<<12 | (u&0x1f)<<7 | decode.OpStore
}

func encodeB(offset int32, rs1, rs2, funct3 uint32) uint32 {
	u := uint32(offset)
	bit12 := (u >> 12) & 1
	bit11 := (u >> 11) & 1
	bits10_5 := (u >> 5) & 0x3f
	bits4_1 := (u >> 1) & 0xf
	return bit12<<31 | bits10_5<<25 | (rs2&0x1f)<<20 | (rs1&0x1f)<<15 |
		(funct3&0x7)<<12 | bits4_1<<8 | bit11<<7 | decode.OpBranch
}

func encodeU(imm20 uint32, rd, opcode uint32) uint32 {
	return (imm20&0xfffff)<<12 | (rd&0x1f)<<7 | (opcode & 0x7f)
}

func encodeJ(offset int32, rd uint32) uint32 {
	u := uint32(offset)
	bit20 := (u >> 20) & 1
	bits10_1 := (u >> 1) & 0x3ff
	bit11 := (u >> 11) & 1
	bits19_12 := (u >> 12) & 0xff
	return bit20<<31 | bits10_1<<21 | bit11<<20 | bits19_12<<12 | (rd&0x1f)<<7 | decode.OpJal
}

// newTestCPU returns a CPU with one large region starting at 0, suitable
// for placing code and data in the same tests.
func newTestCPU(size uint64) *CPU {
	mem := gmem.NewSpace()
	mem.Allocate(0, size, nil)
	c := New(mem)
	return c
}

// putWord writes a little-endian 32-bit word at addr.
func putWord(c *CPU, addr uint64, word uint32) {
	var buf [4]byte
	buf[0] = byte(word)
	buf[1] = byte(word >> 8)
	buf[2] = byte(word >> 16)
	buf[3] = byte(word >> 24)
	if err := c.Mem.Write(addr, buf[:]); err != nil {
		panic(err)
	}
}
