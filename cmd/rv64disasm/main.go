// Command rv64disasm dumps the mnemonic disassembly of every executable
// section in an RV64I ELF binary. Adapted from the teacher's cmd/asm:
// with a compiled ELF as input there is nothing left to assemble, so this
// tool keeps the teacher's "one small CLI per developer task" structure
// but performs the inverse operation, walking code the way
// pkg/elfloader/pkg/disasm already format it for -v tracing in
// cmd/rv64run.
package main

import (
	"debug/elf"
	"encoding/binary"
	"flag"
	"log"

	"github.com/riscfuzz/rv64emu/pkg/disasm"
)

func main() {
	log.SetFlags(0)

	filename := flag.String("f", "", "ELF executable to disassemble")
	flag.Parse()
	if *filename == "" {
		log.Fatal("usage: rv64disasm -f <elf-path>")
	}

	f, err := elf.Open(*filename)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	for _, s := range f.Sections {
		if s.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		data, err := s.Data()
		if err != nil {
			log.Fatalf("reading section %s: %v", s.Name, err)
		}
		log.Printf("section %s (%#x bytes at %#x):", s.Name, len(data), s.Addr)
		disassembleSection(s.Addr, data)
	}
}

func disassembleSection(base uint64, data []byte) {
	for off := 0; off+4 <= len(data); off += 4 {
		pc := base + uint64(off)
		word := binary.LittleEndian.Uint32(data[off : off+4])
		log.Printf("  %#016x: %08x  %s", pc, word, disasm.Instruction(pc, word))
	}
}
