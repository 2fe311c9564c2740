// Command rv64run loads a statically linked RV64I ELF executable and
// runs it under the emulator, driving snapshot/reset/exit fuzzing events
// from breakpoints installed at well-known symbols. Grounded on the
// teacher's cmd/vm/main.go (flag parsing, verbose trace, errors.Is exit
// handling).
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/riscfuzz/rv64emu/pkg/corpus"
	"github.com/riscfuzz/rv64emu/pkg/cpu"
	"github.com/riscfuzz/rv64emu/pkg/disasm"
	"github.com/riscfuzz/rv64emu/pkg/ecall"
	"github.com/riscfuzz/rv64emu/pkg/elfloader"
	"github.com/riscfuzz/rv64emu/pkg/gmem"
)

func main() {
	log.SetFlags(0)

	filename := flag.String("f", "", "ELF executable to run")
	corpusDir := flag.String("corpus", "", "directory of seed input files (default: built-in seeds)")
	verbose := flag.Bool("v", false, "trace every executed instruction")
	debugStep := flag.Bool("d", false, "pause after each instruction")
	redirectStdout := flag.Bool("redirect-stdout", false, "publish guest write() payloads to host stdout")
	iters := flag.Uint64("iters", 0, "number of snapshot/reset cycles to run before stopping (0 = unbounded)")
	maxInstr := flag.Uint64("max-instructions", 0, "abort after this many retired instructions (0 = unbounded)")
	instances := flag.Int("n", 1, "number of independent CPU instances to run concurrently")
	flag.Parse()

	if *filename == "" {
		log.Fatal("usage: rv64run -f <elf-path> [-corpus dir] [-v] [-d] [-iters n] [-max-instructions n] [-n instances]")
	}

	var wg sync.WaitGroup
	for i := 0; i < *instances; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := runOne(id, *filename, *corpusDir, *verbose, *debugStep, *redirectStdout, *iters, *maxInstr); err != nil {
				log.Fatalf("instance %d: %v", id, err)
			}
		}(i)
	}
	wg.Wait()
}

func runOne(id int, filename, corpusDir string, verbose, debugStep, redirectStdout bool, iters, maxInstr uint64) error {
	mem := gmem.NewSpace()
	loaded, err := elfloader.Load(filename, mem)
	if err != nil {
		return fmt.Errorf("loading %s: %w", filename, err)
	}

	entryAddr, ok := loaded.Symbols["main"]
	if !ok {
		entryAddr, ok = loaded.Symbols["test_2"]
	}
	if !ok {
		entryAddr = loaded.Entry
	}

	machine := cpu.New(mem)

	input, err := newInputProvider(corpusDir)
	if err != nil {
		return err
	}
	handler := &ecall.Handler{Input: input}
	if redirectStdout {
		handler.Stdout = os.Stdout
	}
	machine.ECALL = handler
	machine.MaxInstructions = maxInstr

	resets := uint64(0)
	machine.SetBreakpoint(entryAddr, func(c *cpu.CPU) {
		if c.RunCount == 0 {
			log.Printf("instance %d: state saved at %#x", id, c.Regs.PC)
			c.SaveInitialState()
		}
	})
	if addr, ok := loaded.Symbols["exit"]; ok {
		machine.SetBreakpoint(addr, func(c *cpu.CPU) {
			coverage, err := c.ResetToInitialState()
			if err != nil {
				log.Fatalf("instance %d: %v", id, err)
			}
			log.Printf("instance %d: reset #%d, coverage this run: %d edges", id, c.RunCount, len(coverage))
			resets++
			if iters != 0 && resets >= iters {
				c.Exit = true
			}
		})
	}
	if addr, ok := loaded.Symbols["pass"]; ok {
		machine.SetBreakpoint(addr, func(c *cpu.CPU) {
			log.Printf("instance %d: pass reached at cycle %d", id, c.Cycles)
		})
	}
	if addr, ok := loaded.Symbols["fail"]; ok {
		machine.SetBreakpoint(addr, func(c *cpu.CPU) {
			log.Printf("instance %d: guest failure:\n%s%s", id, c.Dump(), c.DumpRegisters())
			coverage, err := c.ReportGuestFailure()
			if err != nil && !errors.Is(err, cpu.ErrGuestFailure) {
				log.Fatalf("instance %d: %v", id, err)
			}
			log.Printf("instance %d: %v (reset #%d, coverage this run: %d edges)",
				id, err, c.RunCount, len(coverage))
			resets++
			if iters != 0 && resets >= iters {
				c.Exit = true
			}
		})
	}

	start := time.Now()
	machine.Regs.PC = entryAddr
	var runErr error
	if verbose || debugStep {
		runErr = runTraced(id, machine, debugStep)
	} else {
		runErr = machine.Run(entryAddr)
	}
	elapsed := time.Since(start)

	if errors.Is(runErr, cpu.ErrExit) {
		log.Printf("instance %d: done in %dms, %d cycles, final coverage %d edges",
			id, elapsed.Milliseconds(), machine.Cycles, len(machine.Coverage))
		return nil
	}
	return runErr
}

// runTraced mirrors the teacher's cmd/vm verbose loop: print the decoded
// instruction before executing it, and pause for input when stepping.
func runTraced(id int, machine *cpu.CPU, debugStep bool) error {
	for {
		var raw [4]byte
		if err := machine.Mem.Read(machine.Regs.PC, raw[:]); err == nil {
			word := binary.LittleEndian.Uint32(raw[:])
			log.Printf("instance %d: %s", id, machine.Dump())
			log.Printf("instance %d: %#016x: %s", id, machine.Regs.PC, disasm.Instruction(machine.Regs.PC, word))
		}
		if debugStep {
			fmt.Scanln()
		}
		if err := machine.Step(); err != nil {
			return err
		}
		if machine.Exit {
			return fmt.Errorf("%w", cpu.ErrExit)
		}
	}
}

func newInputProvider(corpusDir string) (*corpus.Cycler, error) {
	if corpusDir == "" {
		return corpus.New(), nil
	}
	return corpus.NewFromDir(corpusDir)
}
