// Package corpus is a minimal fuzz-input provider: it feeds byte buffers
// to the guest's read() syscall. It deliberately does not implement any
// mutation strategy or scheduling policy — per spec §1 those are an
// external collaborator's responsibility. This is the "everything is
// stored in memory for speed, starting from no corpus" seed-cycling
// behavior from original_source/src/cpu/fuzzer.rs's Fuzzer, generalized
// to round-robin instead of pop-to-empty-then-panic (a long-running
// fuzzer substrate should never panic on corpus exhaustion).
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// defaultSeeds mirrors fuzzer.rs's hardcoded three-entry seed corpus.
var defaultSeeds = [][]byte{
	{0x42, 0x4e, 0x45, 0x0a},
	{12, 12, 12, 0x0a},
	{12, 12, 12, 0x0a},
}

// Cycler hands out input buffers round-robin from a fixed set of seeds.
// It implements ecall.InputProvider structurally.
type Cycler struct {
	seeds [][]byte
	next  int
}

// New returns a Cycler seeded with the built-in defaults.
func New() *Cycler {
	return &Cycler{seeds: defaultSeeds}
}

// NewFromDir returns a Cycler whose seeds are every regular file's
// contents under dir, sorted by name for determinism. Falls back to the
// built-in defaults if dir contains no regular files; a regular file that
// cannot be read is an error.
func NewFromDir(dir string) (*Cycler, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: reading seed directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var seeds [][]byte
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("corpus: reading seed file %s: %w", name, err)
		}
		seeds = append(seeds, data)
	}
	if len(seeds) == 0 {
		seeds = defaultSeeds
	}
	return &Cycler{seeds: seeds}, nil
}

// NextInput returns the next seed in round-robin order.
func (c *Cycler) NextInput() []byte {
	buf := c.seeds[c.next]
	c.next = (c.next + 1) % len(c.seeds)
	return buf
}

// Len returns the number of seeds currently loaded.
func (c *Cycler) Len() int {
	return len(c.seeds)
}
