package gmem

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadWriteRoundTrip(t *testing.T) {
	s := NewSpace()
	s.Allocate(0x1000, 0x100, nil)

	want := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := s.Write(0x1000, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := make([]byte, len(want))
	if err := s.Read(0x1000, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadUnmappedFaults(t *testing.T) {
	s := NewSpace()
	s.Allocate(0x1000, 0x10, nil)

	buf := make([]byte, 4)
	err := s.Read(0x2000, buf)
	if !errors.Is(err, ErrUnmapped) {
		t.Fatalf("Read at unmapped address: err = %v, want ErrUnmapped", err)
	}
}

func TestWriteUnmappedFaults(t *testing.T) {
	s := NewSpace()
	s.Allocate(0x1000, 0x10, nil)

	err := s.Write(0x2000, []byte{1})
	if !errors.Is(err, ErrUnmapped) {
		t.Fatalf("Write at unmapped address: err = %v, want ErrUnmapped", err)
	}
}

func TestSpanCrossingRegionBoundaryFaults(t *testing.T) {
	s := NewSpace()
	s.Allocate(0x1000, 0x10, nil)

	buf := make([]byte, 4)
	// [0x100c, 0x1010) is inside the region; [0x100e, 0x1012) spills past it.
	if err := s.Read(0x100c, buf); err != nil {
		t.Fatalf("in-bounds read failed: %v", err)
	}
	if err := s.Read(0x100e, buf); !errors.Is(err, ErrUnmapped) {
		t.Fatalf("spilling read: err = %v, want ErrUnmapped", err)
	}
}

// TestSnapshotRestore covers spec S6: store to a byte after a snapshot,
// reset, and expect the byte restored and the dirty bitmap clean.
func TestSnapshotRestore(t *testing.T) {
	s := NewSpace()
	r := s.Allocate(0x1000, 0x400, bytes.Repeat([]byte{0xAA}, 0x400))
	s.SaveState()

	if err := s.Write(0x1005, []byte{0x55}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.ResetToSavedState(); err != nil {
		t.Fatalf("ResetToSavedState: %v", err)
	}

	buf := make([]byte, 1)
	if err := s.Read(0x1005, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if buf[0] != 0xAA {
		t.Fatalf("byte at A = %#x, want 0xAA (pre-store value)", buf[0])
	}
	for i, dirty := range r.dirty {
		if dirty {
			t.Fatalf("dirty bit %d still set after reset", i)
		}
	}
}

// TestResetOnlyTouchesDirtyBlocks ensures the O(dirty) restore leaves
// clean blocks alone (invariant 2 / spec §4.B's "the whole point of the
// design"): it corrupts the shadow of an untouched block directly (white
// box, same package) and confirms reset never copies that corruption into
// the live block because the block was never marked dirty.
func TestResetOnlyTouchesDirtyBlocks(t *testing.T) {
	s := NewSpace()
	r := s.Allocate(0, 2*Block, bytes.Repeat([]byte{0x11}, 2*Block))
	s.SaveState()

	// Dirty only the first block.
	if err := s.Write(0, []byte{0x99}); err != nil {
		t.Fatal(err)
	}
	// Corrupt the second block's shadow directly; if reset ever touched a
	// clean block it would copy this corruption into live memory.
	for i := Block; i < 2*Block; i++ {
		r.shadow[i] = 0xEE
	}

	if err := s.ResetToSavedState(); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 1)
	if err := s.Read(0, buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0x11 {
		t.Fatalf("dirtied block not restored: got %#x want 0x11", buf[0])
	}
	if err := s.Read(uint64(Block), buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0x11 {
		t.Fatalf("clean block was touched by reset: got %#x want 0x11 (shadow corruption leaked in)", buf[0])
	}
}

func TestResetWithoutSaveFails(t *testing.T) {
	s := NewSpace()
	s.Allocate(0x1000, 0x10, nil)
	if err := s.ResetToSavedState(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestBSSRegionZeroFillsBeyondInitial(t *testing.T) {
	s := NewSpace()
	s.Allocate(0x2000, 16, []byte{1, 2, 3})

	buf := make([]byte, 16)
	if err := s.Read(0x2000, buf); err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if diff := cmp.Diff(want, buf); diff != "" {
		t.Fatalf("BSS region mismatch (-want +got):\n%s", diff)
	}
}
