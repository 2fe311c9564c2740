package elfloader

import (
	"encoding/binary"
	"testing"
)

// buildSymtab hand-assembles a raw .symtab byte blob from a slice of
// (name_offset, value) pairs, matching the 24-byte Elf64_Sym layout
// parseSymbols expects: name_offset:u32, info:u8, other:u8, shndx:u16,
// value:u64, size:u64.
func buildSymtab(entries []struct {
	nameOff uint32
	value   uint64
}) []byte {
	buf := make([]byte, symbolEntrySize*len(entries))
	for i, e := range entries {
		off := i * symbolEntrySize
		binary.LittleEndian.PutUint32(buf[off:off+4], e.nameOff)
		// info, other, shndx (4 bytes) are left zero; irrelevant to parseSymbols.
		binary.LittleEndian.PutUint64(buf[off+8:off+16], e.value)
		// size (8 bytes) left zero; irrelevant to parseSymbols.
	}
	return buf
}

func TestParseSymbolsDecodesNameAndValue(t *testing.T) {
	strtab := []byte("\x00main\x00_start\x00")
	// "main" begins at offset 1, "_start" begins at offset 6.
	symtab := buildSymtab([]struct {
		nameOff uint32
		value   uint64
	}{
		{nameOff: 1, value: 0x10078},
		{nameOff: 6, value: 0x10000},
	})

	got, err := parseSymbols(symtab, strtab)
	if err != nil {
		t.Fatalf("parseSymbols: %v", err)
	}
	if got["main"] != 0x10078 {
		t.Fatalf("main = %#x, want 0x10078", got["main"])
	}
	if got["_start"] != 0x10000 {
		t.Fatalf("_start = %#x, want 0x10000", got["_start"])
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}

func TestParseSymbolsSkipsEmptyName(t *testing.T) {
	strtab := []byte("\x00")
	symtab := buildSymtab([]struct {
		nameOff uint32
		value   uint64
	}{
		{nameOff: 0, value: 0x1000}, // offset 0 is the empty string, the conventional null symbol
	})

	got, err := parseSymbols(symtab, strtab)
	if err != nil {
		t.Fatalf("parseSymbols: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want no entries (null symbol skipped)", got)
	}
}

func TestParseSymbolsIgnoresTrailingPartialEntry(t *testing.T) {
	strtab := []byte("\x00main\x00")
	symtab := buildSymtab([]struct {
		nameOff uint32
		value   uint64
	}{
		{nameOff: 1, value: 0x2000},
	})
	// Append a few stray bytes that don't make up a full 24-byte entry.
	symtab = append(symtab, 0xFF, 0xFF, 0xFF)

	got, err := parseSymbols(symtab, strtab)
	if err != nil {
		t.Fatalf("parseSymbols: %v", err)
	}
	if got["main"] != 0x2000 {
		t.Fatalf("main = %#x, want 0x2000", got["main"])
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (trailing partial entry ignored)", len(got))
	}
}

func TestCStringReadsUntilNUL(t *testing.T) {
	data := []byte("foo\x00bar\x00")
	got, ok := cString(data, 4)
	if !ok {
		t.Fatalf("cString: ok = false, want true")
	}
	if got != "bar" {
		t.Fatalf("cString = %q, want %q", got, "bar")
	}
}

func TestCStringRejectsOutOfBoundsOffset(t *testing.T) {
	data := []byte("foo\x00")
	if _, ok := cString(data, 100); ok {
		t.Fatalf("cString with out-of-bounds offset: ok = true, want false")
	}
}

func TestCStringRejectsUnterminatedString(t *testing.T) {
	data := []byte("no-nul-terminator")
	if _, ok := cString(data, 0); ok {
		t.Fatalf("cString over unterminated data: ok = true, want false")
	}
}
