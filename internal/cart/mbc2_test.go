package cart

import "testing"

func TestMBC2_RAMEnableGatesAccess(t *testing.T) {
	rom := make([]byte, 64*1024)
	m := NewMBC2(rom)

	m.Write(0xA000, 0x05) // disabled, write ignored
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X want FF", got)
	}

	m.Write(0x0000, 0x0A) // bit8=0 -> RAM enable
	m.Write(0xA000, 0x05)
	if got := m.Read(0xA000); got != 0xF5 {
		t.Fatalf("enabled RAM read got %02X want F5 (high nibble forced to F)", got)
	}
}

func TestMBC2_RAMMirrorsAndLowNibbleOnly(t *testing.T) {
	rom := make([]byte, 64*1024)
	m := NewMBC2(rom)
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0xFF)
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("low nibble all-ones read got %02X want FF", got)
	}
	// mirrors every 512 bytes through 0xBFFF
	if got := m.Read(0xA200); got != 0xFF {
		t.Fatalf("mirror read got %02X want FF", got)
	}
}

func TestMBC2_ROMBankSelect(t *testing.T) {
	rom := make([]byte, 256*1024)
	for bank := 0; bank < 16; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC2(rom)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default bank got %02X want 01", got)
	}
	m.Write(0x0100, 0x05) // bit8=1 -> ROM bank select
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank select got %02X want 05", got)
	}
	m.Write(0x0100, 0x00) // 0 remaps to 1
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0 remap got %02X want 01", got)
	}
}

func TestMBC2_SaveLoadRAMRoundTrip(t *testing.T) {
	rom := make([]byte, 64*1024)
	m := NewMBC2(rom)
	m.Write(0x0000, 0x0A)
	m.Write(0xA010, 0x0C)

	saved := m.SaveRAM()
	m2 := NewMBC2(rom)
	m2.LoadRAM(saved)
	m2.Write(0x0000, 0x0A)
	if got := m2.Read(0xA010); got != 0xFC {
		t.Fatalf("round-tripped RAM got %02X want FC", got)
	}
}

func TestMBC2_SaveLoadStateRoundTrip(t *testing.T) {
	rom := make([]byte, 256*1024)
	rom[7*0x4000] = 0x07 // marker byte at the start of bank 7
	m := NewMBC2(rom)
	m.Write(0x0100, 0x07)
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x03)

	snap := m.SaveState()
	m2 := NewMBC2(rom)
	m2.LoadState(snap)
	if got := m2.Read(0x4000); got != 0x07 {
		t.Fatalf("restored bank got %02X want 07", got)
	}
	if got := m2.Read(0xA000); got != 0xF3 {
		t.Fatalf("restored RAM got %02X want F3", got)
	}
}
