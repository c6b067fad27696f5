package emu

import (
	"errors"
	"testing"

	"github.com/go-test/deep"
)

// minimalROM builds a 32KB ROM-only cartridge image with just enough header
// to satisfy cart.ParseHeader (no Nintendo-logo/checksum enforcement).
func minimalROM() []byte {
	rom := make([]byte, 32*1024)
	rom[0x0147] = 0x00 // ROM ONLY
	rom[0x0148] = 0x00 // 32KB / 2 banks
	rom[0x0149] = 0x00 // no RAM
	return rom
}

func TestLoadROM_RejectsTooShort(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROM([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidROM) {
		t.Fatalf("expected ErrInvalidROM, got %v", err)
	}
}

func TestLoadROM_RejectsUnknownCartType(t *testing.T) {
	m := New(Config{})
	rom := minimalROM()
	rom[0x0147] = 0xEE // not a recognized cart type
	if err := m.LoadROM(rom); !errors.Is(err, ErrInvalidROM) {
		t.Fatalf("expected ErrInvalidROM for unknown cart type, got %v", err)
	}
}

func TestLoadROM_SetsUpPostBootState(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROM(minimalROM()); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	regs := m.CPURegisters()
	if regs.PC != 0x0100 {
		t.Fatalf("PC got %04X want 0100", regs.PC)
	}
	io := m.IORegisters()
	if io.LCDC != 0x91 {
		t.Fatalf("LCDC got %02X want 91", io.LCDC)
	}
}

func TestLoadCartridgeRAM_RejectsSizeMismatch(t *testing.T) {
	m := New(Config{})
	rom := minimalROM()
	rom[0x0147] = 0x01 // MBC1
	rom[0x0149] = 0x02 // 8KB RAM
	if err := m.LoadROM(rom); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if err := m.LoadCartridgeRAM(make([]byte, 100)); !errors.Is(err, ErrInvalidSave) {
		t.Fatalf("expected ErrInvalidSave, got %v", err)
	}
	if err := m.LoadCartridgeRAM(make([]byte, 8*1024)); err != nil {
		t.Fatalf("expected correctly sized save to load cleanly, got %v", err)
	}
}

func TestSetButtons_DoesNotPanicAfterLoadROM(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROM(minimalROM()); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	// Should not panic with no cartridge-specific peripherals attached.
	m.SetButtons(Buttons{A: true, Up: true})
	m.SetButton(0, false)
}

func TestSaveStateLoadState_RoundTrip(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROM(minimalROM()); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	for i := 0; i < 5; i++ {
		m.StepFrame()
	}
	snap := m.SaveState()
	if snap == nil {
		t.Fatal("expected non-nil save state")
	}
	m2 := New(Config{})
	if err := m2.LoadROM(minimalROM()); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m2.LoadState(snap)

	if diff := deep.Equal(m.CPURegisters(), m2.CPURegisters()); diff != nil {
		t.Fatalf("CPU registers diverged after restore: %v", diff)
	}
	if diff := deep.Equal(m.IORegisters(), m2.IORegisters()); diff != nil {
		t.Fatalf("IO registers diverged after restore: %v", diff)
	}
}

func TestGetSerialOutput_BoundedRing(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROM(minimalROM()); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	big := make([]byte, serialCapBytes+100)
	for i := range big {
		big[i] = 'x'
	}
	m.serialCap.Write(big)
	out := m.GetSerialOutput()
	if len(out) != serialCapBytes {
		t.Fatalf("ring output len got %d want %d", len(out), serialCapBytes)
	}
}
