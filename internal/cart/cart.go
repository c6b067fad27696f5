package cart

import "fmt"

// Cartridge defines the minimal interface the Bus needs for ROM/RAM banking.
// Implementations can be ROM-only or MBC variants. Addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000–0x7FFF) and external RAM (0xA000–0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000–0x7FFF) and external RAM writes (0xA000–0xBFFF).
	Write(addr uint16, value byte)
	// SaveState/LoadState serialize internal banking registers and external RAM for save states.
	SaveState() []byte
	LoadState(data []byte)
}

// BatteryBacked is an optional interface for cartridges with external RAM to be persisted.
// Implementations should return a copy of RAM bytes (may be empty if no RAM), and accept data to load.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// Accelerometer is implemented by cartridges carrying a tilt sensor (MBC7).
type Accelerometer interface {
	SetTilt(x, y int16)
}

// CameraCartridge is implemented by the imaging MBC; Bus/Machine feed it raw
// sensor frames and read back decoded photo tiles through it.
type CameraCartridge interface {
	SetCameraImage(gray []byte)
	DecodePhoto(slot int) []byte
}

// ErrUnknownCartType is returned by NewCartridgeChecked for a header CartType
// byte this emulator does not recognize.
type ErrUnknownCartType struct{ CartType byte }

func (e *ErrUnknownCartType) Error() string {
	return fmt.Sprintf("unrecognized cartridge type byte 0x%02X", e.CartType)
}

// NewCartridge picks an implementation based on the ROM header, falling back
// to ROM-only for unrecognized types. Used internally (bus.New, tools) where
// a best-effort cartridge is preferable to a hard failure.
func NewCartridge(rom []byte) Cartridge {
	c, err := newCartridgeFor(rom)
	if err != nil {
		return NewROMOnly(rom)
	}
	return c
}

// NewCartridgeChecked is like NewCartridge but reports genuinely unrecognized
// cartridge types as an error instead of silently degrading to ROM-only. This
// is what Machine.LoadROM uses to surface ErrInvalidROM.
func NewCartridgeChecked(rom []byte) (Cartridge, error) {
	return newCartridgeFor(rom)
}

func newCartridgeFor(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	switch h.CartType {
	case 0x00:
		return NewROMOnly(rom), nil
	case 0x01, 0x02, 0x03:
		return NewMBC1(rom, h.RAMSizeBytes), nil
	case 0x05, 0x06:
		return NewMBC2(rom), nil
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return NewMBC3(rom, h.RAMSizeBytes), nil
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return NewMBC5(rom, h.RAMSizeBytes), nil
	case 0x22:
		return NewMBC7(rom), nil
	case 0xFC:
		return NewCamera(rom, h.RAMSizeBytes), nil
	default:
		return nil, &ErrUnknownCartType{CartType: h.CartType}
	}
}
