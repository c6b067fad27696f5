package cart

import (
	"bytes"
	"encoding/gob"

	"github.com/gbcam/emu/internal/sensor"
)

// Camera is the imaging cartridge: ROM/RAM banking like MBC5, plus a
// register-file window that either exposes the sensor's trigger/config
// registers or the photo-buffer/save-RAM banks, selected by bit4 of the
// 0x4000-0x5FFF write.
type Camera struct {
	rom []byte
	ram []byte // SRAM banks 1+; bank 0 is the sensor's photo buffer

	romBank    byte
	ramBank    byte
	ramEnabled bool
	regFile    bool

	sensor *sensor.Sensor
}

// photoSlotSize matches the real imaging cartridge's per-photo allocation:
// one 0x1000 region holding sensor.PhotoBufSize bytes of tile-planar image
// data plus its header strip. Saved photos live in SRAM banks 1+; bank 0
// is reserved for the sensor's live capture buffer.
const photoSlotSize = 0x1000

// maxPhotoSlots is the guest-documented photo album size (slots 1..30);
// SRAM is sized to hold all of them even when the header underreports
// cartridge RAM size, matching real imaging carts which report a smaller
// RAM size byte than their actual battery-backed SRAM.
const maxPhotoSlots = 30

func NewCamera(rom []byte, ramSize int) *Camera {
	c := &Camera{rom: rom, romBank: 1, sensor: sensor.New()}
	sz := ramSize - 0x2000 // bank 0 is reserved for the sensor's capture buffer
	if sz < maxPhotoSlots*photoSlotSize {
		sz = maxPhotoSlots * photoSlotSize
	}
	c.ram = make([]byte, sz)
	return c
}

func (c *Camera) SetCameraImage(gray []byte) { c.sensor.SetImage(gray) }

// DecodePhoto decodes a stored photo to RGBA. Slot 0 is the sensor's live
// capture buffer; slots 1..30 are saved photos living in fixed SRAM
// offsets. An out-of-range slot returns an empty slice; an in-range slot is
// always decoded, whether or not the guest has stored a photo in it.
func (c *Camera) DecodePhoto(slot int) []byte {
	var buf []byte
	switch {
	case slot == 0:
		buf = c.sensor.PhotoBuffer()
	case slot >= 1 && slot <= maxPhotoSlots:
		off := (slot - 1) * photoSlotSize
		if off+photoSlotSize > len(c.ram) {
			return []byte{}
		}
		buf = c.ram[off : off+photoSlotSize]
	default:
		return []byte{}
	}
	return decodeTilePlanarRGBA(buf)
}

// decodeTilePlanarRGBA renders a sensor.PhotoBufSize tile-planar 2bpp image
// region (the same layout the PPU uses for tile data) to RGBA8888.
func decodeTilePlanarRGBA(buf []byte) []byte {
	out := make([]byte, sensor.ImageWidth*sensor.ImageHeight*4)
	const tileCols = sensor.ImageWidth / 8
	shades := [4]byte{0xFF, 0xAA, 0x55, 0x00}
	for ty := 0; ty < sensor.ImageHeight/8; ty++ {
		for tx := 0; tx < tileCols; tx++ {
			tileOff := (ty*tileCols + tx) * 16
			if tileOff+16 > len(buf) {
				continue
			}
			for row := 0; row < 8; row++ {
				lo := buf[tileOff+row*2]
				hi := buf[tileOff+row*2+1]
				py := ty*8 + row
				for col := 0; col < 8; col++ {
					bit := uint(7 - col)
					idx := byte(0)
					if lo&(1<<bit) != 0 {
						idx |= 0x01
					}
					if hi&(1<<bit) != 0 {
						idx |= 0x02
					}
					px := tx*8 + col
					g := shades[idx]
					o := (py*sensor.ImageWidth + px) * 4
					out[o], out[o+1], out[o+2], out[o+3] = g, g, g, 0xFF
				}
			}
		}
	}
	return out
}

// Tick advances the sensor's busy-bit countdown; invoked by the bus's main
// tick loop via duck typing.
func (c *Camera) Tick(cycles int) { c.sensor.Tick(cycles) }

func (c *Camera) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(c.rom) {
			return c.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(c.romBank)
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(c.rom) {
			return c.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !c.ramEnabled {
			return 0xFF
		}
		if c.regFile {
			return c.sensor.ReadReg(byte(addr & 0x7F))
		}
		return c.readRAMBank(addr)
	default:
		return 0xFF
	}
}

func (c *Camera) readRAMBank(addr uint16) byte {
	if c.ramBank == 0 {
		return c.sensor.ReadPhotoByte(int(addr - 0xA000))
	}
	off := int(c.ramBank-1)*0x2000 + int(addr-0xA000)
	if len(c.ram) > 0 && off >= 0 && off < len(c.ram) {
		return c.ram[off]
	}
	return 0xFF
}

func (c *Camera) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		c.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		c.romBank = bank
	case addr < 0x6000:
		c.regFile = (value & 0x10) != 0
		c.ramBank = value & 0x0F
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !c.ramEnabled {
			return
		}
		if c.regFile {
			c.sensor.WriteReg(byte(addr&0x7F), value)
			return
		}
		c.writeRAMBank(addr, value)
	}
}

func (c *Camera) writeRAMBank(addr uint16, value byte) {
	if c.ramBank == 0 {
		c.sensor.WritePhotoByte(int(addr-0xA000), value)
		return
	}
	off := int(c.ramBank-1)*0x2000 + int(addr-0xA000)
	if len(c.ram) > 0 && off >= 0 && off < len(c.ram) {
		c.ram[off] = value
	}
}

func (c *Camera) SaveRAM() []byte {
	out := make([]byte, len(c.ram))
	copy(out, c.ram)
	return out
}

func (c *Camera) LoadRAM(data []byte) { copy(c.ram, data) }

type cameraState struct {
	RAM        []byte
	RomBank    byte
	RamBank    byte
	RamEnabled bool
	RegFile    bool
	Sensor     sensor.State
}

func (c *Camera) SaveState() []byte {
	var buf bytes.Buffer
	s := cameraState{RAM: c.SaveRAM(), RomBank: c.romBank, RamBank: c.ramBank, RamEnabled: c.ramEnabled, RegFile: c.regFile, Sensor: c.sensor.Snapshot()}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (c *Camera) LoadState(data []byte) {
	var s cameraState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	c.LoadRAM(s.RAM)
	c.romBank, c.ramBank, c.ramEnabled, c.regFile = s.RomBank, s.RamBank, s.RamEnabled, s.RegFile
	c.sensor.Restore(s.Sensor)
}
