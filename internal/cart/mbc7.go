package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC7 adds a 2-axis accelerometer and a 256-byte serial EEPROM to the usual
// ROM/RAM banking, as used by Kirby Tilt 'n' Tumble and Command Master.
// Tilt readings live at 0xA000-0xA0FF registers; the EEPROM is a 4-wire
// (93LC56-style) part addressed through 0xA080.
type MBC7 struct {
	rom []byte

	romBank byte
	raEnabled,
	rbEnabled bool

	tiltX, tiltY uint16 // centered at 0x81D0, saturating +-0x2000

	eeprom    [256]byte
	eeCS      bool
	eeCLK     bool
	eeDI      bool
	eeDO      bool
	eeState   int
	eeCmdBits uint16
	eeCmdLen  int
	eeAddr    byte
	eeData    uint16
	eeOpcode  int
	eeBitsOut int
}

const (
	eeIdle = iota
	eeReadCmd
	eeReadOut
	eeWriteCmd
	eeWriteIn
)

func NewMBC7(rom []byte) *MBC7 {
	return &MBC7{rom: rom, romBank: 1, tiltX: 0x81D0, tiltY: 0x81D0}
}

// SetTilt implements cart.Accelerometer. x/y are raw tilt deltas, clamped to
// the sensor's +-0x2000 range around the 0x81D0 center value, matching the
// real MBC7's analog-to-digital converter output range.
func (m *MBC7) SetTilt(x, y int16) {
	m.tiltX = clampTilt(0x81D0 + int32(x))
	m.tiltY = clampTilt(0x81D0 + int32(y))
}

func clampTilt(v int32) uint16 {
	const center = 0x81D0
	const span = 0x2000
	if v < center-span {
		v = center - span
	}
	if v > center+span {
		v = center + span
	}
	return uint16(v)
}

func (m *MBC7) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank)
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.raEnabled {
			return 0xFF
		}
		reg := addr & 0x00F0
		switch reg {
		case 0x0020:
			return byte(uint16(m.tiltX) & 0xFF)
		case 0x0030:
			return byte(uint16(m.tiltX) >> 8)
		case 0x0040:
			return byte(uint16(m.tiltY) & 0xFF)
		case 0x0050:
			return byte(uint16(m.tiltY) >> 8)
		case 0x0080:
			return m.eeReadBit()
		default:
			return 0xFF
		}
	default:
		return 0xFF
	}
}

func (m *MBC7) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.raEnabled = (value & 0x0F) == 0x0A
	case addr < 0x3000:
		m.rbEnabled = value == 0x40
	case addr < 0x4000:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.raEnabled || !m.rbEnabled {
			return
		}
		reg := addr & 0x00F0
		if reg == 0x0080 {
			m.eeWriteBits(value)
		}
	}
}

// eeWriteBits feeds the 4-wire EEPROM state machine one CS/CLK/DI sample,
// shifting in command and data bits on the CLK rising edge.
func (m *MBC7) eeWriteBits(value byte) {
	cs := value&0x80 != 0
	clk := value&0x40 != 0
	di := value&0x02 != 0

	risingClk := clk && !m.eeCLK
	m.eeCLK = clk
	if !cs {
		m.eeCS = false
		m.eeState = eeIdle
		m.eeCmdLen = 0
		m.eeCmdBits = 0
		return
	}
	if !m.eeCS {
		// CS just asserted: reset command shift register.
		m.eeState = eeReadCmd
		m.eeCmdLen = 0
		m.eeCmdBits = 0
	}
	m.eeCS = true
	m.eeDI = di

	if !risingClk {
		return
	}

	switch m.eeState {
	case eeReadCmd:
		m.eeCmdBits = (m.eeCmdBits << 1) | boolBit(di)
		m.eeCmdLen++
		if m.eeCmdLen == 10 { // start bit + 2 opcode bits + 7 address bits
			m.decodeEECommand()
		}
	case eeWriteIn:
		m.eeData = (m.eeData << 1) | boolBit(di)
		m.eeBitsOut++
		if m.eeBitsOut == 16 {
			m.eeprom[m.eeAddr*2] = byte(m.eeData >> 8)
			m.eeprom[m.eeAddr*2+1] = byte(m.eeData & 0xFF)
			m.eeState = eeIdle
		}
	}
}

func boolBit(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

func (m *MBC7) decodeEECommand() {
	bits := m.eeCmdBits
	opcode := (bits >> 7) & 0x03
	addr := byte(bits & 0x7F)
	m.eeAddr = addr
	m.eeOpcode = int(opcode)
	switch opcode {
	case 0x02: // READ
		m.eeData = uint16(m.eeprom[addr*2])<<8 | uint16(m.eeprom[addr*2+1])
		m.eeState = eeReadOut
		m.eeBitsOut = 0
	case 0x01: // WRITE
		m.eeState = eeWriteIn
		m.eeData = 0
		m.eeBitsOut = 0
	default:
		m.eeState = eeIdle
	}
}

// eeReadBit returns the next output bit (MSB first) while a READ is in
// progress, matching the real part's serial-out-on-DO behavior.
func (m *MBC7) eeReadBit() byte {
	if m.eeState != eeReadOut {
		if m.eeDO {
			return 0x01
		}
		return 0x00
	}
	bit := (m.eeData >> (15 - uint(m.eeBitsOut))) & 0x01
	m.eeBitsOut++
	if m.eeBitsOut >= 16 {
		m.eeState = eeIdle
	}
	if bit != 0 {
		return 0x01
	}
	return 0x00
}

func (m *MBC7) SaveRAM() []byte {
	out := make([]byte, len(m.eeprom))
	copy(out, m.eeprom[:])
	return out
}

func (m *MBC7) LoadRAM(data []byte) {
	copy(m.eeprom[:], data)
}

type mbc7State struct {
	EEPROM       [256]byte
	RomBank      byte
	RAEnabled    bool
	RBEnabled    bool
	TiltX, TiltY uint16
}

func (m *MBC7) SaveState() []byte {
	var buf bytes.Buffer
	s := mbc7State{EEPROM: m.eeprom, RomBank: m.romBank, RAEnabled: m.raEnabled, RBEnabled: m.rbEnabled, TiltX: m.tiltX, TiltY: m.tiltY}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (m *MBC7) LoadState(data []byte) {
	var s mbc7State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.eeprom, m.romBank, m.raEnabled, m.rbEnabled, m.tiltX, m.tiltY = s.EEPROM, s.RomBank, s.RAEnabled, s.RBEnabled, s.TiltX, s.TiltY
}
