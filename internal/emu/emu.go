package emu

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gbcam/emu/internal/bus"
	"github.com/gbcam/emu/internal/cart"
	"github.com/gbcam/emu/internal/cpu"
)

// DotsPerFrame is the fixed dot-cycle length of one DMG frame (154 lines *
// 456 dots/line); StepFrame never advances the guest past this many dots
// even if VBlank never fires (e.g. LCD disabled).
const DotsPerFrame = 70224

// serialCapBytes bounds the internal serial capture ring; oldest bytes are
// evicted on overflow per the spec's "serial capture buffer is bounded"
// requirement.
const serialCapBytes = 64 * 1024

// Buttons mirrors the spec's button index table (0=A,1=B,2=Select,3=Start,
// 4=Right,5=Left,6=Up,7=Down) for callers that prefer a struct over indices.
type Buttons struct {
	A, B, Select, Start   bool
	Right, Left, Up, Down bool
}

var buttonBits = [8]byte{
	bus.JoypA, bus.JoypB, bus.JoypSelectBtn, bus.JoypStart,
	bus.JoypRight, bus.JoypLeft, bus.JoypUp, bus.JoypDown,
}

// Machine is the single owning handle over CPU, PPU, bus, and cartridge —
// the core API surface a host shell (or test) drives exclusively through
// this type's exported methods.
type Machine struct {
	mu sync.Mutex

	cfg Config
	w, h int

	bus *bus.Bus
	cpu *cpu.CPU

	ramSize   int
	buttons   byte
	serialCap *ringWriter
}

func New(cfg Config) *Machine {
	return &Machine{cfg: cfg, w: 160, h: 144}
}

// LoadROM parses the header, rejects unrecognized cartridge types or a
// length mismatch against the declared ROM size, and wires a fresh Bus/CPU
// pair around the resulting cartridge.
func (m *Machine) LoadROM(rom []byte) error {
	h, err := cart.ParseHeader(rom)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidROM, err)
	}
	if h.ROMSizeBytes > 0 && len(rom) != h.ROMSizeBytes {
		return fmt.Errorf("%w: rom is %d bytes, header declares %d", ErrInvalidROM, len(rom), h.ROMSizeBytes)
	}
	c, err := cart.NewCartridgeChecked(rom)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidROM, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ramSize = h.RAMSizeBytes
	m.bus = bus.NewWithCartridge(c)
	m.cpu = cpu.New(m.bus)
	m.cpu.ResetNoBoot()
	m.cpu.SetPC(0x0100)
	initPostBootIO(m.bus)
	m.buttons = 0
	m.serialCap = newRingWriter(serialCapBytes)
	m.bus.SetSerialWriter(m.serialCap)
	return nil
}

// LoadROMFromFile reads a ROM image from disk and loads it.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidROM, err)
	}
	return m.LoadROM(data)
}

// initPostBootIO seeds DMG post-boot I/O register defaults, matching what
// a real boot ROM leaves behind, since Machine always starts from 0x0100
// without executing one.
func initPostBootIO(b *bus.Bus) {
	b.Write(0xFF00, 0xCF)
	b.Write(0xFF05, 0x00) // TIMA
	b.Write(0xFF06, 0x00) // TMA
	b.Write(0xFF07, 0x00) // TAC
	b.Write(0xFF40, 0x91) // LCDC on with BG and sprites
	b.Write(0xFF42, 0x00) // SCY
	b.Write(0xFF43, 0x00) // SCX
	b.Write(0xFF45, 0x00) // LYC
	b.Write(0xFF47, 0xFC) // BGP
	b.Write(0xFF48, 0xFF) // OBP0
	b.Write(0xFF49, 0xFF) // OBP1
	b.Write(0xFF4A, 0x00) // WY
	b.Write(0xFF4B, 0x00) // WX
	b.Write(0xFFFF, 0x00) // IE
}

// LoadCartridgeRAM restores battery-backed cartridge RAM. The length must
// match the cartridge's declared RAM size.
func (m *Machine) LoadCartridgeRAM(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus == nil {
		return fmt.Errorf("%w: no cartridge loaded", ErrInvalidSave)
	}
	if len(data) != m.ramSize {
		return fmt.Errorf("%w: got %d bytes, cartridge declares %d", ErrInvalidSave, len(data), m.ramSize)
	}
	if bb, ok := m.bus.Cart().(cart.BatteryBacked); ok {
		bb.LoadRAM(data)
	}
	return nil
}

// GetCartridgeRAM returns a snapshot of the cartridge's battery-backed RAM
// (nil if the cartridge has none).
func (m *Machine) GetCartridgeRAM() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus == nil {
		return nil
	}
	if bb, ok := m.bus.Cart().(cart.BatteryBacked); ok {
		return bb.SaveRAM()
	}
	return nil
}

// StepFrame runs the guest for one frame, stopping at the VBlank-rising
// edge (or after DotsPerFrame dots if VBlank never fires, e.g. LCD off).
func (m *Machine) StepFrame() {
	m.runFrame()
}

// StepFrameNoRender is identical to StepFrame; the PPU always renders into
// its internal framebuffer as part of Tick, so there is no cheaper path —
// the name only promises the caller won't bother reading FrameBuffer.
func (m *Machine) StepFrameNoRender() {
	m.runFrame()
}

func (m *Machine) runFrame() {
	if m.cpu == nil {
		return
	}
	dots := 0
	for dots < DotsPerFrame {
		dots += m.cpu.Step()
		if m.bus.PPU().VBlankOccurred() {
			return
		}
	}
}

// StepInstruction executes exactly one CPU instruction.
func (m *Machine) StepInstruction() {
	if m.cpu == nil {
		return
	}
	m.cpu.Step()
}

// FrameBuffer returns the live 160x144 RGBA framebuffer. The returned slice
// aliases the PPU's internal buffer and is overwritten by later frames;
// callers that need a stable copy must copy it themselves.
func (m *Machine) FrameBuffer() []byte {
	if m.bus == nil {
		return make([]byte, m.w*m.h*4)
	}
	return m.bus.PPU().Frame()
}

// SetButton sets the pressed state of button index 0..7 (see Buttons).
func (m *Machine) SetButton(index int, pressed bool) {
	if index < 0 || index >= len(buttonBits) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if pressed {
		m.buttons |= buttonBits[index]
	} else {
		m.buttons &^= buttonBits[index]
	}
	if m.bus != nil {
		m.bus.SetJoypadState(m.buttons)
	}
}

// SetButtons applies a full Buttons snapshot in one call.
func (m *Machine) SetButtons(b Buttons) {
	flags := [8]bool{b.A, b.B, b.Select, b.Start, b.Right, b.Left, b.Up, b.Down}
	for i, pressed := range flags {
		m.SetButton(i, pressed)
	}
}

// SetAccelerometer forwards tilt readings (each clamped to [-0x2000,0x2000]
// by the cartridge) to an MBC7-style cartridge, a no-op otherwise.
func (m *Machine) SetAccelerometer(x, y int16) {
	if m.bus != nil {
		m.bus.SetAccelerometer(x, y)
	}
}

// SetCameraImage loads a host-supplied 128x112 luminance frame into the
// imaging cartridge's sensor, a no-op if none is present.
func (m *Machine) SetCameraImage(gray []byte) {
	if m.bus != nil {
		m.bus.SetCameraImage(gray)
	}
}

// DecodeCameraPhoto decodes photo slot 1..30 (or 0 for the sensor's live
// capture) to RGBA, returning nil if no imaging cartridge is present.
func (m *Machine) DecodeCameraPhoto(slot int) []byte {
	if m.bus == nil {
		return nil
	}
	return m.bus.DecodeCameraPhoto(slot)
}

// SetSerialWriter additionally streams serial output to w, on top of the
// internal bounded capture buffer GetSerialOutput reads from.
func (m *Machine) SetSerialWriter(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bus == nil {
		return
	}
	if w == nil {
		m.bus.SetSerialWriter(m.serialCap)
		return
	}
	m.bus.SetSerialWriter(io.MultiWriter(m.serialCap, w))
}

// GetSerialOutput returns the accumulated captured serial bytes as a string.
func (m *Machine) GetSerialOutput() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.serialCap == nil {
		return ""
	}
	return m.serialCap.String()
}

// CPURegisters is a snapshot of CPU-visible state for host diagnostics.
type CPURegisters struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME                    bool
	Halted, Locked         bool
}

// CPURegisters returns the current CPU register snapshot.
func (m *Machine) CPURegisters() CPURegisters {
	if m.cpu == nil {
		return CPURegisters{}
	}
	c := m.cpu
	return CPURegisters{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP, PC: c.PC, IME: c.IME, Locked: c.Locked(),
	}
}

// IORegisters is a snapshot of commonly-inspected PPU/IO registers.
type IORegisters struct {
	LCDC, STAT, SCY, SCX, LY, LYC byte
	BGP, OBP0, OBP1, WY, WX       byte
	IE, IF                        byte
}

// IORegisters returns a snapshot of PPU and interrupt registers.
func (m *Machine) IORegisters() IORegisters {
	if m.bus == nil {
		return IORegisters{}
	}
	p := m.bus.PPU()
	return IORegisters{
		LCDC: p.LCDC(), SCY: p.SCY(), SCX: p.SCX(),
		BGP: p.BGP(), OBP0: p.OBP0(), OBP1: p.OBP1(), WY: p.WY(), WX: p.WX(),
		LY:  m.bus.Read(0xFF44),
		LYC: m.bus.Read(0xFF45),
		STAT: m.bus.Read(0xFF41),
		IE:  m.bus.Read(0xFFFF),
		IF:  m.bus.Read(0xFF0F),
	}
}

// ReadMemory reads one byte from the guest's address space, for host
// diagnostics only (not part of the guest's own execution).
func (m *Machine) ReadMemory(addr uint16) byte {
	if m.bus == nil {
		return 0xFF
	}
	return m.bus.Read(addr)
}

// SaveState serializes CPU and bus (PPU + cartridge) state for a save
// state snapshot.
func (m *Machine) SaveState() []byte {
	if m.bus == nil {
		return nil
	}
	return m.bus.SaveState()
}

// LoadState restores a snapshot produced by SaveState. CPU registers are
// not included in Bus.SaveState, so the caller should treat this as
// restoring peripheral/memory state around an already-positioned CPU.
func (m *Machine) LoadState(data []byte) {
	if m.bus != nil {
		m.bus.LoadState(data)
	}
}
