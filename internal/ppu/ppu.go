package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// LineRegs snapshots the registers that matter for pixel composition at the
// moment a scanline enters mode 3 (pixel transfer), mirroring how real
// hardware latches SCX/SCY/WX/WY/palettes per line rather than per dot.
type LineRegs struct {
	LY, SCX, SCY, WX, WY   byte
	BGP, OBP0, OBP1, LCDC  byte
	WinLine                int
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, mode timing, and full BG +
// window + sprite pixel composition into an RGBA frame buffer.
type PPU struct {
	// memory
	vram [0x2000]byte // 0x8000–0x9FFF
	oam  [0xA0]byte   // 0xFE00–0xFE9F

	// regs
	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	req InterruptRequester

	prevStatLine bool

	winLineCounter     int
	winTriggeredFrame  bool

	lines [144]LineRegs

	frame    [160 * 144 * 4]byte
	frameRdy bool
}

func New(req InterruptRequester) *PPU { return &PPU{req: req} }

// Read implements VRAMReader for the sprite/fetcher helpers operating on this PPU's VRAM.
func (p *PPU) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return p.vram[addr-0x8000]
	}
	return 0xFF
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			p.ly = 0
			p.dot = 0
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.winLineCounter = 0
			p.winTriggeredFrame = false
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
		p.updateStatIRQ()
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// Tick advances PPU state by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 { // LCD off
			continue
		}
		p.dot++
		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot < 80+172:
				mode = 3
			default:
				mode = 0
			}
		}
		p.setMode(mode)

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0) // VBlank IF always fires at LY=144
				}
				p.frameRdy = true
			} else if p.ly > 153 {
				p.ly = 0
				p.winLineCounter = 0
				p.winTriggeredFrame = false
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	if prev == mode {
		p.updateStatIRQ()
		return
	}
	if mode == 3 && int(p.ly) < 144 {
		p.beginScanline(int(p.ly))
	}
	if mode == 0 && int(p.ly) < 144 {
		p.renderScanline(int(p.ly))
	}
	p.updateStatIRQ()
}

// beginScanline latches the registers for this line and advances the window
// line counter, matching real hardware's per-scanline register capture.
func (p *PPU) beginScanline(ly int) {
	windowVisible := (p.lcdc&0x20) != 0 && ly >= int(p.wy) && p.wx <= 166
	if windowVisible {
		if !p.winTriggeredFrame {
			p.winLineCounter = 0
			p.winTriggeredFrame = true
		} else {
			p.winLineCounter++
		}
	}
	p.lines[ly] = LineRegs{
		LY: byte(ly), SCX: p.scx, SCY: p.scy, WX: p.wx, WY: p.wy,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, LCDC: p.lcdc,
		WinLine: p.winLineCounter,
	}
}

// LineRegs returns the registers latched for scanline y at the start of its
// pixel-transfer mode.
func (p *PPU) LineRegs(y int) LineRegs { return p.lines[y] }

func (p *PPU) updateStatIRQ() {
	cur := p.statLine()
	if cur && !p.prevStatLine {
		if p.req != nil {
			p.req(1)
		}
	}
	p.prevStatLine = cur
}

// statLine computes the combined STAT interrupt source: the DMG fires the
// STAT interrupt on a 0->1 transition of the OR of its four enabled sources,
// not independently per source.
func (p *PPU) statLine() bool {
	if (p.lcdc & 0x80) == 0 {
		return false
	}
	mode := p.stat & 0x03
	lycHit := (p.stat & (1 << 2)) != 0
	hblank := mode == 0 && (p.stat&(1<<3)) != 0
	oam := mode == 2 && (p.stat&(1<<5)) != 0
	vblank := mode == 1 && (p.stat&(1<<4)) != 0
	lyc := lycHit && (p.stat&(1<<6)) != 0
	return hblank || oam || vblank || lyc
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
	p.updateStatIRQ()
}

func (p *PPU) renderScanline(ly int) {
	lr := p.lines[ly]
	var bgci [160]byte
	if (lr.LCDC & 0x01) != 0 {
		tileData8000 := (lr.LCDC & 0x10) != 0
		bgMapBase := uint16(0x9800)
		if (lr.LCDC & 0x08) != 0 {
			bgMapBase = 0x9C00
		}
		bgci = RenderBGScanlineUsingFetcher(p, bgMapBase, tileData8000, lr.SCX, lr.SCY, lr.LY)

		windowVisible := (lr.LCDC&0x20) != 0 && int(lr.LY) >= int(lr.WY) && lr.WX <= 166
		if windowVisible {
			winMapBase := uint16(0x9800)
			if (lr.LCDC & 0x40) != 0 {
				winMapBase = 0x9C00
			}
			wxStart := int(lr.WX) - 7
			if wxStart < 0 {
				wxStart = 0
			}
			win := RenderWindowScanlineUsingFetcher(p, winMapBase, tileData8000, wxStart, byte(lr.WinLine))
			for x := wxStart; x < 160; x++ {
				bgci[x] = win[x]
			}
		}
	}

	var sci [160]byte
	var useOBP1 [160]bool
	if (lr.LCDC & 0x02) != 0 {
		sprites := p.oamScanLine(ly)
		sci, useOBP1 = composeSpriteLineFull(p, sprites, ly, bgci, (lr.LCDC&0x04) != 0)
	}

	for x := 0; x < 160; x++ {
		ci := bgci[x]
		pal := lr.BGP
		if sci[x] != 0 {
			ci = sci[x]
			if useOBP1[x] {
				pal = lr.OBP1
			} else {
				pal = lr.OBP0
			}
		}
		shade := (pal >> (ci * 2)) & 0x03
		gray := shadeToGray(shade)
		off := (ly*160 + x) * 4
		p.frame[off+0] = gray
		p.frame[off+1] = gray
		p.frame[off+2] = gray
		p.frame[off+3] = 0xFF
	}
}

func shadeToGray(shade byte) byte {
	switch shade {
	case 0:
		return 0xFF
	case 1:
		return 0xAA
	case 2:
		return 0x55
	default:
		return 0x00
	}
}

// Frame returns the current 160x144 RGBA frame buffer. The slice aliases
// PPU-owned storage and is overwritten on the next render; callers that need
// to retain a frame must copy it.
func (p *PPU) Frame() []byte { return p.frame[:] }

// VBlankOccurred reports and clears whether a VBlank boundary was crossed
// since the last call, for Machine.StepFrame to detect frame completion.
func (p *PPU) VBlankOccurred() bool {
	v := p.frameRdy
	p.frameRdy = false
	return v
}

type ppuState struct {
	VRAM                             [0x2000]byte
	OAM                              [0xA0]byte
	LCDC, STAT, SCY, SCX, LY, LYC    byte
	BGP, OBP0, OBP1, WY, WX          byte
	Dot                              int
	PrevStatLine                     bool
	WinLineCounter                   int
	WinTriggeredFrame                bool
	Lines                            [144]LineRegs
}

// SaveState serializes VRAM, OAM, registers, and timing state for save states.
func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	s := ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, PrevStatLine: p.prevStatLine,
		WinLineCounter: p.winLineCounter, WinTriggeredFrame: p.winTriggeredFrame,
		Lines: p.lines,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

// LoadState restores a state produced by SaveState. The frame buffer is left
// as-is; the next full frame will repaint it.
func (p *PPU) LoadState(data []byte) {
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.prevStatLine = s.Dot, s.PrevStatLine
	p.winLineCounter, p.winTriggeredFrame = s.WinLineCounter, s.WinTriggeredFrame
	p.lines = s.Lines
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
