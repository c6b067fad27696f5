package ui

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gbcam/emu/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// App is the ebiten-driven host shell around a Machine: it turns keyboard
// input into button/tilt state, paces emulation to the real DMG frame rate,
// and renders the framebuffer plus a small save-state/ROM-picker overlay.
type App struct {
	cfg      Config
	m        *emu.Machine
	tex      *ebiten.Image
	paused   bool
	fast     bool
	lastTime time.Time
	frameAcc float64

	romPath  string
	romTitle string

	camera *cameraWatcher
	tiltX  int16
	tiltY  int16
	photo  photoViewer

	showMenu bool
	menuIdx  int
	menuMode string // "main" | "slot" | "rom"

	currentSlot int // 0..3

	romList []string
	romSel  int
	romOff  int

	toastMsg   string
	toastUntil time.Time
}

func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	a := &App{cfg: cfg, m: m}
	a.lastTime = time.Now()
	if cw, err := newCameraWatcher(cfg.CameraImageDir); err == nil {
		a.camera = cw
	}
	a.romList = a.findROMs()
	if m == nil || a.romPath == "" {
		a.showMenu = true
		a.menuMode = "rom"
	}
	return a
}

// SetROM records the currently loaded ROM's path and title so save-state
// file names and the window title can reflect it; Machine itself does not
// track provenance.
func (a *App) SetROM(path, title string) {
	a.romPath = path
	a.romTitle = title
	w := a.cfg.Title
	if title != "" {
		w = a.cfg.Title + " - [" + title + "]"
	}
	ebiten.SetWindowTitle(w)
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	if cw := a.camera; cw != nil {
		if frame := cw.poll(); frame != nil {
			a.m.SetCameraImage(frame)
			a.toast("Camera frame updated")
		}
	}

	if !a.showMenu {
		var btn emu.Buttons
		if ebiten.IsKeyPressed(ebiten.KeyRight) {
			btn.Right = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyLeft) {
			btn.Left = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyUp) {
			btn.Up = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyDown) {
			btn.Down = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyZ) {
			btn.A = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyX) {
			btn.B = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyEnter) {
			btn.Start = true
		}
		if ebiten.IsKeyPressed(ebiten.KeyShiftRight) {
			btn.Select = true
		}
		a.m.SetButtons(btn)
		a.updateTilt()
	} else {
		a.m.SetButtons(emu.Buttons{})
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	if !a.showMenu && a.paused && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		a.m.StepFrame()
	}
	if !a.photo.active && inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.showMenu = !a.showMenu
		if a.showMenu {
			a.menuMode = "main"
			a.menuIdx = 0
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.Key1) {
		a.currentSlot = 0
		a.toast("Slot set to 1")
	}
	if inpututil.IsKeyJustPressed(ebiten.Key2) {
		a.currentSlot = 1
		a.toast("Slot set to 2")
	}
	if inpututil.IsKeyJustPressed(ebiten.Key3) {
		a.currentSlot = 2
		a.toast("Slot set to 3")
	}
	if inpututil.IsKeyJustPressed(ebiten.Key4) {
		a.currentSlot = 3
		a.toast("Slot set to 4")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		if err := a.saveSlot(a.currentSlot); err == nil {
			a.toast(fmt.Sprintf("Saved slot %d", a.currentSlot+1))
		} else {
			a.toast("Save failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		if err := a.loadSlot(a.currentSlot); err == nil {
			a.toast(fmt.Sprintf("Loaded slot %d", a.currentSlot+1))
		} else {
			a.toast("Load failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		_ = a.saveScreenshot()
	}
	if !a.showMenu && inpututil.IsKeyJustPressed(ebiten.KeyC) {
		a.togglePhotoViewer()
	}
	if a.photo.active {
		a.updatePhotoViewer()
	}

	if a.showMenu {
		a.updateMenu()
	}

	if !a.showMenu && !a.paused && !a.photo.active {
		now := time.Now()
		dt := now.Sub(a.lastTime).Seconds()
		if dt < 0 {
			dt = 0
		}
		a.lastTime = now
		gbFps := 4194304.0 / float64(emu.DotsPerFrame)
		speed := 1.0
		if a.fast {
			speed = 4.0
		}
		a.frameAcc += dt * gbFps * speed
		steps := 0
		for a.frameAcc >= 1.0 && steps < 10 {
			a.m.StepFrame()
			a.frameAcc -= 1.0
			steps++
		}
	} else {
		a.lastTime = time.Now()
	}

	return nil
}

// updateTilt drives the MBC7 accelerometer from IJKL, ramping toward full
// deflection while held and relaxing back to level when released.
func (a *App) updateTilt() {
	const step = 2048
	const max = 0x2000
	target := func(neg, pos bool, cur int16) int16 {
		switch {
		case neg && !pos:
			if cur > -max {
				cur -= step
			}
		case pos && !neg:
			if cur < max {
				cur += step
			}
		default:
			if cur > step {
				cur -= step
			} else if cur < -step {
				cur += step
			} else {
				cur = 0
			}
		}
		if cur > max {
			cur = max
		}
		if cur < -max {
			cur = -max
		}
		return cur
	}
	a.tiltX = target(ebiten.IsKeyPressed(ebiten.KeyJ), ebiten.IsKeyPressed(ebiten.KeyL), a.tiltX)
	a.tiltY = target(ebiten.IsKeyPressed(ebiten.KeyI), ebiten.IsKeyPressed(ebiten.KeyK), a.tiltY)
	a.m.SetAccelerometer(a.tiltX, a.tiltY)
}

func (a *App) updateMenu() {
	switch a.menuMode {
	case "main":
		const max = 4
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
			a.menuIdx--
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < max {
			a.menuIdx++
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			switch a.menuIdx {
			case 0:
				if err := a.saveSlot(a.currentSlot); err == nil {
					a.toast(fmt.Sprintf("Saved slot %d", a.currentSlot+1))
				} else {
					a.toast("Save failed: " + err.Error())
				}
			case 1:
				if err := a.loadSlot(a.currentSlot); err == nil {
					a.toast(fmt.Sprintf("Loaded slot %d", a.currentSlot+1))
				} else {
					a.toast("Load failed: " + err.Error())
				}
			case 2:
				a.menuMode = "slot"
				a.menuIdx = a.currentSlot
			case 3:
				a.romList = a.findROMs()
				a.romSel = 0
				a.romOff = 0
				a.menuMode = "rom"
			case 4:
				a.showMenu = false
			}
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.showMenu = false
		}
	case "slot":
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
			a.menuIdx--
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < 3 {
			a.menuIdx++
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			a.currentSlot = a.menuIdx
			a.toast(fmt.Sprintf("Slot set to %d", a.currentSlot+1))
			a.menuMode = "main"
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.menuMode = "main"
		}
	case "rom":
		n := len(a.romList)
		if n == 0 {
			if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
				a.menuMode = "main"
			}
			return
		}
		baseY := 40
		maxRows := (144 - baseY) / 14
		if maxRows < 1 {
			maxRows = 1
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.romSel > 0 {
			a.romSel--
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.romSel < n-1 {
			a.romSel++
		}
		if a.romSel < a.romOff {
			a.romOff = a.romSel
		}
		if a.romSel >= a.romOff+maxRows {
			a.romOff = a.romSel - maxRows + 1
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			path := a.romList[a.romSel]
			if err := a.m.LoadROMFromFile(path); err == nil {
				a.toast("Loaded ROM: " + filepath.Base(path))
				if sav, serr := os.ReadFile(savPath(path)); serr == nil {
					_ = a.m.LoadCartridgeRAM(sav)
				}
				a.SetROM(path, "")
			} else {
				a.toast("ROM load failed: " + err.Error())
			}
			a.menuMode = "main"
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.menuMode = "main"
		}
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.tex.WritePixels(a.m.FrameBuffer())
	screen.DrawImage(a.tex, nil)

	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.truncateText(a.toastMsg, a.maxCharsForText(6)), 6, 4)
	}

	a.drawPhotoViewer(screen)

	if a.showMenu {
		overlay := ebiten.NewImage(160, 144)
		overlay.Fill(color.RGBA{0, 0, 0, 140})
		screen.DrawImage(overlay, nil)
		switch a.menuMode {
		case "main":
			lines := []string{
				"Menu:",
				fmt.Sprintf("  Save state (slot %d)", a.currentSlot+1),
				fmt.Sprintf("  Load state (slot %d)", a.currentSlot+1),
				"  Select Slot",
				"  Switch ROM",
				"  Close",
			}
			for i, s := range lines {
				prefix := "  "
				if i == a.menuIdx+1 {
					prefix = "> "
				}
				ebitenutil.DebugPrintAt(screen, prefix+s, 10, 10+i*14)
			}
			hint := "F5: Save  F9: Load  1-4: Slot  F11: Fullscreen"
			ebitenutil.DebugPrintAt(screen, a.truncateText(hint, a.maxCharsForText(10)), 10, 10+len(lines)*14)
		case "slot":
			lines := []string{"Select Slot:"}
			for i := 0; i < 4; i++ {
				state := "[empty]"
				if _, err := os.Stat(a.statePath(i)); err == nil {
					state = ""
				}
				lines = append(lines, fmt.Sprintf("  %d %s", i+1, state))
			}
			for i, s := range lines {
				prefix := "  "
				if i == a.menuIdx+1 {
					prefix = "> "
				}
				ebitenutil.DebugPrintAt(screen, prefix+s, 10, 10+i*14)
			}
		case "rom":
			ebitenutil.DebugPrintAt(screen, "Select ROM (Enter to load, Esc to return)", 10, 10)
			d := a.truncateText("Dir: "+a.cfg.ROMsDir, a.maxCharsForText(10))
			ebitenutil.DebugPrintAt(screen, d, 10, 24)
			if len(a.romList) == 0 {
				ebitenutil.DebugPrintAt(screen, "No ROMs found", 10, 40)
			}
			baseY := 40
			maxRows := (144 - baseY) / 14
			if maxRows < 1 {
				maxRows = 1
			}
			end := a.romOff + maxRows
			if end > len(a.romList) {
				end = len(a.romList)
			}
			maxChars := a.maxCharsForText(10) - 2
			for i, p := range a.romList[a.romOff:end] {
				prefix := "  "
				if a.romOff+i == a.romSel {
					prefix = "> "
				}
				name := a.truncateText(filepath.Base(p), maxChars)
				ebitenutil.DebugPrintAt(screen, prefix+name, 10, baseY+i*14)
			}
		}
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return 160, 144 }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) findROMs() []string {
	var files []string
	addFrom := func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ln := strings.ToLower(e.Name())
			if strings.HasSuffix(ln, ".gb") {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	addFrom(a.cfg.ROMsDir)
	sort.Strings(files)
	return files
}

func savPath(romPath string) string {
	return strings.TrimSuffix(romPath, ".gb") + ".sav"
}

func (a *App) statePath(slot int) string {
	base := a.romPath
	if base == "" {
		base = "unknown.gb"
	}
	return fmt.Sprintf("%s.slot%d.savestate", base, slot)
}

func (a *App) saveSlot(slot int) error {
	return os.WriteFile(a.statePath(slot), a.m.SaveState(), 0644)
}

func (a *App) loadSlot(slot int) error {
	data, err := os.ReadFile(a.statePath(slot))
	if err != nil {
		return err
	}
	a.m.LoadState(data)
	return nil
}

func (a *App) maxCharsForText(left int) int {
	w := 160 - left - 4
	if w < 6 {
		return 1
	}
	return w / 6
}

func (a *App) truncateText(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func (a *App) saveScreenshot() error {
	fb := a.m.FrameBuffer()
	img := &image.RGBA{
		Pix:    make([]byte, len(fb)),
		Stride: 4 * 160,
		Rect:   image.Rect(0, 0, 160, 144),
	}
	copy(img.Pix, fb)
	name := fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
