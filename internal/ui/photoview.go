package ui

import (
	"fmt"
	"image"

	"github.com/gbcam/emu/internal/sensor"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/draw"
)

// photoViewer browses decoded camera photo slots (0 = live capture, 1..30 =
// saved photos), upscaling the 128x112 RGBA preview to fill the window with
// golang.org/x/image/draw rather than ebiten's own nearest-neighbor scaling,
// since this is an off-screen still image rather than the live game feed.
type photoViewer struct {
	active bool
	slot   int
	tex    *ebiten.Image
	dirty  bool
}

func (a *App) togglePhotoViewer() {
	a.photo.active = !a.photo.active
	a.photo.dirty = true
}

func (a *App) updatePhotoViewer() {
	if !a.photo.active {
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
		a.photo.slot = (a.photo.slot + 1) % 31
		a.photo.dirty = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
		a.photo.slot = (a.photo.slot + 30) % 31
		a.photo.dirty = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyC) {
		a.photo.active = false
	}
}

func (a *App) drawPhotoViewer(screen *ebiten.Image) {
	if !a.photo.active {
		return
	}
	rgba := a.m.DecodeCameraPhoto(a.photo.slot)
	if len(rgba) != sensor.ImageWidth*sensor.ImageHeight*4 {
		ebitenutil.DebugPrintAt(screen, "slot empty", 10, 70)
		drawSlotLabel(screen, a.photo.slot)
		return
	}
	if a.photo.dirty || a.photo.tex == nil {
		src := &image.RGBA{Pix: rgba, Stride: sensor.ImageWidth * 4, Rect: image.Rect(0, 0, sensor.ImageWidth, sensor.ImageHeight)}
		dst := image.NewRGBA(image.Rect(0, 0, 160, 140))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
		a.photo.tex = ebiten.NewImageFromImage(dst)
		a.photo.dirty = false
	}
	screen.DrawImage(a.photo.tex, nil)
	drawSlotLabel(screen, a.photo.slot)
}

func drawSlotLabel(screen *ebiten.Image, slot int) {
	label := "Live capture (slot 0)  Left/Right: browse  C/Esc: close"
	if slot > 0 {
		label = fmt.Sprintf("Saved photo %d/30  Left/Right: browse  C/Esc: close", slot)
	}
	ebitenutil.DebugPrintAt(screen, label, 4, 4)
}
