package main

import (
	"errors"
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gbcam/emu/internal/cart"
	"github.com/gbcam/emu/internal/emu"
	"github.com/gbcam/emu/internal/ui"
)

// fileConfig is the optional TOML config file (-config) layered under the
// CLI flags; flags explicitly set on the command line win.
type fileConfig struct {
	Scale          int    `toml:"scale"`
	Title          string `toml:"title"`
	ROMsDir        string `toml:"roms_dir"`
	CameraImageDir string `toml:"camera_image_dir"`
	SaveRAM        bool   `toml:"save_ram"`
}

type CLIFlags struct {
	ROMPath    string
	ConfigPath string
	Scale      int
	Title      string
	Trace      bool
	SaveRAM    bool
	ROMsDir    string
	CameraDir  string

	Headless bool
	Frames   int
	PNGOut   string
	Expect   string
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.ConfigPath, "config", "", "optional TOML config file")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "gbemu", "window title")
	flag.BoolVar(&f.Trace, "trace", false, "CPU trace log")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist battery RAM to ROM.sav on exit and load on start")
	flag.StringVar(&f.ROMsDir, "romsdir", "roms", "directory to browse for ROMs in the picker")
	flag.StringVar(&f.CameraDir, "cameradir", "", "directory watched for a camera.gray live-capture frame")

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.Parse()

	if f.ConfigPath != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(f.ConfigPath, &fc); err != nil {
			log.Fatalf("read config %s: %v", f.ConfigPath, err)
		}
		applyConfigDefaults(&f, fc)
	}
	return f
}

// applyConfigDefaults fills flag-default (i.e. unset-on-the-CLI) fields from
// the TOML file. Flags whose value differs from the flag package's default
// were explicitly set and are left untouched.
func applyConfigDefaults(f *CLIFlags, fc fileConfig) {
	if f.Scale == 3 && fc.Scale > 0 {
		f.Scale = fc.Scale
	}
	if f.Title == "gbemu" && fc.Title != "" {
		f.Title = fc.Title
	}
	if f.ROMsDir == "roms" && fc.ROMsDir != "" {
		f.ROMsDir = fc.ROMsDir
	}
	if f.CameraDir == "" && fc.CameraImageDir != "" {
		f.CameraDir = fc.CameraImageDir
	}
}

func runHeadless(m *emu.Machine, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		m.StepFrame()
	}
	dur := time.Since(start)

	fb := m.FrameBuffer()
	crc := crc32.ChecksumIEEE(fb)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := saveFramePNG(fb, 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}
	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    make([]byte, len(pix)),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	copy(img.Pix, pix)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func main() {
	f := parseFlags()

	emuCfg := emu.Config{Trace: f.Trace, LimitFPS: false}
	m := emu.New(emuCfg)

	var savPath string
	if f.ROMPath != "" {
		abs, err := filepath.Abs(f.ROMPath)
		if err != nil {
			abs = f.ROMPath
		}
		if err := m.LoadROMFromFile(abs); err != nil {
			log.Fatalf("load rom: %v", err)
		}
		if rom, rerr := os.ReadFile(abs); rerr == nil {
			if h, herr := cart.ParseHeader(rom); herr == nil {
				log.Printf("ROM: %q type=%s banks=%d ram=%dB", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes)
			}
		}
		if f.SaveRAM {
			savPath = strings.TrimSuffix(abs, ".gb") + ".sav"
			if data, err := os.ReadFile(savPath); err == nil {
				if err := m.LoadCartridgeRAM(data); err != nil && !errors.Is(err, emu.ErrInvalidSave) {
					log.Printf("load save RAM: %v", err)
				} else if err == nil {
					log.Printf("loaded save RAM: %s (%d bytes)", savPath, len(data))
				}
			}
		}
	}

	writeSave := func() {
		if !f.SaveRAM || savPath == "" {
			return
		}
		if data := m.GetCartridgeRAM(); data != nil {
			if err := os.WriteFile(savPath, data, 0644); err == nil {
				log.Printf("wrote %s", savPath)
			}
		}
	}

	if f.Headless {
		if err := runHeadless(m, f.Frames, f.PNGOut, f.Expect); err != nil {
			log.Fatal(err)
		}
		writeSave()
		return
	}

	uiCfg := ui.Config{Title: f.Title, Scale: f.Scale, ROMsDir: f.ROMsDir, CameraImageDir: f.CameraDir}
	app := ui.NewApp(uiCfg, m)
	if f.ROMPath != "" {
		title := ""
		if rom, rerr := os.ReadFile(f.ROMPath); rerr == nil {
			if h, herr := cart.ParseHeader(rom); herr == nil {
				title = h.Title
			}
		}
		app.SetROM(f.ROMPath, title)
	}
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
	writeSave()
}
