package ui

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/gbcam/emu/internal/sensor"
)

// cameraWatcher feeds a directory-resident "camera.gray" file (a raw
// 128x112 8-bit grayscale frame) into the machine's imaging cartridge
// whenever it changes, standing in for a live CMOS sensor feed.
type cameraWatcher struct {
	watcher *fsnotify.Watcher
	path    string
}

func newCameraWatcher(dir string) (*cameraWatcher, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &cameraWatcher{watcher: w, path: filepath.Join(dir, "camera.gray")}, nil
}

// poll drains pending fsnotify events non-blockingly and, if camera.gray
// changed, loads and returns the new frame. Returns nil if nothing changed.
func (cw *cameraWatcher) poll() []byte {
	if cw == nil || cw.watcher == nil {
		return nil
	}
	changed := false
	for {
		select {
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == cw.path {
				changed = true
			}
		case <-cw.watcher.Errors:
		default:
			goto drained
		}
	}
drained:
	if !changed {
		return nil
	}
	data, err := os.ReadFile(cw.path)
	if err != nil || len(data) != sensor.ImageWidth*sensor.ImageHeight {
		return nil
	}
	return data
}

func (cw *cameraWatcher) Close() {
	if cw != nil && cw.watcher != nil {
		cw.watcher.Close()
	}
}
