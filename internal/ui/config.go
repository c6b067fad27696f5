package ui

// Config contains window/input related settings for the ebiten host shell.
type Config struct {
	Title   string // window title
	Scale   int    // integer upscaling factor
	ROMsDir string // directory to browse for ROMs

	// CameraImageDir, if non-empty, is watched for a "camera.gray" file (a
	// raw 128x112 8-bit grayscale frame); changes are fed into a loaded
	// imaging cartridge's sensor as a live capture source.
	CameraImageDir string
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.ROMsDir == "" {
		c.ROMsDir = "roms"
	}
}
