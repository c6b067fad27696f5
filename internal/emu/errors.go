package emu

import "errors"

// ErrInvalidROM covers a malformed header, an unsupported cartridge type,
// or a ROM whose length disagrees with its declared size.
var ErrInvalidROM = errors.New("invalid rom")

// ErrInvalidSave covers save data whose length disagrees with the
// cartridge's declared RAM size.
var ErrInvalidSave = errors.New("invalid save data")
