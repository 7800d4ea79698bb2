package z80emu

import "fmt"

// MemDevice is one contiguous region of the address space. Addresses passed
// to a device are local offsets starting at zero.
type MemDevice interface {
	Size() int
	Read(addr uint16) (byte, error)
	Write(addr uint16, value byte) error
	// WriteForce ignores read-only protection. Used when loading images.
	WriteForce(addr uint16, value byte) error
	ReadOnly() bool
	Clear() error
}

// RAM is plain read/write memory.
type RAM struct {
	data []byte
}

func NewRAM(size int) *RAM {
	return &RAM{data: make([]byte, size)}
}

// NewRAMFrom wraps an existing byte slice. The slice is used in place.
func NewRAMFrom(data []byte) *RAM {
	return &RAM{data: data}
}

func (r *RAM) Size() int { return len(r.data) }

func (r *RAM) Read(addr uint16) (byte, error) {
	if int(addr) >= len(r.data) {
		return 0, outOfBounds(addr)
	}
	return r.data[addr], nil
}

func (r *RAM) Write(addr uint16, value byte) error {
	if int(addr) >= len(r.data) {
		return outOfBounds(addr)
	}
	r.data[addr] = value
	return nil
}

func (r *RAM) WriteForce(addr uint16, value byte) error {
	return r.Write(addr, value)
}

func (r *RAM) ReadOnly() bool { return false }

func (r *RAM) Clear() error {
	clear(r.data)
	return nil
}

// ROM rejects CPU writes. Contents are set at construction or by WriteForce.
type ROM struct {
	data []byte
}

func NewROM(size int) *ROM {
	return &ROM{data: make([]byte, size)}
}

// NewROMFrom copies data into a ROM of the same size.
func NewROMFrom(data []byte) *ROM {
	rom := &ROM{data: make([]byte, len(data))}
	copy(rom.data, data)
	return rom
}

func (r *ROM) Size() int { return len(r.data) }

func (r *ROM) Read(addr uint16) (byte, error) {
	if int(addr) >= len(r.data) {
		return 0, outOfBounds(addr)
	}
	return r.data[addr], nil
}

func (r *ROM) Write(addr uint16, value byte) error {
	if int(addr) >= len(r.data) {
		return outOfBounds(addr)
	}
	return fmt.Errorf("write 0x%02X at offset 0x%04X: %w", value, addr, ErrReadOnlyWrite)
}

func (r *ROM) WriteForce(addr uint16, value byte) error {
	if int(addr) >= len(r.data) {
		return outOfBounds(addr)
	}
	r.data[addr] = value
	return nil
}

func (r *ROM) ReadOnly() bool { return true }

// Clear leaves ROM contents alone.
func (r *ROM) Clear() error { return nil }

func outOfBounds(addr uint16) error {
	return fmt.Errorf("offset 0x%04X: %w", addr, ErrOutOfBounds)
}

// read16 and write16 build little-endian words from byte accesses; the
// high byte address wraps at 0xFFFF.
func read16(read func(uint16) (byte, error), addr uint16) (uint16, error) {
	lo, err := read(addr)
	if err != nil {
		return 0, err
	}
	hi, err := read(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func write16(write func(uint16, byte) error, addr uint16, value uint16) error {
	if err := write(addr, byte(value)); err != nil {
		return err
	}
	return write(addr+1, byte(value>>8))
}
