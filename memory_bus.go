// memory_bus.go - Z80 address space built from memory devices

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/


/*
memory_bus.go - Memory Bus for the Z80 emulator

The address space is an ordered list of memory devices. Each device occupies the range that starts
right after the previous one ends, so registration order alone decides the layout. The range table
is computed once at registration and can be queried; resolving an address is a linear scan of that
table.

Core Features:

    RAM and ROM devices, plus any custom MemDevice.
    Read-only enforcement on CPU writes, with a forced write path for image loading.
    Little-endian 16-bit access with wraparound on the high byte.
    Bulk image load that collects every failure instead of stopping at the first.
    Optional change tracking and read/write observer callbacks.

The bus is owned by the emulator core and is not safe for concurrent use. Devices that are shown
on another goroutine (see memview) guard their own storage.

*/

package z80emu

import (
	"errors"
	"fmt"
	"os"
)

const ADDRESS_SPACE_SIZE = 0x10000

var (
	ErrUnmappedAddress = errors.New("address not mapped")
	ErrOutOfBounds     = errors.New("device accessed out of bounds")
	ErrReadOnlyWrite   = errors.New("write to read-only memory")
	ErrAddressSpace    = errors.New("device does not fit in the address space")
)

// MemoryError carries the global address of a failed access.
type MemoryError struct {
	Op   string
	Addr uint16
	Err  error
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory %s at 0x%04X: %v", e.Op, e.Addr, e.Err)
}

func (e *MemoryError) Unwrap() error { return e.Err }

// LoadError reports a run of image offsets that could not be placed.
type LoadError struct {
	Offset int
	Count  int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Count > 1 {
		return fmt.Sprintf("load offsets 0x%04X-0x%04X: %v", e.Offset, e.Offset+e.Count-1, e.Err)
	}
	return fmt.Sprintf("load offset 0x%04X: %v", e.Offset, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MemRange is the global address range of one device. End is exclusive.
type MemRange struct {
	Start  int
	End    int
	Device MemDevice
}

type Memory struct {
	/*
		Memory is the CPU's view of the address space.

		ranges mirrors devices and is rebuilt only when a device is added,
		so lookups never recompute offsets. size is the sum of all device
		sizes; anything at or beyond it is unmapped.
	*/

	ranges []MemRange
	size   int

	trackChanges bool
	changes      []uint16

	onRead  func(addr uint16, value byte)
	onWrite func(addr uint16, value byte)
}

func NewMemory() *Memory {
	return &Memory{}
}

// NewDefaultMemory is 16K of RAM followed by 48K of RAM.
func NewDefaultMemory() *Memory {
	m := NewMemory()
	_ = m.AddDevice(NewRAM(0x4000))
	_ = m.AddDevice(NewRAM(0xC000))
	return m
}

func (m *Memory) AddDevice(dev MemDevice) error {
	/*
		AddDevice appends dev after the last registered device.

		A device that would push the total past 64K is rejected here
		instead of faulting on first access.
	*/

	if dev.Size() <= 0 {
		return fmt.Errorf("add device of size %d: %w", dev.Size(), ErrAddressSpace)
	}
	if m.size+dev.Size() > ADDRESS_SPACE_SIZE {
		return fmt.Errorf("add device of size 0x%X at 0x%04X: %w", dev.Size(), m.size, ErrAddressSpace)
	}
	m.ranges = append(m.ranges, MemRange{Start: m.size, End: m.size + dev.Size(), Device: dev})
	m.size += dev.Size()
	return nil
}

// Ranges returns a copy of the device range table in address order.
func (m *Memory) Ranges() []MemRange {
	out := make([]MemRange, len(m.ranges))
	copy(out, m.ranges)
	return out
}

func (m *Memory) Size() int { return m.size }

func (m *Memory) Devices() int { return len(m.ranges) }

func (m *Memory) resolve(addr uint16) (MemDevice, uint16, error) {
	a := int(addr)
	for _, r := range m.ranges {
		if a >= r.Start && a < r.End {
			return r.Device, uint16(a - r.Start), nil
		}
	}
	return nil, 0, ErrUnmappedAddress
}

func (m *Memory) Read8(addr uint16) (byte, error) {
	dev, off, err := m.resolve(addr)
	if err != nil {
		return 0, &MemoryError{Op: "read", Addr: addr, Err: err}
	}
	value, err := dev.Read(off)
	if err != nil {
		return 0, &MemoryError{Op: "read", Addr: addr, Err: err}
	}
	if m.onRead != nil {
		m.onRead(addr, value)
	}
	return value, nil
}

func (m *Memory) Write8(addr uint16, value byte) error {
	dev, off, err := m.resolve(addr)
	if err != nil {
		return &MemoryError{Op: "write", Addr: addr, Err: err}
	}
	if err := dev.Write(off, value); err != nil {
		return &MemoryError{Op: "write", Addr: addr, Err: err}
	}
	m.written(addr, value)
	return nil
}

// Write8Force writes through read-only protection.
func (m *Memory) Write8Force(addr uint16, value byte) error {
	dev, off, err := m.resolve(addr)
	if err != nil {
		return &MemoryError{Op: "write", Addr: addr, Err: err}
	}
	if err := dev.WriteForce(off, value); err != nil {
		return &MemoryError{Op: "write", Addr: addr, Err: err}
	}
	m.written(addr, value)
	return nil
}

// peek reads without firing the read callback.
func (m *Memory) peek(addr uint16) (byte, error) {
	dev, off, err := m.resolve(addr)
	if err != nil {
		return 0, err
	}
	return dev.Read(off)
}

// restore puts back a byte replaced by a rolled-back instruction. It
// bypasses protection, change tracking and callbacks.
func (m *Memory) restore(addr uint16, value byte) {
	if dev, off, err := m.resolve(addr); err == nil {
		_ = dev.WriteForce(off, value)
	}
}

func (m *Memory) changeMark() int { return len(m.changes) }

// dropChanges forgets writes recorded after mark.
func (m *Memory) dropChanges(mark int) {
	if mark < len(m.changes) {
		m.changes = m.changes[:mark]
	}
}

func (m *Memory) Read16(addr uint16) (uint16, error) {
	return read16(m.Read8, addr)
}

func (m *Memory) Write16(addr uint16, value uint16) error {
	return write16(m.Write8, addr, value)
}

func (m *Memory) Write16Force(addr uint16, value uint16) error {
	return write16(m.Write8Force, addr, value)
}

func (m *Memory) written(addr uint16, value byte) {
	if m.trackChanges {
		m.changes = append(m.changes, addr)
	}
	if m.onWrite != nil {
		m.onWrite(addr, value)
	}
}

// TrackChanges turns write recording on or off. Turning it off drops the
// current record.
func (m *Memory) TrackChanges(on bool) {
	m.trackChanges = on
	if !on {
		m.changes = nil
	}
}

// Changes lists every address written since the last ClearChanges, in
// write order. Repeated writes appear repeatedly.
func (m *Memory) Changes() []uint16 {
	out := make([]uint16, len(m.changes))
	copy(out, m.changes)
	return out
}

func (m *Memory) ClearChanges() {
	m.changes = m.changes[:0]
}

// OnRead registers a callback for every successful Read8. nil removes it.
func (m *Memory) OnRead(fn func(addr uint16, value byte)) {
	m.onRead = fn
}

// OnWrite registers a callback for every successful write, forced or not.
func (m *Memory) OnWrite(fn func(addr uint16, value byte)) {
	m.onWrite = fn
}

func (m *Memory) Load(data []byte) []error {
	/*
		Load places data at address 0, spanning devices in order.

		Writes are forced, so ROM regions take their image bytes. A device
		that still refuses a byte, and any bytes past the end of the
		address space, are reported as LoadErrors. Consecutive failures
		with the same cause are merged into one entry. Memory beyond the
		end of a short image is left as it was.
	*/

	var errs []error
	var run *LoadError
	flush := func() {
		if run != nil {
			errs = append(errs, run)
			run = nil
		}
	}
	note := func(offset int, err error) {
		if run != nil && run.Offset+run.Count == offset && errors.Is(err, run.Err) {
			run.Count++
			return
		}
		flush()
		run = &LoadError{Offset: offset, Count: 1, Err: rootCause(err)}
	}

	offset := 0
	for _, r := range m.ranges {
		for local := 0; local < r.End-r.Start && offset < len(data); local++ {
			if err := r.Device.WriteForce(uint16(local), data[offset]); err != nil {
				note(offset, err)
			} else {
				flush()
			}
			offset++
		}
	}
	if offset < len(data) {
		flush()
		run = &LoadError{Offset: offset, Count: len(data) - offset, Err: ErrOutOfBounds}
	}
	flush()
	return errs
}

func rootCause(err error) error {
	for _, sentinel := range []error{ErrReadOnlyWrite, ErrOutOfBounds, ErrUnmappedAddress} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return err
}

// LoadFile reads a raw image from disk and loads it.
func (m *Memory) LoadFile(path string) []error {
	data, err := os.ReadFile(path)
	if err != nil {
		return []error{fmt.Errorf("load %s: %w", path, err)}
	}
	return m.Load(data)
}

// Save concatenates every device's contents in registration order.
func (m *Memory) Save() ([]byte, error) {
	out := make([]byte, 0, m.size)
	for _, r := range m.ranges {
		for local := 0; local < r.End-r.Start; local++ {
			b, err := r.Device.Read(uint16(local))
			if err != nil {
				return nil, &MemoryError{Op: "save", Addr: uint16(r.Start + local), Err: err}
			}
			out = append(out, b)
		}
	}
	return out, nil
}

// SaveFile writes the raw image to path. An existing file is not replaced.
func (m *Memory) SaveFile(path string) error {
	data, err := m.Save()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	return f.Close()
}

// Clear zeroes every device that allows it.
func (m *Memory) Clear() error {
	for _, r := range m.ranges {
		if err := r.Device.Clear(); err != nil {
			return fmt.Errorf("clear device at 0x%04X: %w", r.Start, err)
		}
	}
	return nil
}
