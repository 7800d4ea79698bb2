// Package memview shows a memory region as pixels. The region is an
// ordinary RAM device on the emulator's memory map; a window, when opened,
// draws each byte as one RGB332 pixel.
package memview

import (
	"errors"
	"fmt"
	"image/color"
	"sync"

	z80 "github.com/intuitionamiga/z80emu"
)

const (
	DefaultScale = 4
	eventBuffer  = 16
)

var ErrBadWidth = errors.New("width does not divide the region size")

type eventKind int

const (
	eventSetWidth eventKind = iota
	eventSetScale
	eventStop
)

type event struct {
	kind  eventKind
	value int
}

// MemViz is a MemDevice whose bytes are also a framebuffer. The display
// goroutine only ever copies the buffer out under the lock.
type MemViz struct {
	mu   sync.Mutex
	data []byte

	width  int
	scale  int
	status func() string
	paste  func([]byte)

	events   chan event
	done     chan struct{}
	doneOnce sync.Once
}

// New makes a region of size bytes laid out width pixels per row.
func New(size, width int) (*MemViz, error) {
	if size <= 0 || size > 0x10000 {
		return nil, fmt.Errorf("memview: size %d: %w", size, z80.ErrAddressSpace)
	}
	if width <= 0 || size%width != 0 {
		return nil, fmt.Errorf("memview: %d bytes at width %d: %w", size, width, ErrBadWidth)
	}
	return &MemViz{
		data:   make([]byte, size),
		width:  width,
		scale:  DefaultScale,
		events: make(chan event, eventBuffer),
		done:   make(chan struct{}),
	}, nil
}

func (v *MemViz) Size() int { return len(v.data) }

func (v *MemViz) Read(addr uint16) (byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if int(addr) >= len(v.data) {
		return 0, fmt.Errorf("offset 0x%04X: %w", addr, z80.ErrOutOfBounds)
	}
	return v.data[addr], nil
}

func (v *MemViz) Write(addr uint16, value byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if int(addr) >= len(v.data) {
		return fmt.Errorf("offset 0x%04X: %w", addr, z80.ErrOutOfBounds)
	}
	v.data[addr] = value
	return nil
}

func (v *MemViz) WriteForce(addr uint16, value byte) error {
	return v.Write(addr, value)
}

func (v *MemViz) ReadOnly() bool { return false }

func (v *MemViz) Clear() error {
	v.mu.Lock()
	clear(v.data)
	v.mu.Unlock()
	return nil
}

// Snapshot copies the region.
func (v *MemViz) Snapshot() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]byte, len(v.data))
	copy(out, v.data)
	return out
}

// Dimensions is the current layout in pixels.
func (v *MemViz) Dimensions() (width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, len(v.data) / v.width
}

// SetStatus installs the text drawn under the picture.
func (v *MemViz) SetStatus(fn func() string) {
	v.mu.Lock()
	v.status = fn
	v.mu.Unlock()
}

// OnPaste receives clipboard text pasted into the window.
func (v *MemViz) OnPaste(fn func([]byte)) {
	v.mu.Lock()
	v.paste = fn
	v.mu.Unlock()
}

func (v *MemViz) statusText() string {
	v.mu.Lock()
	fn := v.status
	v.mu.Unlock()
	if fn == nil {
		return ""
	}
	return fn()
}

// SetWidth relays out the picture. Widths that do not divide the region
// size are rejected.
func (v *MemViz) SetWidth(width int) error {
	if width <= 0 || len(v.data)%width != 0 {
		return fmt.Errorf("memview: width %d: %w", width, ErrBadWidth)
	}
	v.send(event{kind: eventSetWidth, value: width})
	return nil
}

func (v *MemViz) SetScale(scale int) {
	if scale < 1 {
		scale = 1
	}
	v.send(event{kind: eventSetScale, value: scale})
}

// Stop closes the window. Done is closed once it has gone.
func (v *MemViz) Stop() {
	v.send(event{kind: eventStop})
}

func (v *MemViz) Done() <-chan struct{} { return v.done }

func (v *MemViz) send(ev event) {
	select {
	case v.events <- ev:
	case <-v.done:
	default:
		z80.Log.WithField("event", ev.kind).Warn("memview: event queue full, dropped")
	}
}

// apply handles one queued event and reports whether the view should stop.
func (v *MemViz) apply(ev event) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch ev.kind {
	case eventSetWidth:
		v.width = ev.value
	case eventSetScale:
		v.scale = ev.value
	case eventStop:
		return true
	}
	return false
}

// drain applies every queued event without blocking.
func (v *MemViz) drain() (stop bool) {
	for {
		select {
		case ev := <-v.events:
			if v.apply(ev) {
				stop = true
			}
		default:
			return stop
		}
	}
}

func (v *MemViz) finish() {
	v.doneOnce.Do(func() { close(v.done) })
}

// RGB332 expands a byte to its pixel colour: three bits red, three green,
// two blue.
func RGB332(b byte) color.RGBA {
	return color.RGBA{R: b & 0xE0, G: (b & 0x1C) << 3, B: (b & 0x03) << 6, A: 0xFF}
}

// toRGBA converts a snapshot into an RGBA pixel buffer.
func toRGBA(dst, src []byte) []byte {
	if cap(dst) < len(src)*4 {
		dst = make([]byte, len(src)*4)
	}
	dst = dst[:len(src)*4]
	for i, b := range src {
		c := RGB332(b)
		dst[i*4] = c.R
		dst[i*4+1] = c.G
		dst[i*4+2] = c.B
		dst[i*4+3] = c.A
	}
	return dst
}
