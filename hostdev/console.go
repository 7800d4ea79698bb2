// Package hostdev provides I/O devices that connect an emulated machine to
// the host: a character console and a one-bit speaker.
package hostdev

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/term"

	z80 "github.com/intuitionamiga/z80emu"
)

const (
	DefaultStatusPort = 0x00
	DefaultDataPort   = 0x01

	StatusInputReady = 0x01

	consoleBuffer = 256
)

type ConsoleConfig struct {
	StatusPort uint8
	DataPort   uint8
	In         io.Reader // nil for no input
	Out        io.Writer // nil discards output
	// Interrupt, when set, requests a maskable interrupt with Vector
	// whenever input arrives. It does not wake a halted CPU; a program
	// waiting for input must loop rather than HALT.
	Interrupt bool
	Vector    byte
}

// Console is a two-port character device. Reading the data port pops one
// input byte (0 when empty); writing it prints a byte. The status port
// reports StatusInputReady.
type Console struct {
	cfg ConsoleConfig

	input   chan byte
	peek    int // next byte, or -1
	irq     atomic.Bool
	stopCh  chan struct{}
	stopped sync.Once

	fd           int
	oldTermState *term.State
}

func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.StatusPort == cfg.DataPort {
		cfg.StatusPort, cfg.DataPort = DefaultStatusPort, DefaultDataPort
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	return &Console{
		cfg:    cfg,
		input:  make(chan byte, consoleBuffer),
		peek:   -1,
		stopCh: make(chan struct{}),
	}
}

// Start begins reading cfg.In. When it is a terminal, stdin is put into
// raw mode until Close.
func (c *Console) Start() error {
	if c.cfg.In == nil {
		return nil
	}
	if f, ok := c.cfg.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.fd = int(f.Fd())
		old, err := term.MakeRaw(c.fd)
		if err != nil {
			return fmt.Errorf("console: raw mode: %w", err)
		}
		c.oldTermState = old
	}
	go c.readLoop()
	return nil
}

func (c *Console) readLoop() {
	buf := make([]byte, 1)
	for {
		n, err := c.cfg.In.Read(buf)
		if n > 0 {
			b := buf[0]
			// Raw mode sends CR for Enter and DEL for Backspace.
			switch b {
			case '\r':
				b = '\n'
			case 0x7F:
				b = 0x08
			}
			select {
			case c.input <- b:
				c.irq.Store(true)
			case <-c.stopCh:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				z80.Log.WithError(err).Warn("console input")
			}
			return
		}
	}
}

// Inject queues bytes as if typed. Bytes beyond the buffer are dropped.
func (c *Console) Inject(data []byte) int {
	n := 0
loop:
	for _, b := range data {
		select {
		case c.input <- b:
			n++
		default:
			break loop
		}
	}
	if n > 0 {
		c.irq.Store(true)
	}
	return n
}

// Close stops input and restores the terminal.
func (c *Console) Close() error {
	c.stopped.Do(func() { close(c.stopCh) })
	if c.oldTermState != nil {
		err := term.Restore(c.fd, c.oldTermState)
		c.oldTermState = nil
		return err
	}
	return nil
}

func (c *Console) ready() bool {
	if c.peek >= 0 {
		return true
	}
	select {
	case b := <-c.input:
		c.peek = int(b)
		return true
	default:
		return false
	}
}

func (c *Console) Ports() []uint8 {
	return []uint8{c.cfg.StatusPort, c.cfg.DataPort}
}

func (c *Console) Read(port uint8) (byte, error) {
	switch port {
	case c.cfg.StatusPort:
		if c.ready() {
			return StatusInputReady, nil
		}
		return 0, nil
	case c.cfg.DataPort:
		if !c.ready() {
			return 0, nil
		}
		b := byte(c.peek)
		c.peek = -1
		return b, nil
	}
	return 0, &z80.PortError{Op: "read", Port: port, Err: z80.ErrUnmappedPort}
}

func (c *Console) Write(port uint8, value byte) error {
	switch port {
	case c.cfg.DataPort:
		if _, err := c.cfg.Out.Write([]byte{value}); err != nil {
			return fmt.Errorf("console output: %w", err)
		}
		return nil
	case c.cfg.StatusPort:
		return nil
	}
	return &z80.PortError{Op: "write", Port: port, Err: z80.ErrUnmappedPort}
}

func (c *Console) Step(int) {}

func (c *Console) Interrupt() *z80.Interrupt {
	if !c.cfg.Interrupt || !c.irq.Load() {
		return nil
	}
	return &z80.Interrupt{Kind: z80.InterruptIM2, Vector: c.cfg.Vector, Opcode: []byte{0xFF}}
}

func (c *Console) Ack() error {
	c.irq.Store(false)
	return nil
}
