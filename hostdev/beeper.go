package hostdev

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	z80 "github.com/intuitionamiga/z80emu"
)

const (
	DefaultBeeperPort = 0xFE
	DefaultSampleRate = 44100

	speakerBit       = 0x10
	speakerAmplitude = 0.2
)

// Beeper drives a one-bit speaker from bit 4 of its port, the way many
// Z80 home computers do. Audio is produced on the host when started.
type Beeper struct {
	port  uint8
	latch byte
	level atomic.Bool
	edges atomic.Uint64

	out *audioOut
}

func NewBeeper(port uint8) *Beeper {
	return &Beeper{port: port}
}

// Start opens the host audio device. Without it the beeper still latches
// and counts edges.
func (b *Beeper) Start(sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	out, err := openAudio(sampleRate, signal{b})
	if err != nil {
		return err
	}
	b.out = out
	return nil
}

func (b *Beeper) Close() error {
	if b.out == nil {
		return nil
	}
	err := b.out.Close()
	b.out = nil
	return err
}

// Level reports whether the speaker is currently driven high.
func (b *Beeper) Level() bool { return b.level.Load() }

// Edges counts level transitions since creation.
func (b *Beeper) Edges() uint64 { return b.edges.Load() }

// signal is the audio stream: little-endian float32 samples at the
// current speaker level.
type signal struct{ b *Beeper }

func (s signal) Read(p []byte) (int, error) {
	v := float32(-speakerAmplitude)
	if s.b.level.Load() {
		v = speakerAmplitude
	}
	bits := math.Float32bits(v)
	n := len(p) / 4 * 4
	for i := 0; i < n; i += 4 {
		binary.LittleEndian.PutUint32(p[i:], bits)
	}
	clear(p[n:])
	return len(p), nil
}

func (b *Beeper) Ports() []uint8 { return []uint8{b.port} }

func (b *Beeper) Read(port uint8) (byte, error) {
	if port != b.port {
		return 0, &z80.PortError{Op: "read", Port: port, Err: z80.ErrUnmappedPort}
	}
	return b.latch, nil
}

func (b *Beeper) Write(port uint8, value byte) error {
	if port != b.port {
		return &z80.PortError{Op: "write", Port: port, Err: z80.ErrUnmappedPort}
	}
	b.latch = value
	high := value&speakerBit != 0
	if b.level.Swap(high) != high {
		b.edges.Add(1)
	}
	return nil
}

func (b *Beeper) Step(int) {}

func (b *Beeper) Interrupt() *z80.Interrupt { return nil }

func (b *Beeper) Ack() error { return nil }
