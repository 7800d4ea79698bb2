package z80emu

import (
	"fmt"
	"slices"
)

type InterruptKind int

const (
	// InterruptNMI jumps to 0x0066 whatever the enable flip-flops say.
	InterruptNMI InterruptKind = iota
	// InterruptIM0 executes Opcode as if it had been fetched.
	InterruptIM0
	// InterruptIM1 pushes PC and jumps to 0x0038.
	InterruptIM1
	// InterruptIM2 pushes PC and jumps through the table entry at I:Vector.
	InterruptIM2
)

func (k InterruptKind) String() string {
	switch k {
	case InterruptNMI:
		return "NMI"
	case InterruptIM0:
		return "IM0"
	case InterruptIM1:
		return "IM1"
	case InterruptIM2:
		return "IM2"
	}
	return fmt.Sprintf("InterruptKind(%d)", int(k))
}

// Interrupt is a request raised by an IODevice.
type Interrupt struct {
	Kind   InterruptKind
	Vector byte   // IM2 table low byte
	Opcode []byte // IM0 instruction bytes
}

// IODevice is a port-mapped peripheral. Step is called after every
// instruction with the cycles it took; Interrupt reports a pending request
// (nil for none) and Ack is called once when that request is serviced.
type IODevice interface {
	Ports() []uint8
	Read(port uint8) (byte, error)
	Write(port uint8, value byte) error
	Step(cycles int)
	Interrupt() *Interrupt
	Ack() error
}

// IORegister is a bank of latches: each claimed port reads back the last
// byte written to it.
type IORegister struct {
	ports  []uint8
	values map[uint8]byte
}

func NewIORegister(ports ...uint8) *IORegister {
	r := &IORegister{values: make(map[uint8]byte, len(ports))}
	for _, p := range ports {
		if _, dup := r.values[p]; dup {
			continue
		}
		r.ports = append(r.ports, p)
		r.values[p] = 0
	}
	return r
}

func (r *IORegister) Ports() []uint8 { return slices.Clone(r.ports) }

func (r *IORegister) Read(port uint8) (byte, error) {
	v, ok := r.values[port]
	if !ok {
		return 0, &PortError{Op: "read", Port: port, Err: ErrUnmappedPort}
	}
	return v, nil
}

func (r *IORegister) Write(port uint8, value byte) error {
	if _, ok := r.values[port]; !ok {
		return &PortError{Op: "write", Port: port, Err: ErrUnmappedPort}
	}
	r.values[port] = value
	return nil
}

func (r *IORegister) Step(int) {}

func (r *IORegister) Interrupt() *Interrupt { return nil }

func (r *IORegister) Ack() error { return nil }
