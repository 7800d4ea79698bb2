// io_bus.go - Port-mapped I/O and interrupt arbitration

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

package z80emu

import (
	"errors"
	"fmt"
)

var (
	ErrUnmappedPort = errors.New("port not mapped")
	ErrPortConflict = errors.New("port already claimed by another device")
	ErrNoDevice     = errors.New("no device in slot")
)

// PortError carries the port of a failed access or registration.
type PortError struct {
	Op   string
	Port uint8
	Err  error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("io %s port 0x%02X: %v", e.Op, e.Port, e.Err)
}

func (e *PortError) Unwrap() error { return e.Err }

// DeviceHandle identifies a registered IODevice. Handles are never reused.
type DeviceHandle int

type pendingInterrupt struct {
	handle DeviceHandle
	irq    *Interrupt
	acked  bool
}

// IOBus owns the port map, the devices behind it and the interrupt
// enable flip-flops.
type IOBus struct {
	slots   []IODevice
	portMap map[uint8]DeviceHandle

	IFF1 bool
	IFF2 bool
	Mode byte

	pending *pendingInterrupt
}

// NewIOBus returns a bus holding only an empty IORegister in slot 0.
func NewIOBus() *IOBus {
	b := &IOBus{portMap: make(map[uint8]DeviceHandle)}
	_, _ = b.AddDevice(NewIORegister())
	return b
}

// AddDevice claims every port dev lists. If any port is taken nothing is
// registered.
func (b *IOBus) AddDevice(dev IODevice) (DeviceHandle, error) {
	ports := dev.Ports()
	seen := make(map[uint8]bool, len(ports))
	for _, p := range ports {
		if _, taken := b.portMap[p]; taken || seen[p] {
			return -1, &PortError{Op: "register", Port: p, Err: ErrPortConflict}
		}
		seen[p] = true
	}
	h := DeviceHandle(len(b.slots))
	b.slots = append(b.slots, dev)
	for _, p := range ports {
		b.portMap[p] = h
	}
	return h, nil
}

// RemoveDevice empties the slot and releases its ports.
func (b *IOBus) RemoveDevice(h DeviceHandle) error {
	if b.Device(h) == nil {
		return fmt.Errorf("remove device %d: %w", h, ErrNoDevice)
	}
	for p, owner := range b.portMap {
		if owner == h {
			delete(b.portMap, p)
		}
	}
	b.slots[h] = nil
	if b.pending != nil && b.pending.handle == h {
		b.pending = nil
	}
	return nil
}

func (b *IOBus) Device(h DeviceHandle) IODevice {
	if h < 0 || int(h) >= len(b.slots) {
		return nil
	}
	return b.slots[h]
}

// PortOwner reports which device claims port.
func (b *IOBus) PortOwner(port uint8) (DeviceHandle, bool) {
	h, ok := b.portMap[port]
	return h, ok
}

func (b *IOBus) Read(port uint8) (byte, error) {
	h, ok := b.portMap[port]
	if !ok {
		return 0, &PortError{Op: "read", Port: port, Err: ErrUnmappedPort}
	}
	return b.slots[h].Read(port)
}

func (b *IOBus) Write(port uint8, value byte) error {
	h, ok := b.portMap[port]
	if !ok {
		return &PortError{Op: "write", Port: port, Err: ErrUnmappedPort}
	}
	return b.slots[h].Write(port, value)
}

// Step advances every device, then picks the interrupt to service next.
func (b *IOBus) Step(cycles int) {
	for _, dev := range b.slots {
		if dev != nil {
			dev.Step(cycles)
		}
	}
	b.arbitrate()
}

func (b *IOBus) arbitrate() {
	/*
		Every device is polled. An NMI from any slot wins outright. Failing
		that, the lowest slot asking for a maskable interrupt wins, but only
		while IFF1 is set; otherwise nothing is delivered and the device is
		polled again after the next instruction.
	*/

	b.pending = nil
	var maskable *pendingInterrupt
	for i, dev := range b.slots {
		if dev == nil {
			continue
		}
		irq := dev.Interrupt()
		if irq == nil {
			continue
		}
		if irq.Kind == InterruptNMI {
			b.pending = &pendingInterrupt{handle: DeviceHandle(i), irq: irq}
			return
		}
		if maskable == nil && b.IFF1 {
			maskable = &pendingInterrupt{handle: DeviceHandle(i), irq: irq}
		}
	}
	b.pending = maskable
}

// Pending is the interrupt that will be serviced before the next
// instruction, or nil.
func (b *IOBus) Pending() *Interrupt {
	if b.pending == nil {
		return nil
	}
	return b.pending.irq
}

// take removes the pending interrupt and acknowledges it to its device.
// A request handed back through requeue is not acknowledged twice.
func (b *IOBus) take() (*pendingInterrupt, error) {
	p := b.pending
	if p == nil {
		return nil, nil
	}
	b.pending = nil
	if p.acked {
		return p, nil
	}
	dev := b.Device(p.handle)
	if dev == nil {
		return nil, nil
	}
	if err := dev.Ack(); err != nil {
		return nil, fmt.Errorf("ack %s from device %d: %w", p.irq.Kind, p.handle, err)
	}
	p.acked = true
	return p, nil
}

// requeue makes p pending again after its entry sequence failed, so the
// next Step retries it instead of losing it.
func (b *IOBus) requeue(p *pendingInterrupt) {
	b.pending = p
}

// EnableInterrupts is EI.
func (b *IOBus) EnableInterrupts() {
	b.IFF1 = true
	b.IFF2 = true
}

// DisableInterrupts is DI, and also what accepting a maskable interrupt does.
func (b *IOBus) DisableInterrupts() {
	b.IFF1 = false
	b.IFF2 = false
}

// enterNMI keeps the old IFF1 in IFF2 so RETN can put it back.
func (b *IOBus) enterNMI() {
	b.IFF2 = b.IFF1
	b.IFF1 = false
}

func (b *IOBus) restoreIFF() {
	b.IFF1 = b.IFF2
}

// Reset clears the enable state and any pending request. Devices stay.
func (b *IOBus) Reset() {
	b.IFF1 = false
	b.IFF2 = false
	b.Mode = 0
	b.pending = nil
}
