package z80emu

import "testing"

type cpuZ80TestRig struct {
	emu *Emulator
	cpu *CPU
}

func newCPUZ80TestRig() *cpuZ80TestRig {
	emu := NewDefaultEmulator()
	return &cpuZ80TestRig{emu: emu, cpu: emu.CPU}
}

func (r *cpuZ80TestRig) resetAndLoad(start uint16, program []byte) {
	r.emu = NewDefaultEmulator()
	r.cpu = r.emu.CPU
	for i, value := range program {
		_ = r.emu.Memory.Write8Force(start+uint16(i), value)
	}
	r.cpu.PC = start
}

// step runs one instruction and fails the test on any error.
func (r *cpuZ80TestRig) step(t *testing.T) *Instruction {
	t.Helper()
	in, err := r.emu.Step()
	if err != nil {
		t.Fatalf("step at 0x%04X: %v", r.cpu.PC, err)
	}
	return in
}

func (r *cpuZ80TestRig) mem(addr uint16) byte {
	v, _ := r.emu.Memory.Read8(addr)
	return v
}

func (r *cpuZ80TestRig) poke(addr uint16, values ...byte) {
	for i, v := range values {
		_ = r.emu.Memory.Write8(addr+uint16(i), v)
	}
}

func requireZ80EqualU16(t *testing.T, name string, got, want uint16) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = 0x%04X, want 0x%04X", name, got, want)
	}
}

func requireZ80EqualU8(t *testing.T, name string, got, want byte) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = 0x%02X, want 0x%02X", name, got, want)
	}
}

func requireZ80Flags(t *testing.T, got Flags, want byte) {
	t.Helper()
	if byte(got) != want {
		t.Fatalf("F = 0x%02X (%s), want 0x%02X (%s)", byte(got), got, want, Flags(want))
	}
}

// latchDevice is an IODevice for tests: ports read back what was written
// and it raises whatever interrupt the test sets.
type latchDevice struct {
	*IORegister
	irq    *Interrupt
	acks   int
	cycles int
}

func newLatchDevice(ports ...uint8) *latchDevice {
	return &latchDevice{IORegister: NewIORegister(ports...)}
}

func (d *latchDevice) Step(cycles int) { d.cycles += cycles }

func (d *latchDevice) Interrupt() *Interrupt { return d.irq }

func (d *latchDevice) Ack() error {
	d.acks++
	d.irq = nil
	return nil
}
