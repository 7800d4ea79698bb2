package z80emu

import (
	"errors"
	"testing"
)

func TestIOBusStartsWithEmptyRegister(t *testing.T) {
	b := NewIOBus()
	if b.Device(0) == nil {
		t.Fatalf("slot 0 empty")
	}
	_, err := b.Read(0x10)
	if !errors.Is(err, ErrUnmappedPort) {
		t.Fatalf("Read unmapped: err = %v", err)
	}
	var perr *PortError
	if !errors.As(err, &perr) || perr.Port != 0x10 {
		t.Fatalf("error = %#v, want PortError for 0x10", err)
	}
}

func TestIOBusRoutesPorts(t *testing.T) {
	b := NewIOBus()
	dev := newLatchDevice(0x10, 0x11)
	h, err := b.AddDevice(dev)
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	if h != 1 {
		t.Fatalf("handle = %d, want 1", h)
	}
	if owner, ok := b.PortOwner(0x11); !ok || owner != h {
		t.Fatalf("PortOwner(0x11) = %d, %v", owner, ok)
	}

	if err := b.Write(0x11, 0x5A); err != nil {
		t.Fatalf("Write: %v", err)
	}
	v, err := b.Read(0x11)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	requireZ80EqualU8(t, "port 0x11", v, 0x5A)
}

func TestIOBusPortConflictRegistersNothing(t *testing.T) {
	b := NewIOBus()
	_, _ = b.AddDevice(newLatchDevice(0x10, 0x11))

	_, err := b.AddDevice(newLatchDevice(0x12, 0x11))
	if !errors.Is(err, ErrPortConflict) {
		t.Fatalf("AddDevice conflicting: err = %v", err)
	}
	if _, ok := b.PortOwner(0x12); ok {
		t.Fatalf("port 0x12 claimed by rejected device")
	}
	if b.Device(2) != nil {
		t.Fatalf("rejected device occupies a slot")
	}
}

func TestIOBusRemoveDevice(t *testing.T) {
	b := NewIOBus()
	h, _ := b.AddDevice(newLatchDevice(0x20))

	if err := b.RemoveDevice(h); err != nil {
		t.Fatalf("RemoveDevice: %v", err)
	}
	if _, err := b.Read(0x20); !errors.Is(err, ErrUnmappedPort) {
		t.Fatalf("read after remove: err = %v", err)
	}
	if err := b.RemoveDevice(h); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("second remove: err = %v", err)
	}

	h2, err := b.AddDevice(newLatchDevice(0x20))
	if err != nil {
		t.Fatalf("re-adding port: %v", err)
	}
	if h2 == h {
		t.Fatalf("handle %d reused", h)
	}
}

func TestIOBusStepReachesDevices(t *testing.T) {
	b := NewIOBus()
	dev := newLatchDevice(0x30)
	_, _ = b.AddDevice(dev)
	b.Step(7)
	b.Step(4)
	if dev.cycles != 11 {
		t.Fatalf("device saw %d cycles, want 11", dev.cycles)
	}
}

func TestIOBusMaskableNeedsIFF1(t *testing.T) {
	b := NewIOBus()
	dev := newLatchDevice(0x40)
	dev.irq = &Interrupt{Kind: InterruptIM1}
	_, _ = b.AddDevice(dev)

	b.Step(4)
	if b.Pending() != nil {
		t.Fatalf("maskable interrupt pending with IFF1 clear")
	}

	b.EnableInterrupts()
	b.Step(4)
	if p := b.Pending(); p == nil || p.Kind != InterruptIM1 {
		t.Fatalf("pending = %v, want IM1", p)
	}
}

func TestIOBusNMIWins(t *testing.T) {
	b := NewIOBus()
	maskable := newLatchDevice(0x40)
	maskable.irq = &Interrupt{Kind: InterruptIM2, Vector: 0x10}
	nmi := newLatchDevice(0x41)
	nmi.irq = &Interrupt{Kind: InterruptNMI}
	_, _ = b.AddDevice(maskable)
	_, _ = b.AddDevice(nmi)
	b.EnableInterrupts()

	b.Step(4)
	if p := b.Pending(); p == nil || p.Kind != InterruptNMI {
		t.Fatalf("pending = %v, want NMI", p)
	}

	p, err := b.take()
	if err != nil || p.irq.Kind != InterruptNMI {
		t.Fatalf("take = %v, %v", p, err)
	}
	if nmi.acks != 1 || maskable.acks != 0 {
		t.Fatalf("acks nmi=%d maskable=%d", nmi.acks, maskable.acks)
	}
	if b.Pending() != nil {
		t.Fatalf("request still pending after take")
	}

	// The maskable request is still raised and wins the next round.
	b.Step(4)
	if p := b.Pending(); p == nil || p.Kind != InterruptIM2 {
		t.Fatalf("pending = %v, want IM2", p)
	}
}

func TestIOBusLowestSlotWins(t *testing.T) {
	b := NewIOBus()
	first := newLatchDevice(0x50)
	first.irq = &Interrupt{Kind: InterruptIM2, Vector: 0x02}
	second := newLatchDevice(0x51)
	second.irq = &Interrupt{Kind: InterruptIM2, Vector: 0x04}
	_, _ = b.AddDevice(first)
	_, _ = b.AddDevice(second)
	b.EnableInterrupts()

	b.Step(4)
	if p := b.Pending(); p == nil || p.Vector != 0x02 {
		t.Fatalf("pending = %+v, want vector 0x02", p)
	}
}

func TestIOBusInterruptFlipFlops(t *testing.T) {
	b := NewIOBus()
	b.EnableInterrupts()
	b.enterNMI()
	if b.IFF1 || !b.IFF2 {
		t.Fatalf("after NMI entry IFF1=%v IFF2=%v", b.IFF1, b.IFF2)
	}
	b.restoreIFF()
	if !b.IFF1 {
		t.Fatalf("IFF1 not restored")
	}

	b.Mode = 2
	dev := newLatchDevice(0x60)
	dev.irq = &Interrupt{Kind: InterruptIM1}
	_, _ = b.AddDevice(dev)
	b.Step(1)
	b.Reset()
	if b.IFF1 || b.IFF2 || b.Mode != 0 || b.Pending() != nil {
		t.Fatalf("Reset left IFF1=%v IFF2=%v mode=%d pending=%v", b.IFF1, b.IFF2, b.Mode, b.Pending())
	}
}
