package z80emu

import (
	"context"
	"testing"
	"time"

	koron "github.com/koron-go/z80"
)

// flatMemory is a 64K koron-go memory.
type flatMemory [0x10000]uint8

func (m *flatMemory) Get(addr uint16) uint8        { return m[addr] }
func (m *flatMemory) Set(addr uint16, value uint8) { m[addr] = value }

// documentedFlags masks off the two undocumented bits, where emulators
// legitimately disagree.
const documentedFlags = ^(FlagX | FlagY)

// referenceALU runs "op n; HALT" on the koron-go core and returns A and F.
func referenceALU(t *testing.T, op, a, n byte, f Flags) (byte, Flags) {
	t.Helper()
	return referenceRun(t, []byte{op, n, 0x76}, a, f)
}

// referenceRun runs code from address 0 until HALT with A and F preset.
func referenceRun(t *testing.T, code []byte, a byte, f Flags) (byte, Flags) {
	t.Helper()
	mem := new(flatMemory)
	copy(mem[:], code)

	cpu := koron.CPU{
		States: koron.States{SPR: koron.SPR{PC: 0x0000, SP: 0xFFFF}},
		Memory: mem,
	}
	cpu.AF.Hi = a
	cpu.AF.Lo = uint8(f)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := cpu.Run(ctx); err != nil && ctx.Err() != nil {
		t.Fatalf("reference core did not halt: %v", err)
	}
	return cpu.AF.Hi, Flags(cpu.AF.Lo)
}

func TestZ80ALUMatchesReferenceCore(t *testing.T) {
	if testing.Short() {
		t.Skip("differential sweep")
	}
	ops := []struct {
		name string
		code byte
	}{
		{"ADD", 0xC6}, {"ADC", 0xCE}, {"SUB", 0xD6}, {"SBC", 0xDE},
		{"AND", 0xE6}, {"XOR", 0xEE}, {"OR", 0xF6}, {"CP", 0xFE},
	}
	values := []byte{0x00, 0x01, 0x0F, 0x10, 0x3C, 0x7F, 0x80, 0x81, 0x99, 0xA5, 0xF0, 0xFE, 0xFF}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			for _, a := range values {
				for _, n := range values {
					for _, carry := range []Flags{0, FlagC} {
						wantA, wantF := referenceALU(t, op.code, a, n, carry)

						rig := newCPUZ80TestRig()
						rig.resetAndLoad(0x0000, []byte{op.code, n})
						rig.cpu.A = a
						rig.cpu.F = carry
						rig.step(t)

						if rig.cpu.A != wantA || rig.cpu.F&documentedFlags != wantF&documentedFlags {
							t.Fatalf("%s A=0x%02X n=0x%02X C=%v: got A=0x%02X F=%s, reference A=0x%02X F=%s",
								op.name, a, n, carry != 0, rig.cpu.A, rig.cpu.F, wantA, wantF)
						}
					}
				}
			}
		})
	}
}

func TestZ80IncDecMatchesReferenceCore(t *testing.T) {
	for _, code := range []byte{0x3C, 0x3D} { // INC A, DEC A
		for v := 0; v < 0x100; v++ {
			mem := new(flatMemory)
			mem[0], mem[1] = code, 0x76
			cpu := koron.CPU{Memory: mem}
			cpu.AF.Hi = byte(v)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = cpu.Run(ctx)
			cancel()

			rig := newCPUZ80TestRig()
			rig.resetAndLoad(0x0000, []byte{code})
			rig.cpu.A = byte(v)
			rig.step(t)

			if rig.cpu.A != cpu.AF.Hi || rig.cpu.F&documentedFlags != Flags(cpu.AF.Lo)&documentedFlags {
				t.Fatalf("opcode 0x%02X A=0x%02X: got A=0x%02X F=%s, reference A=0x%02X F=%s",
					code, v, rig.cpu.A, rig.cpu.F, cpu.AF.Hi, Flags(cpu.AF.Lo))
			}
		}
	}
}

func TestZ80DAAMatchesReferenceCore(t *testing.T) {
	for v := 0; v < 0x100; v++ {
		for _, in := range []Flags{0, FlagH, FlagN, FlagH | FlagN, FlagC, FlagH | FlagC, FlagN | FlagC, FlagH | FlagN | FlagC} {
			a := byte(v)
			wantA, wantF := referenceRun(t, []byte{0x27, 0x76}, a, in) // DAA; HALT

			rig := newCPUZ80TestRig()
			rig.resetAndLoad(0x0000, []byte{0x27})
			rig.cpu.A = a
			rig.cpu.F = in
			rig.step(t)

			mask := documentedFlags
			if in.Carry() {
				// The reference core clears an incoming carry when A <= 0x99;
				// the carry must survive DAA, which is checked below.
				mask &^= FlagC
				if !rig.cpu.F.Carry() {
					t.Fatalf("DAA A=0x%02X F=%s dropped the incoming carry", a, in)
				}
			}
			if rig.cpu.A != wantA || rig.cpu.F&mask != wantF&mask {
				t.Fatalf("DAA A=0x%02X F=%s: got A=0x%02X F=%s, reference A=0x%02X F=%s",
					a, in, rig.cpu.A, rig.cpu.F, wantA, wantF)
			}
		}
	}
}

func TestZ80DAAAfterSubtract(t *testing.T) {
	tests := []struct {
		a     byte
		f     Flags
		wantA byte
		wantF byte
	}{
		{0x0A, FlagN, 0x04, 0x02},         // low digit > 9
		{0x0B, FlagN, 0x05, 0x06},         // PV for even parity
		{0x0A, FlagN | FlagC, 0xA4, 0xA3}, // C keeps the high correction
		{0x9A, FlagN, 0x34, 0x23},         // whole byte > 0x99
		{0x2D, FlagN | FlagH, 0x27, 0x26}, // 0x42 - 0x15
	}
	for _, tc := range tests {
		rig := newCPUZ80TestRig()
		rig.resetAndLoad(0x0000, []byte{0x27})
		rig.cpu.A = tc.a
		rig.cpu.F = tc.f
		rig.step(t)
		requireZ80EqualU8(t, "A", rig.cpu.A, tc.wantA)
		requireZ80Flags(t, rig.cpu.F, tc.wantF)
	}
}
