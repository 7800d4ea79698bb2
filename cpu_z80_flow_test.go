package z80emu

import "testing"

func requireZ80Cycles(t *testing.T, in *Instruction, want int) {
	t.Helper()
	if in.Cycles != want {
		t.Fatalf("%s: cycles = %d, want %d", in, in.Cycles, want)
	}
}

func TestZ80FlowJP(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0100, []byte{0xC3, 0x34, 0x12}) // JP 0x1234

	in := rig.step(t)

	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x1234)
	requireZ80Cycles(t, in, 10)
	if in.IncrementPC {
		t.Fatalf("JP left IncrementPC set")
	}
}

func TestZ80FlowJPConditional(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0xC2, 0x00, 0x20}) // JP NZ,0x2000
	rig.cpu.F = FlagZ

	in := rig.step(t)
	requireZ80EqualU16(t, "PC not taken", rig.cpu.PC, 0x0003)
	requireZ80Cycles(t, in, 10)

	rig.resetAndLoad(0x0000, []byte{0xC2, 0x00, 0x20})
	in = rig.step(t)
	requireZ80EqualU16(t, "PC taken", rig.cpu.PC, 0x2000)
	requireZ80Cycles(t, in, 10)
}

func TestZ80FlowJR(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0100, []byte{0x18, 0x05}) // JR +5
	in := rig.step(t)
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0107)
	requireZ80Cycles(t, in, 12)

	rig.resetAndLoad(0x0100, []byte{0x18, 0xFE}) // JR -2
	rig.step(t)
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0100)
}

func TestZ80FlowJRConditional(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0100, []byte{0x28, 0x05}) // JR Z,+5

	in := rig.step(t)
	requireZ80EqualU16(t, "PC not taken", rig.cpu.PC, 0x0102)
	requireZ80Cycles(t, in, 7)
	if !in.IncrementPC {
		t.Fatalf("untaken JR cleared IncrementPC")
	}

	rig.resetAndLoad(0x0100, []byte{0x38, 0xFC}) // JR C,-4
	rig.cpu.F = FlagC
	in = rig.step(t)
	requireZ80EqualU16(t, "PC taken", rig.cpu.PC, 0x00FE)
	requireZ80Cycles(t, in, 12)
}

func TestZ80FlowDJNZ(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0100, []byte{0x10, 0xFE}) // DJNZ -2
	rig.cpu.B = 2

	in := rig.step(t)
	requireZ80EqualU8(t, "B", rig.cpu.B, 1)
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0100)
	requireZ80Cycles(t, in, 13)

	in = rig.step(t)
	requireZ80EqualU8(t, "B", rig.cpu.B, 0)
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0102)
	requireZ80Cycles(t, in, 8)
}

func TestZ80FlowCallRet(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0100, []byte{0xCD, 0x00, 0x20}) // CALL 0x2000
	rig.poke(0x2000, 0xC9)                             // RET
	rig.cpu.SP = 0x9000

	in := rig.step(t)
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x2000)
	requireZ80EqualU16(t, "SP", rig.cpu.SP, 0x8FFE)
	requireZ80EqualU8(t, "return low", rig.mem(0x8FFE), 0x03)
	requireZ80EqualU8(t, "return high", rig.mem(0x8FFF), 0x01)
	requireZ80Cycles(t, in, 17)

	in = rig.step(t)
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0103)
	requireZ80EqualU16(t, "SP", rig.cpu.SP, 0x9000)
	requireZ80Cycles(t, in, 10)
}

func TestZ80FlowConditionalCallRet(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0100, []byte{
		0xC4, 0x00, 0x20, // CALL NZ,0x2000
		0xCC, 0x00, 0x20, // CALL Z,0x2000
	})
	rig.poke(0x2000, 0xC0, 0xC8) // RET NZ; RET Z
	rig.cpu.SP = 0x9000
	rig.cpu.F = FlagZ

	in := rig.step(t)
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0103)
	requireZ80EqualU16(t, "SP", rig.cpu.SP, 0x9000)
	requireZ80Cycles(t, in, 10)

	in = rig.step(t)
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x2000)
	requireZ80EqualU16(t, "SP", rig.cpu.SP, 0x8FFE)
	requireZ80Cycles(t, in, 17)

	in = rig.step(t)
	requireZ80EqualU16(t, "PC after RET NZ", rig.cpu.PC, 0x2001)
	requireZ80Cycles(t, in, 5)

	in = rig.step(t)
	requireZ80EqualU16(t, "PC after RET Z", rig.cpu.PC, 0x0106)
	requireZ80EqualU16(t, "SP", rig.cpu.SP, 0x9000)
	requireZ80Cycles(t, in, 11)
}

func TestZ80FlowConditions(t *testing.T) {
	tests := []struct {
		code  byte // JP cc,0x3000
		f     Flags
		taken bool
	}{
		{0xC2, 0, true},       // NZ
		{0xCA, 0, false},      // Z
		{0xD2, FlagC, false},  // NC
		{0xDA, FlagC, true},   // C
		{0xE2, FlagPV, false}, // PO
		{0xEA, FlagPV, true},  // PE
		{0xF2, FlagS, false},  // P
		{0xFA, FlagS, true},   // M
	}
	for _, tc := range tests {
		rig := newCPUZ80TestRig()
		rig.resetAndLoad(0x0000, []byte{tc.code, 0x00, 0x30})
		rig.cpu.F = tc.f

		in := rig.step(t)

		want := uint16(0x0003)
		if tc.taken {
			want = 0x3000
		}
		requireZ80EqualU16(t, in.String(), rig.cpu.PC, want)
	}
}

func TestZ80FlowRST(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0200, []byte{0xFF}) // RST 0x38
	rig.cpu.SP = 0x9000

	in := rig.step(t)

	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0038)
	requireZ80EqualU16(t, "SP", rig.cpu.SP, 0x8FFE)
	requireZ80EqualU8(t, "return low", rig.mem(0x8FFE), 0x01)
	requireZ80EqualU8(t, "return high", rig.mem(0x8FFF), 0x02)
	requireZ80Cycles(t, in, 11)
}

func TestZ80FlowJPIndirect(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0xE9}) // JP (HL)
	rig.cpu.SetHL(0x4321)
	in := rig.step(t)
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x4321)
	requireZ80Cycles(t, in, 4)

	rig.resetAndLoad(0x0000, []byte{0xFD, 0xE9}) // JP (IY)
	rig.cpu.IY = 0x1234
	in = rig.step(t)
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x1234)
	requireZ80Cycles(t, in, 8)
}

func TestZ80FlowPushPop(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0xC5, 0xD1, 0xF5, 0xE1}) // PUSH BC; POP DE; PUSH AF; POP HL
	rig.cpu.SP = 0x9000
	rig.cpu.SetBC(0xBEEF)
	rig.cpu.SetAF(0x12D7)

	in := rig.step(t)
	requireZ80EqualU16(t, "SP", rig.cpu.SP, 0x8FFE)
	requireZ80EqualU8(t, "pushed high", rig.mem(0x8FFF), 0xBE)
	requireZ80Cycles(t, in, 11)

	in = rig.step(t)
	requireZ80EqualU16(t, "DE", rig.cpu.DE(), 0xBEEF)
	requireZ80Cycles(t, in, 10)

	rig.step(t)
	rig.step(t)
	requireZ80EqualU16(t, "HL", rig.cpu.HL(), 0x12D7)
	requireZ80EqualU16(t, "SP", rig.cpu.SP, 0x9000)
}

func TestZ80FlowExchanges(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{
		0x08, // EX AF,AF'
		0xD9, // EXX
		0xEB, // EX DE,HL
		0xE3, // EX (SP),HL
	})
	rig.cpu.SetAF(0x1111)
	rig.cpu.SetAF2(0x2222)
	rig.cpu.SetHL(0x3333)
	rig.cpu.SetHL2(0x4444)
	rig.cpu.SetDE2(0x5555)
	rig.cpu.SP = 0x9000
	rig.poke(0x9000, 0x78, 0x56)

	rig.step(t)
	requireZ80EqualU16(t, "AF", rig.cpu.AF(), 0x2222)

	rig.step(t)
	requireZ80EqualU16(t, "HL", rig.cpu.HL(), 0x4444)
	requireZ80EqualU16(t, "HL'", rig.cpu.HL2(), 0x3333)

	rig.step(t)
	requireZ80EqualU16(t, "DE", rig.cpu.DE(), 0x4444)
	requireZ80EqualU16(t, "HL", rig.cpu.HL(), 0x5555)

	in := rig.step(t)
	requireZ80EqualU16(t, "HL", rig.cpu.HL(), 0x5678)
	requireZ80EqualU8(t, "(SP)", rig.mem(0x9000), 0x55)
	requireZ80EqualU8(t, "(SP+1)", rig.mem(0x9001), 0x55)
	requireZ80Cycles(t, in, 19)
}

func TestZ80FlowHalt(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0x76}) // HALT

	rig.step(t)

	if !rig.cpu.Halted {
		t.Fatalf("CPU not halted")
	}
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0001)
	if _, err := rig.emu.Step(); err != ErrHalted {
		t.Fatalf("Step while halted: err = %v, want ErrHalted", err)
	}
}

func TestZ80FlowRefreshCounter(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0x00, 0xDD, 0x21, 0x00, 0x00, 0xCB, 0x00})
	rig.cpu.R = 0x80

	rig.step(t)
	rig.step(t)
	rig.step(t)

	requireZ80EqualU8(t, "R", rig.cpu.R, 0x83)
}

func TestZ80FlowInterruptControl(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{
		0xFB,       // EI
		0xED, 0x5E, // IM 2
		0xED, 0x57, // LD A,I
		0xF3, // DI
		0xED, 0x57, // LD A,I
	})
	rig.cpu.I = 0x80

	rig.step(t)
	if !rig.emu.IO.IFF1 || !rig.emu.IO.IFF2 {
		t.Fatalf("EI: IFF1=%v IFF2=%v", rig.emu.IO.IFF1, rig.emu.IO.IFF2)
	}
	rig.step(t)
	if rig.emu.IO.Mode != 2 {
		t.Fatalf("mode = %d, want 2", rig.emu.IO.Mode)
	}
	rig.step(t)
	requireZ80EqualU8(t, "A", rig.cpu.A, 0x80)
	requireZ80Flags(t, rig.cpu.F, 0x84)

	rig.step(t)
	rig.step(t)
	requireZ80Flags(t, rig.cpu.F, 0x80)
}

func TestZ80FlowPorts(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{
		0xD3, 0x10, // OUT (0x10),A
		0xDB, 0x10, // IN A,(0x10)
		0xED, 0x41, // OUT (C),B
		0xED, 0x50, // IN D,(C)
	})
	dev := newLatchDevice(0x10, 0x11)
	if _, err := rig.emu.IO.AddDevice(dev); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	rig.cpu.A = 0x5A
	rig.cpu.C = 0x11
	rig.cpu.B = 0x00
	rig.cpu.F = FlagC

	in := rig.step(t)
	requireZ80Cycles(t, in, 11)
	rig.cpu.A = 0
	rig.step(t)
	requireZ80EqualU8(t, "A", rig.cpu.A, 0x5A)

	rig.step(t)
	rig.step(t)
	requireZ80EqualU8(t, "D", rig.cpu.D, 0x00)
	requireZ80Flags(t, rig.cpu.F, 0x45)
}

func TestZ80FlowUnmappedPortFails(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0xDB, 0x99}) // IN A,(0x99)

	in, err := rig.emu.Step()
	if err == nil {
		t.Fatalf("IN from unmapped port succeeded")
	}
	if in == nil || in.Mnemonic() != "IN" {
		t.Fatalf("failing instruction = %v", in)
	}
	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x0000)
}

func TestZ80FlowInterruptControlWithoutBus(t *testing.T) {
	mem := NewMemory()
	_ = mem.AddDevice(NewRAM(0x100))
	cpu := NewCPU()

	for _, code := range [][]byte{
		{0xF3},       // DI
		{0xFB},       // EI
		{0xED, 0x56}, // IM 1
	} {
		in, err := DecodeBytes(code)
		if err != nil {
			t.Fatalf("DecodeBytes(% X): %v", code, err)
		}
		if err := cpu.Execute(in, mem, nil); err != nil {
			t.Fatalf("%s without a bus: %v", in, err)
		}
	}
}
