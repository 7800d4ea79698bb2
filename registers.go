package z80emu

// Flags is the Z80 F register.
type Flags byte

const (
	FlagC  Flags = 0x01
	FlagN  Flags = 0x02
	FlagPV Flags = 0x04
	FlagX  Flags = 0x08
	FlagH  Flags = 0x10
	FlagY  Flags = 0x20
	FlagZ  Flags = 0x40
	FlagS  Flags = 0x80
)

func (f Flags) Carry() bool          { return f&FlagC != 0 }
func (f Flags) Subtract() bool       { return f&FlagN != 0 }
func (f Flags) ParityOverflow() bool { return f&FlagPV != 0 }
func (f Flags) HalfCarry() bool      { return f&FlagH != 0 }
func (f Flags) Zero() bool           { return f&FlagZ != 0 }
func (f Flags) Sign() bool           { return f&FlagS != 0 }

// X and Y are the undocumented copies of result bits 3 and 5.
func (f Flags) X() bool { return f&FlagX != 0 }
func (f Flags) Y() bool { return f&FlagY != 0 }

func (f *Flags) Set(mask Flags, on bool) {
	if on {
		*f |= mask
	} else {
		*f &^= mask
	}
}

func (f Flags) String() string {
	const names = "SZYHXPNC"
	out := []byte("--------")
	for i := range 8 {
		if f&(0x80>>i) != 0 {
			out[i] = names[i]
		}
	}
	return string(out)
}

// Registers holds the complete programmer-visible register file. Register
// pairs are not stored separately; the pair accessors build the word from
// the two byte fields so a write to either half is seen through the pair.
type Registers struct {
	A byte
	F Flags
	B byte
	C byte
	D byte
	E byte
	H byte
	L byte

	A2 byte
	F2 Flags
	B2 byte
	C2 byte
	D2 byte
	E2 byte
	H2 byte
	L2 byte

	IX uint16
	IY uint16
	SP uint16
	PC uint16

	I byte
	R byte
}

// Reset clears every register. SP starts at the top of the address space.
func (r *Registers) Reset() {
	*r = Registers{SP: 0xFFFF}
}

func (r *Registers) AF() uint16 { return uint16(r.A)<<8 | uint16(r.F) }
func (r *Registers) BC() uint16 { return uint16(r.B)<<8 | uint16(r.C) }
func (r *Registers) DE() uint16 { return uint16(r.D)<<8 | uint16(r.E) }
func (r *Registers) HL() uint16 { return uint16(r.H)<<8 | uint16(r.L) }

func (r *Registers) AF2() uint16 { return uint16(r.A2)<<8 | uint16(r.F2) }
func (r *Registers) BC2() uint16 { return uint16(r.B2)<<8 | uint16(r.C2) }
func (r *Registers) DE2() uint16 { return uint16(r.D2)<<8 | uint16(r.E2) }
func (r *Registers) HL2() uint16 { return uint16(r.H2)<<8 | uint16(r.L2) }

func (r *Registers) SetAF(value uint16) {
	r.A = byte(value >> 8)
	r.F = Flags(value)
}

func (r *Registers) SetBC(value uint16) {
	r.B = byte(value >> 8)
	r.C = byte(value)
}

func (r *Registers) SetDE(value uint16) {
	r.D = byte(value >> 8)
	r.E = byte(value)
}

func (r *Registers) SetHL(value uint16) {
	r.H = byte(value >> 8)
	r.L = byte(value)
}

func (r *Registers) SetAF2(value uint16) {
	r.A2 = byte(value >> 8)
	r.F2 = Flags(value)
}

func (r *Registers) SetBC2(value uint16) {
	r.B2 = byte(value >> 8)
	r.C2 = byte(value)
}

func (r *Registers) SetDE2(value uint16) {
	r.D2 = byte(value >> 8)
	r.E2 = byte(value)
}

func (r *Registers) SetHL2(value uint16) {
	r.H2 = byte(value >> 8)
	r.L2 = byte(value)
}

func (r *Registers) ExAF() {
	r.A, r.A2 = r.A2, r.A
	r.F, r.F2 = r.F2, r.F
}

func (r *Registers) Exx() {
	r.B, r.B2 = r.B2, r.B
	r.C, r.C2 = r.C2, r.C
	r.D, r.D2 = r.D2, r.D
	r.E, r.E2 = r.E2, r.E
	r.H, r.H2 = r.H2, r.H
	r.L, r.L2 = r.L2, r.L
}

// IncR advances the refresh counter. Only the low seven bits count; bit 7
// is whatever LD R,A last stored.
func (r *Registers) IncR() {
	r.R = (r.R & 0x80) | ((r.R + 1) & 0x7F)
}

// RegisterSnapshot is a read-only copy of the register file for display.
type RegisterSnapshot struct {
	Regs8  map[string]byte
	Regs16 map[string]uint16
	PC     uint16
}

// Snapshot copies every named register.
func (r *Registers) Snapshot() RegisterSnapshot {
	return RegisterSnapshot{
		Regs8: map[string]byte{
			"a": r.A, "f": byte(r.F), "b": r.B, "c": r.C,
			"d": r.D, "e": r.E, "h": r.H, "l": r.L,
			"i": r.I, "r": r.R,
		},
		Regs16: map[string]uint16{
			"af": r.AF(), "bc": r.BC(), "de": r.DE(), "hl": r.HL(),
			"af'": r.AF2(), "bc'": r.BC2(), "de'": r.DE2(), "hl'": r.HL2(),
			"ix": r.IX, "iy": r.IY, "sp": r.SP, "pc": r.PC,
		},
		PC: r.PC,
	}
}

// Lookup returns a register by its lower-case name, 8 or 16 bit.
func (s RegisterSnapshot) Lookup(name string) (uint16, bool) {
	if v, ok := s.Regs8[name]; ok {
		return uint16(v), true
	}
	v, ok := s.Regs16[name]
	return v, ok
}
