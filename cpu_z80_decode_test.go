package z80emu

import (
	"bytes"
	"errors"
	"testing"
)

// operandEdges are the payload values every opcode is round-tripped with:
// both ends of each width, the signed displacement limits and zero.
var operandEdges = []struct {
	name string
	n    byte
	nn   uint16
	d    int8
}{
	{"zero", 0x00, 0x0000, 0},
	{"max", 0xFF, 0xFFFF, 127},
	{"min-displacement", 0x80, 0x0001, -128},
	{"minus-one", 0x7F, 0x8000, -1},
	{"typical", 0x12, 0x3456, -3},
}

// sampleInstruction binds the given operand values to every variable field
// op uses.
func sampleInstruction(op *Opcode, n byte, nn uint16, d int8) *Instruction {
	in := newInstruction(op)
	for _, a := range op.Args {
		switch a.Kind {
		case OperandImm8, OperandRel, OperandPort:
			in.N = n
		case OperandImm16, OperandAbs:
			in.NN = nn
		case OperandIndexed:
			in.D = d
		}
	}
	return in
}

func TestZ80DecodeTableIsConsistent(t *testing.T) {
	ops := Opcodes()
	if len(ops) < 600 {
		t.Fatalf("only %d opcodes defined", len(ops))
	}
	seen := make(map[string]*Opcode, len(ops))
	for _, op := range ops {
		key := string(append(append([]byte{}, op.Prefix...), op.Code))
		if prev, dup := seen[key]; dup {
			t.Fatalf("% X %02X defined as %s and %s", op.Prefix, op.Code, prev.Mnemonic, op.Mnemonic)
		}
		seen[key] = op
		if op.Cycles <= 0 || op.AltCycles <= 0 {
			t.Fatalf("%s % X %02X has no cycle cost", op.Mnemonic, op.Prefix, op.Code)
		}
	}
}

func TestZ80DecodeRoundTripEveryOpcode(t *testing.T) {
	for _, edge := range operandEdges {
		t.Run(edge.name, func(t *testing.T) {
			for _, op := range Opcodes() {
				requireZ80RoundTrip(t, sampleInstruction(op, edge.n, edge.nn, edge.d))
			}
		})
	}
}

// requireZ80RoundTrip checks bytes -> instruction -> text -> instruction
// -> bytes for want.
func requireZ80RoundTrip(t *testing.T, want *Instruction) {
	t.Helper()
	code := want.Bytes()
	if len(code) != want.Length() {
		t.Fatalf("%s: encoded %d bytes, Length() = %d", want, len(code), want.Length())
	}

	got, err := DecodeBytes(code)
	if err != nil {
		t.Fatalf("decode % X (%s): %v", code, want, err)
	}
	if !got.Equal(want) {
		t.Fatalf("decode % X = %s, want %s", code, got, want)
	}

	text := got.String()
	parsed, err := ParseInstruction(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	if !parsed.Equal(want) {
		t.Fatalf("parse %q = %s (% X), want % X", text, parsed, parsed.Bytes(), code)
	}
	if !bytes.Equal(parsed.Bytes(), code) {
		t.Fatalf("re-encoded %q = % X, want % X", text, parsed.Bytes(), code)
	}
}

func TestZ80DecodeEdgeOperandText(t *testing.T) {
	tests := []struct {
		code []byte
		want string
	}{
		{[]byte{0xDD, 0x7E, 0x00}, "LD A, (IX+0x00)"},
		{[]byte{0xDD, 0x7E, 0x7F}, "LD A, (IX+0x7F)"},
		{[]byte{0xFD, 0x36, 0x80, 0xFF}, "LD (IY-0x80), 0xFF"},
		{[]byte{0x3E, 0x00}, "LD A, 0x00"},
		{[]byte{0x21, 0x00, 0x00}, "LD HL, 0x0000"},
		{[]byte{0x2A, 0xFF, 0xFF}, "LD HL, (0xFFFF)"},
		{[]byte{0x18, 0x80}, "JR 0x80"},
		{[]byte{0x10, 0x7F}, "DJNZ 0x7F"},
	}
	for _, tc := range tests {
		in, err := DecodeBytes(tc.code)
		if err != nil {
			t.Fatalf("decode % X: %v", tc.code, err)
		}
		if in.String() != tc.want {
			t.Errorf("decode % X = %q, want %q", tc.code, in.String(), tc.want)
		}
		requireZ80RoundTrip(t, in)
	}
}

func TestZ80RelativeJumpTargetsWrap(t *testing.T) {
	tests := []struct {
		name   string
		at     uint16
		code   []byte
		target uint16
	}{
		{"forward past top", 0xFFFE, []byte{0x18, 0x05}, 0x0005},
		{"backward past zero", 0x0000, []byte{0x18, 0x80}, 0xFF82},
		{"largest forward", 0x1000, []byte{0x18, 0x7F}, 0x1081},
		{"self loop", 0x2000, []byte{0x18, 0xFE}, 0x2000},
		{"djnz backward past zero", 0x0001, []byte{0x10, 0xF0}, 0xFFF3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rig := newCPUZ80TestRig()
			rig.resetAndLoad(tc.at, tc.code)
			rig.cpu.B = 2

			lines := Disassemble(rig.emu.Memory, tc.at, 1)
			if !lines[0].IsBranch || lines[0].BranchTarget != tc.target {
				t.Fatalf("listing target = 0x%04X (branch=%v), want 0x%04X",
					lines[0].BranchTarget, lines[0].IsBranch, tc.target)
			}
			rig.step(t)
			requireZ80EqualU16(t, "PC", rig.cpu.PC, tc.target)
		})
	}
}

func TestZ80DecodeCanonicalText(t *testing.T) {
	tests := []struct {
		code []byte
		want string
	}{
		{[]byte{0x00}, "NOP"},
		{[]byte{0x3E, 0x42}, "LD A, 0x42"},
		{[]byte{0x21, 0x34, 0x12}, "LD HL, 0x1234"},
		{[]byte{0x32, 0x00, 0x80}, "LD (0x8000), A"},
		{[]byte{0x7E}, "LD A, (HL)"},
		{[]byte{0x08}, "EX AF, AF'"},
		{[]byte{0x20, 0xFE}, "JR NZ, 0xFE"},
		{[]byte{0xD3, 0xFE}, "OUT (0xFE), A"},
		{[]byte{0xED, 0x78}, "IN A, (C)"},
		{[]byte{0xED, 0x5E}, "IM 2"},
		{[]byte{0xFF}, "RST 0x38"},
		{[]byte{0xCB, 0x7E}, "BIT 7, (HL)"},
		{[]byte{0xDD, 0x36, 0x05, 0x42}, "LD (IX+0x05), 0x42"},
		{[]byte{0xFD, 0x7E, 0x80}, "LD A, (IY-0x80)"},
		{[]byte{0xDD, 0xCB, 0xFE, 0xC6}, "SET 0, (IX-0x02)"},
		{[]byte{0xFD, 0xE9}, "JP (IY)"},
	}
	for _, tc := range tests {
		in, err := DecodeBytes(tc.code)
		if err != nil {
			t.Fatalf("decode % X: %v", tc.code, err)
		}
		if got := in.String(); got != tc.want {
			t.Errorf("decode % X = %q, want %q", tc.code, got, tc.want)
		}
		if got := in.HexBytes(); got != hexString(tc.code) {
			t.Errorf("HexBytes = %q, want %q", got, hexString(tc.code))
		}
	}
}

func hexString(code []byte) string {
	var buf bytes.Buffer
	for i, b := range code {
		if i > 0 {
			buf.WriteByte(' ')
		}
		const digits = "0123456789ABCDEF"
		buf.WriteByte(digits[b>>4])
		buf.WriteByte(digits[b&0x0F])
	}
	return buf.String()
}

func TestZ80DecodeInvalid(t *testing.T) {
	tests := [][]byte{
		{0xED, 0x00},
		{0xED, 0xFF},
		{0xDD, 0x00},
		{0xFD, 0x40},
		{0xDD, 0xCB, 0x05, 0x07},
		{0xCB, 0x30}, // SLL is not provided
	}
	for _, code := range tests {
		_, err := DecodeBytes(code)
		if !errors.Is(err, ErrInvalidInstruction) {
			t.Fatalf("decode % X: err = %v, want ErrInvalidInstruction", code, err)
		}
		var ierr *InvalidInstructionError
		if !errors.As(err, &ierr) {
			t.Fatalf("decode % X: %T is not InvalidInstructionError", code, err)
		}
		if !bytes.Equal(ierr.Bytes, code) {
			t.Fatalf("error bytes = % X, want % X", ierr.Bytes, code)
		}
	}
}

func TestZ80DecodeTruncated(t *testing.T) {
	for _, code := range [][]byte{
		nil,
		{0x21, 0x34},
		{0xDD},
		{0xDD, 0xCB, 0x05},
		{0xED, 0x43, 0x00},
	} {
		if _, err := DecodeBytes(code); !errors.Is(err, ErrTruncated) {
			t.Fatalf("decode % X: err = %v, want ErrTruncated", code, err)
		}
	}
}

func TestZ80DecodeFromMemoryWraps(t *testing.T) {
	m := NewDefaultMemory()
	_ = m.Write8(0xFFFF, 0xC3) // JP 0x1234 split across the top of memory
	_ = m.Write8(0x0000, 0x34)
	_ = m.Write8(0x0001, 0x12)

	in, err := Decode(m, 0xFFFF)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	requireZ80EqualU16(t, "target", in.NN, 0x1234)
}

func TestZ80DecodeUnmappedMemory(t *testing.T) {
	m := NewMemory()
	_ = m.AddDevice(NewRAM(0x10))

	if _, err := Decode(m, 0x0010); !errors.Is(err, ErrUnmappedAddress) {
		t.Fatalf("err = %v, want ErrUnmappedAddress", err)
	}
}

func TestZ80DecodeAll(t *testing.T) {
	prog, err := DecodeAll([]byte{0x3E, 0x42, 0xDD, 0x21, 0x00, 0x40, 0x76})
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	var got []string
	for _, in := range prog {
		got = append(got, in.String())
	}
	want := []string{"LD A, 0x42", "LD IX, 0x4000", "HALT"}
	if len(got) != len(want) {
		t.Fatalf("DecodeAll = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("DecodeAll = %q, want %q", got, want)
		}
	}

	prog, err = DecodeAll([]byte{0x00, 0xED, 0x00})
	if !errors.Is(err, ErrInvalidInstruction) || len(prog) != 1 {
		t.Fatalf("DecodeAll with bad tail = %d instructions, %v", len(prog), err)
	}
}
