package z80emu

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrTruncated          = errors.New("instruction runs past end of input")
)

// InvalidInstructionError describes bytes or text that match no opcode.
type InvalidInstructionError struct {
	Addr  uint16
	Bytes []byte
	Text  string
}

func (e *InvalidInstructionError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("%v: %q", ErrInvalidInstruction, e.Text)
	}
	parts := make([]string, len(e.Bytes))
	for i, b := range e.Bytes {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("%v at 0x%04X: %s", ErrInvalidInstruction, e.Addr, strings.Join(parts, " "))
}

func (e *InvalidInstructionError) Unwrap() error { return ErrInvalidInstruction }

// ByteReader is anything the decoder can fetch from. *Memory satisfies it.
type ByteReader interface {
	Read8(addr uint16) (byte, error)
}

type fetcher struct {
	mem  ByteReader
	pc   uint16
	seen []byte
	err  error
}

func (f *fetcher) next() byte {
	if f.err != nil {
		return 0
	}
	b, err := f.mem.Read8(f.pc + uint16(len(f.seen)))
	if err != nil {
		f.err = err
		return 0
	}
	f.seen = append(f.seen, b)
	return b
}

// Decode reads one instruction starting at pc. Operand addresses wrap at
// 0xFFFF.
func Decode(mem ByteReader, pc uint16) (*Instruction, error) {
	f := &fetcher{mem: mem, pc: pc, seen: make([]byte, 0, 4)}

	var op *Opcode
	var d int8
	indexBits := false

	switch b0 := f.next(); b0 {
	case 0xCB:
		op = cbPage[f.next()]
	case 0xED:
		op = edPage[f.next()]
	case 0xDD, 0xFD:
		b1 := f.next()
		if b1 == 0xCB {
			d = int8(f.next())
			code := f.next()
			if b0 == 0xDD {
				op = ddcbPage[code]
			} else {
				op = fdcbPage[code]
			}
			indexBits = true
		} else if b0 == 0xDD {
			op = ddPage[b1]
		} else {
			op = fdPage[b1]
		}
	default:
		op = basePage[b0]
	}
	if f.err != nil {
		return nil, fmt.Errorf("decode at 0x%04X: %w", pc, f.err)
	}
	if op == nil {
		return nil, &InvalidInstructionError{Addr: pc, Bytes: f.seen}
	}

	in := newInstruction(op)
	if indexBits {
		in.D = d
		return in, nil
	}
	for _, a := range op.Args {
		switch a.Kind {
		case OperandIndexed:
			in.D = int8(f.next())
		case OperandImm8, OperandRel, OperandPort:
			in.N = f.next()
		case OperandImm16, OperandAbs:
			lo := f.next()
			hi := f.next()
			in.NN = uint16(hi)<<8 | uint16(lo)
		}
	}
	if f.err != nil {
		return nil, fmt.Errorf("decode %s operands at 0x%04X: %w", op.Mnemonic, pc, f.err)
	}
	return in, nil
}

// byteImage adapts a slice to ByteReader; addresses past the end fail.
type byteImage []byte

func (b byteImage) Read8(addr uint16) (byte, error) {
	if int(addr) >= len(b) {
		return 0, ErrTruncated
	}
	return b[addr], nil
}

// DecodeBytes decodes the instruction at the start of code.
func DecodeBytes(code []byte) (*Instruction, error) {
	return Decode(byteImage(code), 0)
}

// DecodeAll decodes code as a back-to-back sequence of instructions.
func DecodeAll(code []byte) ([]*Instruction, error) {
	var out []*Instruction
	for pc := 0; pc < len(code); {
		in, err := Decode(byteImage(code), uint16(pc))
		if err != nil {
			return out, err
		}
		out = append(out, in)
		pc += in.Length()
	}
	return out, nil
}
