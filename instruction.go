package z80emu

import (
	"fmt"
	"strings"
)

// OperandKind is the addressing shape of one instruction operand.
type OperandKind uint8

const (
	OperandNone     OperandKind = iota
	OperandReg8                 // A B C D E H L I R
	OperandReg16                // BC DE HL SP AF AF' IX IY
	OperandCond                 // NZ Z NC C PO PE P M
	OperandImm8                 // n
	OperandImm16                // nn
	OperandRel                  // e, relative jump displacement
	OperandIndirect             // (BC) (DE) (HL) (SP) (IX) (IY) (C)
	OperandIndexed              // (IX+d) (IY+d)
	OperandAbs                  // (nn)
	OperandPort                 // (n)
	OperandConst                // fixed number: bit index, interrupt mode
	OperandVector               // fixed restart address
)

// Operand is a shape plus the fixed part of it: which register, which
// condition, which constant. Variable parts live in the Instruction.
type Operand struct {
	Kind  OperandKind
	Value byte
}

// 8-bit register codes. B..A follow the 3-bit encoding used in opcodes;
// code 6 is (HL) there and has no register.
const (
	RegB byte = iota
	RegC
	RegD
	RegE
	RegH
	RegL
	regMem
	RegA
	RegI
	RegR
)

const (
	PairBC byte = iota
	PairDE
	PairHL
	PairSP
	PairAF
	PairAF2
	PairIX
	PairIY
)

const (
	IndBC byte = iota
	IndDE
	IndHL
	IndSP
	IndIX
	IndIY
	IndC
)

const (
	CondNZ byte = iota
	CondZ
	CondNC
	CondC
	CondPO
	CondPE
	CondP
	CondM
)

var (
	reg8Names     = [...]string{"B", "C", "D", "E", "H", "L", "(HL)", "A", "I", "R"}
	pairNames     = [...]string{"BC", "DE", "HL", "SP", "AF", "AF'", "IX", "IY"}
	indirectNames = [...]string{"(BC)", "(DE)", "(HL)", "(SP)", "(IX)", "(IY)", "(C)"}
	condNames     = [...]string{"NZ", "Z", "NC", "C", "PO", "PE", "P", "M"}
)

type execFunc func(c *CPU, in *Instruction)

// Opcode is one row of the instruction table: a mnemonic with fixed
// operand shapes and a fixed encoding.
type Opcode struct {
	Mnemonic string
	Args     [2]Operand
	Prefix   []byte
	Code     byte
	// Cycles is the cost when a conditional transfer is taken or a block
	// instruction repeats; AltCycles is the cost otherwise.
	Cycles    int
	AltCycles int
	// Jump marks unconditional transfers. PC is never advanced after them.
	Jump bool

	exec execFunc
}

func (op *Opcode) NumArgs() int {
	n := 0
	for _, a := range op.Args {
		if a.Kind != OperandNone {
			n++
		}
	}
	return n
}

// Length is the encoded size in bytes.
func (op *Opcode) Length() int {
	n := len(op.Prefix) + 1
	for _, a := range op.Args {
		switch a.Kind {
		case OperandImm8, OperandRel, OperandPort, OperandIndexed:
			n++
		case OperandImm16, OperandAbs:
			n += 2
		}
	}
	return n
}

// Instruction is a decoded opcode with its operand values bound. Only the
// payload fields its Opcode uses are set; the rest stay zero so two
// decodings of the same bytes compare equal.
type Instruction struct {
	Op *Opcode

	N  byte   // n, e or (n)
	NN uint16 // nn or (nn)
	D  int8   // index displacement

	// Cycles and IncrementPC start from the table and may be changed by
	// execution (taken branches, repeating block instructions).
	Cycles      int
	IncrementPC bool
}

func newInstruction(op *Opcode) *Instruction {
	return &Instruction{Op: op, Cycles: op.Cycles, IncrementPC: !op.Jump}
}

func (in *Instruction) Length() int { return in.Op.Length() }

func (in *Instruction) Mnemonic() string { return in.Op.Mnemonic }

// Equal reports whether two instructions have the same opcode and operands.
func (in *Instruction) Equal(other *Instruction) bool {
	return in.Op == other.Op && in.N == other.N && in.NN == other.NN && in.D == other.D
}

// Bytes is the machine encoding.
func (in *Instruction) Bytes() []byte {
	op := in.Op
	out := make([]byte, 0, op.Length())
	out = append(out, op.Prefix...)
	if len(op.Prefix) == 2 {
		// DD CB d op / FD CB d op
		return append(out, byte(in.D), op.Code)
	}
	out = append(out, op.Code)
	for _, a := range op.Args {
		switch a.Kind {
		case OperandIndexed:
			out = append(out, byte(in.D))
		case OperandImm8, OperandRel, OperandPort:
			out = append(out, in.N)
		case OperandImm16, OperandAbs:
			out = append(out, byte(in.NN), byte(in.NN>>8))
		}
	}
	return out
}

// String is the canonical assembly text, e.g. "LD A, 0x42".
func (in *Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(in.Op.Mnemonic)
	sep := " "
	for _, a := range in.Op.Args {
		if a.Kind == OperandNone {
			continue
		}
		sb.WriteString(sep)
		sb.WriteString(in.formatOperand(a))
		sep = ", "
	}
	return sb.String()
}

func (in *Instruction) formatOperand(a Operand) string {
	switch a.Kind {
	case OperandReg8:
		return reg8Names[a.Value]
	case OperandReg16:
		return pairNames[a.Value]
	case OperandCond:
		return condNames[a.Value]
	case OperandIndirect:
		return indirectNames[a.Value]
	case OperandImm8, OperandRel:
		return fmt.Sprintf("0x%02X", in.N)
	case OperandPort:
		return fmt.Sprintf("(0x%02X)", in.N)
	case OperandImm16:
		return fmt.Sprintf("0x%04X", in.NN)
	case OperandAbs:
		return fmt.Sprintf("(0x%04X)", in.NN)
	case OperandIndexed:
		if in.D < 0 {
			return fmt.Sprintf("(%s-0x%02X)", pairNames[a.Value], -int(in.D))
		}
		return fmt.Sprintf("(%s+0x%02X)", pairNames[a.Value], in.D)
	case OperandConst:
		return fmt.Sprintf("%d", a.Value)
	case OperandVector:
		return fmt.Sprintf("0x%02X", a.Value)
	}
	return "?"
}

// HexBytes renders the encoding as "DD 36 05 42".
func (in *Instruction) HexBytes() string {
	b := in.Bytes()
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}
