package z80emu

import (
	"fmt"
	"strconv"
	"strings"
)

// LineError is one failing line of a program.
type LineError struct {
	Line int // 1-based
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ProgramError collects every line of a program that failed to parse.
type ProgramError struct {
	Lines []LineError
}

func (e *ProgramError) Error() string {
	msgs := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		msgs[i] = l.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *ProgramError) Unwrap() []error {
	errs := make([]error, len(e.Lines))
	for i, l := range e.Lines {
		errs[i] = l.Err
	}
	return errs
}

// literal is a parsed number and whether its spelling makes it a 16-bit
// value.
type literal struct {
	value uint16
	wide  bool
}

func parseLiteral(tok string) (literal, bool) {
	digits, base := tok, 10
	switch {
	case strings.HasPrefix(tok, "0x"):
		digits, base = tok[2:], 16
	case strings.HasPrefix(tok, "0b"):
		digits, base = tok[2:], 2
	}
	if digits == "" {
		return literal{}, false
	}
	v, err := strconv.ParseUint(digits, base, 16)
	if err != nil {
		return literal{}, false
	}
	var wide bool
	switch base {
	case 16:
		wide = len(digits) > 2
	case 2:
		wide = len(digits) > 8
	default:
		wide = v > 0xFF
	}
	return literal{value: uint16(v), wide: wide}, true
}

func parseNarrow(tok string) (byte, bool) {
	lit, ok := parseLiteral(tok)
	if !ok || lit.wide {
		return 0, false
	}
	return byte(lit.value), true
}

func parenthesized(tok string) (string, bool) {
	if len(tok) < 2 || tok[0] != '(' || tok[len(tok)-1] != ')' {
		return "", false
	}
	return tok[1 : len(tok)-1], true
}

// tokenize normalises a line to lower-case mnemonic and operand tokens.
func tokenize(line string) []string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.ToLower(line)

	var sb strings.Builder
	depth := 0
	for _, r := range line {
		switch {
		case r == '(':
			depth++
		case r == ')':
			depth--
		case r == ',':
			r = ' '
		case depth > 0 && (r == ' ' || r == '\t'):
			continue
		}
		sb.WriteRune(r)
	}
	return strings.Fields(sb.String())
}

// matchOperand binds tok to shape a, filling the payload fields of in.
func matchOperand(tok string, a Operand, in *Instruction) bool {
	switch a.Kind {
	case OperandReg8:
		return tok == strings.ToLower(reg8Names[a.Value])
	case OperandReg16:
		return tok == strings.ToLower(pairNames[a.Value])
	case OperandCond:
		return tok == strings.ToLower(condNames[a.Value])
	case OperandIndirect:
		return tok == strings.ToLower(indirectNames[a.Value])
	case OperandIndexed:
		return matchIndexed(tok, a.Value, in)
	case OperandImm8, OperandRel:
		n, ok := parseNarrow(tok)
		in.N = n
		return ok
	case OperandImm16:
		lit, ok := parseLiteral(tok)
		in.NN = lit.value
		return ok
	case OperandAbs:
		inner, ok := parenthesized(tok)
		if !ok {
			return false
		}
		lit, ok := parseLiteral(inner)
		in.NN = lit.value
		return ok
	case OperandPort:
		inner, ok := parenthesized(tok)
		if !ok {
			return false
		}
		n, ok := parseNarrow(inner)
		in.N = n
		return ok
	case OperandConst, OperandVector:
		n, ok := parseNarrow(tok)
		return ok && n == a.Value
	}
	return false
}

func matchIndexed(tok string, pair byte, in *Instruction) bool {
	inner, ok := parenthesized(tok)
	if !ok {
		return false
	}
	name := strings.ToLower(pairNames[pair])
	rest, ok := strings.CutPrefix(inner, name)
	if !ok {
		return false
	}
	if rest == "" {
		in.D = 0
		return true
	}
	sign := rest[0]
	if sign != '+' && sign != '-' {
		return false
	}
	n, ok := parseNarrow(rest[1:])
	if !ok {
		return false
	}
	if sign == '+' {
		if n > 0x7F {
			return false
		}
		in.D = int8(n)
		return true
	}
	if n > 0x80 {
		return false
	}
	in.D = int8(-int(n))
	return true
}

// ParseInstruction assembles a single line such as "ld (ix+5), 0x42".
func ParseInstruction(line string) (*Instruction, error) {
	toks := tokenize(line)
	if len(toks) == 0 {
		return nil, &InvalidInstructionError{Text: line}
	}
	mnemonic := strings.ToUpper(toks[0])
	args := toks[1:]

	var found []*Instruction
	for _, op := range byMnemonic[mnemonic] {
		if op.NumArgs() != len(args) {
			continue
		}
		in := newInstruction(op)
		ok := true
		for i, tok := range args {
			if !matchOperand(tok, op.Args[i], in) {
				ok = false
				break
			}
		}
		if ok {
			found = append(found, in)
		}
	}

	switch len(found) {
	case 0:
		return nil, &InvalidInstructionError{Text: strings.TrimSpace(line)}
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("%w: %d encodings match", &InvalidInstructionError{Text: strings.TrimSpace(line)}, len(found))
}

// ParseProgram parses every line, skipping blank and comment-only ones. If
// any line fails the returned error is a *ProgramError naming all of them.
func ParseProgram(lines []string) ([]*Instruction, error) {
	var out []*Instruction
	var perr ProgramError
	for i, line := range lines {
		if len(tokenize(line)) == 0 {
			continue
		}
		in, err := ParseInstruction(line)
		if err != nil {
			perr.Lines = append(perr.Lines, LineError{Line: i + 1, Text: line, Err: err})
			continue
		}
		out = append(out, in)
	}
	if len(perr.Lines) > 0 {
		return nil, &perr
	}
	return out, nil
}

// Assemble turns newline separated source into machine code.
func Assemble(src string) ([]byte, error) {
	prog, err := ParseProgram(strings.Split(src, "\n"))
	if err != nil {
		return nil, err
	}
	var code []byte
	for _, in := range prog {
		code = append(code, in.Bytes()...)
	}
	return code, nil
}
