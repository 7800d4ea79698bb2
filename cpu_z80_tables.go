package z80emu

import "fmt"

// Opcode pages. A nil entry is an invalid instruction.
var (
	basePage [256]*Opcode
	cbPage   [256]*Opcode
	edPage   [256]*Opcode
	ddPage   [256]*Opcode
	fdPage   [256]*Opcode
	ddcbPage [256]*Opcode
	fdcbPage [256]*Opcode

	opcodeList []*Opcode
	byMnemonic = map[string][]*Opcode{}
)

var (
	aluNames = [8]string{"ADD", "ADC", "SUB", "SBC", "AND", "XOR", "OR", "CP"}
	rotNames = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "", "SRL"}
)

// Opcodes returns every table entry in definition order.
func Opcodes() []*Opcode {
	out := make([]*Opcode, len(opcodeList))
	copy(out, opcodeList)
	return out
}

func init() {
	initBaseOps()
	initCBOps()
	initEDOps()
	initIndexOps(0xDD, PairIX, &ddPage, &ddcbPage)
	initIndexOps(0xFD, PairIY, &fdPage, &fdcbPage)
}

type opPage struct {
	prefix []byte
	slots  *[256]*Opcode
}

func (p opPage) add(code byte, mnemonic string, cycles int, exec execFunc, args ...Operand) *Opcode {
	if p.slots[code] != nil {
		panic(fmt.Sprintf("z80 opcode % X %02X defined twice", p.prefix, code))
	}
	op := &Opcode{
		Mnemonic:  mnemonic,
		Prefix:    p.prefix,
		Code:      code,
		Cycles:    cycles,
		AltCycles: cycles,
		exec:      exec,
	}
	copy(op.Args[:], args)
	p.slots[code] = op
	opcodeList = append(opcodeList, op)
	byMnemonic[mnemonic] = append(byMnemonic[mnemonic], op)
	return op
}

func (op *Opcode) orElse(cycles int) *Opcode {
	op.AltCycles = cycles
	return op
}

func (op *Opcode) jumps() *Opcode {
	op.Jump = true
	return op
}

// Operand constructors used by the table.

func r8(code byte) Operand {
	if code == regMem {
		return Operand{Kind: OperandIndirect, Value: IndHL}
	}
	return Operand{Kind: OperandReg8, Value: code}
}

func rp(pair byte) Operand { return Operand{Kind: OperandReg16, Value: pair} }
func cond(cc byte) Operand { return Operand{Kind: OperandCond, Value: cc} }
func ind(code byte) Operand { return Operand{Kind: OperandIndirect, Value: code} }
func idx(pair byte) Operand { return Operand{Kind: OperandIndexed, Value: pair} }
func num(v byte) Operand { return Operand{Kind: OperandConst, Value: v} }
func vector(v byte) Operand { return Operand{Kind: OperandVector, Value: v} }

var (
	imm8  = Operand{Kind: OperandImm8}
	imm16 = Operand{Kind: OperandImm16}
	rel   = Operand{Kind: OperandRel}
	abs   = Operand{Kind: OperandAbs}
	port  = Operand{Kind: OperandPort}
)

// aluArgs gives the operand list for an ALU group member: ADD, ADC and
// SBC name the accumulator, the rest take the source alone.
func aluArgs(kind int, src Operand) []Operand {
	switch kind {
	case aluAdd, aluAdc, aluSbc:
		return []Operand{r8(RegA), src}
	}
	return []Operand{src}
}

func memCycles(code byte, reg, mem int) int {
	if code == regMem {
		return mem
	}
	return reg
}

func initBaseOps() {
	base := opPage{slots: &basePage}

	base.add(0x00, "NOP", 4, execNOP)
	base.add(0x76, "HALT", 4, execHALT)

	for p := byte(0); p < 4; p++ {
		base.add(0x01|p<<4, "LD", 10, execLD16, rp(p), imm16)
		base.add(0x03|p<<4, "INC", 6, execINC16, rp(p))
		base.add(0x09|p<<4, "ADD", 11, execADD16, rp(PairHL), rp(p))
		base.add(0x0B|p<<4, "DEC", 6, execDEC16, rp(p))
	}

	base.add(0x02, "LD", 7, execLD8, ind(IndBC), r8(RegA))
	base.add(0x12, "LD", 7, execLD8, ind(IndDE), r8(RegA))
	base.add(0x0A, "LD", 7, execLD8, r8(RegA), ind(IndBC))
	base.add(0x1A, "LD", 7, execLD8, r8(RegA), ind(IndDE))
	base.add(0x22, "LD", 16, execLD16, abs, rp(PairHL))
	base.add(0x2A, "LD", 16, execLD16, rp(PairHL), abs)
	base.add(0x32, "LD", 13, execLD8, abs, r8(RegA))
	base.add(0x3A, "LD", 13, execLD8, r8(RegA), abs)

	for r := byte(0); r < 8; r++ {
		base.add(0x04|r<<3, "INC", memCycles(r, 4, 11), execINC8, r8(r))
		base.add(0x05|r<<3, "DEC", memCycles(r, 4, 11), execDEC8, r8(r))
		base.add(0x06|r<<3, "LD", memCycles(r, 7, 10), execLD8, r8(r), imm8)
	}

	base.add(0x07, "RLCA", 4, execRLCA)
	base.add(0x0F, "RRCA", 4, execRRCA)
	base.add(0x17, "RLA", 4, execRLA)
	base.add(0x1F, "RRA", 4, execRRA)
	base.add(0x27, "DAA", 4, execDAA)
	base.add(0x2F, "CPL", 4, execCPL)
	base.add(0x37, "SCF", 4, execSCF)
	base.add(0x3F, "CCF", 4, execCCF)

	base.add(0x08, "EX", 4, execEX, rp(PairAF), rp(PairAF2))
	base.add(0x10, "DJNZ", 13, execDJNZ, rel).orElse(8)
	base.add(0x18, "JR", 12, execJR, rel).jumps()
	for cc := byte(0); cc < 4; cc++ {
		base.add(0x20|cc<<3, "JR", 12, execJRcc, cond(cc), rel).orElse(7)
	}

	for dst := byte(0); dst < 8; dst++ {
		for src := byte(0); src < 8; src++ {
			code := 0x40 | dst<<3 | src
			if code == 0x76 {
				continue
			}
			cycles := 4
			if dst == regMem || src == regMem {
				cycles = 7
			}
			base.add(code, "LD", cycles, execLD8, r8(dst), r8(src))
		}
	}

	for k := 0; k < 8; k++ {
		exec := aluExec(k)
		for src := byte(0); src < 8; src++ {
			base.add(0x80|byte(k)<<3|src, aluNames[k], memCycles(src, 4, 7), exec, aluArgs(k, r8(src))...)
		}
		base.add(0xC6|byte(k)<<3, aluNames[k], 7, exec, aluArgs(k, imm8)...)
	}

	for cc := byte(0); cc < 8; cc++ {
		base.add(0xC0|cc<<3, "RET", 11, execRETcc, cond(cc)).orElse(5)
		base.add(0xC2|cc<<3, "JP", 10, execJPcc, cond(cc), imm16)
		base.add(0xC4|cc<<3, "CALL", 17, execCALLcc, cond(cc), imm16).orElse(10)
		base.add(0xC7|cc<<3, "RST", 11, execRST, vector(cc*8)).jumps()
	}

	stackPairs := [4]byte{PairBC, PairDE, PairHL, PairAF}
	for i, pair := range stackPairs {
		base.add(0xC1|byte(i)<<4, "POP", 10, execPOP, rp(pair))
		base.add(0xC5|byte(i)<<4, "PUSH", 11, execPUSH, rp(pair))
	}

	base.add(0xC3, "JP", 10, execJP, imm16).jumps()
	base.add(0xC9, "RET", 10, execRET).jumps()
	base.add(0xCD, "CALL", 17, execCALL, imm16).jumps()
	base.add(0xD3, "OUT", 11, execOUTnA, port, r8(RegA))
	base.add(0xDB, "IN", 11, execINAn, r8(RegA), port)
	base.add(0xD9, "EXX", 4, execEXX)
	base.add(0xE3, "EX", 19, execEX, ind(IndSP), rp(PairHL))
	base.add(0xE9, "JP", 4, execJPInd, ind(IndHL)).jumps()
	base.add(0xEB, "EX", 4, execEX, rp(PairDE), rp(PairHL))
	base.add(0xF3, "DI", 4, execDI)
	base.add(0xFB, "EI", 4, execEI)
	base.add(0xF9, "LD", 6, execLD16, rp(PairSP), rp(PairHL))
}

func initCBOps() {
	cb := opPage{prefix: []byte{0xCB}, slots: &cbPage}

	for g := 0; g < 8; g++ {
		if rotNames[g] == "" {
			continue
		}
		exec := shiftExec(g)
		for r := byte(0); r < 8; r++ {
			cb.add(byte(g)<<3|r, rotNames[g], memCycles(r, 8, 15), exec, r8(r))
		}
	}
	for b := byte(0); b < 8; b++ {
		for r := byte(0); r < 8; r++ {
			cb.add(0x40|b<<3|r, "BIT", memCycles(r, 8, 12), execBIT, num(b), r8(r))
			cb.add(0x80|b<<3|r, "RES", memCycles(r, 8, 15), execRES, num(b), r8(r))
			cb.add(0xC0|b<<3|r, "SET", memCycles(r, 8, 15), execSET, num(b), r8(r))
		}
	}
}

func initEDOps() {
	ed := opPage{prefix: []byte{0xED}, slots: &edPage}

	for r := byte(0); r < 8; r++ {
		if r == regMem {
			continue
		}
		ed.add(0x40|r<<3, "IN", 12, execINrC, r8(r), ind(IndC))
		ed.add(0x41|r<<3, "OUT", 12, execOUTCr, ind(IndC), r8(r))
	}
	for p := byte(0); p < 4; p++ {
		ed.add(0x42|p<<4, "SBC", 15, execSBC16, rp(PairHL), rp(p))
		ed.add(0x4A|p<<4, "ADC", 15, execADC16, rp(PairHL), rp(p))
		if p == PairHL {
			// ED 63 / ED 6B duplicate 22 / 2A
			continue
		}
		ed.add(0x43|p<<4, "LD", 20, execLD16, abs, rp(p))
		ed.add(0x4B|p<<4, "LD", 20, execLD16, rp(p), abs)
	}

	ed.add(0x44, "NEG", 8, execNEG)
	ed.add(0x45, "RETN", 14, execRETN).jumps()
	ed.add(0x4D, "RETI", 14, execRETI).jumps()
	ed.add(0x46, "IM", 8, execIM, num(0))
	ed.add(0x56, "IM", 8, execIM, num(1))
	ed.add(0x5E, "IM", 8, execIM, num(2))
	ed.add(0x47, "LD", 9, execLD8, r8(RegI), r8(RegA))
	ed.add(0x4F, "LD", 9, execLD8, r8(RegR), r8(RegA))
	ed.add(0x57, "LD", 9, execLDAIR, r8(RegA), r8(RegI))
	ed.add(0x5F, "LD", 9, execLDAIR, r8(RegA), r8(RegR))
	ed.add(0x67, "RRD", 18, execRRD)
	ed.add(0x6F, "RLD", 18, execRLD)

	blocks := []struct {
		code     byte
		mnemonic string
		kind     int
	}{
		{0xA0, "LDI", blockLD}, {0xA1, "CPI", blockCP}, {0xA2, "INI", blockIN}, {0xA3, "OUTI", blockOUT},
		{0xA8, "LDD", blockLD}, {0xA9, "CPD", blockCP}, {0xAA, "IND", blockIN}, {0xAB, "OUTD", blockOUT},
		{0xB0, "LDIR", blockLD}, {0xB1, "CPIR", blockCP}, {0xB2, "INIR", blockIN}, {0xB3, "OTIR", blockOUT},
		{0xB8, "LDDR", blockLD}, {0xB9, "CPDR", blockCP}, {0xBA, "INDR", blockIN}, {0xBB, "OTDR", blockOUT},
	}
	for _, b := range blocks {
		step := 1
		if b.code&0x08 != 0 {
			step = -1
		}
		repeat := b.code&0x10 != 0
		if repeat {
			ed.add(b.code, b.mnemonic, 21, blockExec(b.kind, step, true)).orElse(16)
		} else {
			ed.add(b.code, b.mnemonic, 16, blockExec(b.kind, step, false))
		}
	}
}

// initIndexOps fills the DD or FD page: the HL forms that exist with IX or
// IY substituted, and the four-byte indexed bit page.
func initIndexOps(prefix byte, pair byte, page, bitPage *[256]*Opcode) {
	x := opPage{prefix: []byte{prefix}, slots: page}
	xr := rp(pair)
	xi := idx(pair)
	jpInd := ind(IndIX)
	if pair == PairIY {
		jpInd = ind(IndIY)
	}

	for p := byte(0); p < 4; p++ {
		src := p
		if p == PairHL {
			src = pair
		}
		x.add(0x09|p<<4, "ADD", 15, execADD16, xr, rp(src))
	}
	x.add(0x21, "LD", 14, execLD16, xr, imm16)
	x.add(0x22, "LD", 20, execLD16, abs, xr)
	x.add(0x2A, "LD", 20, execLD16, xr, abs)
	x.add(0x23, "INC", 10, execINC16, xr)
	x.add(0x2B, "DEC", 10, execDEC16, xr)
	x.add(0x34, "INC", 23, execINC8, xi)
	x.add(0x35, "DEC", 23, execDEC8, xi)
	x.add(0x36, "LD", 19, execLD8, xi, imm8)

	for r := byte(0); r < 8; r++ {
		if r == regMem {
			continue
		}
		x.add(0x46|r<<3, "LD", 19, execLD8, r8(r), xi)
		x.add(0x70|r, "LD", 19, execLD8, xi, r8(r))
	}
	for k := 0; k < 8; k++ {
		x.add(0x86|byte(k)<<3, aluNames[k], 19, aluExec(k), aluArgs(k, xi)...)
	}

	x.add(0xE1, "POP", 14, execPOP, xr)
	x.add(0xE5, "PUSH", 15, execPUSH, xr)
	x.add(0xE3, "EX", 23, execEX, ind(IndSP), xr)
	x.add(0xE9, "JP", 8, execJPInd, jpInd).jumps()
	x.add(0xF9, "LD", 10, execLD16, rp(PairSP), xr)

	xcb := opPage{prefix: []byte{prefix, 0xCB}, slots: bitPage}
	for g := 0; g < 8; g++ {
		if rotNames[g] == "" {
			continue
		}
		xcb.add(byte(g)<<3|regMem, rotNames[g], 23, shiftExec(g), xi)
	}
	for b := byte(0); b < 8; b++ {
		xcb.add(0x46|b<<3, "BIT", 20, execBIT, num(b), xi)
		xcb.add(0x86|b<<3, "RES", 23, execRES, num(b), xi)
		xcb.add(0xC6|b<<3, "SET", 23, execSET, num(b), xi)
	}
}
