package z80emu

const (
	blockLD = iota
	blockCP
	blockIN
	blockOUT
)

func execNOP(c *CPU, in *Instruction) {}

func execHALT(c *CPU, in *Instruction) {
	c.Halted = true
}

// 8-bit loads

func execLD8(c *CPU, in *Instruction) {
	c.set8(in, 0, c.get8(in, 1))
}

// execLDAIR is LD A,I and LD A,R, which also copy IFF2 into PV.
func execLDAIR(c *CPU, in *Instruction) {
	c.A = c.reg8(in.Op.Args[1].Value)
	c.F = c.F&FlagC | szxy(c.A)
	if c.io != nil && c.io.IFF2 {
		c.F |= FlagPV
	}
}

// 16-bit loads and exchanges

func execLD16(c *CPU, in *Instruction) {
	c.set16(in, 0, c.get16(in, 1))
}

func execPUSH(c *CPU, in *Instruction) {
	c.pushWord(c.pair(in.Op.Args[0].Value))
}

func execPOP(c *CPU, in *Instruction) {
	c.setPair(in.Op.Args[0].Value, c.popWord())
}

func execEX(c *CPU, in *Instruction) {
	a, b := in.Op.Args[0], in.Op.Args[1]
	switch {
	case a.Kind == OperandReg16 && a.Value == PairAF:
		c.ExAF()
	case a.Kind == OperandIndirect:
		// EX (SP),HL/IX/IY
		mem := c.read16(c.SP)
		c.write16(c.SP, c.pair(b.Value))
		c.setPair(b.Value, mem)
	default:
		x, y := c.pair(a.Value), c.pair(b.Value)
		c.setPair(a.Value, y)
		c.setPair(b.Value, x)
	}
}

func execEXX(c *CPU, in *Instruction) {
	c.Exx()
}

// Arithmetic

func aluExec(kind int) execFunc {
	return func(c *CPU, in *Instruction) {
		c.performALU(kind, c.get8(in, last(in)))
	}
}

func execINC8(c *CPU, in *Instruction) {
	c.set8(in, 0, c.inc8(c.get8(in, 0)))
}

func execDEC8(c *CPU, in *Instruction) {
	c.set8(in, 0, c.dec8(c.get8(in, 0)))
}

func execINC16(c *CPU, in *Instruction) {
	c.set16(in, 0, c.get16(in, 0)+1)
}

func execDEC16(c *CPU, in *Instruction) {
	c.set16(in, 0, c.get16(in, 0)-1)
}

func execADD16(c *CPU, in *Instruction) {
	c.set16(in, 0, c.add16(c.get16(in, 0), c.get16(in, 1)))
}

func execADC16(c *CPU, in *Instruction) {
	c.set16(in, 0, c.adc16(c.get16(in, 0), c.get16(in, 1)))
}

func execSBC16(c *CPU, in *Instruction) {
	c.set16(in, 0, c.sbc16(c.get16(in, 0), c.get16(in, 1)))
}

// Accumulator and flag operations

func execRLCA(c *CPU, in *Instruction) { c.rotateA(rotRLC) }
func execRRCA(c *CPU, in *Instruction) { c.rotateA(rotRRC) }
func execRLA(c *CPU, in *Instruction)  { c.rotateA(rotRL) }
func execRRA(c *CPU, in *Instruction)  { c.rotateA(rotRR) }
func execDAA(c *CPU, in *Instruction)  { c.daa() }
func execNEG(c *CPU, in *Instruction)  { c.neg() }

func execCPL(c *CPU, in *Instruction) {
	c.A = ^c.A
	c.F = c.F&(FlagS|FlagZ|FlagPV|FlagC) | FlagH | FlagN | Flags(c.A)&(FlagX|FlagY)
}

func execSCF(c *CPU, in *Instruction) {
	c.F = c.F&(FlagS|FlagZ|FlagPV) | FlagC | Flags(c.A)&(FlagX|FlagY)
}

func execCCF(c *CPU, in *Instruction) {
	f := c.F&(FlagS|FlagZ|FlagPV) | Flags(c.A)&(FlagX|FlagY)
	if c.F.Carry() {
		f |= FlagH
	} else {
		f |= FlagC
	}
	c.F = f
}

// Rotates, shifts and bit operations

func shiftExec(kind int) execFunc {
	return func(c *CPU, in *Instruction) {
		i := last(in)
		res, carry := c.shift(kind, c.get8(in, i))
		c.set8(in, i, res)
		c.F = szxyp(res)
		if carry {
			c.F |= FlagC
		}
	}
}

func execBIT(c *CPU, in *Instruction) {
	bit := in.Op.Args[0].Value
	value := c.get8(in, 1)
	xy := value
	if in.Op.Args[1].Kind != OperandReg8 {
		xy = byte(c.addr(in, 1) >> 8)
	}
	c.bitTest(bit, value, xy)
}

func execRES(c *CPU, in *Instruction) {
	bit := in.Op.Args[0].Value
	c.set8(in, 1, c.get8(in, 1)&^(1<<bit))
}

func execSET(c *CPU, in *Instruction) {
	bit := in.Op.Args[0].Value
	c.set8(in, 1, c.get8(in, 1)|1<<bit)
}

func execRRD(c *CPU, in *Instruction) {
	hl := c.HL()
	m := c.read(hl)
	c.write(hl, c.A<<4|m>>4)
	c.A = c.A&0xF0 | m&0x0F
	c.F = c.F&FlagC | szxyp(c.A)
}

func execRLD(c *CPU, in *Instruction) {
	hl := c.HL()
	m := c.read(hl)
	c.write(hl, m<<4|c.A&0x0F)
	c.A = c.A&0xF0 | m>>4
	c.F = c.F&FlagC | szxyp(c.A)
}

// Control flow

// taken records that a conditional instruction transferred control.
func taken(in *Instruction) {
	in.Cycles = in.Op.Cycles
	in.IncrementPC = false
}

func notTaken(in *Instruction) {
	in.Cycles = in.Op.AltCycles
}

func execJP(c *CPU, in *Instruction) {
	c.PC = in.NN
}

func execJPInd(c *CPU, in *Instruction) {
	c.PC = c.indirect(in.Op.Args[0].Value)
}

func execJPcc(c *CPU, in *Instruction) {
	if !c.condition(in.Op.Args[0].Value) {
		notTaken(in)
		return
	}
	c.PC = in.NN
	taken(in)
}

// relJump lands relative to the byte after the two-byte JR/DJNZ.
func (c *CPU) relJump(in *Instruction) {
	c.PC = c.PC + 2 + uint16(int16(int8(in.N)))
}

func execJR(c *CPU, in *Instruction) {
	c.relJump(in)
}

func execJRcc(c *CPU, in *Instruction) {
	if !c.condition(in.Op.Args[0].Value) {
		notTaken(in)
		return
	}
	c.relJump(in)
	taken(in)
}

func execDJNZ(c *CPU, in *Instruction) {
	c.B--
	if c.B == 0 {
		notTaken(in)
		return
	}
	c.relJump(in)
	taken(in)
}

func (c *CPU) call(in *Instruction) {
	c.pushWord(c.PC + uint16(in.Length()))
	c.PC = in.NN
}

func execCALL(c *CPU, in *Instruction) {
	c.call(in)
}

func execCALLcc(c *CPU, in *Instruction) {
	if !c.condition(in.Op.Args[0].Value) {
		notTaken(in)
		return
	}
	c.call(in)
	taken(in)
}

func execRET(c *CPU, in *Instruction) {
	c.PC = c.popWord()
}

func execRETcc(c *CPU, in *Instruction) {
	if !c.condition(in.Op.Args[0].Value) {
		notTaken(in)
		return
	}
	c.PC = c.popWord()
	taken(in)
}

func execRETN(c *CPU, in *Instruction) {
	c.PC = c.popWord()
	if c.io != nil && !c.faulted() {
		c.io.restoreIFF()
	}
}

func execRETI(c *CPU, in *Instruction) {
	execRETN(c, in)
}

func execRST(c *CPU, in *Instruction) {
	c.pushWord(c.PC + 1)
	c.PC = uint16(in.Op.Args[0].Value)
}

// Interrupt control and ports

func execDI(c *CPU, in *Instruction) {
	if c.io != nil {
		c.io.DisableInterrupts()
	}
}

func execEI(c *CPU, in *Instruction) {
	if c.io != nil {
		c.io.EnableInterrupts()
	}
}

func execIM(c *CPU, in *Instruction) {
	if c.io != nil {
		c.io.Mode = in.Op.Args[0].Value
	}
}

func execINAn(c *CPU, in *Instruction) {
	c.A = c.in(in.N)
}

func execOUTnA(c *CPU, in *Instruction) {
	c.out(in.N, c.A)
}

func execINrC(c *CPU, in *Instruction) {
	v := c.in(c.C)
	c.setReg8(in.Op.Args[0].Value, v)
	c.F = c.F&FlagC | szxyp(v)
}

func execOUTCr(c *CPU, in *Instruction) {
	c.out(c.C, c.reg8(in.Op.Args[1].Value))
}

// Block transfer, search and I/O

func blockExec(kind int, step int, repeat bool) execFunc {
	delta := uint16(step)
	return func(c *CPU, in *Instruction) {
		var again bool
		switch kind {
		case blockLD:
			again = c.blockLoad(delta)
		case blockCP:
			again = c.blockCompare(delta)
		case blockIN:
			again = c.blockIn(delta)
		case blockOUT:
			again = c.blockOut(delta)
		}
		if repeat && again {
			taken(in)
			return
		}
		notTaken(in)
	}
}

func (c *CPU) blockLoad(delta uint16) bool {
	v := c.read(c.HL())
	c.write(c.DE(), v)
	c.SetHL(c.HL() + delta)
	c.SetDE(c.DE() + delta)
	c.SetBC(c.BC() - 1)

	n := v + c.A
	f := c.F&(FlagS|FlagZ|FlagC) | Flags(n)&FlagX
	if n&0x02 != 0 {
		f |= FlagY
	}
	if c.BC() != 0 {
		f |= FlagPV
	}
	c.F = f
	return c.BC() != 0
}

func (c *CPU) blockCompare(delta uint16) bool {
	v := c.read(c.HL())
	res := c.A - v
	half := c.A&0x0F < v&0x0F
	c.SetHL(c.HL() + delta)
	c.SetBC(c.BC() - 1)

	f := c.F&FlagC | FlagN | Flags(res)&FlagS
	if res == 0 {
		f |= FlagZ
	}
	n := res
	if half {
		f |= FlagH
		n--
	}
	f |= Flags(n) & FlagX
	if n&0x02 != 0 {
		f |= FlagY
	}
	if c.BC() != 0 {
		f |= FlagPV
	}
	c.F = f
	return c.BC() != 0 && res != 0
}

func (c *CPU) blockIn(delta uint16) bool {
	v := c.in(c.C)
	c.write(c.HL(), v)
	c.SetHL(c.HL() + delta)
	c.B--
	c.F = c.F&FlagC | FlagN | szxy(c.B)
	return c.B != 0
}

func (c *CPU) blockOut(delta uint16) bool {
	v := c.read(c.HL())
	c.B--
	c.out(c.C, v)
	c.SetHL(c.HL() + delta)
	c.F = c.F&FlagC | FlagN | szxy(c.B)
	return c.B != 0
}
