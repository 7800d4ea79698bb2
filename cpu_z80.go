package z80emu

import (
	"errors"
	"fmt"
)

var ErrHalted = errors.New("cpu is halted")

// CPU is the Z80 register file plus the execution state the instructions
// touch. Memory and I/O are bound only for the duration of Execute.
type CPU struct {
	Registers
	Halted bool

	mem     *Memory
	io      *IOBus
	err     error
	journal []undoWrite
}

// undoWrite remembers what a write replaced so a faulting instruction
// can be rolled back.
type undoWrite struct {
	addr uint16
	old  byte
}

func NewCPU() *CPU {
	c := &CPU{}
	c.Reset()
	return c
}

func (c *CPU) Reset() {
	c.Registers.Reset()
	c.Halted = false
}

// Decode reads the instruction at PC.
func (c *CPU) Decode(mem ByteReader) (*Instruction, error) {
	return Decode(mem, c.PC)
}

// Execute applies in. PC still points at the instruction while it runs;
// advancing it is left to the caller and governed by in.IncrementPC.
//
// A memory or port fault aborts the instruction: registers and every byte
// it already wrote are put back before the error is returned. Port
// accesses made before the fault cannot be undone.
func (c *CPU) Execute(in *Instruction, mem *Memory, io *IOBus) error {
	saved, halted := c.Registers, c.Halted
	c.mem, c.io, c.err = mem, io, nil
	c.journal = c.journal[:0]
	mark := mem.changeMark()

	c.IncR()
	in.Op.exec(c, in)

	err := c.err
	if err != nil {
		for i := len(c.journal) - 1; i >= 0; i-- {
			mem.restore(c.journal[i].addr, c.journal[i].old)
		}
		mem.dropChanges(mark)
		c.Registers, c.Halted = saved, halted
	}
	c.mem, c.io, c.err = nil, nil, nil
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	return nil
}

func (c *CPU) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// faulted reports whether the running instruction has already failed.
// Once it has, no further memory or port access is made.
func (c *CPU) faulted() bool { return c.err != nil }

func (c *CPU) read(addr uint16) byte {
	if c.faulted() {
		return 0
	}
	v, err := c.mem.Read8(addr)
	if err != nil {
		c.fail(err)
	}
	return v
}

func (c *CPU) write(addr uint16, value byte) {
	if c.faulted() {
		return
	}
	old, _ := c.mem.peek(addr)
	if err := c.mem.Write8(addr, value); err != nil {
		c.fail(err)
		return
	}
	c.journal = append(c.journal, undoWrite{addr: addr, old: old})
}

func (c *CPU) read16(addr uint16) uint16 {
	low := c.read(addr)
	high := c.read(addr + 1)
	return uint16(high)<<8 | uint16(low)
}

func (c *CPU) write16(addr uint16, value uint16) {
	c.write(addr, byte(value))
	c.write(addr+1, byte(value>>8))
}

func (c *CPU) in(port uint8) byte {
	if c.faulted() {
		return 0
	}
	v, err := c.io.Read(port)
	if err != nil {
		c.fail(err)
	}
	return v
}

func (c *CPU) out(port uint8, value byte) {
	if c.faulted() {
		return
	}
	if err := c.io.Write(port, value); err != nil {
		c.fail(err)
	}
}

func (c *CPU) pushWord(value uint16) {
	c.SP--
	c.write(c.SP, byte(value>>8))
	c.SP--
	c.write(c.SP, byte(value))
}

func (c *CPU) popWord() uint16 {
	low := c.read(c.SP)
	c.SP++
	high := c.read(c.SP)
	c.SP++
	return uint16(high)<<8 | uint16(low)
}

func (c *CPU) reg8(code byte) byte {
	switch code {
	case RegB:
		return c.B
	case RegC:
		return c.C
	case RegD:
		return c.D
	case RegE:
		return c.E
	case RegH:
		return c.H
	case RegL:
		return c.L
	case RegA:
		return c.A
	case RegI:
		return c.I
	case RegR:
		return c.R
	}
	return 0
}

func (c *CPU) setReg8(code byte, value byte) {
	switch code {
	case RegB:
		c.B = value
	case RegC:
		c.C = value
	case RegD:
		c.D = value
	case RegE:
		c.E = value
	case RegH:
		c.H = value
	case RegL:
		c.L = value
	case RegA:
		c.A = value
	case RegI:
		c.I = value
	case RegR:
		c.R = value
	}
}

func (c *CPU) pair(code byte) uint16 {
	switch code {
	case PairBC:
		return c.BC()
	case PairDE:
		return c.DE()
	case PairHL:
		return c.HL()
	case PairSP:
		return c.SP
	case PairAF:
		return c.AF()
	case PairAF2:
		return c.AF2()
	case PairIX:
		return c.IX
	case PairIY:
		return c.IY
	}
	return 0
}

func (c *CPU) setPair(code byte, value uint16) {
	switch code {
	case PairBC:
		c.SetBC(value)
	case PairDE:
		c.SetDE(value)
	case PairHL:
		c.SetHL(value)
	case PairSP:
		c.SP = value
	case PairAF:
		c.SetAF(value)
	case PairAF2:
		c.SetAF2(value)
	case PairIX:
		c.IX = value
	case PairIY:
		c.IY = value
	}
}

func (c *CPU) indirect(code byte) uint16 {
	switch code {
	case IndBC:
		return c.BC()
	case IndDE:
		return c.DE()
	case IndHL:
		return c.HL()
	case IndSP:
		return c.SP
	case IndIX:
		return c.IX
	case IndIY:
		return c.IY
	}
	return 0
}

func indexed(base uint16, d int8) uint16 {
	return base + uint16(int16(d))
}

// addr is the effective memory address of a memory operand.
func (c *CPU) addr(in *Instruction, i int) uint16 {
	a := in.Op.Args[i]
	switch a.Kind {
	case OperandIndirect:
		return c.indirect(a.Value)
	case OperandIndexed:
		return indexed(c.pair(a.Value), in.D)
	case OperandAbs:
		return in.NN
	}
	return 0
}

func (c *CPU) get8(in *Instruction, i int) byte {
	a := in.Op.Args[i]
	switch a.Kind {
	case OperandReg8:
		return c.reg8(a.Value)
	case OperandImm8:
		return in.N
	case OperandIndirect, OperandIndexed, OperandAbs:
		return c.read(c.addr(in, i))
	}
	return 0
}

func (c *CPU) set8(in *Instruction, i int, value byte) {
	a := in.Op.Args[i]
	switch a.Kind {
	case OperandReg8:
		c.setReg8(a.Value, value)
	case OperandIndirect, OperandIndexed, OperandAbs:
		c.write(c.addr(in, i), value)
	}
}

func (c *CPU) get16(in *Instruction, i int) uint16 {
	a := in.Op.Args[i]
	switch a.Kind {
	case OperandReg16:
		return c.pair(a.Value)
	case OperandImm16:
		return in.NN
	case OperandIndirect, OperandAbs:
		return c.read16(c.addr(in, i))
	}
	return 0
}

func (c *CPU) set16(in *Instruction, i int, value uint16) {
	a := in.Op.Args[i]
	switch a.Kind {
	case OperandReg16:
		c.setPair(a.Value, value)
	case OperandIndirect, OperandAbs:
		c.write16(c.addr(in, i), value)
	}
}

// last is the index of the final operand.
func last(in *Instruction) int {
	return in.Op.NumArgs() - 1
}

func (c *CPU) condition(cc byte) bool {
	switch cc {
	case CondNZ:
		return !c.F.Zero()
	case CondZ:
		return c.F.Zero()
	case CondNC:
		return !c.F.Carry()
	case CondC:
		return c.F.Carry()
	case CondPO:
		return !c.F.ParityOverflow()
	case CondPE:
		return c.F.ParityOverflow()
	case CondP:
		return !c.F.Sign()
	case CondM:
		return c.F.Sign()
	}
	return false
}
