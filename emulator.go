// emulator.go - Fetch, execute and interrupt service

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package z80emu

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sirupsen/logrus"
)

const (
	nmiVector = 0x0066
	im1Vector = 0x0038

	nmiCycles = 11
	im1Cycles = 13
	im2Cycles = 19
	im0Extra  = 2
)

// StepObserver is called after every instruction RunTicks executes.
type StepObserver func(e *Emulator, in *Instruction)

// Emulator drives one CPU against one memory and one I/O bus.
type Emulator struct {
	Memory *Memory
	CPU    *CPU
	IO     *IOBus

	breakpoints map[uint16]struct{}

	Cycles       uint64
	Instructions uint64
}

func NewEmulator(mem *Memory) *Emulator {
	return &Emulator{
		Memory:      mem,
		CPU:         NewCPU(),
		IO:          NewIOBus(),
		breakpoints: make(map[uint16]struct{}),
	}
}

// NewDefaultEmulator maps 0x4000 bytes of RAM followed by 0xC000 more.
func NewDefaultEmulator() *Emulator {
	return NewEmulator(NewDefaultMemory())
}

func (e *Emulator) AddBreakpoint(addr uint16) {
	e.breakpoints[addr] = struct{}{}
}

func (e *Emulator) RemoveBreakpoint(addr uint16) {
	delete(e.breakpoints, addr)
}

func (e *Emulator) HasBreakpoint(addr uint16) bool {
	_, ok := e.breakpoints[addr]
	return ok
}

// Breakpoints returns the breakpoint addresses in ascending order.
func (e *Emulator) Breakpoints() []uint16 {
	return slices.Sorted(maps.Keys(e.breakpoints))
}

func (e *Emulator) ResetCounters() {
	e.Cycles = 0
	e.Instructions = 0
}

// Reset puts the CPU and interrupt state back to power-on. Memory,
// devices and breakpoints are kept.
func (e *Emulator) Reset() {
	e.CPU.Reset()
	e.IO.Reset()
	e.ResetCounters()
}

// Step executes one instruction, servicing a pending interrupt first. On
// an execution error the failing instruction is returned with the error
// and PC is left pointing at it.
func (e *Emulator) Step() (*Instruction, error) {
	if e.CPU.Halted {
		return nil, ErrHalted
	}
	e.Memory.ClearChanges()

	req, err := e.IO.take()
	if err != nil {
		return nil, err
	}

	var in *Instruction
	extra := 0
	if req != nil {
		in, extra, err = e.acceptInterrupt(req.irq)
		if err != nil {
			e.IO.requeue(req)
			return in, err
		}
	}
	if in == nil {
		in, err = e.CPU.Decode(e.Memory)
		if err != nil {
			return nil, err
		}
		if err := e.execute(in); err != nil {
			return in, err
		}
	}

	cycles := in.Cycles + extra
	e.Cycles += uint64(cycles)
	e.Instructions++
	if Log.IsLevelEnabled(logrus.DebugLevel) {
		Log.WithFields(logrus.Fields{
			"pc":     fmt.Sprintf("%04X", e.CPU.PC),
			"op":     in.String(),
			"cycles": cycles,
		}).Debug("step")
	}
	e.IO.Step(cycles)
	return in, nil
}

func (e *Emulator) execute(in *Instruction) error {
	if err := e.CPU.Execute(in, e.Memory, e.IO); err != nil {
		return err
	}
	if in.IncrementPC {
		e.CPU.PC += uint16(in.Length())
	}
	return nil
}

// acceptInterrupt runs the entry sequence for irq. For IM0 it also
// executes the supplied instruction and returns it; otherwise the
// returned instruction is nil and the caller goes on to fetch the first
// instruction of the handler.
func (e *Emulator) acceptInterrupt(irq *Interrupt) (*Instruction, int, error) {
	/*
		The request kind only distinguishes NMI from a maskable request.
		For maskable ones the bus mode picks the entry sequence and the
		device just supplies the vector byte or the instruction.
	*/

	c := e.CPU
	kind := irq.Kind
	if kind != InterruptNMI {
		kind = InterruptKind(int(InterruptIM0) + int(e.IO.Mode))
	}
	Log.WithFields(logrus.Fields{
		"kind": kind.String(),
		"pc":   fmt.Sprintf("%04X", c.PC),
	}).Info("interrupt accepted")

	switch kind {
	case InterruptNMI:
		if err := e.pushPC(); err != nil {
			return nil, 0, err
		}
		e.IO.enterNMI()
		c.PC = nmiVector
		return nil, nmiCycles, nil

	case InterruptIM1:
		if err := e.pushPC(); err != nil {
			return nil, 0, err
		}
		e.IO.DisableInterrupts()
		c.PC = im1Vector
		return nil, im1Cycles, nil

	case InterruptIM2:
		target, err := e.Memory.Read16(uint16(c.I)<<8 | uint16(irq.Vector))
		if err != nil {
			return nil, 0, fmt.Errorf("im2 vector table: %w", err)
		}
		if err := e.pushPC(); err != nil {
			return nil, 0, err
		}
		e.IO.DisableInterrupts()
		c.PC = target
		return nil, im2Cycles, nil

	case InterruptIM0:
		in, err := DecodeBytes(irq.Opcode)
		if err != nil {
			return nil, 0, fmt.Errorf("im0 instruction: %w", err)
		}
		// Run it as though it had been fetched from PC without moving PC:
		// a CALL or RST then saves the address of the interrupted
		// instruction.
		iff1, iff2 := e.IO.IFF1, e.IO.IFF2
		e.IO.DisableInterrupts()
		length := uint16(in.Length())
		c.PC -= length
		if err := e.execute(in); err != nil {
			c.PC += length
			e.IO.IFF1, e.IO.IFF2 = iff1, iff2
			return in, 0, err
		}
		return in, im0Extra, nil
	}
	return nil, 0, fmt.Errorf("unknown interrupt kind %s", kind)
}

// pushPC stacks PC for an interrupt. SP only moves once both bytes are
// written; a half-written word is put back.
func (e *Emulator) pushPC() error {
	c := e.CPU
	sp := c.SP - 2
	old, _ := e.Memory.peek(sp + 1)
	if err := e.Memory.Write8(sp+1, byte(c.PC>>8)); err != nil {
		return fmt.Errorf("push return address: %w", err)
	}
	if err := e.Memory.Write8(sp, byte(c.PC)); err != nil {
		e.Memory.restore(sp+1, old)
		return fmt.Errorf("push return address: %w", err)
	}
	c.SP = sp
	return nil
}

// Disassemble decodes count instructions starting at addr without
// executing them.
func (e *Emulator) Disassemble(addr uint16, count int) []DisassembledLine {
	return Disassemble(e.Memory, addr, count)
}

// LastChanges lists addresses written by the most recent Step when change
// tracking is on.
func (e *Emulator) LastChanges() []uint16 {
	return e.Memory.Changes()
}
