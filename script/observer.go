// Package script runs Lua hooks alongside the emulator.
//
// A script sees these globals:
//
//	read8(addr)            byte at addr
//	write8(addr, value)    store a byte
//	reg(name)              register by name, e.g. "a", "hl", "pc", "af'"
//	breakpoint(addr)       add a breakpoint
//	clear_breakpoint(addr) remove one
//	cycles()               cycles executed so far
//
// and may define on_step(pc, text, cycles), called after every instruction
// with the new PC, the disassembly of the instruction just executed and its
// cycle cost.
package script

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	z80 "github.com/intuitionamiga/z80emu"
)

const stepHook = "on_step"

type Observer struct {
	L   *lua.LState
	emu *z80.Emulator

	disabled bool
}

// New runs src once to set up its globals.
func New(src string) (*Observer, error) {
	o := newObserver()
	if err := o.L.DoString(src); err != nil {
		o.L.Close()
		return nil, fmt.Errorf("lua: %w", err)
	}
	return o, nil
}

func NewFromFile(path string) (*Observer, error) {
	o := newObserver()
	if err := o.L.DoFile(path); err != nil {
		o.L.Close()
		return nil, fmt.Errorf("lua %s: %w", path, err)
	}
	return o, nil
}

func newObserver() *Observer {
	o := &Observer{L: lua.NewState()}
	o.register()
	return o
}

func (o *Observer) Close() {
	o.L.Close()
}

// Attach binds the script's globals to emu without installing the step
// hook.
func (o *Observer) Attach(emu *z80.Emulator) {
	o.emu = emu
}

// Hook attaches emu and returns the per-step callback for RunTicks or Run.
// A Lua error is logged once and the hook goes quiet afterwards.
func (o *Observer) Hook(emu *z80.Emulator) z80.StepObserver {
	o.Attach(emu)
	fn := o.L.GetGlobal(stepHook)
	if fn.Type() != lua.LTFunction {
		return nil
	}
	return func(e *z80.Emulator, in *z80.Instruction) {
		if o.disabled {
			return
		}
		err := o.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true},
			lua.LNumber(e.CPU.PC), lua.LString(in.String()), lua.LNumber(in.Cycles))
		if err != nil {
			o.disabled = true
			z80.Log.WithFields(logrus.Fields{
				"hook": stepHook,
				"pc":   fmt.Sprintf("%04X", e.CPU.PC),
			}).Errorf("lua: %v", err)
		}
	}
}

// Call invokes a global Lua function with integer arguments and returns
// its first result as a number, for hosts that expose extra commands.
func (o *Observer) Call(name string, args ...int) (float64, error) {
	fn := o.L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return 0, fmt.Errorf("lua: %s is not a function", name)
	}
	largs := make([]lua.LValue, len(args))
	for i, a := range args {
		largs[i] = lua.LNumber(a)
	}
	if err := o.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, largs...); err != nil {
		return 0, fmt.Errorf("lua %s: %w", name, err)
	}
	ret := o.L.Get(-1)
	o.L.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, nil
	}
	return float64(n), nil
}

func (o *Observer) register() {
	o.L.SetGlobal("read8", o.L.NewFunction(o.luaRead8))
	o.L.SetGlobal("write8", o.L.NewFunction(o.luaWrite8))
	o.L.SetGlobal("reg", o.L.NewFunction(o.luaReg))
	o.L.SetGlobal("breakpoint", o.L.NewFunction(o.luaBreakpoint))
	o.L.SetGlobal("clear_breakpoint", o.L.NewFunction(o.luaClearBreakpoint))
	o.L.SetGlobal("cycles", o.L.NewFunction(o.luaCycles))
}

func (o *Observer) attached(L *lua.LState) *z80.Emulator {
	if o.emu == nil {
		L.RaiseError("no emulator attached")
	}
	return o.emu
}

func checkAddr(L *lua.LState, n int) uint16 {
	v := L.CheckInt(n)
	if v < 0 || v > 0xFFFF {
		L.ArgError(n, "address out of range")
	}
	return uint16(v)
}

func (o *Observer) luaRead8(L *lua.LState) int {
	emu := o.attached(L)
	v, err := emu.Memory.Read8(checkAddr(L, 1))
	if err != nil {
		L.RaiseError("%v", err)
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (o *Observer) luaWrite8(L *lua.LState) int {
	emu := o.attached(L)
	addr := checkAddr(L, 1)
	v := L.CheckInt(2)
	if err := emu.Memory.Write8(addr, byte(v)); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func (o *Observer) luaReg(L *lua.LState) int {
	emu := o.attached(L)
	name := strings.ToLower(L.CheckString(1))
	v, ok := emu.CPU.Snapshot().Lookup(name)
	if !ok {
		L.ArgError(1, "unknown register "+name)
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (o *Observer) luaBreakpoint(L *lua.LState) int {
	o.attached(L).AddBreakpoint(checkAddr(L, 1))
	return 0
}

func (o *Observer) luaClearBreakpoint(L *lua.LState) int {
	o.attached(L).RemoveBreakpoint(checkAddr(L, 1))
	return 0
}

func (o *Observer) luaCycles(L *lua.LState) int {
	L.Push(lua.LNumber(o.attached(L).Cycles))
	return 1
}
