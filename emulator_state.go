package z80emu

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// EmuState is a snapshot of everything needed to resume a session.
type EmuState struct {
	Registers   Registers `json:"registers"`
	Halted      bool      `json:"halted"`
	IFF1        bool      `json:"iff1"`
	IFF2        bool      `json:"iff2"`
	Mode        byte      `json:"mode"`
	Memory      []byte    `json:"memory"`
	Breakpoints []uint16  `json:"breakpoints"`
	Cycles      uint64    `json:"cycles"`
}

func (e *Emulator) State() (*EmuState, error) {
	mem, err := e.Memory.Save()
	if err != nil {
		return nil, fmt.Errorf("snapshot memory: %w", err)
	}
	return &EmuState{
		Registers:   e.CPU.Registers,
		Halted:      e.CPU.Halted,
		IFF1:        e.IO.IFF1,
		IFF2:        e.IO.IFF2,
		Mode:        e.IO.Mode,
		Memory:      mem,
		Breakpoints: e.Breakpoints(),
		Cycles:      e.Cycles,
	}, nil
}

// Restore applies s. The memory image is loaded with forced writes, so
// ROM regions take their saved contents too.
func (e *Emulator) Restore(s *EmuState) error {
	if errs := e.Memory.Load(s.Memory); len(errs) > 0 {
		return fmt.Errorf("restore memory: %w", errors.Join(errs...))
	}
	e.CPU.Registers = s.Registers
	e.CPU.Halted = s.Halted
	e.IO.IFF1 = s.IFF1
	e.IO.IFF2 = s.IFF2
	e.IO.Mode = s.Mode
	e.IO.pending = nil

	clear(e.breakpoints)
	for _, bp := range s.Breakpoints {
		e.AddBreakpoint(bp)
	}
	e.Cycles = s.Cycles
	return nil
}

// SaveState serialises the session as JSON.
func (e *Emulator) SaveState() ([]byte, error) {
	s, err := e.State()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

func (e *Emulator) LoadState(data []byte) error {
	var s EmuState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	return e.Restore(&s)
}

func (e *Emulator) SaveStateFile(path string) error {
	data, err := e.SaveState()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write state %s: %w", path, err)
	}
	return nil
}

func (e *Emulator) LoadStateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read state %s: %w", path, err)
	}
	return e.LoadState(data)
}
