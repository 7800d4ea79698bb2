package z80emu

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type StopKind int

const (
	// StopBudget means the tick budget ran out. Only RunTicks returns it.
	StopBudget StopKind = iota
	StopBreakpoint
	StopHalt
	StopError
	StopCancelled
)

func (k StopKind) String() string {
	switch k {
	case StopBudget:
		return "Budget"
	case StopBreakpoint:
		return "Breakpoint"
	case StopHalt:
		return "Halted"
	case StopError:
		return "Error"
	case StopCancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("StopKind(%d)", int(k))
}

// StopReason says why a run loop returned. For StopError, Instruction is
// the instruction that failed when decoding got that far.
type StopReason struct {
	Kind        StopKind
	Err         error
	Instruction *Instruction
}

func (r StopReason) String() string {
	switch {
	case r.Kind == StopError && r.Instruction != nil:
		return fmt.Sprintf("Error: %v while executing %q", r.Err, r.Instruction.String())
	case r.Err != nil:
		return fmt.Sprintf("%s: %v", r.Kind, r.Err)
	}
	return r.Kind.String()
}

// lagWarning is how far behind wall-clock time Run may fall before it
// logs a warning.
const lagWarning = 100 * time.Millisecond

// RunTicks steps until at least ticks cycles have elapsed, calling cb
// after each instruction. It stops early on HALT, on an error, or when PC
// lands on a breakpoint.
func (e *Emulator) RunTicks(ticks uint64, cb StepObserver) StopReason {
	start := e.Cycles
	for e.Cycles-start < ticks {
		in, err := e.Step()
		if err != nil {
			if errors.Is(err, ErrHalted) {
				return StopReason{Kind: StopHalt}
			}
			return StopReason{Kind: StopError, Err: err, Instruction: in}
		}
		if cb != nil {
			cb(e, in)
		}
		if e.CPU.Halted {
			return StopReason{Kind: StopHalt}
		}
		if e.HasBreakpoint(e.CPU.PC) {
			return StopReason{Kind: StopBreakpoint}
		}
	}
	return StopReason{Kind: StopBudget}
}

// Run executes in chunks of ticksPerChunk cycles, sleeping between chunks
// so the emulated clock runs at frequency Hz. It returns on any stop other
// than an exhausted chunk, or when ctx is done.
func (e *Emulator) Run(ctx context.Context, frequency float64, ticksPerChunk uint64, cb StepObserver) StopReason {
	if frequency <= 0 {
		return StopReason{Kind: StopError, Err: fmt.Errorf("run: frequency %g Hz is not positive", frequency)}
	}
	if ticksPerChunk == 0 {
		ticksPerChunk = 1
	}

	start := time.Now()
	startCycles := e.Cycles
	lagging := false

	for {
		if err := ctx.Err(); err != nil {
			return StopReason{Kind: StopCancelled, Err: err}
		}
		r := e.RunTicks(ticksPerChunk, cb)
		if r.Kind != StopBudget {
			return r
		}

		target := time.Duration(float64(e.Cycles-startCycles) / frequency * float64(time.Second))
		elapsed := time.Since(start)
		if target > elapsed {
			lagging = false
			timer := time.NewTimer(target - elapsed)
			select {
			case <-ctx.Done():
				timer.Stop()
				return StopReason{Kind: StopCancelled, Err: ctx.Err()}
			case <-timer.C:
			}
			continue
		}
		if behind := elapsed - target; behind > lagWarning && !lagging {
			lagging = true
			Log.WithField("behind", behind.Round(time.Millisecond)).
				Warnf("cannot keep up with %.0f Hz", frequency)
		}
	}
}
