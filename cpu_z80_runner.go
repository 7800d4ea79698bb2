package z80emu

import (
	"context"
	"fmt"
	"os"
	"sync"
)

const (
	defaultFrequency     = 4_000_000
	defaultTicksPerChunk = 10_000
)

type RunnerConfig struct {
	Entry         uint16
	Frequency     float64 // Hz; 0 means 4 MHz
	TicksPerChunk uint64
	Observer      StepObserver
	// Done, if set, receives the stop reason when a background run ends.
	Done func(StopReason)
}

// Runner executes an Emulator on a background goroutine so a host can
// start and stop it.
type Runner struct {
	emu *Emulator
	cfg RunnerConfig

	execMu     sync.Mutex
	execDone   chan struct{}
	execActive bool
	cancel     context.CancelFunc
	last       StopReason
}

func NewRunner(emu *Emulator, cfg RunnerConfig) *Runner {
	if cfg.Frequency == 0 {
		cfg.Frequency = defaultFrequency
	}
	if cfg.TicksPerChunk == 0 {
		cfg.TicksPerChunk = defaultTicksPerChunk
	}
	return &Runner{emu: emu, cfg: cfg}
}

// LoadProgram loads a raw image at address 0 and resets the CPU to the
// configured entry point. Bytes the memory refuses are logged and skipped.
func (r *Runner) LoadProgram(filename string) error {
	program, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if len(program) > r.emu.Memory.Size() {
		return fmt.Errorf("z80 program too large: %d bytes, mapped memory is %d", len(program), r.emu.Memory.Size())
	}
	for _, lerr := range r.emu.Memory.Load(program) {
		Log.WithField("file", filename).Warn(lerr)
	}
	r.emu.Reset()
	r.emu.CPU.PC = r.cfg.Entry
	return nil
}

func (r *Runner) Emulator() *Emulator {
	return r.emu
}

func (r *Runner) IsRunning() bool {
	r.execMu.Lock()
	defer r.execMu.Unlock()
	return r.execActive
}

// StartExecution begins a paced run. It does nothing if one is active.
func (r *Runner) StartExecution(ctx context.Context) {
	r.execMu.Lock()
	defer r.execMu.Unlock()
	if r.execActive {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.execActive = true
	r.cancel = cancel
	r.execDone = make(chan struct{})
	go func() {
		reason := r.emu.Run(runCtx, r.cfg.Frequency, r.cfg.TicksPerChunk, r.cfg.Observer)
		r.execMu.Lock()
		r.last = reason
		r.execActive = false
		r.cancel = nil
		close(r.execDone)
		r.execMu.Unlock()
		cancel()
		if r.cfg.Done != nil {
			r.cfg.Done(reason)
		}
	}()
}

// Wait blocks until the active run ends and returns its stop reason.
func (r *Runner) Wait() StopReason {
	r.execMu.Lock()
	done := r.execDone
	r.execMu.Unlock()
	if done != nil {
		<-done
	}
	r.execMu.Lock()
	defer r.execMu.Unlock()
	return r.last
}

// Stop cancels the active run and waits for it to return.
func (r *Runner) Stop() StopReason {
	r.execMu.Lock()
	if !r.execActive {
		last := r.last
		r.execMu.Unlock()
		return last
	}
	r.cancel()
	r.execMu.Unlock()
	return r.Wait()
}
