// main.go - Command line front end for the Z80 emulator

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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"

	z80 "github.com/intuitionamiga/z80emu"
	"github.com/intuitionamiga/z80emu/hostdev"
	"github.com/intuitionamiga/z80emu/memview"
	"github.com/intuitionamiga/z80emu/script"
)

type config struct {
	romFile   string
	asmFile   string
	romSize   int
	entry     uint16
	freq      float64
	chunk     uint64
	ticks     uint64
	breaks    []uint16
	trace     bool
	script    string
	display   int
	width     int
	scale     int
	console   bool
	beeper    bool
	logLevel  string
	saveFile  string
	stateOut  string
	stateIn   string
	irqVector int
}

func main() {
	cfg, err := parseFlags(os.Args[0], os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := z80.SetLogLevel(cfg.logLevel); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(cfg))
}

func parseFlags(name string, args []string) (*config, error) {
	cfg := &config{}
	var entry, breaks string

	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&cfg.romFile, "rom", "", "raw memory image to load at 0x0000")
	flagSet.StringVar(&cfg.asmFile, "asm", "", "assembly source to assemble and load at 0x0000")
	flagSet.IntVar(&cfg.romSize, "rom-size", 0, "map the first N bytes as read-only")
	flagSet.StringVar(&entry, "entry", "0x0000", "start address (hex or decimal)")
	flagSet.Float64Var(&cfg.freq, "freq", 4_000_000, "emulated clock in Hz")
	flagSet.Uint64Var(&cfg.chunk, "chunk", 10_000, "cycles per pacing chunk")
	flagSet.Uint64Var(&cfg.ticks, "ticks", 0, "run unpaced for this many cycles and exit (0 runs paced until stopped)")
	flagSet.StringVar(&breaks, "break", "", "comma separated breakpoint addresses")
	flagSet.BoolVar(&cfg.trace, "trace", false, "print every instruction and the registers after it")
	flagSet.StringVar(&cfg.script, "script", "", "Lua script with an on_step hook")
	flagSet.IntVar(&cfg.display, "display", 0, "map an N byte memory view at the top of the address space")
	flagSet.IntVar(&cfg.width, "width", 64, "memory view width in pixels")
	flagSet.IntVar(&cfg.scale, "scale", memview.DefaultScale, "memory view scale")
	flagSet.BoolVar(&cfg.console, "console", false, "attach stdin/stdout as a console on ports 0x00/0x01")
	flagSet.IntVar(&cfg.irqVector, "console-irq", -1, "raise a maskable interrupt with this vector on console input")
	flagSet.BoolVar(&cfg.beeper, "beeper", false, "attach a speaker to port 0xFE")
	flagSet.StringVar(&cfg.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flagSet.StringVar(&cfg.saveFile, "save", "", "write a raw memory dump here on exit")
	flagSet.StringVar(&cfg.stateOut, "state-out", "", "write the session state as JSON on exit")
	flagSet.StringVar(&cfg.stateIn, "state-in", "", "resume from a JSON session state")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: z80emu [-rom image.bin | -asm prog.asm] [-freq 4000000] [-ticks N] [-break 0x0100,...]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if cfg.romFile != "" && cfg.asmFile != "" {
		return nil, errors.New("use either -rom or -asm, not both")
	}

	var err error
	if cfg.entry, err = parseUint16Flag(entry); err != nil {
		return nil, fmt.Errorf("-entry: %w", err)
	}
	if breaks != "" {
		for _, s := range strings.Split(breaks, ",") {
			bp, err := parseUint16Flag(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("-break %q: %w", s, err)
			}
			cfg.breaks = append(cfg.breaks, bp)
		}
	}
	if cfg.romSize < 0 || cfg.display < 0 || cfg.romSize+cfg.display > z80.ADDRESS_SPACE_SIZE {
		return nil, fmt.Errorf("-rom-size %d and -display %d do not fit in 64K", cfg.romSize, cfg.display)
	}
	return cfg, nil
}

func parseUint16Flag(value string) (uint16, error) {
	parsed, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(parsed), nil
}

// buildMemory lays out ROM, then RAM, then the memory view.
func buildMemory(cfg *config) (*z80.Memory, *memview.MemViz, error) {
	mem := z80.NewMemory()
	if cfg.romSize > 0 {
		if err := mem.AddDevice(z80.NewROM(cfg.romSize)); err != nil {
			return nil, nil, err
		}
	}
	ram := z80.ADDRESS_SPACE_SIZE - cfg.romSize - cfg.display
	if ram > 0 {
		if err := mem.AddDevice(z80.NewRAM(ram)); err != nil {
			return nil, nil, err
		}
	}
	if cfg.display == 0 {
		return mem, nil, nil
	}
	viz, err := memview.New(cfg.display, cfg.width)
	if err != nil {
		return nil, nil, err
	}
	if err := mem.AddDevice(viz); err != nil {
		return nil, nil, err
	}
	return mem, viz, nil
}

func loadProgram(emu *z80.Emulator, cfg *config) error {
	var image []byte
	switch {
	case cfg.romFile != "":
		data, err := os.ReadFile(cfg.romFile)
		if err != nil {
			return err
		}
		image = data
	case cfg.asmFile != "":
		src, err := os.ReadFile(cfg.asmFile)
		if err != nil {
			return err
		}
		code, err := z80.Assemble(string(src))
		if err != nil {
			return fmt.Errorf("assemble %s: %w", cfg.asmFile, err)
		}
		image = code
	}
	for _, err := range emu.Memory.Load(image) {
		z80.Log.WithField("image", cfg.romFile+cfg.asmFile).Warn(err)
	}
	return nil
}

func run(cfg *config) int {
	mem, viz, err := buildMemory(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	emu := z80.NewEmulator(mem)
	if err := loadProgram(emu, cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	emu.CPU.PC = cfg.entry
	if cfg.stateIn != "" {
		if err := emu.LoadStateFile(cfg.stateIn); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
	}
	for _, bp := range cfg.breaks {
		emu.AddBreakpoint(bp)
	}

	var console *hostdev.Console
	if cfg.console {
		console = hostdev.NewConsole(hostdev.ConsoleConfig{
			StatusPort: hostdev.DefaultStatusPort,
			DataPort:   hostdev.DefaultDataPort,
			In:         os.Stdin,
			Out:        os.Stdout,
			Interrupt:  cfg.irqVector >= 0,
			Vector:     byte(cfg.irqVector),
		})
		if _, err := emu.IO.AddDevice(console); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		if err := console.Start(); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		defer console.Close()
	}
	if cfg.beeper {
		beeper := hostdev.NewBeeper(hostdev.DefaultBeeperPort)
		if _, err := emu.IO.AddDevice(beeper); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		if err := beeper.Start(hostdev.DefaultSampleRate); err != nil {
			z80.Log.WithError(err).Warn("beeper: no audio")
		}
		defer beeper.Close()
	}

	observers := []z80.StepObserver{}
	if cfg.trace {
		observers = append(observers, traceStep)
	}
	if cfg.script != "" {
		obs, err := script.NewFromFile(cfg.script)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		defer obs.Close()
		if hook := obs.Hook(emu); hook != nil {
			observers = append(observers, hook)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if viz != nil {
		var status atomic.Pointer[string]
		observers = append(observers, statusPublisher(&status))
		viz.SetStatus(func() string {
			if s := status.Load(); s != nil {
				return *s
			}
			return ""
		})
		if console != nil {
			viz.OnPaste(func(b []byte) { console.Inject(b) })
		}
		viz.SetScale(cfg.scale)
		if err := viz.Start("Z80 memory - ESC to close"); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
		go func() {
			<-viz.Done()
			stop()
		}()
		defer viz.Stop()
	}

	fmt.Println("Initial registers:")
	printRegisters(emu)

	cb := chain(observers)
	var reason z80.StopReason
	if cfg.ticks > 0 {
		reason = emu.RunTicks(cfg.ticks, cb)
	} else {
		runner := z80.NewRunner(emu, z80.RunnerConfig{
			Entry:         cfg.entry,
			Frequency:     cfg.freq,
			TicksPerChunk: cfg.chunk,
			Observer:      cb,
		})
		runner.StartExecution(ctx)
		reason = runner.Wait()
	}

	fmt.Println(reason)
	printRegisters(emu)
	fmt.Printf("%d instructions, %d cycles\n", emu.Instructions, emu.Cycles)

	if cfg.saveFile != "" {
		if err := emu.Memory.SaveFile(cfg.saveFile); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
	}
	if cfg.stateOut != "" {
		if err := emu.SaveStateFile(cfg.stateOut); err != nil {
			fmt.Printf("Error: %v\n", err)
			return 1
		}
	}
	if reason.Kind == z80.StopError {
		return 1
	}
	return 0
}

func chain(obs []z80.StepObserver) z80.StepObserver {
	switch len(obs) {
	case 0:
		return nil
	case 1:
		return obs[0]
	}
	return func(e *z80.Emulator, in *z80.Instruction) {
		for _, o := range obs {
			o(e, in)
		}
	}
}

func traceStep(e *z80.Emulator, in *z80.Instruction) {
	fmt.Printf("%-11s  %s\n", in.HexBytes(), in)
	printRegisters(e)
}

const statusEvery = 1024

// statusPublisher refreshes the memory view's status line from the
// emulator goroutine, so the window never touches the CPU.
func statusPublisher(dst *atomic.Pointer[string]) z80.StepObserver {
	n := 0
	return func(e *z80.Emulator, in *z80.Instruction) {
		n++
		if n%statusEvery != 0 {
			return
		}
		s := registerLine(e)
		dst.Store(&s)
	}
}

func registerLine(e *z80.Emulator) string {
	c := e.CPU
	return fmt.Sprintf("AF %04X BC %04X DE %04X HL %04X IX %04X IY %04X PC %04X SP %04X",
		c.AF(), c.BC(), c.DE(), c.HL(), c.IX, c.IY, c.PC, c.SP)
}

func printRegisters(e *z80.Emulator) {
	fmt.Println(registerLine(e), " F", e.CPU.F)
}
