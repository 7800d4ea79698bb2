//go:build !headless

// memview_ebiten.go - Ebiten window for the memory view

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

package memview

import (
	"image/color"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"

	z80 "github.com/intuitionamiga/z80emu"
)

const (
	statusBarHeight = 18
	maxPasteBytes   = 4096
)

var (
	clipboardOnce sync.Once
	clipboardOK   bool
)

func clipboardReady() bool {
	clipboardOnce.Do(func() {
		clipboardOK = clipboard.Init() == nil
	})
	return clipboardOK
}

type game struct {
	v      *MemViz
	frame  *ebiten.Image
	pixels []byte
	title  string
}

// Start opens the window on its own goroutine and returns once the first
// frame has been requested. Escape or closing the window ends it.
func (v *MemViz) Start(title string) error {
	g := &game{v: v, title: title}
	w, h := v.Dimensions()
	v.mu.Lock()
	scale := v.scale
	v.mu.Unlock()

	ebiten.SetWindowSize(w*scale, h*scale+statusBarHeight)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)

	go func() {
		defer v.finish()
		if err := ebiten.RunGame(g); err != nil {
			z80.Log.WithError(err).Error("memview: window")
		}
	}()
	return nil
}

func (g *game) Update() error {
	if ebiten.IsWindowBeingClosed() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	oldW, oldH := g.v.Dimensions()
	if g.v.drain() {
		return ebiten.Termination
	}
	if w, h := g.v.Dimensions(); w != oldW || h != oldH {
		g.frame = nil
	}
	g.v.mu.Lock()
	scale := g.v.scale
	g.v.mu.Unlock()
	w, h := g.v.Dimensions()
	if ww, wh := ebiten.WindowSize(); ww != w*scale || wh != h*scale+statusBarHeight {
		ebiten.SetWindowSize(w*scale, h*scale+statusBarHeight)
	}

	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)
	if ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyC) {
		g.copyStatus()
	}
	if ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		g.pasteClipboard()
	}
	return nil
}

func (g *game) copyStatus() {
	if !clipboardReady() {
		return
	}
	clipboard.Write(clipboard.FmtText, []byte(g.v.statusText()))
}

func (g *game) pasteClipboard() {
	g.v.mu.Lock()
	fn := g.v.paste
	g.v.mu.Unlock()
	if fn == nil || !clipboardReady() {
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return
	}
	data = []byte(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if len(data) > maxPasteBytes {
		data = data[:maxPasteBytes]
	}
	fn(data)
}

func (g *game) Draw(screen *ebiten.Image) {
	w, h := g.v.Dimensions()
	if g.frame == nil {
		g.frame = ebiten.NewImage(w, h)
	}
	g.pixels = toRGBA(g.pixels, g.v.Snapshot())
	g.frame.WritePixels(g.pixels)

	sw, sh := screen.Bounds().Dx(), screen.Bounds().Dy()-statusBarHeight
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(sw)/float64(w), float64(max(sh, 1))/float64(h))
	screen.DrawImage(g.frame, op)

	if status := g.v.statusText(); status != "" {
		text.Draw(screen, status, basicfont.Face7x13, 4, screen.Bounds().Dy()-5, color.White)
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
