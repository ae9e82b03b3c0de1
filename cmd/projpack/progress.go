package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/dgallion1/projpack/internal/pipeline"
)

// barProgress draws one bar per phase on a terminal and prints plain stage
// lines elsewhere.
type barProgress struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	bars  map[pipeline.Phase]*progressbar.ProgressBar
	order []pipeline.Phase
}

func newProgress(w io.Writer) *barProgress {
	return &barProgress{
		w:    w,
		tty:  isTerminal(w),
		bars: make(map[pipeline.Phase]*progressbar.ProgressBar),
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var phaseLabels = map[pipeline.Phase]string{
	pipeline.PhaseFetch:     "fetching images",
	pipeline.PhaseTranscode: "re-encoding",
}

func (p *barProgress) Report(phase pipeline.Phase, current, max int) {
	if !p.tty || max <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	bar, ok := p.bars[phase]
	if !ok {
		p.finishLocked()
		bar = progressbar.NewOptions(max,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription(phaseLabels[phase]),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.w) }),
		)
		p.bars[phase] = bar
		p.order = append(p.order, phase)
	}
	_ = bar.Set(current)
}

func (p *barProgress) Stage(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty {
		p.finishLocked()
		return
	}
	fmt.Fprintf(p.w, "%s...\n", name)
}

// Finish completes any bar still drawing.
func (p *barProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

func (p *barProgress) finishLocked() {
	for _, phase := range p.order {
		if bar := p.bars[phase]; !bar.IsFinished() {
			_ = bar.Finish()
		}
	}
}
