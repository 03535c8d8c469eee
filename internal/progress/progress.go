// Package progress draws a single-line MiB progress bar for streamed
// downloads.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

const barWidth = 30

// Bar counts whole chunks. It redraws in place with a carriage return and an
// erase-line sequence.
type Bar struct {
	out   io.Writer
	unit  string
	total int
	done  int
	start time.Time
}

// New returns a bar that writes to out.
func New(out io.Writer) *Bar {
	return &Bar{out: out, unit: "MiB"}
}

// Enabled reports whether a bar should be drawn on f.
func Enabled(f *os.File, disabled bool) bool {
	return !disabled && term.IsTerminal(int(f.Fd()))
}

// Start resets the bar for total chunks.
func (b *Bar) Start(total int) {
	b.total = total
	b.done = 0
	b.start = time.Now()
	b.draw()
}

// Step marks one chunk as received.
func (b *Bar) Step() {
	b.done++
	b.draw()
}

// Finish ends the bar line.
func (b *Bar) Finish() {
	b.draw()
	fmt.Fprintln(b.out)
}

func (b *Bar) draw() {
	pct := 0.0
	if b.total > 0 {
		pct = float64(b.done) / float64(b.total)
	}
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * barWidth)

	rate := 0.0
	if elapsed := time.Since(b.start).Seconds(); elapsed > 0 {
		rate = float64(b.done) / elapsed
	}

	fmt.Fprintf(b.out, "\r\033[K%3.0f%%|%s%s| %d/%d %s [%.2f %s/s]",
		pct*100,
		strings.Repeat("█", filled), strings.Repeat(" ", barWidth-filled),
		b.done, b.total, b.unit, rate, b.unit)
}
