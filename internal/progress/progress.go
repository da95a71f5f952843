// Package progress draws a single line terminal progress bar.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const defaultWidth = 40

type Bar struct {
	out       io.Writer
	label     string
	total     int64
	current   int64
	width     int
	startTime time.Time
	mu        sync.Mutex
	done      chan struct{}
	once      sync.Once
	now       func() time.Time
}

func New(out io.Writer, label string, total int64) *Bar {
	return &Bar{
		out:       out,
		label:     label,
		total:     total,
		width:     defaultWidth,
		startTime: time.Now(),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Enabled reports whether f is a terminal worth drawing on.
func Enabled(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// FitWidth shrinks the bar on narrow terminals.
func (p *Bar) FitWidth(f *os.File) *Bar {
	if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
		if w := cols - len(p.label) - 60; w < p.width {
			p.width = max(w, 10)
		}
	}
	return p
}

// Start redraws the bar every 100ms until Finish.
func (p *Bar) Start() {
	go p.render()
}

func (p *Bar) Add(n int64) {
	p.mu.Lock()
	p.current += n
	p.mu.Unlock()
}

func (p *Bar) SetCurrent(n int64) {
	p.mu.Lock()
	p.current = n
	p.mu.Unlock()
}

// Finish stops the redraw loop and prints the final state.
func (p *Bar) Finish() {
	p.once.Do(func() {
		close(p.done)
		p.printBar()
		fmt.Fprintln(p.out)
	})
}

// Reader counts everything read through r.
func (p *Bar) Reader(r io.Reader) io.Reader {
	return &countingReader{r: r, bar: p}
}

type countingReader struct {
	r   io.Reader
	bar *Bar
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.bar.Add(int64(n))
	return n, err
}

func (p *Bar) render() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.printBar()
		}
	}
}

func (p *Bar) printBar() {
	if line := p.Line(); line != "" {
		fmt.Fprint(p.out, "\r"+line)
	}
}

// Line formats the current state without drawing it.
func (p *Bar) Line() string {
	p.mu.Lock()
	current := p.current
	total := p.total
	p.mu.Unlock()

	if total <= 0 {
		return ""
	}

	pct := float64(current) / float64(total)
	filled := min(int(pct*float64(p.width)), p.width)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	elapsed := p.now().Sub(p.startTime).Seconds()
	speed := 0.0
	if elapsed >= 0.1 {
		speed = float64(current) / elapsed
	}

	eta := "--"
	if speed > 0 {
		eta = formatETA(float64(total-current) / speed)
	}

	return fmt.Sprintf("%s[%s] %5.1f%% %s/%s %s/s ETA %s  ",
		p.label,
		bar,
		pct*100,
		humanize.IBytes(uint64(current)),
		humanize.IBytes(uint64(total)),
		humanize.IBytes(uint64(speed)),
		eta,
	)
}

func formatETA(remaining float64) string {
	switch {
	case remaining < 60:
		return fmt.Sprintf("%.0fs", remaining)
	case remaining < 3600:
		return fmt.Sprintf("%dm%ds", int(remaining)/60, int(remaining)%60)
	}
	return fmt.Sprintf("%dh%dm", int(remaining)/3600, int(remaining)%3600/60)
}
