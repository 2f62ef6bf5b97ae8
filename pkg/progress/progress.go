// Package progress renders single-line progress for the batch pipeline,
// with warnings interleaved cleanly above the progress line.
//
// On a terminal the line refreshes in place; redirected to a file it
// degrades to one summary line per stage so logs stay readable.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

var (
	descStyle = lipgloss.NewStyle().Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Reporter tracks one pipeline stage. PostfixWidth pads the per-item
// postfix so the line length stays constant while counting up. Step and
// Warnf are safe to call from concurrent workers.
type Reporter struct {
	w            io.Writer
	desc         string
	total        int
	postfixWidth int
	tty          bool

	mu       sync.Mutex
	done     int
	lineOpen bool
}

// New returns a reporter for a stage with the given item count.
func New(desc string, total, postfixWidth int) *Reporter {
	return NewTo(os.Stderr, desc, total, postfixWidth)
}

// NewTo is New with an explicit writer, for tests.
func NewTo(w io.Writer, desc string, total, postfixWidth int) *Reporter {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &Reporter{w: w, desc: desc, total: total, postfixWidth: postfixWidth, tty: tty}
}

// Step advances the counter and shows the current item.
func (r *Reporter) Step(postfix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	if !r.tty {
		return
	}
	padded := runewidth.FillRight(postfix, r.postfixWidth)
	fmt.Fprintf(r.w, "\r%s [%d/%d] %s", descStyle.Render(r.desc), r.done, r.total, padded)
	r.lineOpen = true
}

// Warnf emits a warning without corrupting the progress line.
func (r *Reporter) Warnf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLine()
	fmt.Fprintln(r.w, warnStyle.Render("warning: ")+fmt.Sprintf(format, args...))
}

// Close finishes the stage line.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLine()
	fmt.Fprintf(r.w, "%s: %d/%d\n", descStyle.Render(r.desc), r.done, r.total)
}

func (r *Reporter) clearLine() {
	if r.lineOpen {
		width := len(r.desc) + r.postfixWidth + 24
		fmt.Fprintf(r.w, "\r%s\r", strings.Repeat(" ", width))
		r.lineOpen = false
	}
}
