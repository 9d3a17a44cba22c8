package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"cinecat/internal/progress"
)

const barWidth = 30

// progressLine redraws a single status line on terminals and stays silent
// otherwise, so piped output only carries the final summary.
type progressLine struct {
	out         io.Writer
	interactive bool
	drawn       bool
	lastWidth   int
}

func newProgressLine(out io.Writer) *progressLine {
	return &progressLine{out: out, interactive: isTerminal(out)}
}

func (p *progressLine) update(u progress.Update) {
	if !p.interactive {
		return
	}
	line := fitWidth(formatProgress(u), terminalWidth(p.out))
	pad := ""
	if p.lastWidth > len(line) {
		pad = strings.Repeat(" ", p.lastWidth-len(line))
	}
	fmt.Fprintf(p.out, "\r%s%s", line, pad)
	p.lastWidth = len(line)
	p.drawn = true
}

// finish moves past the redrawn line so later output starts on a fresh row.
func (p *progressLine) finish() {
	if p.interactive && p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
		p.lastWidth = 0
	}
}

func formatProgress(u progress.Update) string {
	filled := int(u.Percent / 100 * barWidth)
	filled = max(0, min(filled, barWidth))
	return fmt.Sprintf("[%s%s] %3.0f%% %s",
		strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled), u.Percent, u.Text)
}

// fitWidth trims line so a redraw never wraps onto a second row.
func fitWidth(line string, width int) string {
	if width <= 1 || text.RuneWidthWithoutEscSequences(line) < width {
		return line
	}
	return text.Trim(line, width-1)
}

func terminalWidth(writer io.Writer) int {
	file, ok := writer.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
