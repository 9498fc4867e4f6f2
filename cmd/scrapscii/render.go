package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"

	"scrapscii/internal/stats"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiClear = "\x1b[2K"
)

const checkLabelWidth = 20

func renderCheckLine(name string, passed bool, detail string, colorize bool) string {
	label, color := "OK", ansiGreen
	if !passed {
		label, color = "FAIL", ansiRed
	}
	line := fmt.Sprintf("  %-*s [%s] %s", checkLabelWidth, name+":", label, detail)
	if colorize {
		return color + line + ansiReset
	}
	return line
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderStats lays out the outcome counters of a run.
func renderStats(s stats.Stats) string {
	rows := make([][]string, 0, len(stats.Outcomes))
	for _, outcome := range stats.Outcomes {
		rows = append(rows, []string{string(outcome), strconv.Itoa(s.Count(outcome))})
	}
	return renderTable(
		[]string{"Outcome", "Samples"},
		rows,
		[]string{"total", strconv.Itoa(s.Total())},
		1,
	)
}

// progressLine redraws a single status line on a terminal.
type progressLine struct {
	out io.Writer
}

func (p progressLine) update(s stats.Stats) {
	fmt.Fprintf(p.out, "\r%s%s", ansiClear, s.String())
}

func (p progressLine) done() {
	fmt.Fprintln(p.out)
}
