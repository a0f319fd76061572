package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// statusKind selects the badge and color for one status line.
type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var statusBadges = [...]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

const (
	statusLabelWidth = 12
	statusIndent     = "  "
)

// statusPrinter renders the aligned sections of the status report. The color
// decision is made once from the destination, so piped output stays plain.
type statusPrinter struct {
	w        io.Writer
	colorize bool
}

func newStatusPrinter(w io.Writer) *statusPrinter {
	return &statusPrinter{w: w, colorize: shouldColorize(w)}
}

func (p *statusPrinter) section(title string) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if p.colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	fmt.Fprintln(p.w, line)
	fmt.Fprintln(p.w, rule)
}

func (p *statusPrinter) line(label string, kind statusKind, message string) {
	badge := statusBadges[kind]
	status := "[" + badge.label + "]"
	if message != "" {
		status += " " + message
	}
	out := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", status)
	if p.colorize && badge.color != "" {
		out = badge.color + out + ansiReset
	}
	fmt.Fprintln(p.w, out)
}

func (p *statusPrinter) text(line string) {
	fmt.Fprintln(p.w, line)
}

func (p *statusPrinter) blank() {
	fmt.Fprintln(p.w)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
