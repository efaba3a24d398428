package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

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

const statusLabelWidth = 18

var statusKinds = map[statusKind]struct {
	label string
	color string
}{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", ansiGreen},
	statusWarn:  {"WARN", ansiYellow},
	statusError: {"ERROR", ansiRed},
}

// report collects status output lines, colourised when writing to a terminal.
type report struct {
	colorize bool
	lines    []string
}

func newReport(out io.Writer) *report {
	return &report{colorize: shouldColorize(out)}
}

func (r *report) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	r.lines = append(r.lines, r.paint(ansiBlue, line), r.paint(ansiBlue, rule))
}

func (r *report) line(label string, kind statusKind, format string, args ...any) {
	meta := statusKinds[kind]
	text := fmt.Sprintf("[%s]", meta.label)
	if message := fmt.Sprintf(format, args...); message != "" {
		text += " " + message
	}
	r.lines = append(r.lines, r.paint(meta.color, fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", text)))
}

func (r *report) paint(color, text string) string {
	if !r.colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

func (r *report) writeTo(out io.Writer) {
	fmt.Fprintln(out, strings.Join(r.lines, "\n"))
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
