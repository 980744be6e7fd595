package ui

import (
	"fmt"
	"io"
	"os"
)

// Printer writes standalone components for commands that do not run
// steps (listings, tables, one-off results).
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a printer; a nil writer means os.Stdout.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out, width: GetTerminalWidth()}
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// PrintHeader prints a command banner followed by a blank line
func (p *Printer) PrintHeader(title, command string, params []Param) {
	_, _ = fmt.Fprintln(p.out, NewHeader(title, command, params).SetWidth(p.width).Render())
	_, _ = fmt.Fprintln(p.out)
}

// PrintSuccess prints a success box
func (p *Printer) PrintSuccess(title string, details []Param) {
	_, _ = fmt.Fprintln(p.out, NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintError prints a failure box
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	_, _ = fmt.Fprintln(p.out, NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintWarning prints a warning box
func (p *Printer) PrintWarning(title string, details []Param) {
	_, _ = fmt.Fprintln(p.out, NewWarningResult(title, details).SetWidth(p.width).Render())
}

// PrintListing prints a titled box of lines
func (p *Printer) PrintListing(title string, lines []string) {
	_, _ = fmt.Fprintln(p.out, NewListing(title, lines).SetWidth(p.width).Render())
}

// PrintTable prints a table
func (p *Printer) PrintTable(t *Table) {
	_, _ = fmt.Fprintln(p.out, t.Render())
}

// PrintSuccess prints a success box to stdout
func PrintSuccess(title string, details []Param) {
	NewPrinter(nil).PrintSuccess(title, details)
}

// PrintError prints a failure box to stdout
func PrintError(title string, err error, troubleshooting []string) {
	NewPrinter(nil).PrintError(title, err, troubleshooting)
}

// PrintWarning prints a warning box to stdout
func PrintWarning(title string, details []Param) {
	NewPrinter(nil).PrintWarning(title, details)
}
