package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Listing displays lines of raw text (a register file, GDB output) in a
// titled box.
type Listing struct {
	Title    string
	Lines    []string
	MaxLines int // Zero shows everything
	Width    int
}

// NewListing creates a listing box
func NewListing(title string, lines []string) *Listing {
	return &Listing{
		Title: title,
		Lines: lines,
		Width: GetTerminalWidth(),
	}
}

// NewListingFromText splits text into lines, dropping trailing blank lines.
func NewListingFromText(title, text string) *Listing {
	return NewListing(title, strings.Split(strings.TrimRight(text, "\n"), "\n"))
}

// SetWidth sets the terminal width for responsive rendering
func (l *Listing) SetWidth(width int) *Listing {
	l.Width = width
	return l
}

// Render returns the styled listing box as a string
func (l *Listing) Render() string {
	width := clampWidth(l.Width)

	lines := l.Lines
	var truncated int
	if l.MaxLines > 0 && len(lines) > l.MaxLines {
		truncated = len(lines) - l.MaxLines
		lines = lines[:l.MaxLines]
	}

	content := make([]string, 0, len(lines)+3)
	content = append(content, ListingTitleStyle.Render(l.Title), "")
	for _, line := range lines {
		content = append(content, ListingContentStyle.Render(line))
	}
	if truncated > 0 {
		content = append(content, StepNoteStyle.Render(fmt.Sprintf("… %d more lines", truncated)))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(width-2).
		Padding(0, 1).
		Render(strings.Join(content, "\n"))
}

// String implements fmt.Stringer
func (l *Listing) String() string {
	return l.Render()
}
