package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Skipped
)

// Step represents a single step in a multi-step operation
type Step struct {
	Number  int        // Step number (1-based)
	Name    string     // Step description
	Status  StepStatus // Current status
	Message string     // Optional status message (e.g., "256 KiB", "21 registers")
	Done    uint32     // Units transferred so far
	Total   uint32     // Units to transfer; zero hides the bar
}

// Fraction returns how much of the step's transfer is done (0.0 - 1.0).
func (s Step) Fraction() float64 {
	if s.Total == 0 {
		if s.Status == StepComplete {
			return 1
		}
		return 0
	}
	return float64(s.Done) / float64(s.Total)
}

// Progress tracks a fixed list of steps and renders them with a
// transfer bar for the running step.
type Progress struct {
	Steps []Step // List of steps
	Width int    // Terminal width
	bar   progress.Model
}

// NewProgress creates a progress tracker with one pending step per name.
func NewProgress(names ...string) *Progress {
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = Step{Number: i + 1, Name: name, Status: StepPending}
	}
	p := &Progress{Steps: steps}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	barWidth := width - 30 // Leave room for the label and byte counts
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	return p
}

// Total returns the number of steps.
func (p *Progress) Total() int {
	return len(p.Steps)
}

// step returns the step with the given 1-based number, or nil.
func (p *Progress) step(number int) *Step {
	if number < 1 || number > len(p.Steps) {
		return nil
	}
	return &p.Steps[number-1]
}

// UpdateStep updates a specific step's status and optional message
func (p *Progress) UpdateStep(number int, status StepStatus, message string) {
	s := p.step(number)
	if s == nil {
		return
	}
	s.Status = status
	s.Message = message
	if status == StepComplete && s.Total > 0 {
		s.Done = s.Total
	}
}

// UpdateTransfer records transfer progress of a step.
func (p *Progress) UpdateTransfer(number int, done, total uint32) {
	s := p.step(number)
	if s == nil {
		return
	}
	s.Done, s.Total = done, total
}

// Running returns the number of the running step, or 0.
func (p *Progress) Running() int {
	for _, s := range p.Steps {
		if s.Status == StepRunning {
			return s.Number
		}
	}
	return 0
}

// Percent returns the share of finished steps (0.0 - 1.0).
func (p *Progress) Percent() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	finished := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete || s.Status == StepSkipped {
			finished++
		}
	}
	return float64(finished) / float64(len(p.Steps))
}

// Render returns the step list, with a transfer bar under the running step.
func (p *Progress) Render() string {
	lines := make([]string, 0, len(p.Steps)+1)
	for _, s := range p.Steps {
		lines = append(lines, p.RenderStepLine(s))
		if s.Status == StepRunning && s.Total > 0 {
			lines = append(lines, p.renderBar(s))
		}
	}
	return strings.Join(lines, "\n")
}

func (p *Progress) renderBar(s Step) string {
	counts := fmt.Sprintf("%s / %s", FormatBytes(s.Done), FormatBytes(s.Total))
	return lipgloss.NewStyle().
		PaddingLeft(8).
		Render(p.bar.ViewAs(s.Fraction()) + "  " + StepNoteStyle.Render(counts))
}

// RenderStepLine renders a single step line
func (p *Progress) RenderStepLine(step Step) string {
	prefix := fmt.Sprintf("  [%d/%d]", step.Number, len(p.Steps))

	var marker string
	var style lipgloss.Style
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, style = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, style = StepMarkerSkipped, StepPendingStyle
	default:
		marker, style = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(" ")
	b.WriteString(style.Render(step.Name))

	// Align markers in one column
	padding := 36 - lipgloss.Width(step.Name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(style.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}

	return b.String()
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}

// StepCallback is the function signature for step progress updates.
// Commands call this to report progress.
type StepCallback func(stepNumber int, status StepStatus, message string)

// TransferCallback reports bytes transferred by the running step.
type TransferCallback func(stepNumber int, done, total uint32)

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n uint32) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MiB", n>>20)
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KiB", n>>10)
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
