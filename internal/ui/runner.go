package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// RunnerConfig holds configuration for a command execution
type RunnerConfig struct {
	Title       string    // Command title (e.g., "Firmware Dump")
	Command     string    // Full command (e.g., "fwdump dump")
	Params      []Param   // Parameters to display in header
	StepNames   []string  // Names for each step
	Verbose     bool      // Whether to show the listing after the result
	Interactive bool      // Live redraw with a transfer bar (terminals only)
	Output      io.Writer // Output writer (default: os.Stdout)
}

// Operation is the function signature for the work a Runner wraps. It
// reports progress through the callbacks and returns the details for the
// success box.
type Operation func(ctx context.Context, onStep StepCallback, onTransfer TransferCallback) ([]Param, error)

// Runner orchestrates the UI for a command execution.
// It manages the header → progress → result flow and provides
// callbacks for reporting progress.
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	listing  *Listing
	width    int

	// Troubleshoot returns tips for a failure; nil means no tips
	Troubleshoot func(error) []string
}

// NewRunner creates a new runner
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	width := GetTerminalWidth()
	header := NewHeader(config.Title, config.Command, config.Params)
	header.SetWidth(width)

	progress := NewProgress(config.StepNames...)
	progress.SetWidth(width)

	return &Runner{
		config:   config,
		header:   header,
		progress: progress,
		output:   config.Output,
		width:    width,
	}
}

// SetListing stores a listing shown after the result in verbose mode
func (r *Runner) SetListing(l *Listing) {
	r.listing = l
}

// Progress returns the tracked steps.
func (r *Runner) Progress() *Progress {
	return r.progress
}

// Run executes the operation with UI updates.
// It displays the header, tracks progress, and shows the result.
func (r *Runner) Run(ctx context.Context, operation Operation) error {
	startTime := time.Now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	var transfer *Transfer
	if r.config.Interactive {
		transfer = StartTransfer(r.output, r.progress)
	}

	running := 0
	onStep := func(number int, status StepStatus, message string) {
		switch {
		case status == StepRunning:
			running = number
		case number == running:
			running = 0
		}
		if transfer != nil {
			transfer.Step(number, status, message)
			return
		}
		r.progress.UpdateStep(number, status, message)
		if status != StepRunning && number >= 1 && number <= r.progress.Total() {
			_, _ = fmt.Fprintln(r.output, r.progress.RenderStepLine(r.progress.Steps[number-1]))
		}
	}
	onTransfer := func(number int, done, total uint32) {
		if transfer != nil {
			transfer.Bytes(number, done, total)
			return
		}
		r.progress.UpdateTransfer(number, done, total)
	}

	details, err := operation(ctx, onStep, onTransfer)
	if err != nil {
		if running > 0 {
			onStep(running, StepFailed, "")
		}
	}
	if transfer != nil {
		_ = transfer.Stop()
	}
	duration := time.Since(startTime)

	if err != nil {
		r.printFailure(err)
	} else {
		r.printSuccess(details, duration)
	}
	return err
}

// printSuccess prints a success result with the operation's details
func (r *Runner) printSuccess(details []Param, duration time.Duration) {
	_, _ = fmt.Fprintln(r.output)

	details = append(details, Param{Key: "Duration", Value: duration.Round(time.Millisecond).String()})
	result := NewSuccessResult(r.config.Title+" complete", details)
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	r.printListing()
}

// printFailure prints a failure result with troubleshooting
func (r *Runner) printFailure(err error) {
	_, _ = fmt.Fprintln(r.output)

	var tips []string
	if r.Troubleshoot != nil {
		tips = r.Troubleshoot(err)
	}
	result := NewFailureResult(r.config.Title+" failed", err, tips)
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	r.printListing()
}

func (r *Runner) printListing() {
	if r.config.Verbose && r.listing != nil && len(r.listing.Lines) > 0 {
		_, _ = fmt.Fprintln(r.output)
		r.listing.SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, r.listing.Render())
	}
}
