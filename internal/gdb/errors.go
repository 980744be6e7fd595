package gdb

import (
	"fmt"

	"github.com/muurk/fwdump/internal/urls"
)

// GDBExecutionError represents a failure during GDB script execution.
// This occurs when the GDB command itself fails (cannot start, non-zero
// exit without usable output).
type GDBExecutionError struct {
	// Script is the name of the script that failed
	Script string
	// ExitCode is the GDB process exit code
	ExitCode int
	// Stderr is the GDB stderr output
	Stderr string
	// Stdout is the GDB stdout output (for context)
	Stdout string
	// Underlying error if any
	Err error
}

func (e *GDBExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gdb execution failed for script %q (exit code %d): %v\nstderr: %s",
			e.Script, e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("gdb execution failed for script %q (exit code %d)\nstderr: %s",
		e.Script, e.ExitCode, e.Stderr)
}

func (e *GDBExecutionError) Unwrap() error {
	return e.Err
}

// GDBParseError represents a failure to parse GDB output.
// This occurs when the output doesn't match expected format or patterns.
type GDBParseError struct {
	// Script is the name of the script whose output failed to parse
	Script string
	// Output is the GDB output that failed to parse
	Output string
	// Underlying error
	Err error
}

func (e *GDBParseError) Error() string {
	return fmt.Sprintf("failed to parse GDB output for script %q: %v\nOutput: %s",
		e.Script, e.Err, e.Output)
}

func (e *GDBParseError) Unwrap() error {
	return e.Err
}

// PrerequisiteError represents a missing prerequisite (GDB binary, GDB server).
type PrerequisiteError struct {
	// Prerequisite is the name of the missing prerequisite
	Prerequisite string
	// Details provides additional context
	Details string
	// Underlying error
	Err error
}

func (e *PrerequisiteError) Error() string {
	msg := fmt.Sprintf("missing prerequisite: %s", e.Prerequisite)
	if e.Details != "" {
		msg += "\n" + e.Details
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\nError: %v", e.Err)
	}
	return msg
}

func (e *PrerequisiteError) Unwrap() error {
	return e.Err
}

// TemplateError represents a template rendering error.
type TemplateError struct {
	// Template is the name of the template that failed to render
	Template string
	// Underlying error
	Err error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("failed to render template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a timeout during GDB operation.
type TimeoutError struct {
	// Script is the name of the script that timed out
	Script string
	// Timeout is the duration that was exceeded
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("gdb operation timed out for script %q after %s\n"+
		"Hint: Increase timeout with --timeout flag or check the GDB server (%s)",
		e.Script, e.Timeout, urls.OpenOCDGDBServer)
}
