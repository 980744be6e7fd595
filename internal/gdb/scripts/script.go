package scripts

import (
	_ "embed"
	"strings"
	"time"
)

//go:embed templates/preamble.gdb.tmpl
var preambleTemplate string

// SuccessMarker is echoed as the last command of every script. GDB in
// batch mode stops at the first failing command, so a missing marker
// means the script did not run to completion.
const SuccessMarker = "[SUCCESS]"

// Script represents a GDB operation that can be executed.
// Every probe operation of the gdb backend (connect, memory map, memory
// read, register read, release) implements this interface.
type Script interface {
	// Name returns a human-readable name for this script.
	// Used for logging, temp file names and error messages.
	// Example: "connect", "read_memory"
	Name() string

	// Template returns the GDB script template content.
	// The template uses Go text/template syntax and can access parameters
	// via the map returned by Params().
	Template() string

	// Params returns the parameters to be substituted into the template.
	Params() map[string]interface{}

	// Parse extracts structured results from GDB output.
	// The output parameter contains stdout from the GDB command.
	Parse(output string) (*Result, error)
}

// Connection holds the parameters of the preamble every script starts
// with: attach to the GDB server and optionally halt the core.
type Connection struct {
	Host string
	Port int
	Halt bool
}

func (c Connection) params() map[string]interface{} {
	return map[string]interface{}{
		"Host": c.Host,
		"Port": c.Port,
		"Halt": c.Halt,
	}
}

// withPreamble prefixes a script body with the connection preamble.
func withPreamble(body string) string {
	return preambleTemplate + body
}

// Result represents the outcome of executing a GDB script.
type Result struct {
	// Success indicates whether the script ran to completion.
	Success bool

	// Duration is how long the GDB script took to execute.
	Duration time.Duration

	// BytesRead is the number of bytes read (for read operations).
	// Zero if not applicable.
	BytesRead int

	// Data contains operation-specific parsed data.
	// For example:
	//   - "architecture": "armv7e-m" (connect)
	//   - "regions": []probe.Region (memory_map)
	//   - "registers": map[string]uint32 (read_registers)
	Data map[string]interface{}

	// Error contains the error if the operation failed.
	// nil if Success is true.
	Error error

	// RawOutput contains the complete stdout from GDB.
	// Useful for debugging parse errors.
	RawOutput string

	// RawStderr contains the complete stderr from GDB.
	// Useful for debugging execution errors.
	RawStderr string
}

// NewResult creates a new Result with default values.
func NewResult() *Result {
	return &Result{
		Success: false,
		Data:    make(map[string]interface{}),
	}
}

// SetData sets a data value in the result.
func (r *Result) SetData(key string, value interface{}) {
	r.Data[key] = value
}

// GetData gets a data value from the result.
// Returns nil if the key doesn't exist.
func (r *Result) GetData(key string) interface{} {
	return r.Data[key]
}

// GetDataString gets a string data value from the result.
// Returns empty string if the key doesn't exist or value is not a string.
func (r *Result) GetDataString(key string) string {
	if v, ok := r.Data[key].(string); ok {
		return v
	}
	return ""
}

// completed reports whether output carries the success marker.
func completed(output string) bool {
	return strings.Contains(output, SuccessMarker)
}

// firstErrorLine returns the first line GDB used to report a failure.
func firstErrorLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if strings.Contains(line, "Cannot access memory") ||
			strings.Contains(lower, "error") ||
			strings.Contains(lower, "connection refused") ||
			strings.Contains(lower, "timed out") {
			return line
		}
	}
	return ""
}
