package gdb

import (
	"regexp"
	"strings"
)

// FailureKind classifies a failure GDB reported in its output.
type FailureKind int

const (
	// FailureNone means no known failure pattern was found.
	FailureNone FailureKind = iota
	// FailureConnection means GDB could not reach the GDB server.
	FailureConnection
	// FailureMemory means the target refused a memory access.
	FailureMemory
	// FailureCommunication means the remote link broke mid-script.
	FailureCommunication
	// FailureCommand means GDB or the server rejected a command.
	FailureCommand
)

func (k FailureKind) String() string {
	switch k {
	case FailureConnection:
		return "connection"
	case FailureMemory:
		return "memory"
	case FailureCommunication:
		return "communication"
	case FailureCommand:
		return "command"
	default:
		return "none"
	}
}

// Parser recognises GDB failure messages. It uses compiled regex patterns
// for the messages GDB prints when a batch command fails.
type Parser struct {
	connectionPattern    *regexp.Regexp // Matches: Connection refused, timed out, unknown host
	memoryPattern        *regexp.Regexp // Matches: Cannot access memory at address 0x...
	communicationPattern *regexp.Regexp // Matches: Remote communication error, Remote connection closed
	commandPattern       *regexp.Regexp // Matches: Undefined command, "monitor" command not supported
}

// NewParser creates a new parser with compiled regex patterns.
func NewParser() *Parser {
	return &Parser{
		connectionPattern:    regexp.MustCompile(`(?i)connection refused|connection timed out|unknown host|could not resolve|no route to host`),
		memoryPattern:        regexp.MustCompile(`Cannot access memory at address 0x[0-9a-fA-F]+`),
		communicationPattern: regexp.MustCompile(`(?i)remote communication error|remote connection closed|ignoring packet error`),
		commandPattern:       regexp.MustCompile(`(?i)undefined command|not supported by this target|target does not support`),
	}
}

// DetectFailure scans GDB output for the first known failure and returns
// its kind together with the line that reported it.
func (p *Parser) DetectFailure(output string) (FailureKind, string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case p.connectionPattern.MatchString(line):
			return FailureConnection, line
		case p.memoryPattern.MatchString(line):
			return FailureMemory, line
		case p.communicationPattern.MatchString(line):
			return FailureCommunication, line
		case p.commandPattern.MatchString(line):
			return FailureCommand, line
		}
	}
	return FailureNone, ""
}
