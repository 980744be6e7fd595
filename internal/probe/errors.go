package probe

import (
	"fmt"
	"strings"
)

// NoProbeFoundError means auto-selection could not settle on exactly one
// probe: either none of the candidates answered, or several did.
type NoProbeFoundError struct {
	// Candidates lists every endpoint that was tried
	Candidates []Endpoint
	// Ambiguous lists the reachable endpoints when more than one answered
	Ambiguous []Endpoint
}

func (e *NoProbeFoundError) Error() string {
	if len(e.Ambiguous) > 1 {
		return fmt.Sprintf("no probe selected: %d probes are reachable (%s); choose one with --probe or --probe-id",
			len(e.Ambiguous), endpointList(e.Ambiguous))
	}
	if len(e.Candidates) == 0 {
		return "no probe found: no candidate endpoints configured"
	}
	return fmt.Sprintf("no probe found: none of %s is reachable", endpointList(e.Candidates))
}

func endpointList(eps []Endpoint) string {
	names := make([]string, len(eps))
	for i, ep := range eps {
		names[i] = ep.String()
	}
	return strings.Join(names, ", ")
}

// ConnectionError represents a failure to connect to or handshake with a probe.
type ConnectionError struct {
	// Endpoint is the probe address
	Endpoint string
	// Stage names the step that failed (dial, handshake, halt, ...)
	Stage string
	// Underlying error
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to probe %s failed during %s: %v", e.Endpoint, e.Stage, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RegionNotFoundError means the memory map has no region of the wanted kind.
type RegionNotFoundError struct {
	// Kind is "ram" or "boot"
	Kind string
	// Regions is the size of the map that was searched
	Regions int
}

func (e *RegionNotFoundError) Error() string {
	return fmt.Sprintf("no %s region in memory map (%d regions)", e.Kind, e.Regions)
}

// MemoryReadError represents a failed target memory read.
type MemoryReadError struct {
	Address uint32
	Length  uint32
	// Underlying error
	Err error
}

func (e *MemoryReadError) Error() string {
	return fmt.Sprintf("failed to read %d bytes at 0x%08x: %v", e.Length, e.Address, e.Err)
}

func (e *MemoryReadError) Unwrap() error {
	return e.Err
}

// RegisterReadError represents a core register that is unsupported or
// unreadable in the current execution state.
type RegisterReadError struct {
	Register string
	// Underlying error
	Err error
}

func (e *RegisterReadError) Error() string {
	return fmt.Sprintf("failed to read core register %q: %v", e.Register, e.Err)
}

func (e *RegisterReadError) Unwrap() error {
	return e.Err
}
