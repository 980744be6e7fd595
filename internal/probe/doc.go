// Package probe defines the debug probe session contract used by fwdump.
//
// A Session gives access to exactly one target through a GDB server: its
// memory map, unaligned block reads and named core register reads. Backends
// (package rsp for the native remote protocol, package gdb for
// arm-none-eabi-gdb scripts) implement Opener.
//
// Sessions are scoped resources:
//
//	ep, err := probe.SelectEndpoint(ctx, candidates, probe.Selection{})
//	err = probe.WithSession(ctx, opener, ep, log, func(s probe.Session) error {
//	    mm, err := s.MemoryMap(ctx)
//	    ...
//	})
//
// WithSession always releases the probe, whatever fn returns.
//
// # Errors
//
//   - NoProbeFoundError: zero or several probes reachable
//   - ConnectionError: dial or handshake failure
//   - RegionNotFoundError: no RAM or boot region in the map
//   - MemoryReadError: bus fault, timeout or unreadable target
//   - RegisterReadError: unsupported or unreadable core register
package probe
