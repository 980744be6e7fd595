// Package rsp talks the GDB Remote Serial Protocol to a debug probe's GDB
// server (OpenOCD, pyOCD, J-Link GDB server, ...) over TCP.
//
// The package is layered:
//
//   - Conn frames packets: checksums, acknowledgements, escaping and
//     run-length decoding.
//   - Client issues requests: qSupported, m, p, g, qXfer, qRcmd, D.
//   - Session implements probe.Session on top of a Client, falling back to
//     the target catalog when the server publishes no memory map or
//     register description.
//
// Example:
//
//	opener := &rsp.Opener{Options: probe.DefaultOptions(), Catalog: catalog, Logger: log}
//	err := probe.WithSession(ctx, opener, endpoint, log, func(s probe.Session) error {
//	    mm, err := s.MemoryMap(ctx)
//	    ...
//	})
package rsp
