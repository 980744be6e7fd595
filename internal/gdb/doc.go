// Package gdb implements a probe session that drives arm-none-eabi-gdb.
//
// It is the alternative to the built-in remote protocol client: every probe
// operation is a small GDB script run in batch mode against the GDB server
// (OpenOCD, pyOCD, J-Link GDB server).
//
// # Architecture
//
// The package follows a script-based architecture where GDB operations are defined
// as template scripts that get parameterized and executed:
//
//	┌─────────────────┐
//	│ Session         │  probe.Session: MemoryMap, ReadMemory, ReadCoreRegister
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Script          │  Implements: Name(), Template(), Params(), Parse()
//	│ (read_memory)   │
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Executor        │  Renders template, executes GDB, cleans up
//	└────────┬────────┘
//	         │
//	         v
//	┌─────────────────┐
//	│ Result          │  Success marker, parsed data (regions, registers)
//	└─────────────────┘
//
// # Scripts
//
// Every script starts with the same preamble (attach with
// `target extended-remote`, optionally `monitor halt`) and ends with
// `disconnect`, which leaves the core halted between runs. The release
// script ends with `detach` instead, which resumes the target.
//
//	connect         show architecture, optional monitor commands (probe clock)
//	memory_map      info mem
//	read_memory     dump binary memory <file> <start> <end>
//	read_registers  info all-registers
//	release         detach
//
// Templates are embedded using //go:embed and rendered at execution time.
// GDB in batch mode stops at the first failing command, so each script
// echoes a success marker last and Parse treats a missing marker as failure.
//
// # Usage
//
//	opener := &gdb.Opener{
//	    Options: probe.DefaultOptions(),
//	    Config:  gdb.Config{GDBPath: "arm-none-eabi-gdb"},
//	    Catalog: catalog,
//	    Logger:  logger,
//	}
//	err := probe.WithSession(ctx, opener, ep, logger, func(s probe.Session) error {
//	    mm, err := s.MemoryMap(ctx)
//	    ...
//	})
//
// # Error Handling
//
// The package defines specific error types for different failure modes:
//   - GDBExecutionError: GDB could not be started or exited without usable output
//   - GDBParseError: Failed to parse GDB output
//   - TemplateError: A script template failed to render
//   - TimeoutError: A script exceeded the configured timeout
//   - PrerequisiteError: GDB binary missing or not GNU GDB
//
// The session wraps them into probe.ConnectionError, probe.MemoryReadError
// and probe.RegisterReadError.
//
// # Prerequisites
//
// ValidatePrerequisites checks the GDB binary and the reachability of the
// GDB server addresses; `fwdump verify-setup` prints the report.
package gdb
