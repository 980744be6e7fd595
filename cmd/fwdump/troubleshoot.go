package main

import (
	"context"
	"errors"

	"github.com/muurk/fwdump/internal/dump"
	"github.com/muurk/fwdump/internal/gdb"
	"github.com/muurk/fwdump/internal/probe"
	"github.com/muurk/fwdump/internal/urls"
)

// troubleshoot returns hints for a failed command, most specific first.
func troubleshoot(err error) []string {
	var (
		noProbe    *probe.NoProbeFoundError
		connErr    *probe.ConnectionError
		regionErr  *probe.RegionNotFoundError
		memErr     *probe.MemoryReadError
		regErr     *probe.RegisterReadError
		ioErr      *dump.IOError
		timeoutErr *gdb.TimeoutError
		prereqErr  *gdb.PrerequisiteError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return []string{
			"Interrupted; files already written were kept",
			"The probe was released and the target resumed",
		}
	case errors.As(err, &noProbe) && len(noProbe.Ambiguous) > 1:
		return []string{
			"Several probes answered: pick one with --probe-id <id>",
			"Or name the server directly: --probe host:port",
			"List candidates: fwdump probes --discover",
		}
	case errors.As(err, &noProbe):
		return serverTips()
	case errors.As(err, &prereqErr):
		return []string{
			"Install the Arm toolchain: " + urls.ArmToolchain,
			"Or use the built-in client: --backend rsp",
		}
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return []string{
			"Raise the request timeout: --timeout 30s",
			"Check the probe wiring and target power",
			"Large regions over --backend gdb are read in one request",
		}
	case errors.As(err, &connErr) && connErr.Stage == "dial":
		return serverTips()
	case errors.As(err, &connErr):
		return []string{
			"The GDB server accepted the connection but the " + connErr.Stage + " step failed",
			"Check the server log; another debugger may already be attached",
			"Confirm the server supports 10 MHz: " + urls.OpenOCDAdapterSpeed,
			"Run with FWDUMP_LOG_LEVEL=debug to see the packets",
		}
	case errors.As(err, &regionErr):
		return []string{
			"The server reported no " + regionErr.Kind + " region",
			"Use a catalog layout instead: --target <name> (see fwdump targets)",
			"Inspect what the server reports: fwdump memory-map",
		}
	case errors.As(err, &memErr):
		return []string{
			"The target may have reset or lost power during the read",
			"Memory protection may block debugger reads of this region",
			"Check the region bounds: fwdump memory-map",
		}
	case errors.As(err, &regErr):
		return []string{
			"The core must be halted to read registers",
			"Some servers name special registers differently; try --backend gdb",
			"Register numbering for GDB servers: " + urls.GDBRemoteProtocol,
		}
	case errors.As(err, &ioErr):
		return []string{
			"Check the output directory exists and is writable: --output-dir",
			"Check free disk space",
		}
	default:
		return []string{
			"Check the probe setup: fwdump verify-setup",
			"Run with --verbose or FWDUMP_LOG_LEVEL=debug for details",
		}
	}
}

func serverTips() []string {
	return []string{
		"Start a GDB server for the probe (OpenOCD listens on :3333): " + urls.OpenOCDGDBServer,
		"For CMSIS-DAP probes, pyOCD works too: " + urls.PyOCDGDBServer,
		"Point fwdump at it: --probe host:port",
		"Or advertise it over mDNS and use --discover",
	}
}
