// Fwdump captures a post-mortem image of a halted microcontroller.
//
// It attaches to a GDB server (OpenOCD, pyOCD, a J-Link GDB server) that
// fronts a debug probe, then writes:
//
//   - rom.bin / rom.hex: the boot memory region
//   - ram.bin / ram.hex: the first RAM region, Intel HEX at its load address
//   - uvision.ini: "load ram.hex" followed by the core registers
//
// Loading uvision.ini in a uVision debug session restores RAM and the
// register file, so the crash can be inspected offline.
//
// See 'fwdump --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/fwdump/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fwdump",
	Short: "Firmware crash dumper for debug probes",
	Long: `Dump the boot ROM, RAM and core registers of a halted target.

fwdump connects to the GDB server of a debug probe at 10 MHz, reads the
target memory map and writes, in the output directory:
  - rom.bin, rom.hex   boot memory region
  - ram.bin, ram.hex   first RAM region
  - uvision.ini        RAM load directive and register values

Running fwdump without a command performs the dump.

Prerequisites:
  - A GDB server attached to the probe (e.g. openocd -f board.cfg)
  - For --backend gdb: arm-none-eabi-gdb in PATH

Use 'fwdump verify-setup' to check prerequisites.`,
	Version: version.Version,
	Example: `  # Dump through the GDB server on localhost:3333
  fwdump

  # Dump a remote probe into ./crash
  fwdump --probe benchpi.local:3333 --output-dir ./crash

  # Find probes advertised over mDNS and pick one
  fwdump probes --discover
  fwdump --discover --probe-id k64f-01`,
	RunE: runDump,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("fwdump {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		if verbose {
			fmt.Println(info.String())
			return
		}
		fmt.Printf("fwdump %s\n", version.Full())
	},
}
