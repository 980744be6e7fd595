package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/fwdump/internal/dumper"
	"github.com/muurk/fwdump/internal/logging"
	"github.com/muurk/fwdump/internal/probe"
	"github.com/muurk/fwdump/internal/targets"
	"github.com/muurk/fwdump/internal/ui"
	"github.com/muurk/fwdump/internal/urls"
)

// dumpCmd implements the 'dump' command; the root command runs it too
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump boot ROM, RAM and registers",
	Long: `Dump the target behind a debug probe for offline crash analysis.

This command will:
  1. Select the probe (--probe, config file, or mDNS with --discover)
  2. Connect at 10 MHz and halt the core
  3. Dump the boot memory region to rom.bin and rom.hex
  4. Dump the first RAM region to ram.bin and ram.hex
  5. Write the core registers to uvision.ini

Existing files in the output directory are overwritten. The probe is
released on every exit path, including Ctrl+C.

Use uvision.ini as the debugger initialization file of a uVision session
to restore RAM and registers: ` + urls.UVisionDebugIni,
	Example: `  # Dump into the current directory
  fwdump dump

  # Use GDB instead of the built-in protocol client
  fwdump dump --backend gdb --gdb-path gdb-multiarch

  # Server without a memory map: use the catalog layout
  fwdump dump --target frdm-k64f`,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

var dumpSteps = []string{
	"Selecting probe",
	"Connecting at 10 MHz",
	"Dumping boot ROM",
	"Dumping RAM",
	"Writing register snapshot",
}

// Step numbers of the pipeline events
var dumpStepNumbers = map[dumper.Step]int{
	dumper.StepROM:       3,
	dumper.StepRAM:       4,
	dumper.StepRegisters: 5,
}

func runDump(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	log := newLogger()
	defer logging.Sync()

	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("Invalid configuration", err, []string{
			"Check the config file: fwdump --config <path>",
			"Flags override the file: --probe, --backend, --timeout",
		})
		return err
	}

	catalog, err := targets.Load()
	if err != nil {
		return fmt.Errorf("failed to load target catalog: %w", err)
	}

	opener, err := newOpener(cfg, catalog, log)
	if err != nil {
		return err
	}

	plan := dumper.DefaultPlan()
	params := []ui.Param{
		{Key: "Probe", Value: probeLabel(cfg.Probe.Endpoints, cfg.Discovery.Enabled)},
		{Key: "Backend", Value: cfg.Probe.Backend},
		{Key: "Output", Value: outputDir},
	}
	if cfg.Probe.Target != "" {
		params = append(params, ui.Param{Key: "Target", Value: cfg.Probe.Target})
	}

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:       "Firmware Dump",
		Command:     "fwdump dump",
		Params:      params,
		StepNames:   dumpSteps,
		Verbose:     verbose,
		Interactive: ui.IsTerminal(),
	})
	runner.Troubleshoot = troubleshoot

	err = runner.Run(cmd.Context(), func(ctx context.Context, onStep ui.StepCallback, onTransfer ui.TransferCallback) ([]ui.Param, error) {
		onStep(1, ui.StepRunning, "")
		ep, err := selectProbe(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		onStep(1, ui.StepComplete, ep.String())

		connect := probe.OpenerFunc(func(ctx context.Context, ep probe.Endpoint) (probe.Session, error) {
			onStep(2, ui.StepRunning, "")
			session, err := opener.Open(ctx, ep)
			if err != nil {
				return nil, err
			}
			info := session.Target()
			onStep(2, ui.StepComplete, fmt.Sprintf("%s via %s", info.Name, info.Backend))
			return session, nil
		})

		report, err := dumper.RunEndpoint(ctx, connect, ep, plan, dumper.Options{
			OutputDir: outputDir,
			Progress:  dumpProgress(onStep, onTransfer),
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}

		runner.SetListing(registerListing(report))
		return dumpDetails(report), nil
	})
	return err
}

// dumpProgress maps pipeline events onto runner steps.
func dumpProgress(onStep ui.StepCallback, onTransfer ui.TransferCallback) dumper.StepFunc {
	started := make(map[dumper.Step]bool)
	return func(ev dumper.Event) {
		n := dumpStepNumbers[ev.Step]
		if !started[ev.Step] {
			started[ev.Step] = true
			onStep(n, ui.StepRunning, "")
		}
		if ev.Step != dumper.StepRegisters {
			onTransfer(n, ev.Done, ev.Total)
		}
		if !ev.Finished {
			return
		}
		if ev.Step == dumper.StepRegisters {
			onStep(n, ui.StepComplete, fmt.Sprintf("%d registers", ev.Total))
			return
		}
		onStep(n, ui.StepComplete, fmt.Sprintf("%s at 0x%08x", ui.FormatBytes(ev.Total), ev.Region.Start))
	}
}

func dumpDetails(report *dumper.Report) []ui.Param {
	details := []ui.Param{
		{Key: "Target", Value: fmt.Sprintf("%s (%s)", report.Target.Name, report.Target.Endpoint)},
	}
	if report.ROM != nil {
		details = append(details, ui.Param{Key: "ROM", Value: regionSummary(report.ROM)})
	}
	if report.RAM != nil {
		details = append(details, ui.Param{Key: "RAM", Value: regionSummary(report.RAM)})
	}
	if report.Snapshot != "" {
		details = append(details, ui.Param{Key: "Registers", Value: report.Snapshot})
	}
	details = append(details, ui.Param{Key: "Device", Value: "Resumed and detached"})
	return details
}

func regionSummary(r *dumper.RegionReport) string {
	return fmt.Sprintf("%s, %s (%s)", r.Files.Bin, r.Files.Hex, ui.FormatBytes(uint32(r.Bytes)))
}

func registerListing(report *dumper.Report) *ui.Listing {
	lines := make([]string, 0, len(report.Registers))
	for _, v := range report.Registers {
		lines = append(lines, fmt.Sprintf("%-8s 0x%08x", v.Name, v.Value))
	}
	return ui.NewListing("Registers", lines)
}

func probeLabel(endpoints []string, discovery bool) string {
	label := strings.Join(endpoints, ", ")
	if discovery {
		if label == "" {
			return "mDNS"
		}
		label += " + mDNS"
	}
	if probeID != "" {
		label += " [" + probeID + "]"
	}
	return label
}
