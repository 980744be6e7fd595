// Package ui provides terminal UI components for the fwdump CLI.
//
// Components are rendered with Lipgloss and follow a "run once and exit"
// pattern: they never read from stdin.
//
//   - Header: command banner showing the operation name and parameters
//   - Progress: step list with a transfer bar for the running step
//   - Result: success, warning and failure boxes with troubleshooting tips
//   - Listing: titled box of raw lines (registers, GDB output)
//   - Table: bordered table for probes, regions and targets
//
// Runner ties them together for multi-step commands. When Interactive is
// set, steps are redrawn in place by a Bubble Tea program; otherwise each
// finished step is printed as one line, which keeps logs and pipes clean.
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Firmware Dump",
//	    Command:   "fwdump dump",
//	    Params:    []ui.Param{{Key: "Probe", Value: "localhost:3333"}},
//	    StepNames: []string{"Connect", "Dump ROM", "Dump RAM", "Registers"},
//	})
//
//	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback, onTransfer ui.TransferCallback) ([]ui.Param, error) {
//	    onStep(1, ui.StepRunning, "")
//	    // ... do work ...
//	    onStep(1, ui.StepComplete, "")
//	    return nil, nil
//	})
//
// Logging is controlled by FWDUMP_LOG_LEVEL. When unset, zap is silent so
// the rendered output stays readable.
package ui
