package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/fwdump/internal/config"
	"github.com/muurk/fwdump/internal/dump"
	"github.com/muurk/fwdump/internal/dumper"
	"github.com/muurk/fwdump/internal/gdb"
	"github.com/muurk/fwdump/internal/logging"
	"github.com/muurk/fwdump/internal/probe"
	"github.com/muurk/fwdump/internal/targets"
	"github.com/muurk/fwdump/internal/ui"
	"github.com/muurk/fwdump/internal/urls"
)

func init() {
	rootCmd.AddCommand(probesCmd)
	rootCmd.AddCommand(memoryMapCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(verifySetupCmd)
}

// probesCmd implements the 'probes' command
var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List candidate probes and their reachability",
	Long: `List every candidate GDB server and whether it answers.

Candidates come from --probe (or the config file) and, with --discover,
from mDNS advertisements. A dump needs exactly one reachable candidate,
or --probe-id to pick one.`,
	Example: `  # Check the configured probes
  fwdump probes

  # Include probes advertised on the local network
  fwdump probes --discover`,
	RunE: runProbes,
}

func runProbes(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	log := newLogger()
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(nil)
	printer.PrintHeader("Probe Candidates", "fwdump probes", []ui.Param{
		{Key: "Configured", Value: strings.Join(cfg.Probe.Endpoints, ", ")},
		{Key: "mDNS", Value: enabledLabel(cfg.Discovery.Enabled)},
	})

	eps, err := candidates(ctx, cfg, log)
	if err != nil {
		return err
	}

	statuses := probe.CheckEndpoints(ctx, eps, nil)
	table := ui.NewTable("ID", "Address", "Source", "Status")
	reachable := 0
	for _, s := range statuses {
		status := ui.FailureMarker + " unreachable"
		if s.Reachable {
			status = ui.SuccessMarker + " reachable"
			reachable++
		}
		table.AddRow(s.Endpoint.ID, s.Endpoint.Address(), s.Endpoint.Source, status)
	}
	printer.PrintTable(table)
	fmt.Println()

	if _, err := probe.SelectEndpoint(ctx, eps, probe.Selection{ID: probeID}); err != nil {
		printer.PrintWarning("No probe would be selected", []ui.Param{
			{Key: "Reachable", Value: fmt.Sprintf("%d of %d", reachable, len(statuses))},
			{Key: "Reason", Value: err.Error()},
		})
		return nil
	}
	printer.PrintSuccess("Probe available", []ui.Param{
		{Key: "Reachable", Value: fmt.Sprintf("%d of %d", reachable, len(statuses))},
	})
	return nil
}

// memoryMapCmd implements the 'memory-map' command
var memoryMapCmd = &cobra.Command{
	Use:   "memory-map",
	Short: "Show the target memory map",
	Long: `Connect to the probe and print the target's memory regions.

The regions a dump would read are marked: the boot memory region (ROM)
and the first RAM region. Nothing is written to disk.`,
	RunE: runMemoryMap,
}

func runMemoryMap(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	log := newLogger()
	defer logging.Sync()
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
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

	printer := ui.NewPrinter(nil)
	printer.PrintHeader("Memory Map", "fwdump memory-map", []ui.Param{
		{Key: "Probe", Value: probeLabel(cfg.Probe.Endpoints, cfg.Discovery.Enabled)},
		{Key: "Backend", Value: cfg.Probe.Backend},
	})

	var (
		info probe.TargetInfo
		mm   probe.MemoryMap
	)
	err = func() error {
		ep, err := selectProbe(ctx, cfg, log)
		if err != nil {
			return err
		}
		return probe.WithSession(ctx, opener, ep, log, func(s probe.Session) error {
			info = s.Target()
			mm, err = s.MemoryMap(ctx)
			return err
		})
	}()
	if err != nil {
		printer.PrintError("Memory map failed", err, troubleshoot(err))
		return err
	}

	printer.PrintTable(regionTable(mm))
	fmt.Println()

	details := []ui.Param{{Key: "Target", Value: fmt.Sprintf("%s (%s)", info.Name, info.Endpoint)}}
	if info.Architecture != "" {
		details = append(details, ui.Param{Key: "Architecture", Value: info.Architecture})
	}
	boot, bootErr := mm.BootMemory()
	ram, ramErr := mm.FirstRAM()
	if bootErr != nil || ramErr != nil {
		missing := errors.Join(bootErr, ramErr)
		details = append(details, ui.Param{Key: "Problem", Value: missing.Error()})
		printer.PrintWarning("A dump would fail", details)
		return nil
	}
	details = append(details,
		ui.Param{Key: "ROM", Value: boot.String()},
		ui.Param{Key: "RAM", Value: ram.String()},
	)
	printer.PrintSuccess(fmt.Sprintf("%d regions", mm.Len()), details)
	return nil
}

func regionTable(mm probe.MemoryMap) *ui.Table {
	boot, _ := mm.BootMemory()
	ram, _ := mm.FirstRAM()

	table := ui.NewTable("Name", "Type", "Start", "End", "Size", "Dump")
	for _, r := range mm.Regions {
		var role string
		switch {
		case r == boot:
			role = "rom"
		case r == ram:
			role = "ram"
		}
		table.AddRow(
			r.Name,
			string(r.Type),
			fmt.Sprintf("0x%08x", r.Start),
			fmt.Sprintf("0x%08x", r.End()),
			ui.FormatBytes(r.Length),
			role,
		)
	}
	return table
}

// targetsCmd implements the 'targets' command
var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List known target boards",
	Long: `List the boards in the built-in target catalog.

A catalog target supplies the memory map and register numbering for GDB
servers that publish neither. Select one with --target.`,
	RunE: runTargets,
}

func runTargets(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	catalog, err := targets.Load()
	if err != nil {
		return fmt.Errorf("failed to load target catalog: %w", err)
	}

	printer := ui.NewPrinter(nil)
	table := ui.NewTable("Name", "Core", "Boot", "Regions", "Description")
	for _, t := range catalog.List() {
		name := t.Name
		if t.Verified {
			name += " " + ui.SuccessMarker
		}
		table.AddRow(name, t.Core, fmt.Sprintf("0x%08x", t.BootAddress), fmt.Sprint(len(t.Regions)), t.Description)
	}
	printer.PrintTable(table)

	if verbose {
		for _, t := range catalog.List() {
			fmt.Println()
			lines := make([]string, 0, len(t.Regions))
			for _, r := range t.MemoryMap().Regions {
				lines = append(lines, r.String())
			}
			printer.PrintListing(t.String(), lines)
		}
	}
	return nil
}

// inspectCmd implements the 'inspect' command
var inspectCmd = &cobra.Command{
	Use:   "inspect [dir]",
	Short: "Summarise existing dump files",
	Long: `Check the dump files in a directory without touching hardware.

For rom and ram this reports the binary size, the Intel HEX load address
and whether both files hold the same bytes. The register snapshot is
listed with --verbose.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	log := newLogger()

	dir := outputDir
	if len(args) == 1 {
		dir = args[0]
	}

	plan := dumper.DefaultPlan()
	writer := dump.NewWriter(dir, log)
	printer := ui.NewPrinter(nil)
	printer.PrintHeader("Dump Inspection", "fwdump inspect", []ui.Param{{Key: "Directory", Value: dir}})

	table := ui.NewTable("Region", "Binary", "Hex address", "Hex size", "Match")
	var problems []ui.Param
	for _, pair := range []dump.Pair{plan.ROM, plan.RAM} {
		s, err := writer.Inspect(pair)
		if err != nil {
			printer.PrintError("Inspection failed", err, troubleshoot(err))
			return err
		}
		table.AddRow(inspectRow(s)...)
		if !s.Match {
			problems = append(problems, ui.Param{Key: pair.Name, Value: inspectProblem(s)})
		}
	}
	printer.PrintTable(table)
	fmt.Println()

	snapshot, err := os.ReadFile(writer.Path(plan.Snapshot))
	if err != nil {
		problems = append(problems, ui.Param{Key: plan.Snapshot, Value: "missing"})
	} else if verbose {
		printer.PrintListing(plan.Snapshot, ui.NewListingFromText("", string(snapshot)).Lines)
		fmt.Println()
	}

	if len(problems) > 0 {
		printer.PrintWarning("Dump incomplete", problems)
		return nil
	}
	printer.PrintSuccess("Dump complete", []ui.Param{
		{Key: "Files", Value: strings.Join(plan.Files(), ", ")},
	})
	return nil
}

func inspectRow(s dump.Summary) []string {
	bin, hexAddr, hexSize := "-", "-", "-"
	if s.BinExists {
		bin = ui.FormatBytes(uint32(s.BinSize))
	}
	if s.HexExists {
		hexAddr = fmt.Sprintf("0x%08x", s.HexAddress)
		hexSize = ui.FormatBytes(uint32(s.HexSize))
	}
	match := ui.FailureMarker
	if s.Match {
		match = ui.SuccessMarker
	}
	return []string{s.Pair.Name, bin, hexAddr, hexSize, match}
}

func inspectProblem(s dump.Summary) string {
	switch {
	case !s.BinExists && !s.HexExists:
		return "missing"
	case !s.BinExists:
		return s.Pair.Bin + " missing"
	case !s.HexExists:
		return s.Pair.Hex + " missing"
	default:
		return s.Pair.Bin + " and " + s.Pair.Hex + " differ"
	}
}

// verifySetupCmd implements the 'verify-setup' command
var verifySetupCmd = &cobra.Command{
	Use:   "verify-setup",
	Short: "Verify backend prerequisites",
	Long: `Verify that the prerequisites of the chosen backend are met.

This command checks:
  1. Every candidate GDB server accepts connections
  2. For --backend gdb: the GDB binary is installed and is GNU GDB

Run this command first to troubleshoot any connection issues.`,
	Example: `  # Verify the built-in backend
  fwdump verify-setup

  # Verify the GDB backend with a custom binary
  fwdump verify-setup --backend gdb --gdb-path /opt/gcc-arm/bin/arm-none-eabi-gdb`,
	RunE: runVerifySetup,
}

func runVerifySetup(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	log := newLogger()
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	params := []ui.Param{
		{Key: "Backend", Value: cfg.Probe.Backend},
		{Key: "Probe", Value: probeLabel(cfg.Probe.Endpoints, cfg.Discovery.Enabled)},
	}
	if cfg.Probe.Backend == config.BackendGDB {
		params = append(params, ui.Param{Key: "GDB Path", Value: cfg.Probe.GDBPath})
	}
	printer := ui.NewPrinter(nil)
	printer.PrintHeader("Setup Verification", "fwdump verify-setup", params)

	eps, err := candidates(ctx, cfg, log)
	if err != nil {
		return err
	}
	addrs := make([]string, len(eps))
	for i, ep := range eps {
		addrs[i] = ep.Address()
	}

	result := verifyBackend(ctx, cfg, addrs)
	table := ui.NewTable("Check", "Status", "Details")
	for _, check := range result.Checks {
		status := ui.SuccessMarker
		if !check.Available {
			status = ui.FailureMarker
		}
		table.AddRow(check.Name, status, firstLine(check.Message))
	}
	printer.PrintTable(table)
	fmt.Println()

	if verbose {
		printer.PrintListing("Report", ui.NewListingFromText("", gdb.FormatPrerequisiteReport(result)).Lines)
		fmt.Println()
	}

	if !result.AllAvailable {
		err := &gdb.PrerequisiteError{Prerequisite: failedChecks(result)}
		printer.PrintError("Setup verification failed", err, setupTips(cfg, result))
		return err
	}

	printer.PrintSuccess("Setup verification complete", []ui.Param{
		{Key: "Servers", Value: fmt.Sprintf("%d reachable", reachableChecks(result))},
		{Key: "Status", Value: "Ready to dump"},
	})
	return nil
}

// verifyBackend checks GDB servers, plus the GDB binary for the gdb backend.
func verifyBackend(ctx context.Context, cfg *config.Config, addrs []string) *gdb.PrerequisiteResult {
	if cfg.Probe.Backend == config.BackendGDB {
		return gdb.ValidatePrerequisites(ctx, cfg.Probe.GDBPath, addrs)
	}

	result := &gdb.PrerequisiteResult{AllAvailable: len(addrs) > 0}
	reachable := 0
	for _, addr := range addrs {
		check := gdb.CheckServerConnection(ctx, addr)
		if check.Available {
			reachable++
		}
		result.Checks = append(result.Checks, check)
	}
	if reachable == 0 {
		result.AllAvailable = false
	}
	return result
}

func failedChecks(result *gdb.PrerequisiteResult) string {
	var names []string
	for _, c := range result.Checks {
		if !c.Available {
			names = append(names, c.Name)
		}
	}
	if len(names) == 0 {
		return "no GDB server candidates"
	}
	return strings.Join(names, ", ")
}

func reachableChecks(result *gdb.PrerequisiteResult) int {
	n := 0
	for _, c := range result.Checks {
		if c.Available && strings.HasPrefix(c.Name, "GDB server ") {
			n++
		}
	}
	return n
}

func setupTips(cfg *config.Config, result *gdb.PrerequisiteResult) []string {
	var tips []string
	if cfg.Probe.Backend == config.BackendGDB && len(result.Checks) > 0 && !result.Checks[0].Available {
		tips = append(tips,
			cfg.Probe.GDBPath+" not found or not GNU GDB",
			"Install the Arm toolchain: "+urls.ArmToolchain,
			"Or use the built-in client: --backend rsp",
		)
	}
	return append(tips, serverTips()...)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
