package gdb

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/muurk/fwdump/internal/urls"
)

// PrerequisiteCheck represents the result of checking a single prerequisite.
type PrerequisiteCheck struct {
	// Name is the human-readable name of the prerequisite
	Name string
	// Available indicates whether the prerequisite is available
	Available bool
	// Required is false for checks that only warn
	Required bool
	// Path is the resolved path (for binary checks)
	Path string
	// Version is the detected version (if applicable)
	Version string
	// Message provides additional context (error message or success info)
	Message string
	// Error contains the underlying error if check failed
	Error error
}

// PrerequisiteResult contains the results of all prerequisite checks.
type PrerequisiteResult struct {
	// Checks contains individual check results
	Checks []PrerequisiteCheck
	// AllAvailable is true if all required prerequisites are available
	AllAvailable bool
}

// ValidatePrerequisites checks the gdb backend's prerequisites:
//   - the GDB binary (required)
//   - each GDB server address (required, at least one must answer)
func ValidatePrerequisites(ctx context.Context, gdbPath string, servers []string) *PrerequisiteResult {
	result := &PrerequisiteResult{
		Checks:       make([]PrerequisiteCheck, 0, len(servers)+1),
		AllAvailable: true,
	}

	gdbCheck := CheckGDBBinary(ctx, gdbPath)
	result.Checks = append(result.Checks, gdbCheck)
	if !gdbCheck.Available {
		result.AllAvailable = false
	}

	reachable := 0
	for _, addr := range servers {
		check := CheckServerConnection(ctx, addr)
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

// CheckGDBBinary verifies that the GDB binary is available and is GNU GDB.
func CheckGDBBinary(ctx context.Context, gdbPath string) PrerequisiteCheck {
	if gdbPath == "" {
		gdbPath = "arm-none-eabi-gdb"
	}
	check := PrerequisiteCheck{
		Name:     gdbPath,
		Required: true,
	}

	path, err := exec.LookPath(gdbPath)
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("%s not found in PATH\n"+
			"Install on macOS: brew install --cask gcc-arm-embedded\n"+
			"Install on Linux: sudo apt-get install gdb-multiarch (then use --gdb-path gdb-multiarch)\n"+
			"Downloads: %s", gdbPath, urls.ArmToolchain)
		return check
	}
	check.Path = path

	version, err := gdbVersion(ctx, path)
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("%s found at %s but failed to execute: %v", gdbPath, path, err)
		return check
	}
	if !strings.Contains(version, "GNU gdb") {
		check.Error = fmt.Errorf("unexpected version output")
		check.Message = fmt.Sprintf("%s does not appear to be GNU GDB", path)
		return check
	}

	check.Version = version
	check.Available = true
	check.Message = fmt.Sprintf("Found at %s", path)
	return check
}

// gdbVersion returns the first line of `gdb --version`.
func gdbVersion(ctx context.Context, path string) (string, error) {
	versionCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(versionCtx, path, "--version").Output()
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(output), "\n")
	return strings.TrimSpace(lines[0]), nil
}

// CheckServerConnection attempts a TCP connection to a GDB server.
func CheckServerConnection(ctx context.Context, address string) PrerequisiteCheck {
	check := PrerequisiteCheck{
		Name:     "GDB server " + address,
		Required: true,
	}

	dialer := net.Dialer{
		Timeout: 2 * time.Second,
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("Cannot connect to a GDB server at %s\n"+
			"Start one with: openocd -f interface/cmsis-dap.cfg -f target/<chip>.cfg\n"+
			"            or: pyocd gdbserver\n"+
			"See: %s", address, urls.OpenOCDGDBServer)
		return check
	}
	defer conn.Close()

	check.Available = true
	check.Message = fmt.Sprintf("Connected successfully to %s", address)
	return check
}

// ValidateGDBPath checks if a specific GDB binary path is valid and executable.
func ValidateGDBPath(ctx context.Context, gdbPath string) error {
	if gdbPath == "" {
		return &PrerequisiteError{
			Prerequisite: "arm-none-eabi-gdb",
			Details:      "GDB path is empty",
		}
	}

	check := CheckGDBBinary(ctx, gdbPath)
	if !check.Available {
		return &PrerequisiteError{
			Prerequisite: gdbPath,
			Details:      check.Message,
			Err:          check.Error,
		}
	}
	return nil
}

// FormatPrerequisiteReport formats a PrerequisiteResult into a human-readable string.
func FormatPrerequisiteReport(result *PrerequisiteResult) string {
	var sb strings.Builder

	sb.WriteString("GDB Prerequisites Check:\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	for _, check := range result.Checks {
		if check.Available {
			sb.WriteString(fmt.Sprintf("✓ %s\n", check.Name))
			if check.Version != "" {
				sb.WriteString(fmt.Sprintf("  Version: %s\n", check.Version))
			}
			if check.Path != "" {
				sb.WriteString(fmt.Sprintf("  Path: %s\n", check.Path))
			}
		} else {
			sb.WriteString(fmt.Sprintf("✗ %s\n", check.Name))
		}
		if check.Message != "" {
			sb.WriteString(fmt.Sprintf("  %s\n", check.Message))
		}
		sb.WriteString("\n")
	}

	if result.AllAvailable {
		sb.WriteString("All required prerequisites are available.\n")
	} else {
		sb.WriteString("Some prerequisites are missing. Please install them before proceeding.\n")
	}

	return sb.String()
}
