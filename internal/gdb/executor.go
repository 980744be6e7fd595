package gdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/gdb/scripts"
)

// Config holds the configuration for GDB execution.
type Config struct {
	// GDBPath is the path to the arm-none-eabi-gdb binary.
	// Default: "arm-none-eabi-gdb" (searches PATH)
	GDBPath string

	// Timeout is the maximum time to wait for one script to complete.
	// Default: 2 minutes
	Timeout time.Duration

	// WorkDir is the working directory for temporary files.
	// Default: os.TempDir()
	WorkDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GDBPath: "arm-none-eabi-gdb",
		Timeout: 2 * time.Minute,
		WorkDir: os.TempDir(),
	}
}

// Runner executes a script. Executor is the production implementation.
type Runner interface {
	Execute(ctx context.Context, script scripts.Script) (*scripts.Result, error)
}

// Executor executes GDB scripts via os/exec.
type Executor struct {
	config Config
	logger *zap.Logger
}

// NewExecutor creates a new GDB executor with the given configuration.
func NewExecutor(config Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		config: config,
		logger: logger,
	}
}

// Execute runs a GDB script and returns the parsed result.
// The script is rendered as a template, written to a temporary file,
// executed via arm-none-eabi-gdb in batch mode, and then parsed for results.
// A script that ran but did not complete returns a result with Success
// false and Error set; the returned error is reserved for execution failures.
func (e *Executor) Execute(ctx context.Context, script scripts.Script) (*scripts.Result, error) {
	startTime := time.Now()

	e.logger.Debug("executing GDB script",
		zap.String("script", script.Name()),
		zap.String("gdb_path", e.config.GDBPath),
		zap.Duration("timeout", e.config.Timeout),
	)

	rendered, err := e.renderTemplate(script)
	if err != nil {
		return nil, &TemplateError{
			Template: script.Name(),
			Err:      err,
		}
	}

	e.logger.Debug("rendered GDB script template",
		zap.String("script", script.Name()),
		zap.Int("size", len(rendered)),
		zap.String("content", rendered),
	)

	scriptFile, err := e.writeScriptFile(script.Name(), rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to write script file: %w", err)
	}
	defer os.Remove(scriptFile)

	stdout, stderr, exitCode, err := e.executeGDB(ctx, script.Name(), scriptFile)
	duration := time.Since(startTime)

	e.logger.Debug("GDB execution complete",
		zap.String("script", script.Name()),
		zap.Duration("duration", duration),
		zap.Int("exit_code", exitCode),
		zap.String("stdout", stdout),
		zap.String("stderr", stderr),
	)

	if err != nil {
		var timeoutErr *TimeoutError
		if errors.As(err, &timeoutErr) || ctx.Err() != nil {
			return nil, err
		}
		// GDB exits non-zero when a batch command fails. The output still
		// says why, so let the script parse it.
		if exitCode <= 0 {
			return nil, &GDBExecutionError{
				Script:   script.Name(),
				ExitCode: exitCode,
				Stderr:   stderr,
				Stdout:   stdout,
				Err:      err,
			}
		}
	}

	result, err := script.Parse(stdout + stderr)
	if err != nil {
		return nil, &GDBParseError{
			Script: script.Name(),
			Output: stdout,
			Err:    err,
		}
	}

	result.Duration = duration
	result.RawOutput = stdout
	result.RawStderr = stderr

	if !result.Success && result.Error == nil && exitCode != 0 {
		result.Error = &GDBExecutionError{
			Script:   script.Name(),
			ExitCode: exitCode,
			Stderr:   stderr,
			Stdout:   stdout,
		}
	}

	e.logger.Debug("GDB script finished",
		zap.String("script", script.Name()),
		zap.Duration("duration", duration),
		zap.Bool("success", result.Success),
		zap.Int("bytes_read", result.BytesRead),
	)

	return result, nil
}

// renderTemplate renders the script template with parameters.
func (e *Executor) renderTemplate(script scripts.Script) (string, error) {
	tmpl, err := template.New(script.Name()).Parse(script.Template())
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, script.Params()); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// writeScriptFile writes the rendered script to a temporary file.
func (e *Executor) writeScriptFile(name, content string) (string, error) {
	filename := fmt.Sprintf("fwdump-gdb-%s-*.gdb", name)
	file, err := os.CreateTemp(e.config.WorkDir, filename)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(content); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write script content: %w", err)
	}

	return file.Name(), nil
}

// executeGDB runs GDB in batch mode with the given script file.
func (e *Executor) executeGDB(ctx context.Context, name, scriptFile string) (stdout, stderr string, exitCode int, err error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	// -batch: Exit after processing script
	// -nx: Don't execute .gdbinit
	// -x: Execute commands from file
	cmd := exec.CommandContext(timeoutCtx, e.config.GDBPath,
		"-batch",
		"-nx",
		"-x", scriptFile,
	)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	err = cmd.Run()

	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// Command failed to start or other error
			exitCode = -1
		}
	}

	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
	case timeoutCtx.Err() == context.DeadlineExceeded:
		err = &TimeoutError{
			Script:  name,
			Timeout: e.config.Timeout.String(),
		}
	}

	return stdout, stderr, exitCode, err
}
