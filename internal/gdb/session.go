package gdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/gdb/scripts"
	"github.com/muurk/fwdump/internal/probe"
	"github.com/muurk/fwdump/internal/targets"
)

// BackendName identifies this backend in TargetInfo and configuration.
const BackendName = "gdb"

// registerAliases maps architectural names to the names GDB prints.
var registerAliases = map[string]string{
	"r13": "sp",
	"r14": "lr",
	"r15": "pc",
}

// Opener opens sessions that drive an external GDB. It implements probe.Opener.
type Opener struct {
	// Options are the shared session settings
	Options probe.Options
	// Config locates the GDB binary; a zero Timeout uses Options.Timeout
	Config Config
	// Catalog supplies memory maps for servers that publish none
	Catalog *targets.Catalog
	// Logger receives script logs
	Logger *zap.Logger
	// NewRunner replaces the Executor (tests)
	NewRunner func(Config, *zap.Logger) Runner
}

// Open attaches GDB to the server at ep and applies the probe clock.
func (o *Opener) Open(ctx context.Context, ep probe.Endpoint) (probe.Session, error) {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("endpoint", ep.Address()), zap.String("backend", BackendName))

	var target *targets.Target
	if o.Options.Target != "" {
		if o.Catalog == nil {
			return nil, fmt.Errorf("target %q requested but no target catalog is loaded", o.Options.Target)
		}
		t, ok := o.Catalog.Get(o.Options.Target)
		if !ok {
			return nil, fmt.Errorf("unknown target %q (see `fwdump targets`)", o.Options.Target)
		}
		target = t
	}

	cfg := o.Config
	if cfg.GDBPath == "" {
		cfg.GDBPath = DefaultConfig().GDBPath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = o.Options.Timeout
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	workDir, err := os.MkdirTemp(cfg.WorkDir, "fwdump-gdb-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create gdb work directory: %w", err)
	}
	cfg.WorkDir = workDir

	var runner Runner
	if o.NewRunner != nil {
		runner = o.NewRunner(cfg, log)
	} else {
		runner = NewExecutor(cfg, log)
	}

	s := &Session{
		runner:  runner,
		parser:  NewParser(),
		opts:    o.Options,
		catalog: o.Catalog,
		target:  target,
		log:     log,
		workDir: workDir,
		conn: scripts.Connection{
			Host: ep.Host,
			Port: ep.Port,
			Halt: o.Options.Halt,
		},
		timeout: cfg.Timeout,
		info: probe.TargetInfo{
			Name:     "remote",
			Endpoint: ep.Address(),
			Backend:  BackendName,
		},
	}
	if target != nil {
		s.info.Name = target.Name
	}

	if err := s.attach(ctx); err != nil {
		_ = os.RemoveAll(workDir)
		return nil, &probe.ConnectionError{Endpoint: ep.Address(), Stage: s.stage, Err: err}
	}
	return s, nil
}

// Session is a probe.Session backed by GDB batch scripts. Every operation
// runs one GDB process that attaches, works and disconnects without
// resuming the target; Close detaches for good.
type Session struct {
	runner  Runner
	parser  *Parser
	opts    probe.Options
	catalog *targets.Catalog
	target  *targets.Target
	log     *zap.Logger
	workDir string
	conn    scripts.Connection
	timeout time.Duration
	info    probe.TargetInfo

	stage  string
	memMap *probe.MemoryMap
	regs   map[string]uint32
	closed bool
}

// run executes a script and turns an incomplete run into an error.
func (s *Session) run(ctx context.Context, script scripts.Script) (*scripts.Result, error) {
	result, err := s.runner.Execute(ctx, script)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		if result.Error != nil {
			return result, result.Error
		}
		return result, fmt.Errorf("%s did not complete", script.Name())
	}
	return result, nil
}

func (s *Session) attach(ctx context.Context) error {
	s.stage = "attach"
	result, err := s.run(ctx, scripts.NewConnectScript(s.conn))
	if err != nil {
		if result != nil {
			if kind, line := s.parser.DetectFailure(result.RawOutput + result.RawStderr); kind == FailureConnection {
				return fmt.Errorf("%s", line)
			}
		}
		return err
	}
	s.info.Architecture = result.GetDataString("architecture")

	s.stage = "clock"
	clock, err := s.opts.ClockMonitorCommand()
	if err != nil {
		return err
	}
	if clock != "" {
		if _, err := s.run(ctx, scripts.NewConnectScript(s.conn, clock)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("probe rejected clock command",
				zap.String("command", clock),
				zap.Error(err),
			)
		} else {
			s.log.Info("probe clock set", zap.Uint32("frequency_hz", s.opts.FrequencyHz))
		}
	}
	return nil
}

// Target implements probe.Session.
func (s *Session) Target() probe.TargetInfo {
	return s.info
}

// MemoryMap implements probe.Session. A selected catalog target's layout
// wins over GDB's `info mem`, which lists OpenOCD's bank gaps as rw.
func (s *Session) MemoryMap(ctx context.Context) (probe.MemoryMap, error) {
	if s.memMap != nil {
		return *s.memMap, nil
	}

	if s.target != nil {
		mm := s.target.MemoryMap()
		s.log.Debug("memory map from catalog", zap.String("target", s.target.Name))
		return s.cacheMemoryMap(s.opts.ApplyBootAddress(mm, s.target.BootAddress)), nil
	}

	result, err := s.run(ctx, scripts.NewMemoryMapScript(s.conn))
	if err != nil {
		return probe.MemoryMap{}, fmt.Errorf("failed to read memory map: %w", err)
	}

	regions := scripts.Regions(result)
	if len(regions) == 0 {
		return probe.MemoryMap{}, fmt.Errorf("server does not publish a memory map; select a target with --target")
	}
	mm := probe.NewMemoryMap(regions...)
	s.log.Debug("memory map from gdb", zap.Int("regions", mm.Len()))
	return s.cacheMemoryMap(s.opts.ApplyBootAddress(mm, 0)), nil
}

func (s *Session) cacheMemoryMap(mm probe.MemoryMap) probe.MemoryMap {
	s.memMap = &mm
	return mm
}

// PreferredChunkSize implements probe.ChunkSizer. Each read starts a GDB
// process, so whole regions are read at once.
func (s *Session) PreferredChunkSize() uint32 {
	return 0
}

// ReadMemory implements probe.Session.
func (s *Session) ReadMemory(ctx context.Context, addr, length uint32) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}

	file := filepath.Join(s.workDir, fmt.Sprintf("mem-%08x-%d.bin", addr, length))
	defer os.Remove(file)

	if _, err := s.run(ctx, scripts.NewReadMemoryScript(s.conn, addr, length, file)); err != nil {
		return nil, &probe.MemoryReadError{Address: addr, Length: length, Err: err}
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, &probe.MemoryReadError{Address: addr, Length: length, Err: err}
	}
	if uint32(len(data)) != length {
		return nil, &probe.MemoryReadError{
			Address: addr,
			Length:  length,
			Err:     fmt.Errorf("gdb wrote %d bytes", len(data)),
		}
	}
	return data, nil
}

// ReadCoreRegister implements probe.Session. All registers are read with
// one GDB run on first use and served from that snapshot afterwards.
func (s *Session) ReadCoreRegister(ctx context.Context, name string) (uint32, error) {
	if s.regs == nil {
		result, err := s.run(ctx, scripts.NewReadRegistersScript(s.conn))
		if err != nil {
			return 0, &probe.RegisterReadError{Register: name, Err: err}
		}
		s.regs = scripts.Registers(result)
		s.log.Debug("register snapshot from gdb", zap.Int("registers", len(s.regs)))
	}

	key := strings.ToLower(name)
	if alias, ok := registerAliases[key]; ok {
		key = alias
	}
	v, ok := s.regs[key]
	if !ok {
		return 0, &probe.RegisterReadError{Register: name, Err: fmt.Errorf("register not reported by gdb")}
	}
	return v, nil
}

// Close implements probe.Session: detach (the target resumes) and remove
// the work directory. Calling Close twice is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var errs []error
	if _, err := s.run(ctx, scripts.NewReleaseScript(s.conn)); err != nil {
		errs = append(errs, fmt.Errorf("detach: %w", err))
	}
	if err := os.RemoveAll(s.workDir); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
