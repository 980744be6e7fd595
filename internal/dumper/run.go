package dumper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/dump"
	"github.com/muurk/fwdump/internal/probe"
	"github.com/muurk/fwdump/internal/regsnap"
)

// Step identifies a stage of a run.
type Step string

const (
	StepROM       Step = "rom"
	StepRAM       Step = "ram"
	StepRegisters Step = "registers"
)

// Event reports progress of a step. Done/Total count bytes for the memory
// steps and registers for the snapshot.
type Event struct {
	Step     Step
	Region   probe.Region
	Done     uint32
	Total    uint32
	Finished bool
}

// StepFunc receives progress events. It is called on the run's goroutine.
type StepFunc func(Event)

// Options configure a run.
type Options struct {
	// OutputDir receives the files; "" is the working directory
	OutputDir string
	// Progress, if set, receives step events
	Progress StepFunc
	Logger   *zap.Logger
}

// RegionReport describes one dumped region.
type RegionReport struct {
	Region   probe.Region
	Files    dump.Files
	Bytes    int
	Duration time.Duration
}

// Report summarises a run. After a failure it holds the steps that completed.
type Report struct {
	Target    probe.TargetInfo
	ROM       *RegionReport
	RAM       *RegionReport
	Snapshot  string
	Registers []regsnap.Value
	Duration  time.Duration
}

// Run dumps the boot memory region, then the first RAM region, then the
// register snapshot. The first failure aborts the run; files already
// written are kept.
func Run(ctx context.Context, session probe.Session, plan Plan, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	emit := opts.Progress
	if emit == nil {
		emit = func(Event) {}
	}

	started := time.Now()
	report := &Report{Target: session.Target()}
	defer func() { report.Duration = time.Since(started) }()

	writer := dump.NewWriter(opts.OutputDir, log)
	if err := writer.EnsureDir(); err != nil {
		return report, err
	}

	mm, err := session.MemoryMap(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to read memory map: %w", err)
	}
	log.Debug("memory map", zap.Int("regions", mm.Len()))

	rom, err := mm.BootMemory()
	if err != nil {
		return report, err
	}
	report.ROM, err = dumpRegion(ctx, session, writer, StepROM, plan.ROM, rom, emit, log)
	if err != nil {
		return report, err
	}

	ram, err := mm.FirstRAM()
	if err != nil {
		return report, err
	}
	report.RAM, err = dumpRegion(ctx, session, writer, StepRAM, plan.RAM, ram, emit, log)
	if err != nil {
		return report, err
	}

	total := uint32(len(plan.Registers))
	emit(Event{Step: StepRegisters, Total: total})
	path := writer.Path(plan.Snapshot)
	values, err := regsnap.Write(ctx, path, regsnap.Script{Load: plan.RAM.Hex, Registers: plan.Registers}, session, log)
	if err != nil {
		return report, fmt.Errorf("register snapshot failed: %w", err)
	}
	report.Snapshot = path
	report.Registers = values
	emit(Event{Step: StepRegisters, Done: total, Total: total, Finished: true})

	return report, nil
}

func dumpRegion(ctx context.Context, session probe.Session, writer *dump.Writer, step Step, pair dump.Pair, region probe.Region, emit StepFunc, log *zap.Logger) (*RegionReport, error) {
	log.Info("dumping region",
		zap.String("step", string(step)),
		zap.String("region", region.String()),
	)
	started := time.Now()

	data, err := probe.ReadBlock(ctx, session, region, func(done, total uint32) {
		emit(Event{Step: step, Region: region, Done: done, Total: total})
	})
	if err != nil {
		return nil, fmt.Errorf("%s dump failed: %w", step, err)
	}

	files, err := writer.WriteRegion(pair, region.Start, data)
	if err != nil {
		return nil, err
	}
	emit(Event{Step: step, Region: region, Done: region.Length, Total: region.Length, Finished: true})

	return &RegionReport{
		Region:   region,
		Files:    files,
		Bytes:    len(data),
		Duration: time.Since(started),
	}, nil
}

// RunEndpoint opens a session on ep, runs the plan and releases the probe
// on every exit path.
func RunEndpoint(ctx context.Context, opener probe.Opener, ep probe.Endpoint, plan Plan, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var report *Report
	err := probe.WithSession(ctx, opener, ep, log, func(s probe.Session) error {
		var runErr error
		report, runErr = Run(ctx, s, plan, opts)
		return runErr
	})
	return report, err
}
