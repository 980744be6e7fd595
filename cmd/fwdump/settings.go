package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/config"
	"github.com/muurk/fwdump/internal/discovery"
	"github.com/muurk/fwdump/internal/gdb"
	"github.com/muurk/fwdump/internal/logging"
	"github.com/muurk/fwdump/internal/probe"
	"github.com/muurk/fwdump/internal/rsp"
	"github.com/muurk/fwdump/internal/targets"
)

// Command flags
var (
	configPath  string
	probeAddrs  []string
	probeID     string
	backend     string
	targetName  string
	bootAddress uint32
	gdbPath     string
	timeout     time.Duration
	discover    bool
	outputDir   string
	verbose     bool
)

func init() {
	// Common flags for all commands (persistent on root)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default: per-user config dir)")
	flags.StringArrayVar(&probeAddrs, "probe", nil, "GDB server address host:port (repeatable)")
	flags.StringVar(&probeID, "probe-id", "", "Select the probe with this ID or address")
	flags.StringVar(&backend, "backend", config.BackendRSP, "Probe backend: rsp (built-in) or gdb (arm-none-eabi-gdb)")
	flags.StringVar(&targetName, "target", "", "Catalog target whose memory layout replaces the server's map")
	flags.Uint32Var(&bootAddress, "boot-address", 0, "Dump the region holding this address as boot memory (e.g., 0x1fff0000)")
	flags.StringVar(&gdbPath, "gdb-path", "arm-none-eabi-gdb", "Path to the GDB binary (gdb backend)")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "Probe request timeout (e.g., 10s, 1m)")
	flags.BoolVar(&discover, "discover", false, "Add GDB servers advertised over mDNS to the candidates")
	flags.StringVarP(&outputDir, "output-dir", "o", ".", "Directory for the dump files")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Show registers and raw details")
}

// newLogger initializes logging from FWDUMP_LOG_LEVEL (silent when unset).
func newLogger() *zap.Logger {
	if err := logging.InitializeFromEnv(); err != nil {
		// Ignore error, GetLogger will create fallback logger
		_ = err
	}
	return logging.GetLogger()
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, cmd.Flags()); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	if flags.Changed("probe") {
		for _, addr := range probeAddrs {
			if _, err := probe.ParseEndpoint(addr); err != nil {
				return err
			}
		}
		cfg.Probe.Endpoints = append([]string(nil), probeAddrs...)
	}
	if flags.Changed("backend") {
		cfg.Probe.Backend = backend
	}
	if flags.Changed("target") {
		cfg.Probe.Target = targetName
	}
	if flags.Changed("boot-address") {
		addr := bootAddress
		cfg.Probe.BootAddress = &addr
	}
	if flags.Changed("gdb-path") {
		cfg.Probe.GDBPath = gdbPath
	}
	if flags.Changed("timeout") {
		if timeout <= 0 {
			return fmt.Errorf("--timeout must be positive, got %s", timeout)
		}
		cfg.Probe.Timeout = int(math.Ceil(timeout.Seconds()))
	}
	if flags.Changed("discover") {
		cfg.Discovery.Enabled = discover
	}
	return nil
}

// newOpener returns the session opener of the configured backend.
func newOpener(cfg *config.Config, catalog *targets.Catalog, log *zap.Logger) (probe.Opener, error) {
	opts := cfg.SessionOptions()
	switch cfg.Probe.Backend {
	case config.BackendRSP:
		return &rsp.Opener{
			Options:   opts,
			MaxPacket: cfg.Probe.MaxPacket,
			Catalog:   catalog,
			Logger:    log,
		}, nil
	case config.BackendGDB:
		gdbCfg := gdb.DefaultConfig()
		gdbCfg.GDBPath = cfg.Probe.GDBPath
		return &gdb.Opener{
			Options: opts,
			Config:  gdbCfg,
			Catalog: catalog,
			Logger:  log,
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (use rsp or gdb)", cfg.Probe.Backend)
	}
}

// candidates collects endpoints from the config (or --probe) and, when
// discovery is enabled, from mDNS.
func candidates(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]probe.Endpoint, error) {
	eps, err := cfg.Endpoints()
	if err != nil {
		return nil, err
	}
	if !cfg.Discovery.Enabled {
		return eps, nil
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = cfg.Discovery.DiscoveryTimeout()
	scanner.Service = cfg.Discovery.Service
	scanner.Log = log

	// A known ID ends the browse as soon as that probe answers
	if probeID != "" && !hasIdentifier(eps, probeID) {
		p, err := scanner.WaitForProbe(ctx, probeID)
		if err != nil {
			log.Warn("probe not discovered", zap.String("id", probeID), zap.Error(err))
			return eps, nil
		}
		return append(eps, p.Endpoint()), nil
	}

	found, err := scanner.Endpoints(ctx)
	if err != nil {
		// Static candidates still work without multicast
		log.Warn("mDNS discovery failed", zap.Error(err))
		return eps, nil
	}
	return append(eps, found...), nil
}

func hasIdentifier(eps []probe.Endpoint, id string) bool {
	for _, ep := range eps {
		if ep.Identifier() == id || ep.Address() == id {
			return true
		}
	}
	return false
}

// selectProbe resolves the single probe to use.
func selectProbe(ctx context.Context, cfg *config.Config, log *zap.Logger) (probe.Endpoint, error) {
	eps, err := candidates(ctx, cfg, log)
	if err != nil {
		return probe.Endpoint{}, err
	}
	ep, err := probe.SelectEndpoint(ctx, eps, probe.Selection{ID: probeID})
	if err != nil {
		return probe.Endpoint{}, err
	}
	log.Info("probe selected", zap.String("endpoint", ep.String()), zap.String("source", ep.Source))
	return ep, nil
}
