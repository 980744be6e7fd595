package config

import (
	"fmt"
	"time"

	"github.com/muurk/fwdump/internal/probe"
)

// CurrentVersion is the config file format version.
const CurrentVersion = 1

// Backend names.
const (
	BackendRSP = "rsp"
	BackendGDB = "gdb"
)

// Config represents the entire user configuration file.
type Config struct {
	Version   int              `yaml:"version"`
	Probe     *ProbeConfig     `yaml:"probe,omitempty"`
	Discovery *DiscoveryConfig `yaml:"discovery,omitempty"`
}

// ProbeConfig holds the probe connection settings.
type ProbeConfig struct {
	Endpoints    []string `yaml:"endpoints,omitempty"`     // host:port of GDB servers to try
	FrequencyHz  uint32   `yaml:"frequency_hz"`            // Probe clock requested on connect
	Backend      string   `yaml:"backend"`                 // "rsp" (built-in client) or "gdb" (external GDB)
	Halt         *bool    `yaml:"halt,omitempty"`          // Halt the core after attaching (default true)
	Timeout      int      `yaml:"timeout"`                 // Per-request timeout in seconds
	GDBPath      string   `yaml:"gdb_path,omitempty"`      // GDB binary for the gdb backend
	ClockCommand string   `yaml:"clock_command,omitempty"` // Monitor command template (.Hz, .KHz)
	MaxPacket    uint32   `yaml:"max_packet,omitempty"`    // Cap on bytes per memory read request
	Target       string   `yaml:"target,omitempty"`        // Catalog target; its layout replaces the server map
	BootAddress  *uint32  `yaml:"boot_address,omitempty"`  // Region holding this address is dumped as boot memory
}

// DiscoveryConfig holds mDNS discovery settings.
type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`           // Browse mDNS for GDB servers
	Service string `yaml:"service,omitempty"` // Service type (default "_gdbserver._tcp")
	Timeout int    `yaml:"timeout"`           // Browse duration in seconds
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version:   CurrentVersion,
		Probe:     defaultProbeConfig(),
		Discovery: defaultDiscoveryConfig(),
	}
}

func defaultProbeConfig() *ProbeConfig {
	halt := true
	return &ProbeConfig{
		Endpoints:    []string{fmt.Sprintf("localhost:%d", probe.DefaultPort)},
		FrequencyHz:  probe.DefaultFrequencyHz,
		Backend:      BackendRSP,
		Halt:         &halt,
		Timeout:      10,
		GDBPath:      "arm-none-eabi-gdb",
		ClockCommand: probe.DefaultClockCommand,
	}
}

func defaultDiscoveryConfig() *DiscoveryConfig {
	return &DiscoveryConfig{
		Enabled: false,
		Service: "_gdbserver._tcp",
		Timeout: 3,
	}
}

// applyDefaults fills sections and fields the file left out.
func (c *Config) applyDefaults() {
	def := defaultProbeConfig()
	if c.Probe == nil {
		c.Probe = def
	} else {
		if c.Probe.FrequencyHz == 0 {
			c.Probe.FrequencyHz = def.FrequencyHz
		}
		if c.Probe.Backend == "" {
			c.Probe.Backend = def.Backend
		}
		if c.Probe.Halt == nil {
			c.Probe.Halt = def.Halt
		}
		if c.Probe.Timeout == 0 {
			c.Probe.Timeout = def.Timeout
		}
		if c.Probe.GDBPath == "" {
			c.Probe.GDBPath = def.GDBPath
		}
		if c.Probe.ClockCommand == "" {
			c.Probe.ClockCommand = def.ClockCommand
		}
	}

	if c.Discovery == nil {
		c.Discovery = defaultDiscoveryConfig()
	} else {
		if c.Discovery.Service == "" {
			c.Discovery.Service = "_gdbserver._tcp"
		}
		if c.Discovery.Timeout == 0 {
			c.Discovery.Timeout = 3
		}
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	switch c.Probe.Backend {
	case BackendRSP, BackendGDB:
	default:
		return fmt.Errorf("unknown backend %q (expected %q or %q)", c.Probe.Backend, BackendRSP, BackendGDB)
	}
	if c.Probe.Timeout < 0 {
		return fmt.Errorf("probe timeout must not be negative")
	}
	for _, ep := range c.Probe.Endpoints {
		if _, err := probe.ParseEndpoint(ep); err != nil {
			return err
		}
	}
	return nil
}

// HaltOnConnect reports whether the core is halted after attaching.
func (p *ProbeConfig) HaltOnConnect() bool {
	return p.Halt == nil || *p.Halt
}

// RequestTimeout returns Timeout as a duration.
func (p *ProbeConfig) RequestTimeout() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// SessionOptions converts the probe settings into session options.
func (c *Config) SessionOptions() probe.Options {
	opts := probe.DefaultOptions()
	opts.FrequencyHz = c.Probe.FrequencyHz
	opts.ClockCommand = c.Probe.ClockCommand
	opts.Halt = c.Probe.HaltOnConnect()
	opts.Timeout = c.Probe.RequestTimeout()
	opts.Target = c.Probe.Target
	if c.Probe.BootAddress != nil {
		addr := *c.Probe.BootAddress
		opts.BootAddress = &addr
	}
	return opts
}

// Endpoints parses the configured endpoints into selection candidates.
func (c *Config) Endpoints() ([]probe.Endpoint, error) {
	eps := make([]probe.Endpoint, 0, len(c.Probe.Endpoints))
	for _, s := range c.Probe.Endpoints {
		ep, err := probe.ParseEndpoint(s)
		if err != nil {
			return nil, err
		}
		ep.Source = "config"
		eps = append(eps, ep)
	}
	return eps, nil
}

// DiscoveryTimeout returns the mDNS browse duration.
func (d *DiscoveryConfig) DiscoveryTimeout() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}
