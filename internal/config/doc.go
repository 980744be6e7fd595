// Package config provides user configuration management for fwdump.
//
// The configuration file holds probe connection settings: which GDB
// server endpoints to try, the probe clock, the backend and the mDNS
// discovery settings. Output file names and the register list are not
// configurable.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/fwdump/config.yaml or $HOME/.config/fwdump/config.yaml
//   - macOS: $HOME/.config/fwdump/config.yaml
//   - Windows: %LOCALAPPDATA%\fwdump\config.yaml
//
// A missing file means defaults: localhost:3333, 10 MHz, rsp backend,
// halt on connect.
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts := cfg.SessionOptions()
//	eps, err := cfg.Endpoints()
//
// # Thread Safety
//
// The global config uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
