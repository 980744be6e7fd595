package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/config"
	"github.com/muurk/fwdump/internal/gdb"
	"github.com/muurk/fwdump/internal/probe"
	"github.com/muurk/fwdump/internal/rsp"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringArrayVar(&probeAddrs, "probe", nil, "")
	fs.StringVar(&backend, "backend", config.BackendRSP, "")
	fs.StringVar(&targetName, "target", "", "")
	fs.Uint32Var(&bootAddress, "boot-address", 0, "")
	fs.StringVar(&gdbPath, "gdb-path", "arm-none-eabi-gdb", "")
	fs.DurationVar(&timeout, "timeout", 10*time.Second, "")
	fs.BoolVar(&discover, "discover", false, "")
	return fs
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    func(*config.Config)
		wantErr bool
	}{
		{
			name: "no flags keeps config",
			args: nil,
			want: func(*config.Config) {},
		},
		{
			name: "overrides",
			args: []string{
				"--probe", "10.0.0.2:4444", "--probe", "benchpi.local",
				"--backend", "gdb", "--target", "frdm-k64f",
				"--gdb-path", "gdb-multiarch", "--timeout", "1500ms", "--discover",
			},
			want: func(c *config.Config) {
				c.Probe.Endpoints = []string{"10.0.0.2:4444", "benchpi.local"}
				c.Probe.Backend = config.BackendGDB
				c.Probe.Target = "frdm-k64f"
				c.Probe.GDBPath = "gdb-multiarch"
				c.Probe.Timeout = 2
				c.Discovery.Enabled = true
			},
		},
		{
			name: "explicit zero boot address",
			args: []string{"--boot-address", "0x0"},
			want: func(c *config.Config) {
				addr := uint32(0)
				c.Probe.BootAddress = &addr
			},
		},
		{
			name: "hex boot address",
			args: []string{"--boot-address", "0x1fff0000"},
			want: func(c *config.Config) {
				addr := uint32(0x1fff0000)
				c.Probe.BootAddress = &addr
			},
		},
		{
			name:    "invalid probe address",
			args:    []string{"--probe", "host:notaport"},
			wantErr: true,
		},
		{
			name:    "non-positive timeout",
			args:    []string{"--timeout", "0s"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := testFlags()
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			got := config.NewConfig()
			err := applyFlags(got, fs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			want := config.NewConfig()
			tt.want(want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewOpener(t *testing.T) {
	cfg := config.NewConfig()

	opener, err := newOpener(cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("newOpener(rsp) error = %v", err)
	}
	r, ok := opener.(*rsp.Opener)
	if !ok {
		t.Fatalf("newOpener(rsp) = %T, want *rsp.Opener", opener)
	}
	if r.Options.FrequencyHz != probe.DefaultFrequencyHz || !r.Options.Halt {
		t.Errorf("rsp options = %+v, want 10 MHz and halt", r.Options)
	}

	cfg.Probe.Backend = config.BackendGDB
	cfg.Probe.GDBPath = "gdb-multiarch"
	opener, err = newOpener(cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("newOpener(gdb) error = %v", err)
	}
	g, ok := opener.(*gdb.Opener)
	if !ok {
		t.Fatalf("newOpener(gdb) = %T, want *gdb.Opener", opener)
	}
	if g.Config.GDBPath != "gdb-multiarch" {
		t.Errorf("GDBPath = %q, want gdb-multiarch", g.Config.GDBPath)
	}

	cfg.Probe.Backend = "jlink"
	if _, err := newOpener(cfg, nil, zap.NewNop()); err == nil {
		t.Error("newOpener(jlink) succeeded, want error")
	}
}

func TestCandidatesWithoutDiscovery(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Probe.Endpoints = []string{"10.0.0.2:4444", "benchpi.local"}

	got, err := candidates(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("candidates() error = %v", err)
	}
	want := []probe.Endpoint{
		{Host: "10.0.0.2", Port: 4444, Source: "config"},
		{Host: "benchpi.local", Port: probe.DefaultPort, Source: "config"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
}
