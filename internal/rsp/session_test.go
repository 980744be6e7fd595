package rsp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/probe"
	"github.com/muurk/fwdump/internal/targets"
)

func TestSession_Handshake(t *testing.T) {
	f := newFakeServer()
	s, _ := f.open(t, probe.DefaultOptions())

	features := s.Features()
	if features.PacketSize != 0x4000 {
		t.Errorf("PacketSize = %#x, want 0x4000", features.PacketSize)
	}
	if !features.MemoryMap || !features.TargetXML || !features.NoAckMode {
		t.Errorf("features not parsed: %+v", features)
	}
	if !s.client.conn.NoAck() {
		t.Error("expected no-ack mode after QStartNoAckMode")
	}

	f.mu.Lock()
	monitors := append([]string(nil), f.monitors...)
	f.mu.Unlock()
	if diff := cmp.Diff([]string{"adapter speed 10000"}, monitors); diff != "" {
		t.Errorf("monitor commands mismatch (-want +got):\n%s", diff)
	}

	info := s.Target()
	if info.Backend != BackendName || info.Endpoint != "localhost:3333" || info.Architecture != "arm" {
		t.Errorf("unexpected target info %+v", info)
	}
}

func TestSession_RejectedClockIsNotFatal(t *testing.T) {
	f := newFakeServer()
	f.rejectRcmd = true

	s, _ := f.open(t, probe.DefaultOptions())
	if s == nil {
		t.Fatal("expected a session despite the rejected clock command")
	}
}

func TestSession_MemoryMap(t *testing.T) {
	f := newFakeServer()
	s, _ := f.open(t, probe.DefaultOptions())

	mm, err := s.MemoryMap(context.Background())
	if err != nil {
		t.Fatalf("MemoryMap() error = %v", err)
	}

	want := []probe.Region{
		{Name: "flash0", Type: probe.RegionFlash, Start: 0, Length: 0x1000, Boot: true, BlockSize: 0x400},
		{Name: "ram0", Type: probe.RegionRAM, Start: 0x20000000, Length: 0x100},
	}
	if diff := cmp.Diff(want, mm.Regions); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}

	// Cached for the session
	if _, err := s.MemoryMap(context.Background()); err != nil {
		t.Fatalf("MemoryMap() error = %v", err)
	}
	if n := f.sent("qXfer:memory-map"); n != 1 {
		t.Errorf("memory map requested %d times, want 1", n)
	}
}

func TestSession_MemoryMapChunkedXfer(t *testing.T) {
	f := newFakeServer()
	f.features = "PacketSize=100;qXfer:memory-map:read+;qXfer:features:read+"

	s, _ := f.open(t, probe.DefaultOptions())

	mm, err := s.MemoryMap(context.Background())
	if err != nil {
		t.Fatalf("MemoryMap() error = %v", err)
	}
	if mm.Len() != 2 {
		t.Errorf("expected 2 regions, got %d", mm.Len())
	}
	if n := f.sent("qXfer:memory-map"); n < 2 {
		t.Errorf("expected the memory map in several chunks, got %d requests", n)
	}
	if s.client.conn.NoAck() {
		t.Error("no-ack mode must stay off when the server does not offer it")
	}
}

func TestSession_ReadMemory(t *testing.T) {
	f := newFakeServer()
	s, _ := f.open(t, probe.DefaultOptions())

	got, err := s.ReadMemory(context.Background(), 0x20000003, 0x21)
	if err != nil {
		t.Fatalf("ReadMemory() error = %v", err)
	}
	want := f.memory[0x20000000][3 : 3+0x21]
	if !bytes.Equal(got, want) {
		t.Errorf("ReadMemory() = %x, want %x", got, want)
	}
}

func TestSession_ReadMemoryShortReplies(t *testing.T) {
	f := newFakeServer()
	f.maxReply = 0x30

	s, _ := f.open(t, probe.DefaultOptions())

	got, err := s.ReadMemory(context.Background(), 0, 0x100)
	if err != nil {
		t.Fatalf("ReadMemory() error = %v", err)
	}
	if !bytes.Equal(got, f.memory[0][:0x100]) {
		t.Error("data mismatch after continued short reads")
	}
	if n := f.sent("m"); n != 6 {
		t.Errorf("expected 6 'm' requests, got %d", n)
	}
}

func TestSession_ChunkSize(t *testing.T) {
	f := newFakeServer()
	s, _ := f.open(t, probe.DefaultOptions(), func(o *Opener) { o.MaxPacket = 0x40 })

	if got := s.PreferredChunkSize(); got != 0x40 {
		t.Errorf("PreferredChunkSize() = %#x, want 0x40", got)
	}

	region := probe.Region{Type: probe.RegionROM, Start: 0, Length: 0x1000, Boot: true}
	data, err := probe.ReadBlock(context.Background(), s, region, nil)
	if err != nil {
		t.Fatalf("ReadBlock() error = %v", err)
	}
	if !bytes.Equal(data, f.memory[0]) {
		t.Error("block data mismatch")
	}
	if n := f.sent("m"); n != 0x1000/0x40 {
		t.Errorf("expected %d 'm' requests, got %d", 0x1000/0x40, n)
	}
}

func TestSession_ReadMemoryError(t *testing.T) {
	f := newFakeServer()
	f.failAt = 0x20000080

	s, _ := f.open(t, probe.DefaultOptions())

	_, err := s.ReadMemory(context.Background(), 0x20000000, 0x100)
	var readErr *probe.MemoryReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("ReadMemory() error = %v, want MemoryReadError", err)
	}
	var reply *ErrorReply
	if !errors.As(err, &reply) || reply.Code != 0x0e {
		t.Errorf("expected E0e reply to be wrapped, got %v", err)
	}
}

func TestSession_ReadCoreRegister(t *testing.T) {
	tests := []struct {
		name string
		noP  bool
	}{
		{name: "p packet"},
		{name: "g fallback", noP: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeServer()
			f.noP = tt.noP
			s, _ := f.open(t, probe.DefaultOptions())

			want := map[string]uint32{
				"r0":      0x1000,
				"r12":     0x100c,
				"sp":      0x100d,
				"lr":      0x100e,
				"pc":      0x100f,
				"xpsr":    0x1010,
				"xPSR":    0x1010,
				"msp":     0x1011,
				"psp":     0x1012,
				"primask": 0x1013,
				"control": 0x1016,
			}
			got := make(map[string]uint32)
			for name := range want {
				v, err := s.ReadCoreRegister(context.Background(), name)
				if err != nil {
					t.Fatalf("ReadCoreRegister(%s) error = %v", name, err)
				}
				got[name] = v
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("register values mismatch (-want +got):\n%s", diff)
			}

			if tt.noP && f.sent("g") != 1 {
				t.Errorf("expected one cached 'g' request, got %d", f.sent("g"))
			}
		})
	}
}

func TestSession_ReadCoreRegisterErrors(t *testing.T) {
	f := newFakeServer()
	f.failRegs[15] = true
	s, _ := f.open(t, probe.DefaultOptions())

	for _, name := range []string{"pc", "fpscr"} {
		_, err := s.ReadCoreRegister(context.Background(), name)
		var regErr *probe.RegisterReadError
		if !errors.As(err, &regErr) {
			t.Errorf("ReadCoreRegister(%s) error = %v, want RegisterReadError", name, err)
			continue
		}
		if regErr.Register != name {
			t.Errorf("Register = %q, want %q", regErr.Register, name)
		}
	}
}

func TestSession_CatalogFallback(t *testing.T) {
	catalog, err := targets.Load()
	if err != nil {
		t.Fatalf("targets.Load() error = %v", err)
	}

	f := newFakeServer()
	f.features = "PacketSize=4000"

	opts := probe.DefaultOptions()
	opts.Target = "k64f"
	s, _ := f.open(t, opts, func(o *Opener) { o.Catalog = catalog })

	if s.Target().Name != "frdm-k64f" {
		t.Errorf("Target().Name = %q, want frdm-k64f", s.Target().Name)
	}

	mm, err := s.MemoryMap(context.Background())
	if err != nil {
		t.Fatalf("MemoryMap() error = %v", err)
	}
	boot, _ := mm.BootMemory()
	ram, _ := mm.FirstRAM()
	if boot.Name != "flash" || ram.Name != "sram_l" {
		t.Errorf("boot = %s, ram = %s", boot, ram)
	}

	pc, err := s.ReadCoreRegister(context.Background(), "pc")
	if err != nil {
		t.Fatalf("ReadCoreRegister(pc) error = %v", err)
	}
	if pc != 0x100f {
		t.Errorf("pc = %#x, want 0x100f", pc)
	}
}

// openOCDK64FMap is the map OpenOCD serves for a K64F: the gaps around
// the flash bank are reported as ram.
const openOCDK64FMap = `<?xml version="1.0"?>
<memory-map>
<memory type="flash" start="0x00000000" length="0x100000"><property name="blocksize">0x1000</property></memory>
<memory type="ram" start="0x00100000" length="0xfff00000"/>
</memory-map>`

func TestSession_CatalogTargetWinsOverServerMap(t *testing.T) {
	catalog, err := targets.Load()
	if err != nil {
		t.Fatalf("targets.Load() error = %v", err)
	}

	tests := []struct {
		name      string
		target    string
		wantBoot  string
		wantRAM   probe.Region
		wantXfers int
	}{
		{
			name:      "server map without target",
			wantBoot:  "flash0",
			wantRAM:   probe.Region{Name: "ram0", Type: probe.RegionRAM, Start: 0x00100000, Length: 0xfff00000},
			wantXfers: 1,
		},
		{
			name:      "catalog target",
			target:    "k64f",
			wantBoot:  "flash",
			wantRAM:   probe.Region{Name: "sram_l", Type: probe.RegionRAM, Start: 0x1fff0000, Length: 0x10000},
			wantXfers: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeServer()
			f.xfer["memory-map:"] = openOCDK64FMap

			opts := probe.DefaultOptions()
			opts.Target = tt.target
			s, _ := f.open(t, opts, func(o *Opener) { o.Catalog = catalog })

			mm, err := s.MemoryMap(context.Background())
			if err != nil {
				t.Fatalf("MemoryMap() error = %v", err)
			}
			boot, err := mm.BootMemory()
			if err != nil {
				t.Fatalf("BootMemory() error = %v", err)
			}
			if boot.Name != tt.wantBoot {
				t.Errorf("boot = %s, want %s", boot, tt.wantBoot)
			}
			ram, err := mm.FirstRAM()
			if err != nil {
				t.Fatalf("FirstRAM() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantRAM, ram); diff != "" {
				t.Errorf("first RAM mismatch (-want +got):\n%s", diff)
			}
			if n := f.sent("qXfer:memory-map"); n != tt.wantXfers {
				t.Errorf("memory map requested %d times, want %d", n, tt.wantXfers)
			}
		})
	}
}

func TestSession_ExplicitBootAddress(t *testing.T) {
	catalog, err := targets.Load()
	if err != nil {
		t.Fatalf("targets.Load() error = %v", err)
	}

	f := newFakeServer()
	bootAddr := uint32(0x1fff0000)
	opts := probe.DefaultOptions()
	opts.Target = "lpc1768"
	opts.BootAddress = &bootAddr
	s, _ := f.open(t, opts, func(o *Opener) { o.Catalog = catalog })

	mm, err := s.MemoryMap(context.Background())
	if err != nil {
		t.Fatalf("MemoryMap() error = %v", err)
	}
	boot, err := mm.BootMemory()
	if err != nil {
		t.Fatalf("BootMemory() error = %v", err)
	}
	if boot.Name != "bootrom" {
		t.Errorf("boot = %s, want bootrom", boot)
	}
	for _, r := range mm.Regions {
		if r.Boot && r.Name != "bootrom" {
			t.Errorf("region %s still flagged as boot", r.Name)
		}
	}
}

func TestSession_NoMemoryMap(t *testing.T) {
	f := newFakeServer()
	f.features = "PacketSize=4000"
	s, _ := f.open(t, probe.DefaultOptions())

	if _, err := s.MemoryMap(context.Background()); err == nil {
		t.Error("expected an error without a server map or catalog target")
	}
}

func TestSession_CloseDetaches(t *testing.T) {
	f := newFakeServer()
	s, done := f.open(t, probe.DefaultOptions())

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	<-done

	f.mu.Lock()
	detached := f.detached
	f.mu.Unlock()
	if !detached {
		t.Error("server did not see a detach")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestOpener_Errors(t *testing.T) {
	t.Run("dial failure", func(t *testing.T) {
		opener := &Opener{
			Options: probe.DefaultOptions(),
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return nil, errors.New("connection refused")
			},
		}
		_, err := opener.Open(context.Background(), probe.Endpoint{Host: "localhost", Port: 3333})
		var connErr *probe.ConnectionError
		if !errors.As(err, &connErr) || connErr.Stage != "dial" {
			t.Errorf("Open() error = %v, want dial ConnectionError", err)
		}
	})

	t.Run("target exited", func(t *testing.T) {
		f := newFakeServer()
		f.stopReply = "W00"

		client, server := net.Pipe()
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer server.Close()
			f.serve(server)
		}()

		opener := &Opener{
			Options: probe.DefaultOptions(),
			Logger:  zap.NewNop(),
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return client, nil
			},
		}
		_, err := opener.Open(context.Background(), probe.Endpoint{Host: "localhost", Port: 3333})
		<-done

		var connErr *probe.ConnectionError
		if !errors.As(err, &connErr) || connErr.Stage != "handshake" {
			t.Errorf("Open() error = %v, want handshake ConnectionError", err)
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		catalog, _ := targets.Load()
		opts := probe.DefaultOptions()
		opts.Target = "no-such-board"
		opener := &Opener{Options: opts, Catalog: catalog}

		if _, err := opener.Open(context.Background(), probe.Endpoint{Host: "localhost", Port: 3333}); err == nil {
			t.Error("expected an error for an unknown target")
		}
	})
}

func TestParseFeatures(t *testing.T) {
	f := ParseFeatures("PacketSize=3fff;qXfer:memory-map:read+;qXfer:features:read-;QStartNoAckMode+;vContSupported+")

	if f.PacketSize != 0x3fff {
		t.Errorf("PacketSize = %#x", f.PacketSize)
	}
	if !f.MemoryMap || f.TargetXML || !f.NoAckMode {
		t.Errorf("unexpected flags %+v", f)
	}

	empty := ParseFeatures("")
	if empty.PacketSize != DefaultPacketSize {
		t.Errorf("default PacketSize = %#x", empty.PacketSize)
	}
}
