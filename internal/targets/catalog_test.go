package targets

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/muurk/fwdump/internal/probe"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Count() < 5 {
		t.Errorf("expected at least 5 targets, got %d", c.Count())
	}

	again, _ := Load()
	if again != c {
		t.Error("Load() should return the same catalog instance")
	}
}

func TestCatalog_Get(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"frdm-k64f", "frdm-k64f"},
		{"FRDM-K64F", "frdm-k64f"},
		{"k64f", "frdm-k64f"},
		{" micro:bit ", "microbit"},
		{"LPC1768", "lpc1768"},
		{"stm32f401re", "nucleo-f401re"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			target, ok := c.Get(tt.key)
			if !ok {
				t.Fatalf("Get(%q) not found", tt.key)
			}
			if target.Name != tt.want {
				t.Errorf("Get(%q) = %s, want %s", tt.key, target.Name, tt.want)
			}
		})
	}

	if _, ok := c.Get("nonexistent"); ok {
		t.Error("Get(nonexistent) should fail")
	}
}

func TestTarget_MemoryMap(t *testing.T) {
	c, _ := Load()
	k64f, _ := c.Get("frdm-k64f")

	mm := k64f.MemoryMap()

	boot, err := mm.BootMemory()
	if err != nil {
		t.Fatalf("BootMemory() error = %v", err)
	}
	if boot.Start != 0 || boot.Length != 0x100000 || boot.Type != probe.RegionFlash {
		t.Errorf("unexpected boot region %s", boot)
	}

	ram, err := mm.FirstRAM()
	if err != nil {
		t.Fatalf("FirstRAM() error = %v", err)
	}
	if ram.Name != "sram_l" || ram.Start != 0x1fff0000 {
		t.Errorf("FirstRAM() = %s, want sram_l", ram)
	}
}

func TestTarget_MemoryMap_BootFromAddress(t *testing.T) {
	doc := `
register_tables:
  cortex-m: {pc: 15}
targets:
  - name: board
    boot_address: 0x08000000
    regions:
      - {name: sram, type: ram, start: 0x20000000, length: 0x100}
      - {name: flash, type: flash, start: 0x08000000, length: 0x1000}
`
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	board, _ := c.Get("board")

	boot, err := board.MemoryMap().BootMemory()
	if err != nil {
		t.Fatalf("BootMemory() error = %v", err)
	}
	if boot.Name != "flash" {
		t.Errorf("BootMemory() = %s, want flash", boot.Name)
	}
}

func TestTarget_Registers(t *testing.T) {
	c, _ := Load()
	nrf, _ := c.Get("nrf51-dk")

	regs := nrf.Registers()
	want := map[string]int{
		"r0": 0, "r12": 12, "sp": 13, "lr": 14, "pc": 15,
		"xPSR": 16, "msp": 17, "psp": 18, "primask": 19, "control": 22,
	}
	got := make(map[string]int)
	for name := range want {
		n, ok := regs.Number(name)
		if !ok {
			t.Errorf("register %s missing", name)
			continue
		}
		got[name] = n
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("register numbers mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(c.DefaultRegisters(), regs); diff != "" {
		t.Errorf("nrf51-dk should use the default table (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "missing default table",
			doc:     "targets: []",
			wantErr: "register table",
		},
		{
			name: "bad region type",
			doc: `
register_tables: {cortex-m: {pc: 15}}
targets:
  - name: x
    regions: [{name: io, type: peripheral, start: 0, length: 4}]
`,
			wantErr: "unknown memory region type",
		},
		{
			name: "duplicate alias",
			doc: `
register_tables: {cortex-m: {pc: 15}}
targets:
  - {name: a, aliases: [same]}
  - {name: b, aliases: [SAME]}
`,
			wantErr: "already used",
		},
		{
			name: "unknown register table",
			doc: `
register_tables: {cortex-m: {pc: 15}}
targets:
  - {name: a, register_table: riscv}
`,
			wantErr: "unknown register table",
		},
		{
			name:    "not yaml",
			doc:     "targets: [",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}
