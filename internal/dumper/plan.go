package dumper

import "github.com/muurk/fwdump/internal/dump"

// Plan fixes what a run produces.
type Plan struct {
	// ROM is written from the boot memory region
	ROM dump.Pair
	// RAM is written from the first RAM region
	RAM dump.Pair
	// Snapshot is the register script file name
	Snapshot string
	// Registers are snapshotted in this order
	Registers []string
}

// DefaultPlan returns the file names and register list uVision expects.
func DefaultPlan() Plan {
	return Plan{
		ROM:      dump.Pair{Name: "rom", Bin: "rom.bin", Hex: "rom.hex"},
		RAM:      dump.Pair{Name: "ram", Bin: "ram.bin", Hex: "ram.hex"},
		Snapshot: "uvision.ini",
		Registers: []string{
			"pc", "msp", "psp", "control", "primask", "xpsr",
			"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
			"r8", "r9", "r10", "r11", "r12",
			"sp", "lr",
		},
	}
}

// Files returns every output file name of the plan in write order.
func (p Plan) Files() []string {
	return []string{p.ROM.Bin, p.ROM.Hex, p.RAM.Bin, p.RAM.Hex, p.Snapshot}
}
