package probe

import (
	"fmt"
	"strings"
)

// RegionType is the category tag a memory map declares for a region.
type RegionType string

const (
	RegionRAM   RegionType = "ram"
	RegionROM   RegionType = "rom"
	RegionFlash RegionType = "flash"
)

// ParseRegionType accepts the type names used by GDB memory maps, the
// target catalog and `info mem` attributes. "boot" is accepted as a ROM
// region carrying the boot flag.
func ParseRegionType(s string) (RegionType, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ram", "rw":
		return RegionRAM, false, nil
	case "rom", "ro":
		return RegionROM, false, nil
	case "flash":
		return RegionFlash, false, nil
	case "boot":
		return RegionROM, true, nil
	default:
		return "", false, fmt.Errorf("unknown memory region type %q", s)
	}
}

// Region is one entry of a target memory map.
type Region struct {
	Name      string
	Type      RegionType
	Start     uint32
	Length    uint32
	Boot      bool
	BlockSize uint32
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return uint64(r.Start) + uint64(r.Length)
}

// Contains reports whether addr lies inside the region.
func (r Region) Contains(addr uint32) bool {
	return addr >= r.Start && uint64(addr) < r.End()
}

// IsRAM reports whether the region is RAM.
func (r Region) IsRAM() bool {
	return r.Type == RegionRAM
}

func (r Region) String() string {
	name := r.Name
	if name == "" {
		name = string(r.Type)
	}
	s := fmt.Sprintf("%s 0x%08x-0x%08x (%d bytes, %s)", name, r.Start, r.End(), r.Length, r.Type)
	if r.Boot {
		s += " boot"
	}
	return s
}
