package probe

// MemoryMap is the ordered region list reported for a target.
// Order is the order the server or catalog declared the regions in.
type MemoryMap struct {
	Regions []Region
}

// NewMemoryMap wraps regions in a MemoryMap.
func NewMemoryMap(regions ...Region) MemoryMap {
	return MemoryMap{Regions: regions}
}

// Len returns the number of regions.
func (m MemoryMap) Len() int {
	return len(m.Regions)
}

// RegionsOfType returns every region of the given type in map order.
func (m MemoryMap) RegionsOfType(t RegionType) []Region {
	var out []Region
	for _, r := range m.Regions {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// RAMRegions returns the RAM regions in map order.
func (m MemoryMap) RAMRegions() []Region {
	return m.RegionsOfType(RegionRAM)
}

// FirstRAM returns the first RAM region in map order. When several RAM
// regions exist the first one wins; no other heuristic is applied.
func (m MemoryMap) FirstRAM() (Region, error) {
	ram := m.RAMRegions()
	if len(ram) == 0 {
		return Region{}, &RegionNotFoundError{Kind: "ram", Regions: len(m.Regions)}
	}
	return ram[0], nil
}

// BootMemory returns the region flagged as boot memory.
func (m MemoryMap) BootMemory() (Region, error) {
	for _, r := range m.Regions {
		if r.Boot {
			return r, nil
		}
	}
	return Region{}, &RegionNotFoundError{Kind: "boot", Regions: len(m.Regions)}
}

// HasBoot reports whether any region carries the boot flag.
func (m MemoryMap) HasBoot() bool {
	_, err := m.BootMemory()
	return err == nil
}

// MarkBoot returns a copy of the map in which the first non-RAM region
// containing addr is flagged as boot memory. Maps that already declare a
// boot region are returned unchanged.
func (m MemoryMap) MarkBoot(addr uint32) MemoryMap {
	if m.HasBoot() {
		return m
	}
	out := MemoryMap{Regions: make([]Region, len(m.Regions))}
	copy(out.Regions, m.Regions)
	for i, r := range out.Regions {
		if !r.IsRAM() && r.Contains(addr) {
			out.Regions[i].Boot = true
			break
		}
	}
	return out
}

// ForceBoot returns a copy of the map in which only the first non-RAM
// region containing addr carries the boot flag.
func (m MemoryMap) ForceBoot(addr uint32) MemoryMap {
	out := MemoryMap{Regions: make([]Region, len(m.Regions))}
	copy(out.Regions, m.Regions)
	marked := false
	for i, r := range out.Regions {
		out.Regions[i].Boot = false
		if !marked && !r.IsRAM() && r.Contains(addr) {
			out.Regions[i].Boot = true
			marked = true
		}
	}
	return out
}
