package targets

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/fwdump/internal/probe"
)

//go:embed targets.yaml
var targetsYAML []byte

// DefaultRegisterTable is the register numbering used when a target names none.
const DefaultRegisterTable = "cortex-m"

// Target describes a board whose memory layout is known in advance.
type Target struct {
	// Name is the canonical lookup key (e.g., "frdm-k64f")
	Name string `yaml:"name"`

	// Aliases are alternative lookup keys
	Aliases []string `yaml:"aliases"`

	// Description is shown by `fwdump targets`
	Description string `yaml:"description"`

	// Core is the CPU core name, informational
	Core string `yaml:"core"`

	// RegisterTable names an entry of register_tables
	RegisterTable string `yaml:"register_table"`

	// BootAddress is the reset vector table location
	BootAddress uint32 `yaml:"boot_address"`

	// Verified indicates whether a dump from this board has been checked
	Verified bool `yaml:"verified"`

	// Regions in memory map order
	Regions []RegionSpec `yaml:"regions"`

	registers RegisterTable
}

// RegionSpec is a memory region as written in targets.yaml.
type RegionSpec struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Start  uint32 `yaml:"start"`
	Length uint32 `yaml:"length"`
	Boot   bool   `yaml:"boot"`
}

// RegisterTable maps lower-case register names to GDB register numbers.
type RegisterTable map[string]int

// Number returns the register number for name, ignoring case.
func (t RegisterTable) Number(name string) (int, bool) {
	n, ok := t[strings.ToLower(name)]
	return n, ok
}

// Catalog holds all known targets.
type Catalog struct {
	// Targets in file order
	Targets []*Target

	tables map[string]RegisterTable
	index  map[string]*Target
}

// catalogContainer is for YAML unmarshaling
type catalogContainer struct {
	RegisterTables map[string]map[string]int `yaml:"register_tables"`
	Targets        []*Target                 `yaml:"targets"`
}

var (
	globalCatalog     *Catalog
	globalCatalogOnce sync.Once
	globalCatalogErr  error
)

// Load returns the embedded target catalog. It is parsed only once.
func Load() (*Catalog, error) {
	globalCatalogOnce.Do(func() {
		globalCatalog, globalCatalogErr = Parse(targetsYAML)
	})
	return globalCatalog, globalCatalogErr
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var container catalogContainer
	if err := yaml.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("failed to parse targets.yaml: %w", err)
	}

	c := &Catalog{
		Targets: container.Targets,
		tables:  make(map[string]RegisterTable),
		index:   make(map[string]*Target),
	}

	for name, regs := range container.RegisterTables {
		table := make(RegisterTable, len(regs))
		for reg, num := range regs {
			table[strings.ToLower(reg)] = num
		}
		c.tables[strings.ToLower(name)] = table
	}
	if _, ok := c.tables[DefaultRegisterTable]; !ok {
		return nil, fmt.Errorf("targets.yaml: missing %q register table", DefaultRegisterTable)
	}

	for _, t := range c.Targets {
		if t.Name == "" {
			return nil, fmt.Errorf("targets.yaml: target without a name")
		}
		tableName := t.RegisterTable
		if tableName == "" {
			tableName = DefaultRegisterTable
		}
		table, ok := c.tables[strings.ToLower(tableName)]
		if !ok {
			return nil, fmt.Errorf("target %s: unknown register table %q", t.Name, tableName)
		}
		t.registers = table

		for _, r := range t.Regions {
			if _, _, err := probe.ParseRegionType(r.Type); err != nil {
				return nil, fmt.Errorf("target %s region %s: %w", t.Name, r.Name, err)
			}
		}

		for _, key := range append([]string{t.Name}, t.Aliases...) {
			key = strings.ToLower(key)
			if existing, dup := c.index[key]; dup {
				return nil, fmt.Errorf("target %s: name %q already used by %s", t.Name, key, existing.Name)
			}
			c.index[key] = t
		}
	}

	return c, nil
}

// Get retrieves a target by name or alias, ignoring case.
func (c *Catalog) Get(name string) (*Target, bool) {
	t, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

// List returns all targets in file order.
func (c *Catalog) List() []*Target {
	return c.Targets
}

// Names returns the canonical target names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of targets.
func (c *Catalog) Count() int {
	return len(c.Targets)
}

// DefaultRegisters returns the generic Cortex-M register numbering.
func (c *Catalog) DefaultRegisters() RegisterTable {
	return c.tables[DefaultRegisterTable]
}

// Registers returns the target's register numbering.
func (t *Target) Registers() RegisterTable {
	return t.registers
}

// MemoryMap converts the target's regions into a probe.MemoryMap. When no
// region is flagged as boot memory, the region holding BootAddress is.
func (t *Target) MemoryMap() probe.MemoryMap {
	regions := make([]probe.Region, 0, len(t.Regions))
	for _, spec := range t.Regions {
		// Types were validated by Parse
		typ, boot, _ := probe.ParseRegionType(spec.Type)
		regions = append(regions, probe.Region{
			Name:   spec.Name,
			Type:   typ,
			Start:  spec.Start,
			Length: spec.Length,
			Boot:   spec.Boot || boot,
		})
	}
	return probe.NewMemoryMap(regions...).MarkBoot(t.BootAddress)
}

// String returns a human-readable representation of the target.
func (t *Target) String() string {
	verifiedStr := ""
	if t.Verified {
		verifiedStr = " (verified)"
	}
	return fmt.Sprintf("%s - %s%s", t.Name, t.Description, verifiedStr)
}
