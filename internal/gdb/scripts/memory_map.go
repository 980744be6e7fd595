package scripts

import (
	_ "embed"
	"fmt"

	"github.com/muurk/fwdump/internal/probe"
)

//go:embed templates/memory_map.gdb.tmpl
var memoryMapTemplate string

// MemoryMapScript lists the memory regions GDB knows for the target.
type MemoryMapScript struct {
	conn Connection
}

// NewMemoryMapScript creates a memory map script
func NewMemoryMapScript(conn Connection) *MemoryMapScript {
	return &MemoryMapScript{conn: conn}
}

// Name returns the script name
func (s *MemoryMapScript) Name() string {
	return "memory_map"
}

// Template returns the embedded GDB script template
func (s *MemoryMapScript) Template() string {
	return withPreamble(memoryMapTemplate)
}

// Params returns the template parameters
func (s *MemoryMapScript) Params() map[string]interface{} {
	return s.conn.params()
}

// Parse parses the `info mem` table. An empty region list means the
// server published no memory map.
func (s *MemoryMapScript) Parse(output string) (*Result, error) {
	result := NewResult()
	if !completed(output) {
		result.Error = fmt.Errorf("info mem failed: %s", orUnknown(firstErrorLine(output)))
		return result, nil
	}

	regions, err := ParseInfoMem(output)
	if err != nil {
		return nil, err
	}
	result.Success = true
	result.SetData("regions", regions)
	return result, nil
}

// Regions returns the regions parsed by a MemoryMapScript.
func Regions(r *Result) []probe.Region {
	regions, _ := r.GetData("regions").([]probe.Region)
	return regions
}
