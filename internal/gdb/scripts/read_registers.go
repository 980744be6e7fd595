package scripts

import (
	_ "embed"
	"fmt"
)

//go:embed templates/read_registers.gdb.tmpl
var readRegistersTemplate string

// ReadRegistersScript reads every register GDB knows for the target.
type ReadRegistersScript struct {
	conn Connection
}

// NewReadRegistersScript creates a register read script
func NewReadRegistersScript(conn Connection) *ReadRegistersScript {
	return &ReadRegistersScript{conn: conn}
}

// Name returns the script name
func (s *ReadRegistersScript) Name() string {
	return "read_registers"
}

// Template returns the embedded GDB script template
func (s *ReadRegistersScript) Template() string {
	return withPreamble(readRegistersTemplate)
}

// Params returns the template parameters
func (s *ReadRegistersScript) Params() map[string]interface{} {
	return s.conn.params()
}

// Parse parses the `info all-registers` table into lowercase names.
func (s *ReadRegistersScript) Parse(output string) (*Result, error) {
	result := NewResult()
	if !completed(output) {
		result.Error = fmt.Errorf("info all-registers failed: %s", orUnknown(firstErrorLine(output)))
		return result, nil
	}

	regs := ParseInfoRegisters(output)
	if len(regs) == 0 {
		result.Error = fmt.Errorf("no registers in GDB output")
		return result, nil
	}
	result.Success = true
	result.SetData("registers", regs)
	return result, nil
}

// Registers returns the register values parsed by a ReadRegistersScript.
func Registers(r *Result) map[string]uint32 {
	regs, _ := r.GetData("registers").(map[string]uint32)
	return regs
}
