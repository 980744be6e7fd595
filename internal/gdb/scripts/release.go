package scripts

import (
	_ "embed"
	"fmt"
)

//go:embed templates/release.gdb.tmpl
var releaseTemplate string

// ReleaseScript detaches from the target, which resumes it.
type ReleaseScript struct {
	conn Connection
}

// NewReleaseScript creates a release script. The core is never halted on
// the way in.
func NewReleaseScript(conn Connection) *ReleaseScript {
	conn.Halt = false
	return &ReleaseScript{conn: conn}
}

// Name returns the script name
func (s *ReleaseScript) Name() string {
	return "release"
}

// Template returns the embedded GDB script template
func (s *ReleaseScript) Template() string {
	return withPreamble(releaseTemplate)
}

// Params returns the template parameters
func (s *ReleaseScript) Params() map[string]interface{} {
	return s.conn.params()
}

// Parse parses the GDB output
func (s *ReleaseScript) Parse(output string) (*Result, error) {
	result := NewResult()
	if !completed(output) {
		result.Error = fmt.Errorf("detach failed: %s", orUnknown(firstErrorLine(output)))
		return result, nil
	}
	result.Success = true
	return result, nil
}
