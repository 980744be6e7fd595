package scripts

import (
	_ "embed"
	"fmt"
	"regexp"
)

//go:embed templates/connect.gdb.tmpl
var connectTemplate string

var (
	currentArchPattern = regexp.MustCompile(`currently "([^"]+)"`)
	setArchPattern     = regexp.MustCompile(`set to "([^"]+)"`)
)

// ConnectScript attaches to the GDB server, applies monitor commands (the
// probe clock) and reports the target architecture.
type ConnectScript struct {
	conn    Connection
	monitor []string
}

// NewConnectScript creates a connect script. Empty monitor commands are skipped.
func NewConnectScript(conn Connection, monitor ...string) *ConnectScript {
	cmds := make([]string, 0, len(monitor))
	for _, m := range monitor {
		if m != "" {
			cmds = append(cmds, m)
		}
	}
	return &ConnectScript{conn: conn, monitor: cmds}
}

// Name returns the script name
func (s *ConnectScript) Name() string {
	return "connect"
}

// Template returns the embedded GDB script template
func (s *ConnectScript) Template() string {
	return withPreamble(connectTemplate)
}

// Params returns the template parameters
func (s *ConnectScript) Params() map[string]interface{} {
	params := s.conn.params()
	params["Monitor"] = s.monitor
	return params
}

// Parse parses the GDB output
func (s *ConnectScript) Parse(output string) (*Result, error) {
	result := NewResult()
	if !completed(output) {
		result.Error = fmt.Errorf("could not attach to %s:%d: %s", s.conn.Host, s.conn.Port, orUnknown(firstErrorLine(output)))
		return result, nil
	}

	result.Success = true
	if m := currentArchPattern.FindStringSubmatch(output); m != nil {
		result.SetData("architecture", m[1])
	} else if m := setArchPattern.FindStringSubmatch(output); m != nil {
		result.SetData("architecture", m[1])
	}
	return result, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "success marker not found"
	}
	return s
}
