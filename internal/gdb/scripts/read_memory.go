package scripts

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

//go:embed templates/read_memory.gdb.tmpl
var readMemoryTemplate string

var cannotAccessPattern = regexp.MustCompile(`Cannot access memory at address (0x[0-9a-fA-F]+)`)

// ReadMemoryScript dumps a block of target memory into a local file.
type ReadMemoryScript struct {
	conn         Connection
	startAddress uint32
	size         uint32
	outputFile   string
}

// NewReadMemoryScript creates a new memory read script
func NewReadMemoryScript(conn Connection, startAddress, size uint32, outputFile string) *ReadMemoryScript {
	return &ReadMemoryScript{
		conn:         conn,
		startAddress: startAddress,
		size:         size,
		outputFile:   outputFile,
	}
}

// Name returns the script name
func (s *ReadMemoryScript) Name() string {
	return "read_memory"
}

// Template returns the embedded GDB script template
func (s *ReadMemoryScript) Template() string {
	return withPreamble(readMemoryTemplate)
}

// Params returns the template parameters
func (s *ReadMemoryScript) Params() map[string]interface{} {
	params := s.conn.params()
	params["StartAddress"] = uint64(s.startAddress)
	params["EndAddress"] = uint64(s.startAddress) + uint64(s.size)
	params["Size"] = s.size
	params["OutputFile"] = s.outputFile
	params["QuotedOutputFile"] = quoteFilename(s.outputFile)
	return params
}

var filenameEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteFilename quotes a path for GDB commands that take a file name
// argument, so spaces and backslashes survive.
func quoteFilename(path string) string {
	return `"` + filenameEscaper.Replace(path) + `"`
}

// Parse parses the GDB output
func (s *ReadMemoryScript) Parse(output string) (*Result, error) {
	result := NewResult()

	if completed(output) {
		result.Success = true
		result.BytesRead = int(s.size)
		result.SetData("start_address", s.startAddress)
		result.SetData("output_file", s.outputFile)
		return result, nil
	}

	if m := cannotAccessPattern.FindStringSubmatch(output); m != nil {
		addr, _ := strconv.ParseUint(strings.TrimPrefix(m[1], "0x"), 16, 64)
		result.Error = fmt.Errorf("cannot access memory at 0x%x: address may be invalid or not accessible", addr)
		return result, nil
	}
	result.Error = fmt.Errorf("memory dump failed: %s", orUnknown(firstErrorLine(output)))
	return result, nil
}
