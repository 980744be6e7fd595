package dump

import (
	"fmt"
	"io"
	"os"

	"github.com/marcinbor85/gohex"
)

// hexLineLength is the number of data bytes per record.
const hexLineLength = 16

// EncodeIntelHex writes data as Intel HEX records starting at addr:
// extended linear address records where the upper 16 bits change, 16 data
// bytes per record and a final EOF record. An empty buffer produces only
// the EOF record. The last byte must sit below 0xffffffff: gohex computes
// segment ends in 32 bits.
func EncodeIntelHex(w io.Writer, addr uint32, data []byte) error {
	if len(data) > 0 && uint64(addr)+uint64(len(data)) >= 1<<32 {
		return fmt.Errorf("%d bytes at 0x%08x reach the end of the 32-bit address space", len(data), addr)
	}

	mem := gohex.NewMemory()
	if len(data) > 0 {
		if err := mem.AddBinary(addr, data); err != nil {
			return fmt.Errorf("failed to add data at 0x%08x: %w", addr, err)
		}
	}
	return mem.DumpIntelHex(w, hexLineLength)
}

// Segment is a contiguous block decoded from an Intel HEX file.
type Segment struct {
	Address uint32
	Data    []byte
}

// DecodeIntelHex parses Intel HEX from r. A file holding only the EOF
// record yields an empty segment at address 0.
func DecodeIntelHex(r io.Reader) (Segment, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return Segment{}, err
	}

	segments := mem.GetDataSegments()
	switch len(segments) {
	case 0:
		return Segment{Data: []byte{}}, nil
	case 1:
		return Segment{Address: segments[0].Address, Data: segments[0].Data}, nil
	default:
		return Segment{}, fmt.Errorf("unexpected number of segments (%d)", len(segments))
	}
}

// ReadIntelHex decodes the Intel HEX file at path.
func ReadIntelHex(path string) (Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return Segment{}, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	seg, err := DecodeIntelHex(f)
	if err != nil {
		return Segment{}, &IOError{Op: "parse", Path: path, Err: err}
	}
	return seg, nil
}
