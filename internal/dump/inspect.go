package dump

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Summary describes an existing dump pair on disk.
type Summary struct {
	Pair Pair

	BinPath   string
	BinExists bool
	BinSize   int64

	HexPath    string
	HexExists  bool
	HexAddress uint32
	HexSize    int

	// Match reports whether the hex payload equals the binary file
	Match bool
}

// Inspect summarises the files of pair in the writer's directory. Missing
// files are reported, not treated as errors.
func (w *Writer) Inspect(pair Pair) (Summary, error) {
	s := Summary{Pair: pair, BinPath: w.Path(pair.Bin), HexPath: w.Path(pair.Hex)}

	bin, err := os.ReadFile(s.BinPath)
	switch {
	case err == nil:
		s.BinExists = true
		s.BinSize = int64(len(bin))
	case errors.Is(err, fs.ErrNotExist):
	default:
		return s, &IOError{Op: "read", Path: s.BinPath, Err: err}
	}

	seg, err := ReadIntelHex(s.HexPath)
	switch {
	case err == nil:
		s.HexExists = true
		s.HexAddress = seg.Address
		s.HexSize = len(seg.Data)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return s, err
	}

	s.Match = s.BinExists && s.HexExists && string(bin) == string(seg.Data)
	return s, nil
}

func hexAddr(addr uint32) string {
	return fmt.Sprintf("0x%08x", addr)
}
