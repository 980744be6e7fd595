package dump

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Pair names the two files written for one region.
type Pair struct {
	// Name labels the region in logs and reports ("rom", "ram")
	Name string
	// Bin is the raw binary file name
	Bin string
	// Hex is the Intel HEX file name
	Hex string
}

// Files are the paths written for one region.
type Files struct {
	Bin string
	Hex string
}

// Writer writes region dumps into an output directory.
type Writer struct {
	// Dir is the output directory; "" means the working directory
	Dir string
	Log *zap.Logger
}

// NewWriter returns a Writer for dir.
func NewWriter(dir string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{Dir: dir, Log: log}
}

// Path returns the output path of a file name.
func (w *Writer) Path(name string) string {
	if w.Dir == "" {
		return name
	}
	return filepath.Join(w.Dir, name)
}

// EnsureDir creates the output directory if needed.
func (w *Writer) EnsureDir() error {
	if w.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return &IOError{Op: "mkdir", Path: w.Dir, Err: err}
	}
	return nil
}

// WriteRegion writes data as both the binary and the Intel HEX file of
// pair. The binary is written first; if the hex file fails the binary
// stays on disk.
func (w *Writer) WriteRegion(pair Pair, addr uint32, data []byte) (Files, error) {
	files := Files{Bin: w.Path(pair.Bin), Hex: w.Path(pair.Hex)}

	if err := WriteBinary(files.Bin, data); err != nil {
		return files, err
	}
	w.Log.Info("binary dump written",
		zap.String("region", pair.Name),
		zap.String("path", files.Bin),
		zap.Int("bytes", len(data)),
	)

	if err := WriteIntelHex(files.Hex, addr, data); err != nil {
		return files, err
	}
	w.Log.Info("intel hex dump written",
		zap.String("region", pair.Name),
		zap.String("path", files.Hex),
		zap.String("address", hexAddr(addr)),
	)
	return files, nil
}
