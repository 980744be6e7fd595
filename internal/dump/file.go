package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic writes path through a temporary file in the same directory
// and renames it into place, so readers never see a partial file.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := bw.Flush(); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Chmod(0644); err != nil {
		return &IOError{Op: "chmod", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		committed = true
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	committed = true
	return nil
}

// WriteBinary writes data to path verbatim, replacing any existing file.
func WriteBinary(path string, data []byte) error {
	return WriteAtomic(path, func(w io.Writer) error {
		n, err := w.Write(data)
		if err == nil && n != len(data) {
			err = fmt.Errorf("short write: %d of %d bytes", n, len(data))
		}
		return err
	})
}

// WriteIntelHex writes data to path as Intel HEX with the first byte at addr.
func WriteIntelHex(path string, addr uint32, data []byte) error {
	return WriteAtomic(path, func(w io.Writer) error {
		return EncodeIntelHex(w, addr, data)
	})
}
