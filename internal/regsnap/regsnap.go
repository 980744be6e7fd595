// Package regsnap writes the core register snapshot script loaded by
// uVision after the RAM image.
package regsnap

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/muurk/fwdump/internal/dump"
)

// Script describes the snapshot file.
type Script struct {
	// Load is the image named by the leading "load" directive
	Load string
	// Registers are written in this order
	Registers []string
}

// RegisterReader reads named core registers. probe.Session satisfies it.
type RegisterReader interface {
	ReadCoreRegister(ctx context.Context, name string) (uint32, error)
}

// Value is one register read from the target.
type Value struct {
	Name  string
	Value uint32
}

// ReadAll reads every register of names in order. The first failure is
// returned and no values are.
func ReadAll(ctx context.Context, reader RegisterReader, names []string) ([]Value, error) {
	values := make([]Value, 0, len(names))
	for _, name := range names {
		v, err := reader.ReadCoreRegister(ctx, name)
		if err != nil {
			return nil, err
		}
		values = append(values, Value{Name: name, Value: v})
	}
	return values, nil
}

// Render writes the script text: the load directive followed by one
// "name=0xvalue" line per register.
func Render(w io.Writer, load string, values []Value) error {
	if _, err := fmt.Fprintf(w, "load %s\n", load); err != nil {
		return err
	}
	for _, v := range values {
		if _, err := fmt.Fprintf(w, "%s=0x%x\n", v.Name, v.Value); err != nil {
			return err
		}
	}
	return nil
}

// Write reads all registers of script and then writes the file at path.
// Nothing is written unless every register could be read; an existing
// file is left untouched on failure.
func Write(ctx context.Context, path string, script Script, reader RegisterReader, log *zap.Logger) ([]Value, error) {
	if log == nil {
		log = zap.NewNop()
	}

	values, err := ReadAll(ctx, reader, script.Registers)
	if err != nil {
		log.Warn("register snapshot aborted, no file written",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if err := dump.WriteAtomic(path, func(w io.Writer) error {
		return Render(w, script.Load, values)
	}); err != nil {
		return nil, err
	}

	log.Info("register snapshot written",
		zap.String("path", path),
		zap.Int("registers", len(values)),
	)
	return values, nil
}
