package dump

import "fmt"

// IOError represents a failure to create or write an output file.
type IOError struct {
	// Op is the failed operation (create, write, rename, read, ...)
	Op string
	// Path is the destination file
	Path string
	// Underlying error
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
