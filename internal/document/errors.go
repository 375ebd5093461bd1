package document

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the source file does not exist.
var ErrNotFound = errors.New("document not found")

// LoadError reports a source file that exists but could not be read or
// parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
