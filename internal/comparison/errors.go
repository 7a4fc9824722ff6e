package comparison

import (
	"errors"
	"fmt"
)

// ErrMissingInput is returned when the original image does not exist.
var ErrMissingInput = errors.New("input image not found")

// MissingOutputError reports a tool run that exited cleanly but left no file.
type MissingOutputError struct {
	Name string
	Path string
	Err  error
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("variant %q produced no output at %s: %v", e.Name, e.Path, e.Err)
}

func (e *MissingOutputError) Unwrap() error {
	return e.Err
}
