package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrDataLoad = errors.New("data load failed")
	ErrSchema   = errors.New("schema mismatch")
)

// LoadError reports where ingestion stopped. Line is 1-based and counts the
// header; it is 0 when the failure is not tied to a line.
type LoadError struct {
	Path string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	switch {
	case e.Line > 0 && e.Path != "":
		return fmt.Sprintf("load %s line %d: %v", e.Path, e.Line, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("load line %d: %v", e.Line, e.Err)
	case e.Path != "":
		return fmt.Sprintf("load %s: %v", e.Path, e.Err)
	default:
		return "load: " + e.Err.Error()
	}
}

func (e *LoadError) Unwrap() []error { return []error{ErrDataLoad, e.Err} }
