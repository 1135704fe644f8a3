package ovation

import (
	"errors"
	"fmt"
)

// ErrMissingCoefficient is returned when an estimate reaches a cell that was
// never populated from a coefficient file (NaN).
var ErrMissingCoefficient = errors.New("missing coefficient")

// LoadError reports a coefficient file that is missing, truncated or malformed.
type LoadError struct {
	Path string
	Line int // 0 when the failure is not tied to a line
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// RangeError reports an unsupported identifier or an out-of-range bin index.
type RangeError struct {
	What  string
	Value any
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s out of range: %v", e.What, e.Value)
}

func checkBin(mltBin, mlatBin int) error {
	if mltBin < 0 || mltBin >= NumMLTBins {
		return &RangeError{What: "mlt bin", Value: mltBin}
	}
	if mlatBin < 0 || mlatBin >= NumMLatBins {
		return &RangeError{What: "mlat bin", Value: mlatBin}
	}
	return nil
}
