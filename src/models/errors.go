package models

import (
	"errors"
	"fmt"
)

// ErrClosedPosition rejects appending a transaction to a position whose
// quantities have already netted to zero. Callers must open a new position
// for the symbol instead.
var ErrClosedPosition = errors.New("cannot modify a closed position")

// DataError marks an uploaded file the parser could not make sense of
// (missing required columns, unparseable structure). It is surfaced to the
// end user as "re-download in the expected format" and never retried.
type DataError struct {
	Filename string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed activity file %s", e.Filename)
	}
	return fmt.Sprintf("malformed activity file %s: %v", e.Filename, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }
