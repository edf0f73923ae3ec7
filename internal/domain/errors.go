package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode means the input could not be decoded as UTF-8 or Latin-1.
	ErrDecode = errors.New("decode error")

	// ErrStructure means the file had no usable data: no rows after the
	// header, no row wide enough for the configured columns, or no row that
	// survived validation.
	ErrStructure = errors.New("structural parse error")

	// ErrInvalidArgument is returned for out-of-range aggregation parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ParseError is a file-scoped parse failure. Kind is one of ErrDecode or
// ErrStructure; both Kind and the underlying cause match with errors.Is.
type ParseError struct {
	File string
	Kind error
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse %s: %v", e.File, e.Kind)
	}
	return fmt.Sprintf("parse %s: %v: %v", e.File, e.Kind, e.Err)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ErrorKind returns a short label for err suitable for metrics and API
// responses: "decode", "structure", "invalid_argument" or "other".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrStructure):
		return "structure"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "other"
	}
}

func invalidMonth(month int) error {
	return fmt.Errorf("%w: month %d outside 1-12", ErrInvalidArgument, month)
}
