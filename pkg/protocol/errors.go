package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed       = errors.New("malformed message")
	ErrNotAnnouncement = errors.New("not an announcement")
	ErrLineTooLong     = errors.New("line too long")
	ErrNoFile          = errors.New("no such file")
	ErrRejected        = errors.New("request rejected")
)

// ParseError describes one field of network input that could not be parsed.
// It always matches ErrMalformed.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("protocol: invalid %s %q", e.Field, e.Value)
	}
	return fmt.Sprintf("protocol: invalid %s %q: %s", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrMalformed
}
