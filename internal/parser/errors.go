package parser

import "fmt"

// SyntaxError reports a document that is not a well-formed array of JSON
// objects. Index is the zero-based element being read, or -1 when the
// document itself is the problem.
type SyntaxError struct {
	Index  int
	Offset int64
	Reason string
	Err    error
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("invalid card array at element %d (offset %d): %s", e.Index, e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// SerializationError reports a value that cannot be written as JSON, even
// after decimal literals are converted to floating point.
type SerializationError struct {
	Index int
	Value string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize value %s in element %d: %v", e.Value, e.Index, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
