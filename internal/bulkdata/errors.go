package bulkdata

import "fmt"

// HTTPError is returned when the index or the download endpoint answers with
// a non-success status.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// ShapeError is returned when the index payload, or the matching entry in it,
// does not have the expected structure.
type ShapeError struct {
	Reason string
	Err    error
}

func (e *ShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected bulk-data payload shape: %s: %v", e.Reason, e.Err)
	}
	return "unexpected bulk-data payload shape: " + e.Reason
}

func (e *ShapeError) Unwrap() error { return e.Err }

// NotFoundError is returned when no index entry has the requested type.
type NotFoundError struct {
	Type string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %q entry found in bulk-data index", e.Type)
}
