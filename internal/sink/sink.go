package sink

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Sink receives transcoded NDJSON lines.
//
// A Sink is owned by a single caller for its whole life and is not safe for
// concurrent use. Close flushes any buffered or compressed data; it must be
// called on every exit path, and calling it more than once is harmless.
type Sink interface {
	// Path identifies the destination in logs.
	Path() string
	// Write persists one complete line, newline included.
	Write(line []byte) error
	// Close flushes and finalises the destination.
	Close() error
	// Abort releases the sink when no data will ever be written, leaving an
	// untouched destination as it was.
	Abort() error
}

// Kind selects how a file sink encodes its bytes on disk.
type Kind int

// On-disk encodings, picked by KindForPath.
const (
	KindPlain Kind = iota
	KindGzip
	KindZstd
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindGzip:
		return "gzip"
	case KindZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// KindForPath picks the encoding from the file extension: ".gz" is gzip,
// ".zst" is zstd, anything else is plain text.
func KindForPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return KindGzip
	case ".zst":
		return KindZstd
	default:
		return KindPlain
	}
}

// OpenAll opens one file sink per path, in order. If any path fails, the
// sinks opened so far are aborted before the error is returned, so no
// destination is touched.
func OpenAll(paths []string) ([]Sink, error) {
	sinks := make([]Sink, 0, len(paths))
	for _, p := range paths {
		s, err := Open(p)
		if err != nil {
			return nil, errors.Join(err, AbortAll(sinks))
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// CloseAll closes every sink, even after a failure, and returns the joined
// close errors.
func CloseAll(sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", s.Path(), err))
			continue
		}
		logrus.Debugf("closed output %s", s.Path())
	}
	return errors.Join(errs...)
}

// AbortAll aborts every sink and returns the joined errors.
func AbortAll(sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Abort(); err != nil {
			errs = append(errs, fmt.Errorf("failed to abort %s: %w", s.Path(), err))
			continue
		}
		logrus.Debugf("released output %s untouched", s.Path())
	}
	return errors.Join(errs...)
}
