package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const bufferSize = 256 << 10

// FileSink writes lines to a file, optionally through a compressor. The
// layering is line -> bufio -> compressor -> file.
//
// The file is created (or truncated) by the first Write, or by Close when
// nothing was written, so an existing file survives until data is about to
// replace it. Abort releases a sink that never touched its file.
type FileSink struct {
	path string
	kind Kind

	file   *os.File
	comp   io.WriteCloser // nil for plain files
	writer *bufio.Writer
	closed bool
}

// Open prepares a sink for path and picks the encoding with KindForPath.
// The parent directory must already exist; the file itself is not touched
// yet. Re-running with the same path replaces earlier content.
func Open(path string) (*FileSink, error) {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open output %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to open output %s: %s is not a directory", path, dir)
	}
	return &FileSink{path: path, kind: KindForPath(path)}, nil
}

// create truncates the destination and builds the writer chain.
func (s *FileSink) create() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("failed to create output %s: %w", s.path, err)
	}

	var dst io.Writer = f
	switch s.kind {
	case KindGzip:
		s.comp = gzip.NewWriter(f)
		dst = s.comp
	case KindZstd:
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to initialise zstd writer for %s: %w", s.path, err)
		}
		s.comp = zw
		dst = zw
	}
	s.file = f
	s.writer = bufio.NewWriterSize(dst, bufferSize)
	return nil
}

// Path returns the destination file path.
func (s *FileSink) Path() string { return s.path }

// Kind reports the on-disk encoding chosen from the path.
func (s *FileSink) Kind() Kind { return s.kind }

// Write appends one line, creating the file on first use.
func (s *FileSink) Write(line []byte) error {
	if s.closed {
		return fmt.Errorf("write to closed sink %s", s.path)
	}
	if s.file == nil {
		if err := s.create(); err != nil {
			return err
		}
	}
	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write to %s: %w", s.path, err)
	}
	return nil
}

// Close flushes the buffer, finishes the compressed stream and closes the
// file. A sink that was never written still produces an empty (but valid)
// output. Every step runs even if an earlier one failed; the first error wins.
func (s *FileSink) Close() error {
	if s.closed {
		return nil
	}
	if s.file == nil {
		if err := s.create(); err != nil {
			s.closed = true
			return err
		}
	}
	s.closed = true

	err := s.writer.Flush()
	if s.comp != nil {
		if cerr := s.comp.Close(); err == nil {
			err = cerr
		}
	}
	if ferr := s.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// Abort releases the sink without creating its file. If data was already
// written it behaves like Close, since the file has been replaced anyway.
func (s *FileSink) Abort() error {
	if s.closed {
		return nil
	}
	if s.file == nil {
		s.closed = true
		return nil
	}
	return s.Close()
}
