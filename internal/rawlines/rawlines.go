// Package rawlines stores and replays the per-frame OCR text lines that feed
// reconciliation. A Source is a lazy, single-pass sequence; a Writer appends
// recognised text to a line file.
package rawlines

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// maxLineSize bounds a single stored line. OCR of one cropped text row never
// comes close; the limit only guards against feeding a binary file by mistake.
const maxLineSize = 1 << 20

// Source yields the lines of a reader in order, once.
type Source struct {
	scanner  *bufio.Scanner
	closer   io.Closer
	consumed bool
	err      error
}

// NewSource wraps r. Lines are yielded with their trailing newline (and any
// carriage return) removed; no other normalisation is applied.
func NewSource(r io.Reader) *Source {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Source{scanner: scanner}
}

// Open returns a Source reading the file at path. Close it when done.
func Open(path string) (*Source, error) {
	const op = "Open"

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open raw line file: %w", op, err)
	}

	src := NewSource(file)
	src.closer = file
	return src, nil
}

// All returns the line sequence. The sequence can be ranged over once; later
// calls yield nothing. Stopping early leaves the remaining lines unread.
func (s *Source) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		if s.consumed {
			return
		}
		s.consumed = true

		for s.scanner.Scan() {
			if !yield(strings.TrimRight(s.scanner.Text(), "\r")) {
				return
			}
		}
		if err := s.scanner.Err(); err != nil {
			s.err = fmt.Errorf("read raw lines: %w", err)
		}
	}
}

// Err returns the read error that ended the sequence, if any.
func (s *Source) Err() error {
	return s.err
}

// Close closes the underlying file for sources created by Open.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Writer appends non-empty lines to an underlying writer.
type Writer struct {
	w       *bufio.Writer
	closer  io.Closer
	written int
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Append opens path for appending, creating it if needed.
func Append(path string) (*Writer, error) {
	const op = "Append"

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open raw line file: %w", op, err)
	}

	w := NewWriter(file)
	w.closer = file
	return w, nil
}

// Write appends line followed by a newline. Blank lines are skipped and
// report false. Embedded line breaks are folded to spaces so one call always
// produces one stored line.
func (w *Writer) Write(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	line = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(line)

	if _, err := w.w.WriteString(line + "\n"); err != nil {
		return false, fmt.Errorf("write raw line: %w", err)
	}
	w.written++
	return true, nil
}

// Written returns the number of lines stored so far.
func (w *Writer) Written() int {
	return w.written
}

// Flush writes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes and, for writers created by Append, closes the file.
func (w *Writer) Close() error {
	flushErr := w.Flush()
	if w.closer == nil {
		return flushErr
	}
	if err := w.closer.Close(); err != nil && flushErr == nil {
		return err
	}
	return flushErr
}
