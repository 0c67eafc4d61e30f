// Package output writes the reconciled item list and compares finished lists
// against a hand-checked reference.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"diyscan/internal/logger"
	"diyscan/internal/rawlines"
)

// DefaultLabel is appended to every item name in the result file.
const DefaultLabel = " DIY"

// WriteResult writes one "<item><label>" line per item to path. The content
// goes to a temporary file in the same directory first and is renamed over
// path, so an existing file is only replaced by a complete one.
func WriteResult(path string, items []string, label string) error {
	const op = "WriteResult"

	var b strings.Builder
	for _, item := range items {
		b.WriteString(item)
		b.WriteString(label)
		b.WriteByte('\n')
	}

	if err := writeAtomic(path, []byte(b.String())); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log := logger.WithComponent("output")
	log.Info().
		Str("path", path).
		Int("items", len(items)).
		Msg("Result written")
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	// CreateTemp uses 0600.
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move result into place: %w", err)
	}
	return nil
}

// ReadLines returns the trimmed, non-empty lines of the file at path.
func ReadLines(path string) ([]string, error) {
	const op = "ReadLines"

	src, err := rawlines.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer src.Close()

	var lines []string
	for line := range src.All() {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return lines, nil
}

// Comparison is the difference between a scan result and the expected list.
type Comparison struct {
	// Missing are expected lines absent from the result, sorted.
	Missing []string `json:"missing"`

	// Unexpected are result lines absent from the expected list, sorted.
	Unexpected []string `json:"unexpected"`

	Captured int `json:"captured"`
	Expected int `json:"expected"`

	// PercentCaptured is Captured/Expected*100, or 0 for an empty expected list.
	PercentCaptured float64 `json:"percent_captured"`
}

// Compare checks result against expected. Duplicates count once on both sides.
func Compare(result, expected []string) Comparison {
	got := toSet(result)
	want := toSet(expected)

	cmp := Comparison{Expected: len(want)}
	for line := range want {
		if _, ok := got[line]; ok {
			cmp.Captured++
		} else {
			cmp.Missing = append(cmp.Missing, line)
		}
	}
	for line := range got {
		if _, ok := want[line]; !ok {
			cmp.Unexpected = append(cmp.Unexpected, line)
		}
	}
	slices.Sort(cmp.Missing)
	slices.Sort(cmp.Unexpected)

	if cmp.Expected > 0 {
		cmp.PercentCaptured = float64(cmp.Captured) / float64(cmp.Expected) * 100
	}
	return cmp
}

func toSet(lines []string) map[string]struct{} {
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			set[line] = struct{}{}
		}
	}
	return set
}
