// Package catalog loads the reference set of canonical item names that OCR
// output is reconciled against.
//
// A catalog source is a sequence of records whose first positional field is
// an item name; any further fields are ignored. Supported encodings:
//   - JSON: an array of arrays (or of bare strings), e.g. [["acorn", 1], ["bamboo rod", 2]]
//   - YAML: the same shape as a YAML sequence
//   - CSV: one record per row, no header
//
// Names are normalised (trimmed, NFC, lowercase) and deduplicated. The result
// is immutable and safe to share between goroutines; load it once per run and
// pass it to whoever needs it.
package catalog

import (
	"slices"

	"diyscan/internal/textnorm"
)

// Catalog is an immutable set of canonical item names.
type Catalog struct {
	names []string
	set   map[string]struct{}
}

// New builds a catalog from names. Names are normalised and deduplicated;
// blank names are skipped. The first occurrence fixes a name's position.
func New(names ...string) *Catalog {
	c := &Catalog{
		names: make([]string, 0, len(names)),
		set:   make(map[string]struct{}, len(names)),
	}
	for _, name := range names {
		c.add(name)
	}
	return c
}

// add inserts name and reports whether it was new.
func (c *Catalog) add(name string) bool {
	normalized := textnorm.Normalize(name)
	if normalized == "" {
		return false
	}
	if _, ok := c.set[normalized]; ok {
		return false
	}
	c.set[normalized] = struct{}{}
	c.names = append(c.names, normalized)
	return true
}

// Contains reports whether name is a catalog entry. name must already be
// normalised; no case folding happens here.
func (c *Catalog) Contains(name string) bool {
	if c == nil {
		return false
	}
	_, ok := c.set[name]
	return ok
}

// Len returns the number of unique names.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// Names returns the entries in load order. The slice is shared; callers
// must not modify it.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return c.names
}

// Sorted returns a sorted copy of the entries.
func (c *Catalog) Sorted() []string {
	sorted := slices.Clone(c.Names())
	slices.Sort(sorted)
	return sorted
}
