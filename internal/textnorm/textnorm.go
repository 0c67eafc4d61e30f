// Package textnorm normalises item names and OCR lines into the form used
// for catalog lookups: trimmed, NFC-composed and lowercase.
package textnorm

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize trims surrounding whitespace, composes the string to NFC and
// lowercases it. The result is empty when s holds only whitespace.
func Normalize(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}

	// A Caser keeps state between calls, so each call gets its own.
	lower := cases.Lower(language.Und)
	return lower.String(norm.NFC.String(trimmed))
}

// IsBlank reports whether s normalises to the empty string.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
