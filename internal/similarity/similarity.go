// Package similarity scores how alike two strings are and ranks the closest
// candidates for a word.
//
// Scores are Ratcliff/Obershelp ratios computed by difflib's SequenceMatcher
// over the runes of each string: 2*M/T, where M is the number of runes in
// matching blocks and T the total rune count of both strings. A score of 1.0
// means the strings are identical, 0.0 that they share nothing.
package similarity

import (
	"cmp"
	"slices"

	"github.com/pmezard/go-difflib/difflib"
)

// Match is a candidate together with its similarity to the searched word.
type Match struct {
	Candidate string
	Score     float64
}

// Ratio returns the similarity of a and b in [0, 1].
func Ratio(a, b string) float64 {
	m := difflib.NewMatcher(runes(a), runes(b))
	return m.Ratio()
}

// CloseMatches returns at most n candidates whose similarity to word is at
// least cutoff, best first.
//
// Each candidate goes through the cheap upper bounds (RealQuickRatio, then
// QuickRatio) before the full ratio is computed, so large candidate lists stay
// affordable. Candidates sharing a score are ordered by descending string
// value, which keeps the ranking independent of the order of candidates.
func CloseMatches(word string, candidates []string, n int, cutoff float64) []Match {
	if n <= 0 || !(cutoff >= 0 && cutoff <= 1) {
		return nil
	}

	// word is the second sequence so its index is built once and reused.
	m := difflib.NewMatcher(nil, runes(word))

	var matches []Match
	for _, candidate := range candidates {
		m.SetSeq1(runes(candidate))
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		if score := m.Ratio(); score >= cutoff {
			matches = append(matches, Match{Candidate: candidate, Score: score})
		}
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(b.Candidate, a.Candidate)
	})

	if len(matches) > n {
		matches = matches[:n]
	}
	return matches
}

// Best returns the single closest candidate scoring at least cutoff.
func Best(word string, candidates []string, cutoff float64) (Match, bool) {
	matches := CloseMatches(word, candidates, 1, cutoff)
	if len(matches) == 0 {
		return Match{}, false
	}
	return matches[0], true
}

// runes splits s into one sequence element per rune.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
