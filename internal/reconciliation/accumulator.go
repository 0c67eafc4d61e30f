package reconciliation

import (
	"slices"

	"diyscan/internal/textnorm"
)

// Accumulator collects outcomes line by line. The result can be read at any
// point, so a host that stops feeding lines early still holds a valid
// partial result. An Accumulator is not safe for concurrent use.
type Accumulator struct {
	r *Reconciler

	items map[string]struct{}

	// outcomes caches classifications by normalised line; the same text
	// typically repeats across many consecutive frames.
	outcomes map[string]Outcome

	fuzzy      []FuzzyMatch
	fuzzyIndex map[string]int

	unmatched      map[string]struct{}
	unmatchedOrder []string

	stats Stats
}

// Add classifies one raw line and folds it into the result.
func (a *Accumulator) Add(line string) Outcome {
	a.stats.Lines++

	normalized := textnorm.Normalize(line)
	outcome, cached := a.outcomes[normalized]
	if !cached {
		outcome = a.r.classify(normalized)
		a.outcomes[normalized] = outcome
	}

	switch outcome.Kind {
	case OutcomeEmpty:
		a.stats.Empty++
	case OutcomeExact:
		a.stats.Exact++
		a.items[outcome.Match] = struct{}{}
	case OutcomeFuzzy:
		a.stats.Fuzzy++
		a.items[outcome.Match] = struct{}{}
		a.recordFuzzy(outcome)
	case OutcomeUnmatched:
		a.stats.Unmatched++
		if _, ok := a.unmatched[outcome.Line]; !ok {
			a.unmatched[outcome.Line] = struct{}{}
			a.unmatchedOrder = append(a.unmatchedOrder, outcome.Line)
			a.r.log.Debug().Str("line", outcome.Line).Msg("Dropped unmatched line")
		}
	}

	return outcome
}

func (a *Accumulator) recordFuzzy(outcome Outcome) {
	if i, ok := a.fuzzyIndex[outcome.Line]; ok {
		a.fuzzy[i].Count++
		return
	}

	a.fuzzyIndex[outcome.Line] = len(a.fuzzy)
	a.fuzzy = append(a.fuzzy, FuzzyMatch{
		Line:         outcome.Line,
		Match:        outcome.Match,
		Score:        outcome.Score,
		Count:        1,
		Alternatives: outcome.Alternatives,
	})

	a.r.log.Info().
		Str("line", outcome.Line).
		Str("match", outcome.Match).
		Float64("score", outcome.Score).
		Int("alternatives", len(outcome.Alternatives)).
		Msg("Resolved line by fuzzy match")
}

// Stats returns the counts so far.
func (a *Accumulator) Stats() Stats {
	return a.stats
}

// Result returns a snapshot of the accumulated result. Later calls to Add do
// not affect a returned Result.
func (a *Accumulator) Result() *Result {
	items := make([]string, 0, len(a.items))
	for item := range a.items {
		items = append(items, item)
	}
	slices.Sort(items)

	return &Result{
		Items:     items,
		Fuzzy:     slices.Clone(a.fuzzy),
		Unmatched: slices.Clone(a.unmatchedOrder),
		Stats:     a.stats,
	}
}
