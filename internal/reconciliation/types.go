package reconciliation

import (
	"errors"
	"fmt"

	"diyscan/internal/similarity"
)

const (
	// DefaultSimilarityThreshold is the minimum ratio a fuzzy candidate needs.
	DefaultSimilarityThreshold = 0.7

	// DefaultMaxCandidates is how many ranked candidates a fuzzy search keeps.
	DefaultMaxCandidates = 1
)

// ErrInvalidConfig is returned by New when the Config is out of range.
var ErrInvalidConfig = errors.New("invalid reconciler configuration")

// Config tunes fuzzy matching.
type Config struct {
	// SimilarityThreshold is the inclusive lower bound, in [0, 1], a catalog
	// entry's similarity must reach to be accepted for a line.
	SimilarityThreshold float64

	// MaxCandidates is how many ranked candidates are kept per fuzzy search.
	// Only the best is accepted; the rest are reported as alternatives.
	MaxCandidates int
}

// DefaultConfig returns the reference tuning: threshold 0.7, one candidate.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: DefaultSimilarityThreshold,
		MaxCandidates:       DefaultMaxCandidates,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if !(c.SimilarityThreshold >= 0 && c.SimilarityThreshold <= 1) {
		return fmt.Errorf("%w: similarity threshold %v outside [0, 1]", ErrInvalidConfig, c.SimilarityThreshold)
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("%w: max candidates must be at least 1, got %d", ErrInvalidConfig, c.MaxCandidates)
	}
	return nil
}

// OutcomeKind classifies what happened to a single raw line.
type OutcomeKind int

const (
	// OutcomeEmpty means the line held no text and was discarded.
	OutcomeEmpty OutcomeKind = iota
	// OutcomeExact means the line is a catalog entry verbatim.
	OutcomeExact
	// OutcomeFuzzy means the line was resolved to its closest catalog entry.
	OutcomeFuzzy
	// OutcomeUnmatched means no catalog entry was close enough.
	OutcomeUnmatched
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeEmpty:
		return "empty"
	case OutcomeExact:
		return "exact"
	case OutcomeFuzzy:
		return "fuzzy"
	case OutcomeUnmatched:
		return "unmatched"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the classification of one raw line.
type Outcome struct {
	Kind OutcomeKind

	// Line is the normalised input line.
	Line string

	// Match is the accepted catalog entry; empty for empty and unmatched lines.
	Match string

	// Score is the similarity of Line to Match (1 for exact matches).
	Score float64

	// Alternatives are the runner-up candidates of a fuzzy search, best first.
	Alternatives []similarity.Match
}

// Matched reports whether the line contributes an item to the result.
func (o Outcome) Matched() bool {
	return o.Kind == OutcomeExact || o.Kind == OutcomeFuzzy
}

// FuzzyMatch records a distinct line that needed fuzzy matching, for
// auditing false positives.
type FuzzyMatch struct {
	Line         string             `json:"line"`
	Match        string             `json:"match"`
	Score        float64            `json:"score"`
	Count        int                `json:"count"`
	Alternatives []similarity.Match `json:"alternatives,omitempty"`
}

// Stats counts raw lines by outcome.
type Stats struct {
	Lines     int `json:"lines"`
	Empty     int `json:"empty"`
	Exact     int `json:"exact"`
	Fuzzy     int `json:"fuzzy"`
	Unmatched int `json:"unmatched"`
}

// Result is the reconciled output of a line sequence.
type Result struct {
	// Items are the matched catalog entries, sorted and unique.
	Items []string `json:"items"`

	// Fuzzy lists each distinct fuzzily resolved line in first-seen order.
	Fuzzy []FuzzyMatch `json:"fuzzy,omitempty"`

	// Unmatched lists each distinct dropped line in first-seen order.
	Unmatched []string `json:"unmatched,omitempty"`

	Stats Stats `json:"stats"`
}
