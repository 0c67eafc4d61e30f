// Package reconciliation turns the noisy, repetitive text lines read from
// video frames into the set of catalog entries they stand for.
//
// Each line is normalised and then matched in two steps: an exact catalog
// lookup, and only when that fails, a fuzzy search for the closest entry
// whose similarity reaches the configured threshold. Lines that match
// nothing are dropped; they are expected OCR noise, not errors. Because the
// result is a set, the dozens of frames showing the same item collapse into
// one entry.
package reconciliation

import (
	"context"
	"iter"

	"github.com/rs/zerolog"

	"diyscan/internal/catalog"
	"diyscan/internal/logger"
	"diyscan/internal/similarity"
	"diyscan/internal/textnorm"
)

type closeMatchFunc func(word string, candidates []string, n int, cutoff float64) []similarity.Match

// Reconciler classifies raw lines against a catalog. It holds no mutable
// state and may be shared between goroutines.
type Reconciler struct {
	catalog      *catalog.Catalog
	cfg          Config
	closeMatches closeMatchFunc
	log          zerolog.Logger
}

// New creates a Reconciler for cat. A nil catalog behaves as an empty one.
func New(cat *catalog.Catalog, cfg Config) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cat == nil {
		cat = catalog.New()
	}

	return &Reconciler{
		catalog:      cat,
		cfg:          cfg,
		closeMatches: similarity.CloseMatches,
		log:          logger.WithComponent("reconciler"),
	}, nil
}

// Config returns the configuration the Reconciler was built with.
func (r *Reconciler) Config() Config {
	return r.cfg
}

// Classify normalises line and matches it against the catalog.
func (r *Reconciler) Classify(line string) Outcome {
	return r.classify(textnorm.Normalize(line))
}

// classify expects an already normalised line.
func (r *Reconciler) classify(line string) Outcome {
	if line == "" {
		return Outcome{Kind: OutcomeEmpty}
	}

	if r.catalog.Contains(line) {
		return Outcome{Kind: OutcomeExact, Line: line, Match: line, Score: 1}
	}

	matches := r.closeMatches(line, r.catalog.Names(), r.cfg.MaxCandidates, r.cfg.SimilarityThreshold)
	if len(matches) == 0 {
		return Outcome{Kind: OutcomeUnmatched, Line: line}
	}

	outcome := Outcome{
		Kind:  OutcomeFuzzy,
		Line:  line,
		Match: matches[0].Candidate,
		Score: matches[0].Score,
	}
	if len(matches) > 1 {
		outcome.Alternatives = matches[1:]
	}
	return outcome
}

// Reconcile consumes lines to exhaustion and returns the reconciled result.
func (r *Reconciler) Reconcile(lines iter.Seq[string]) *Result {
	result, _ := r.ReconcileContext(context.Background(), lines)
	return result
}

// ReconcileContext consumes lines in order, checking ctx after each line. When
// ctx is done it stops consuming and returns the result so far together with
// the context error; that partial result covers every line pulled from lines.
func (r *Reconciler) ReconcileContext(ctx context.Context, lines iter.Seq[string]) (*Result, error) {
	acc := r.NewAccumulator()

	var err error
	for line := range lines {
		acc.Add(line)
		if err = ctx.Err(); err != nil {
			break
		}
	}

	result := acc.Result()
	event := r.log.Info()
	if err != nil {
		event = r.log.Warn().Err(err)
	}
	event.
		Int("lines", result.Stats.Lines).
		Int("empty", result.Stats.Empty).
		Int("exact", result.Stats.Exact).
		Int("fuzzy", result.Stats.Fuzzy).
		Int("unmatched", result.Stats.Unmatched).
		Int("items", len(result.Items)).
		Msg("Reconciliation finished")

	return result, err
}

// NewAccumulator starts an incremental reconciliation.
func (r *Reconciler) NewAccumulator() *Accumulator {
	return &Accumulator{
		r:          r,
		items:      make(map[string]struct{}),
		outcomes:   make(map[string]Outcome),
		fuzzyIndex: make(map[string]int),
		unmatched:  make(map[string]struct{}),
	}
}
