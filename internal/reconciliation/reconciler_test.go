package reconciliation

import (
	"context"
	"iter"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diyscan/internal/catalog"
	"diyscan/internal/similarity"
)

func newReconciler(t *testing.T, cfg Config, names ...string) *Reconciler {
	t.Helper()
	r, err := New(catalog.New(names...), cfg)
	require.NoError(t, err)
	return r
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "zero threshold", cfg: Config{SimilarityThreshold: 0, MaxCandidates: 1}},
		{name: "threshold one", cfg: Config{SimilarityThreshold: 1, MaxCandidates: 5}},
		{name: "negative threshold", cfg: Config{SimilarityThreshold: -0.1, MaxCandidates: 1}, wantErr: true},
		{name: "threshold above one", cfg: Config{SimilarityThreshold: 1.01, MaxCandidates: 1}, wantErr: true},
		{name: "NaN threshold", cfg: Config{SimilarityThreshold: math.NaN(), MaxCandidates: 1}, wantErr: true},
		{name: "no candidates", cfg: Config{SimilarityThreshold: 0.7, MaxCandidates: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				_, newErr := New(catalog.New("acorn"), tt.cfg)
				assert.ErrorIs(t, newErr, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.7, cfg.SimilarityThreshold)
	assert.Equal(t, 1, cfg.MaxCandidates)
}

func TestReconcileEndToEnd(t *testing.T) {
	r := newReconciler(t, DefaultConfig(), "acorn", "acorn stool", "bamboo rod")

	lines := []string{"", "acorn", "acorn", "acom stool", "completely unrelated junk", "bamboo rod"}
	result := r.Reconcile(slices.Values(lines))

	assert.Equal(t, []string{"acorn", "acorn stool", "bamboo rod"}, result.Items)

	require.Len(t, result.Fuzzy, 1)
	assert.Equal(t, "acom stool", result.Fuzzy[0].Line)
	assert.Equal(t, "acorn stool", result.Fuzzy[0].Match)
	assert.InDelta(t, 12.0/14.0, result.Fuzzy[0].Score, 1e-9)
	assert.Equal(t, 1, result.Fuzzy[0].Count)

	assert.Equal(t, []string{"completely unrelated junk"}, result.Unmatched)
	assert.Equal(t, Stats{Lines: 6, Empty: 1, Exact: 3, Fuzzy: 1, Unmatched: 1}, result.Stats)
}

func TestReconcileIdempotent(t *testing.T) {
	r := newReconciler(t, DefaultConfig(), "acorn", "acorn stool", "bamboo rod", "wooden chair")
	lines := []string{"bamboo r0d", "acorn", "", "wooden chalr", "junk", "acom stool", "acorn"}

	first := r.Reconcile(slices.Values(lines))
	second := r.Reconcile(slices.Values(lines))

	assert.Equal(t, first, second)
}

func TestReconcileSubsetOfCatalog(t *testing.T) {
	names := []string{"acorn", "acorn stool", "bamboo rod", "wooden chair", "log bench"}
	cat := catalog.New(names...)
	r, err := New(cat, Config{SimilarityThreshold: 0.3, MaxCandidates: 3})
	require.NoError(t, err)

	lines := []string{"acorm", "bamb0o", "wood", "log bnch", "qqqq", "chair", "stool", "rod", "a", "zzzzzzzzzzzzz"}
	result := r.Reconcile(slices.Values(lines))

	require.NotEmpty(t, result.Items)
	for _, item := range result.Items {
		assert.True(t, cat.Contains(item), "item %q is not a catalog entry", item)
	}
	for _, fm := range result.Fuzzy {
		assert.True(t, cat.Contains(fm.Match))
	}
}

func TestReconcileExactMatchSkipsFuzzySearch(t *testing.T) {
	r := newReconciler(t, DefaultConfig(), "acorn", "acorn stool")

	calls := 0
	r.closeMatches = func(word string, candidates []string, n int, cutoff float64) []similarity.Match {
		calls++
		return similarity.CloseMatches(word, candidates, n, cutoff)
	}

	result := r.Reconcile(slices.Values([]string{"acorn", "acorn stool", " ACORN "}))
	assert.Equal(t, []string{"acorn", "acorn stool"}, result.Items)
	assert.Equal(t, 0, calls)
	assert.Empty(t, result.Fuzzy)

	r.Reconcile(slices.Values([]string{"acom stool"}))
	assert.Equal(t, 1, calls)
}

func TestReconcileExactMatchWinsOverCloserLookingEntries(t *testing.T) {
	// "acorn" is exact even though "acorns" would also clear the threshold.
	r := newReconciler(t, Config{SimilarityThreshold: 0.5, MaxCandidates: 3}, "acorns", "acorn")

	outcome := r.Classify("acorn")
	assert.Equal(t, OutcomeExact, outcome.Kind)
	assert.Equal(t, "acorn", outcome.Match)
	assert.Equal(t, 1.0, outcome.Score)
	assert.Empty(t, outcome.Alternatives)
}

func TestReconcileThresholdBoundary(t *testing.T) {
	t.Run("exactly at threshold is accepted", func(t *testing.T) {
		r := newReconciler(t, DefaultConfig(), "abcdefghij")
		outcome := r.Classify("abcdefgxyz")
		assert.Equal(t, OutcomeFuzzy, outcome.Kind)
		assert.Equal(t, "abcdefghij", outcome.Match)
		assert.Equal(t, 0.7, outcome.Score)
	})

	t.Run("below threshold is rejected", func(t *testing.T) {
		r := newReconciler(t, DefaultConfig(), "abcdefghij")
		outcome := r.Classify("abcdefwxyz")
		assert.Equal(t, OutcomeUnmatched, outcome.Kind)
		assert.Empty(t, outcome.Match)
	})

	t.Run("accented ocr misread resolves", func(t *testing.T) {
		r := newReconciler(t, DefaultConfig(), "wooden chair")
		result := r.Reconcile(slices.Values([]string{"wooden chaír", "xyz"}))
		assert.Equal(t, []string{"wooden chair"}, result.Items)
		assert.Equal(t, []string{"xyz"}, result.Unmatched)
	})

	t.Run("threshold is configurable", func(t *testing.T) {
		r := newReconciler(t, Config{SimilarityThreshold: 0.6, MaxCandidates: 1}, "abcdefghij")
		assert.Equal(t, OutcomeFuzzy, r.Classify("abcdefwxyz").Kind)
	})
}

func TestReconcileDeduplicates(t *testing.T) {
	r := newReconciler(t, DefaultConfig(), "acorn stool", "bamboo rod")

	lines := make([]string, 0, 100)
	for i := 0; i < 50; i++ {
		lines = append(lines, "acorn stool", "acom stool")
	}
	result := r.Reconcile(slices.Values(lines))

	assert.Equal(t, []string{"acorn stool"}, result.Items)
	require.Len(t, result.Fuzzy, 1)
	assert.Equal(t, 50, result.Fuzzy[0].Count)
	assert.Equal(t, 50, result.Stats.Exact)
	assert.Equal(t, 50, result.Stats.Fuzzy)
}

func TestReconcileEmptyLines(t *testing.T) {
	r := newReconciler(t, DefaultConfig(), "acorn")

	result := r.Reconcile(slices.Values([]string{"", "   ", "\t", "\n"}))

	assert.Empty(t, result.Items)
	assert.Empty(t, result.Fuzzy)
	assert.Empty(t, result.Unmatched)
	assert.Equal(t, Stats{Lines: 4, Empty: 4}, result.Stats)
}

func TestReconcileEmptyCatalog(t *testing.T) {
	for _, cat := range []*catalog.Catalog{catalog.New(), nil} {
		r, err := New(cat, DefaultConfig())
		require.NoError(t, err)

		result := r.Reconcile(slices.Values([]string{"acorn", "bamboo rod", ""}))
		assert.Empty(t, result.Items)
		assert.Equal(t, 2, result.Stats.Unmatched)
	}
}

func TestReconcileSortedOutput(t *testing.T) {
	r := newReconciler(t, DefaultConfig(), "zen table", "acorn", "log bench", "bamboo rod")

	result := r.Reconcile(slices.Values([]string{"zen table", "log bench", "acorn", "bamboo rod"}))

	assert.True(t, slices.IsSorted(result.Items))
	assert.Equal(t, []string{"acorn", "bamboo rod", "log bench", "zen table"}, result.Items)
}

func TestReconcileAlternativesDoNotChangeItems(t *testing.T) {
	names := []string{"acorn", "acorn stool", "bamboo rod"}
	lines := []string{"acorm", "bamboo r0d"}

	single := newReconciler(t, Config{SimilarityThreshold: 0.4, MaxCandidates: 1}, names...)
	multi := newReconciler(t, Config{SimilarityThreshold: 0.4, MaxCandidates: 3}, names...)

	singleResult := single.Reconcile(slices.Values(lines))
	multiResult := multi.Reconcile(slices.Values(lines))

	assert.Equal(t, singleResult.Items, multiResult.Items)

	require.Len(t, multiResult.Fuzzy, 2)
	acorm := multiResult.Fuzzy[0]
	assert.Equal(t, "acorn", acorm.Match)
	require.Len(t, acorm.Alternatives, 1)
	assert.Equal(t, "acorn stool", acorm.Alternatives[0].Candidate)

	assert.Empty(t, singleResult.Fuzzy[0].Alternatives)
}

func TestReconcileConsumesSequenceOnce(t *testing.T) {
	r := newReconciler(t, DefaultConfig(), "acorn")

	pulled := 0
	lines := iter.Seq[string](func(yield func(string) bool) {
		for _, line := range []string{"acorn", "", "acorn"} {
			pulled++
			if !yield(line) {
				return
			}
		}
	})

	result := r.Reconcile(lines)
	assert.Equal(t, 3, pulled)
	assert.Equal(t, 3, result.Stats.Lines)
}

func TestReconcileContextStopsEarly(t *testing.T) {
	r := newReconciler(t, DefaultConfig(), "acorn", "bamboo rod", "log bench")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pulled := 0
	lines := iter.Seq[string](func(yield func(string) bool) {
		for _, line := range []string{"acorn", "bamboo rod", "log bench", "acorn"} {
			pulled++
			if pulled == 3 {
				cancel()
			}
			if !yield(line) {
				return
			}
		}
	})

	result, err := r.ReconcileContext(ctx, lines)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, pulled, "consumption stops at the first line after cancellation")
	assert.Equal(t, []string{"acorn", "bamboo rod", "log bench"}, result.Items, "the line pulled during cancellation is kept")
	assert.Equal(t, 3, result.Stats.Lines)
}

func TestAccumulator(t *testing.T) {
	r := newReconciler(t, DefaultConfig(), "acorn", "acorn stool")
	acc := r.NewAccumulator()

	assert.Equal(t, OutcomeExact, acc.Add("acorn").Kind)
	snapshot := acc.Result()

	assert.Equal(t, OutcomeFuzzy, acc.Add("acom stool").Kind)
	assert.Equal(t, OutcomeEmpty, acc.Add(" ").Kind)
	assert.Equal(t, OutcomeUnmatched, acc.Add("junk").Kind)
	assert.True(t, acc.Add("acom stool").Matched())

	assert.Equal(t, []string{"acorn"}, snapshot.Items, "earlier snapshot is unaffected")
	assert.Equal(t, Stats{Lines: 5, Empty: 1, Exact: 1, Fuzzy: 2, Unmatched: 1}, acc.Stats())
	assert.Equal(t, []string{"acorn", "acorn stool"}, acc.Result().Items)
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "empty", OutcomeEmpty.String())
	assert.Equal(t, "exact", OutcomeExact.String())
	assert.Equal(t, "fuzzy", OutcomeFuzzy.String())
	assert.Equal(t, "unmatched", OutcomeUnmatched.String())
	assert.Equal(t, "OutcomeKind(9)", OutcomeKind(9).String())
}
