package dedupe

import (
	"testing"

	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestRun_ExactURLDuplicates(t *testing.T) {
	results := []*domain.RunResult{
		{ID: 1, NormalizedURL: "https://example.com/a", Title: "A"},
		{ID: 2, NormalizedURL: "https://example.com/a", Title: "A copy"},
		{ID: 3, NormalizedURL: "https://example.com/b", Title: "B"},
	}

	outcome := Run(results, DefaultSimilarityThreshold)

	require.Equal(t, 1, outcome.DuplicatesFound)
	require.Equal(t, 1, outcome.ExactDuplicates)
	require.Equal(t, 2, outcome.CanonicalCount)
	require.True(t, results[1].IsDuplicate)
	require.Equal(t, int64(1), *results[1].CanonicalID)
	require.False(t, results[0].IsDuplicate)
	require.Equal(t, 1, results[0].DuplicateCount)
}

func TestRun_NearDuplicateText(t *testing.T) {
	results := []*domain.RunResult{
		{ID: 1, NormalizedURL: "https://example.com/a", Title: "Senior Go Engineer", Snippet: "Remote backend role building distributed systems"},
		{ID: 2, NormalizedURL: "https://example.com/a-mirror", Title: "Senior Go Engineer", Snippet: "Remote backend role building distributed systems"},
		{ID: 3, NormalizedURL: "https://example.com/c", Title: "Retail Cashier", Snippet: "In-store position"},
	}

	outcome := Run(results, DefaultSimilarityThreshold)

	require.Equal(t, 1, outcome.SimilarDuplicates)
	require.True(t, results[1].IsDuplicate)
	require.False(t, results[2].IsDuplicate)
}

func TestRun_NoResults(t *testing.T) {
	outcome := Run(nil, DefaultSimilarityThreshold)
	require.Equal(t, Outcome{}, outcome)
}

func TestJaccardSimilarity_BothEmpty(t *testing.T) {
	require.Equal(t, 1.0, jaccardSimilarity(map[string]struct{}{}, map[string]struct{}{}))
}

func TestJaccardSimilarity_OneEmpty(t *testing.T) {
	a := map[string]struct{}{"x y z": {}}
	require.Equal(t, 0.0, jaccardSimilarity(a, map[string]struct{}{}))
}
