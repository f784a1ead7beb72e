package scoring

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

type fakeModel struct {
	scores []float64
	err    error
}

func (f *fakeModel) Fit(ctx context.Context, features []domain.Features, labels []int) error {
	return nil
}

func (f *fakeModel) Predict(ctx context.Context, features []domain.Features) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func (f *fakeModel) MarshalState() ([]byte, error)    { return nil, nil }
func (f *fakeModel) UnmarshalState(data []byte) error { return nil }

func TestScore_NilModelFallsBackToBaseline(t *testing.T) {
	results := []*domain.RunResult{{Title: "Senior Go Engineer"}}
	err := Score(context.Background(), nil, "v2", results, time.Now(), slog.Default())
	require.NoError(t, err)
	require.NotNil(t, results[0].RelevanceScore)
	require.Equal(t, 0.0, *results[0].RelevanceScore)
	require.Equal(t, BaselineVersion, results[0].ScoreVersion)
	require.NotNil(t, results[0].ScoredAt)
}

func TestScore_PredictErrorFallsBackToBaseline(t *testing.T) {
	results := []*domain.RunResult{{Title: "Senior Go Engineer"}}
	model := &fakeModel{err: errors.New("model exploded")}
	err := Score(context.Background(), model, "v2", results, time.Now(), slog.Default())
	require.NoError(t, err)
	require.Equal(t, 0.0, *results[0].RelevanceScore)
	require.Equal(t, BaselineVersion, results[0].ScoreVersion)
}

func TestScore_ClampsToUnitRange(t *testing.T) {
	results := []*domain.RunResult{
		{Title: "a"},
		{Title: "b"},
		{Title: "c"},
	}
	model := &fakeModel{scores: []float64{5.0, -5.0, 0.3}}
	err := Score(context.Background(), model, "v3", results, time.Now(), slog.Default())
	require.NoError(t, err)
	require.Equal(t, 1.0, *results[0].RelevanceScore)
	require.Equal(t, -1.0, *results[1].RelevanceScore)
	require.Equal(t, 0.3, *results[2].RelevanceScore)
	for _, r := range results {
		require.Equal(t, "v3", r.ScoreVersion)
	}
}

func TestScore_EmptyResultsIsNoop(t *testing.T) {
	err := Score(context.Background(), nil, "v2", nil, time.Now(), slog.Default())
	require.NoError(t, err)
}
