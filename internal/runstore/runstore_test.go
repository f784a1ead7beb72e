package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

func TestOpenRun_CreatesAndReopens(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	repo, path, closeFn, err := store.OpenRun(ctx, "run-1")
	require.NoError(t, err)
	require.FileExists(t, path)

	score := 0.9
	_, err = repo.Insert(ctx, &domain.RunResult{
		RunID:         "run-1",
		NormalizedURL: "example.com/a",
		RelevanceScore: &score,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, closeFn())

	repo2, _, closeFn2, err := store.OpenRun(ctx, "run-1")
	require.NoError(t, err)
	defer closeFn2()

	rows, err := repo2.ListScoredSince(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestListRunIDsByRecency_NewestFirst(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	_, _, close1, err := store.OpenRun(ctx, "run-older")
	require.NoError(t, err)
	require.NoError(t, close1())

	time.Sleep(10 * time.Millisecond)

	_, _, close2, err := store.OpenRun(ctx, "run-newer")
	require.NoError(t, err)
	require.NoError(t, close2())

	ids, err := store.ListRunIDsByRecency(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"run-newer", "run-older"}, ids)
}

func TestPromoteCurrent_SnapshotsIntoNextRun(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	repo1, path1, close1, err := store.OpenRun(ctx, "run-1")
	require.NoError(t, err)
	score := 0.7
	_, err = repo1.Insert(ctx, &domain.RunResult{RunID: "run-1", NormalizedURL: "example.com/a", RelevanceScore: &score, CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, close1())

	require.NoError(t, store.PromoteCurrent(ctx, path1))

	repo2, _, close2, err := store.OpenRun(ctx, "run-2")
	require.NoError(t, err)
	defer close2()

	rows, err := repo2.ListScoredSince(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 1, "run-2 should start from a snapshot of the promoted run-1 db")
}

func TestListRunIDsByRecency_NoRunsYet(t *testing.T) {
	store := New(t.TempDir())
	ids, err := store.ListRunIDsByRecency(context.Background())
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestLabelProvider_LoadDataset_FallsBackToSynthetic(t *testing.T) {
	store := New(t.TempDir())
	provider := NewLabelProvider(store)

	dataset, err := provider.LoadDataset(context.Background())
	require.NoError(t, err)
	require.Equal(t, "synthetic-default", dataset.DatasetID)
}

func TestLabelProvider_LoadDataset_FromLatestRun(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	repo, _, closeFn, err := store.OpenRun(ctx, "run-1")
	require.NoError(t, err)

	positive := 0.8
	negative := -0.2
	_, err = repo.InsertBatch(ctx, []*domain.RunResult{
		{RunID: "run-1", Title: "good match", RelevanceScore: &positive, CreatedAt: time.Now()},
		{RunID: "run-1", Title: "bad match", RelevanceScore: &negative, CreatedAt: time.Now()},
	})
	require.NoError(t, err)
	require.NoError(t, closeFn())

	provider := NewLabelProvider(store)
	dataset, err := provider.LoadDataset(ctx)
	require.NoError(t, err)
	require.Len(t, dataset.Features, 2)
	require.Contains(t, dataset.Labels, 1)
	require.Contains(t, dataset.Labels, 0)
}
