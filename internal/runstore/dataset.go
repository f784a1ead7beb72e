package runstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/evaluation"
	"github.com/pjsousa/jobato-ml/internal/store/sqlite"
)

// LabelProvider derives an evaluation dataset, or a retrain pipeline's
// labeled rows, from the most recently written run database: every
// non-duplicate row with a non-null relevance_score, labeled 1 iff the
// score is positive.
type LabelProvider struct {
	store *Store
}

func NewLabelProvider(store *Store) *LabelProvider {
	return &LabelProvider{store: store}
}

// LoadDataset satisfies evaluation.DatasetProvider.
func (p *LabelProvider) LoadDataset(ctx context.Context) (evaluation.Dataset, error) {
	runID, repo, closeFn, err := p.latestRun(ctx)
	if err != nil {
		return evaluation.Dataset{}, err
	}
	if repo == nil {
		return evaluation.DefaultDataset(), nil
	}
	defer closeFn()

	rows, err := repo.ListScoredSince(ctx, "")
	if err != nil {
		return evaluation.Dataset{}, fmt.Errorf("runstore: load dataset: %w", err)
	}
	if len(rows) == 0 {
		return evaluation.DefaultDataset(), nil
	}

	features, labels := toFeaturesAndLabels(rows)
	return evaluation.Dataset{
		DatasetID: fmt.Sprintf("%s.db:%d", runID, len(rows)),
		Features:  features,
		Labels:    labels,
	}, nil
}

// LoadLabels satisfies retrain.LabelSource. since, when non-nil, is
// the timestamp of the last successful retrain — only rows scored
// after it are used.
func (p *LabelProvider) LoadLabels(ctx context.Context, since *time.Time) ([]domain.Features, []int, error) {
	_, repo, closeFn, err := p.latestRun(ctx)
	if err != nil {
		return nil, nil, err
	}
	if repo == nil {
		return nil, nil, nil
	}
	defer closeFn()

	var sinceStr string
	if since != nil {
		sinceStr = since.UTC().Format(time.RFC3339Nano)
	}
	rows, err := repo.ListScoredSince(ctx, sinceStr)
	if err != nil {
		return nil, nil, fmt.Errorf("runstore: load labels: %w", err)
	}
	features, labels := toFeaturesAndLabels(rows)
	return features, labels, nil
}

func (p *LabelProvider) latestRun(ctx context.Context) (string, *sqlite.RunResultRepository, func() error, error) {
	ids, err := p.store.ListRunIDsByRecency(ctx)
	if err != nil {
		return "", nil, nil, fmt.Errorf("runstore: list runs: %w", err)
	}
	if len(ids) == 0 {
		return "", nil, nil, nil
	}
	repo, closeFn, err := openReadRepo(ctx, p.store.path(ids[0]))
	if err != nil {
		return "", nil, nil, err
	}
	return ids[0], repo, closeFn, nil
}

func toFeaturesAndLabels(rows []*domain.RunResult) ([]domain.Features, []int) {
	features := make([]domain.Features, len(rows))
	labels := make([]int, len(rows))
	for i, r := range rows {
		features[i] = domain.Features{Title: r.Title, Snippet: r.Snippet, Domain: r.Domain}
		if r.RelevanceScore != nil && *r.RelevanceScore > 0 {
			labels[i] = 1
		}
	}
	return features, labels
}
