package repository

import (
	"context"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

// RunResultRepository persists run items into a single run's SQLite
// database. Implementations are scoped to one open *sql.DB per run.
type RunResultRepository interface {
	Insert(ctx context.Context, result *domain.RunResult) (*domain.RunResult, error)
	InsertBatch(ctx context.Context, results []*domain.RunResult) ([]*domain.RunResult, error)
	ListNonDuplicate(ctx context.Context, runID string) ([]*domain.RunResult, error)
	ListByCacheKey(ctx context.Context, runID, cacheKey string) ([]*domain.RunResult, error)
	MaxLastSeenAt(ctx context.Context, normalizedURL string) (*domain.RunResult, error)
	ListScoredSince(ctx context.Context, since string) ([]*domain.RunResult, error)
	UpdateDedupeFields(ctx context.Context, results []*domain.RunResult) error
	UpdateScores(ctx context.Context, results []*domain.RunResult) error
}
