package repository

import (
	"context"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

// EvaluationStore persists evaluation runs and per-model results into
// the shared evaluations.db SQLite file.
type EvaluationStore interface {
	CreateRun(ctx context.Context, run *domain.EvaluationRun) error
	UpdateProgress(ctx context.Context, evaluationID string, failedIncrement int) error
	CompleteRun(ctx context.Context, evaluationID string) error
	GetRun(ctx context.Context, evaluationID string) (*domain.EvaluationRun, error)

	StoreResult(ctx context.Context, result *domain.EvaluationResult) error
	GetResults(ctx context.Context, evaluationID string) ([]*domain.EvaluationResult, error)
	LatestCompletedResult(ctx context.Context, modelID string) (*domain.EvaluationResult, error)
}

// ActivationStore persists the active-model pointer and activation
// history.
type ActivationStore interface {
	GetActive(ctx context.Context) (*domain.ActiveModel, error)
	SetActive(ctx context.Context, active *domain.ActiveModel) error
	AppendHistory(ctx context.Context, entry *domain.ActivationHistoryEntry) error
	LatestHistoryFor(ctx context.Context, modelID string) (*domain.ActivationHistoryEntry, error)
	ListHistory(ctx context.Context, limit int) ([]*domain.ActivationHistoryEntry, error)
}

// RetrainStore persists retrain job records.
type RetrainStore interface {
	CreateJob(ctx context.Context, job *domain.RetrainJob) error
	CompleteJob(ctx context.Context, job *domain.RetrainJob) error
	LastCompleted(ctx context.Context, modelID string) (*domain.RetrainJob, error)
	ListJobs(ctx context.Context, limit int) ([]*domain.RetrainJob, error)
}
