// Package retrain implements the Retrain Pipeline: a non-blocking,
// single-flight fit-and-promote pass over newly labeled run items.
package retrain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pjsousa/jobato-ml/internal/activation"
	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/metrics"
	"github.com/pjsousa/jobato-ml/internal/mlmodel"
	"github.com/pjsousa/jobato-ml/internal/repository"
)

// LabelSource loads labeled rows for retraining, optionally filtered
// to rows scored after `since`.
type LabelSource interface {
	LoadLabels(ctx context.Context, since *time.Time) ([]domain.Features, []int, error)
}

type Pipeline struct {
	store        repository.RetrainStore
	evalStore    repository.EvaluationStore
	registry     *mlmodel.Registry
	activation   *activation.Service
	labels       LabelSource
	artifactDir  string
	logger       *slog.Logger

	running atomic.Bool
}

func NewPipeline(
	store repository.RetrainStore,
	evalStore repository.EvaluationStore,
	registry *mlmodel.Registry,
	activationSvc *activation.Service,
	labels LabelSource,
	artifactDir string,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:       store,
		evalStore:   evalStore,
		registry:    registry,
		activation:  activationSvc,
		labels:      labels,
		artifactDir: artifactDir,
		logger:      logger.With("component", "retrain"),
	}
}

// IsRunning reports whether a retrain pass is currently in flight.
func (p *Pipeline) IsRunning() bool {
	return p.running.Load()
}

// RunOnce attempts one retrain pass for the currently active model. It
// is a non-blocking try-lock: a concurrent call returns
// ErrRetrainInProgress immediately rather than queuing.
func (p *Pipeline) RunOnce(ctx context.Context, triggeredBy string) (*domain.RetrainJob, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, domain.ErrRetrainInProgress
	}
	defer p.running.Store(false)

	started := time.Now()

	active, err := p.activation.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	job := &domain.RetrainJob{
		ID:          uuid.NewString(),
		ModelID:     active.ModelID,
		TriggeredBy: triggeredBy,
		StartedAt:   started,
	}
	if err := p.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	since := p.resolveSince(ctx, active.ModelID)

	features, labels, err := p.labels.LoadLabels(ctx, since)
	if err != nil {
		job.Status = domain.RetrainStatusFailed
		job.Reason = err.Error()
		p.finish(ctx, job, started)
		return job, err
	}

	if len(labels) == 0 {
		job.Status = domain.RetrainStatusSkipped
		job.NewVersion = active.ModelVersion
		job.Reason = "no new labels since last completed retrain"
		p.finish(ctx, job, started)
		return job, nil
	}

	model := p.registry.GetModel(active.ModelID)
	if model == nil {
		job.Status = domain.RetrainStatusFailed
		job.Reason = fmt.Sprintf("%v: %s", domain.ErrModelNotFound, active.ModelID)
		p.finish(ctx, job, started)
		return job, domain.ErrModelNotFound
	}

	if err := model.Fit(ctx, features, labels); err != nil {
		job.Status = domain.RetrainStatusFailed
		job.Reason = err.Error()
		p.finish(ctx, job, started)
		return job, err
	}

	predictions, err := model.Predict(ctx, features)
	if err != nil {
		job.Status = domain.RetrainStatusFailed
		job.Reason = err.Error()
		p.finish(ctx, job, started)
		return job, err
	}
	binary := make([]int, len(predictions))
	for i, v := range predictions {
		if v >= 0.5 {
			binary[i] = 1
		}
	}
	resultMetrics, err := metrics.CalculateMetrics(labels, binary)
	if err != nil {
		job.Status = domain.RetrainStatusFailed
		job.Reason = err.Error()
		p.finish(ctx, job, started)
		return job, err
	}

	newVersion := fmt.Sprintf("%s-%s", active.ModelVersion, started.Format("20060102150405"))

	if err := p.writeArtifact(model, active.ModelID, newVersion, resultMetrics, started); err != nil {
		job.Status = domain.RetrainStatusFailed
		job.Reason = err.Error()
		p.finish(ctx, job, started)
		return job, err
	}

	if err := p.verifyArtifact(active.ModelID, newVersion); err != nil {
		job.Status = domain.RetrainStatusFailed
		job.Reason = err.Error()
		p.finish(ctx, job, started)
		return job, err
	}

	if err := p.evalStore.StoreResult(ctx, &domain.EvaluationResult{
		EvaluationID: job.ID,
		ModelID:      active.ModelID,
		ModelVersion: newVersion,
		DatasetID:    "retrain:" + job.ID,
		Status:       domain.ModelResultCompleted,
		Metrics:      resultMetrics,
		CreatedAt:    time.Now(),
	}); err != nil {
		job.Status = domain.RetrainStatusFailed
		job.Reason = err.Error()
		p.finish(ctx, job, started)
		return job, err
	}

	if _, err := p.activation.Activate(ctx, active.ModelID, "retrain"); err != nil {
		job.Status = domain.RetrainStatusFailed
		job.Reason = err.Error()
		p.finish(ctx, job, started)
		return job, err
	}

	job.Status = domain.RetrainStatusCompleted
	job.NewVersion = newVersion
	p.finish(ctx, job, started)
	return job, nil
}

func (p *Pipeline) resolveSince(ctx context.Context, modelID string) *time.Time {
	last, err := p.store.LastCompleted(ctx, modelID)
	if err != nil || last == nil || last.CompletedAt == nil {
		return nil
	}
	return last.CompletedAt
}

func (p *Pipeline) finish(ctx context.Context, job *domain.RetrainJob, started time.Time) {
	now := time.Now()
	job.CompletedAt = &now
	metrics.RetrainDuration.Observe(time.Since(started).Seconds())
	metrics.RetrainOutcomesTotal.WithLabelValues(string(job.Status)).Inc()
	if err := p.store.CompleteJob(ctx, job); err != nil {
		p.logger.Error("retrain.complete_job_failed", "job_id", job.ID, "error", err)
	}
}

func (p *Pipeline) artifactPath(modelID, version string) string {
	return filepath.Join(p.artifactDir, fmt.Sprintf("%s_%s.json", modelID, version))
}

func (p *Pipeline) writeArtifact(model domain.Model, modelID, version string, m domain.ClassificationMetrics, trainedAt time.Time) error {
	state, err := model.MarshalState()
	if err != nil {
		return err
	}
	artifact := domain.ModelArtifact{
		ModelID:      modelID,
		ModelVersion: version,
		TrainedAt:    trainedAt,
		Metrics:      m,
		State:        state,
	}
	data, err := marshalArtifact(artifact)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.artifactDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.artifactPath(modelID, version), data, 0o644)
}

func (p *Pipeline) verifyArtifact(modelID, version string) error {
	data, err := os.ReadFile(p.artifactPath(modelID, version))
	if err != nil {
		return err
	}
	artifact, err := unmarshalArtifact(data)
	if err != nil {
		return err
	}
	if artifact.ModelVersion != version {
		return fmt.Errorf("retrain: artifact version mismatch, got %s want %s", artifact.ModelVersion, version)
	}
	return nil
}
