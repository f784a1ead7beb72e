// Package evaluation implements the Evaluation Engine: fits and scores
// every registered model against a snapshot dataset, bounded by a
// worker pool, with per-model failures isolated from one another.
package evaluation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/metrics"
	"github.com/pjsousa/jobato-ml/internal/mlmodel"
	"github.com/pjsousa/jobato-ml/internal/repository"
)

const (
	DefaultEvalWorkers = 3
	MaxEvalWorkers     = 10
)

// Dataset is the feature/label snapshot every model in one evaluation
// run is trained and scored against.
type Dataset struct {
	DatasetID string
	Features  []domain.Features
	Labels    []int
}

// DatasetProvider resolves the dataset an evaluation run should use.
type DatasetProvider interface {
	LoadDataset(ctx context.Context) (Dataset, error)
}

// DefaultDataset is the synthetic fallback used when no labeled active
// run database exists yet.
func DefaultDataset() Dataset {
	return Dataset{
		DatasetID: "synthetic-default",
		Features: []domain.Features{
			{Title: "Relevant role", Snippet: "Python backend engineer", Domain: "example.com"},
			{Title: "Irrelevant role", Snippet: "Retail cashier", Domain: "example.com"},
		},
		Labels: []int{1, 0},
	}
}

// SanitizeWorkers clamps the configured worker count to [1, MaxEvalWorkers].
func SanitizeWorkers(value int) int {
	if value < 1 {
		return 1
	}
	if value > MaxEvalWorkers {
		return MaxEvalWorkers
	}
	return value
}

type Pipeline struct {
	store       repository.EvaluationStore
	registry    *mlmodel.Registry
	datasets    DatasetProvider
	evalWorkers int
	logger      *slog.Logger
}

func NewPipeline(store repository.EvaluationStore, registry *mlmodel.Registry, datasets DatasetProvider, evalWorkers int, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:       store,
		registry:    registry,
		datasets:    datasets,
		evalWorkers: SanitizeWorkers(evalWorkers),
		logger:      logger.With("component", "evaluation"),
	}
}

func (p *Pipeline) EvalWorkers() int { return p.evalWorkers }

// TriggerEvaluation starts an evaluation run asynchronously and returns
// its id immediately; the background goroutine runs on a copy of ctx
// detached from its cancellation, so it outlives the triggering request.
func (p *Pipeline) TriggerEvaluation(ctx context.Context) (*domain.EvaluationRun, error) {
	dataset, err := p.datasets.LoadDataset(ctx)
	if err != nil {
		return nil, err
	}

	jobs := p.buildJobs()
	evaluationID := uuid.NewString()

	run := &domain.EvaluationRun{
		EvaluationID: evaluationID,
		DatasetID:    dataset.DatasetID,
		EvalWorkers:  p.evalWorkers,
		TotalModels:  len(jobs),
		Status:       domain.EvaluationStatusRunning,
		StartedAt:    time.Now(),
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	go p.runEvaluation(context.WithoutCancel(ctx), evaluationID, dataset, jobs)

	return run, nil
}

type job struct {
	modelID      string
	modelVersion string
	model        domain.Model
}

func (p *Pipeline) buildJobs() []job {
	var jobs []job
	for _, entry := range p.registry.GetAvailableModels() {
		model := p.registry.GetModel(entry.Identifier)
		if model == nil {
			continue
		}
		jobs = append(jobs, job{modelID: entry.Identifier, modelVersion: entry.Version, model: model})
	}
	return jobs
}

func (p *Pipeline) runEvaluation(ctx context.Context, evaluationID string, dataset Dataset, jobs []job) {
	metrics.EvaluationModelsInFlight.Add(float64(len(jobs)))
	defer metrics.EvaluationModelsInFlight.Sub(float64(len(jobs)))

	started := time.Now()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.evalWorkers)

	for _, j := range jobs {
		j := j
		group.Go(func() error {
			p.evaluateOne(groupCtx, evaluationID, dataset, j)
			return nil
		})
	}
	_ = group.Wait()

	metrics.EvaluationDuration.Observe(time.Since(started).Seconds())

	if err := p.store.CompleteRun(ctx, evaluationID); err != nil {
		p.logger.Error("evaluation.complete_run_failed", "evaluation_id", evaluationID, "error", err)
	}
}

func (p *Pipeline) evaluateOne(ctx context.Context, evaluationID string, dataset Dataset, j job) {
	startedAt := time.Now()

	result := &domain.EvaluationResult{
		EvaluationID: evaluationID,
		ModelID:      j.modelID,
		ModelVersion: j.modelVersion,
		DatasetID:    dataset.DatasetID,
		CreatedAt:    time.Now(),
	}

	failedIncrement := 0
	if err := p.fitAndScore(ctx, j.model, dataset, result); err != nil {
		p.logger.Warn("evaluation.model_failed", "evaluation_id", evaluationID, "model", j.modelID, "error", err)
		result.Status = domain.ModelResultFailed
		result.Error = err.Error()
		failedIncrement = 1
		metrics.EvaluationOutcomesTotal.WithLabelValues("failed").Inc()
	} else {
		result.Status = domain.ModelResultCompleted
		metrics.EvaluationOutcomesTotal.WithLabelValues("completed").Inc()
	}
	result.DurationMS = time.Since(startedAt).Milliseconds()

	if err := p.store.StoreResult(ctx, result); err != nil {
		p.logger.Error("evaluation.store_result_failed", "evaluation_id", evaluationID, "model", j.modelID, "error", err)
	}
	if err := p.store.UpdateProgress(ctx, evaluationID, failedIncrement); err != nil {
		p.logger.Error("evaluation.update_progress_failed", "evaluation_id", evaluationID, "error", err)
	}
}

func (p *Pipeline) fitAndScore(ctx context.Context, model domain.Model, dataset Dataset, result *domain.EvaluationResult) error {
	if err := model.Fit(ctx, dataset.Features, dataset.Labels); err != nil {
		return err
	}
	predictions, err := model.Predict(ctx, dataset.Features)
	if err != nil {
		return err
	}

	binary := make([]int, len(predictions))
	for i, v := range predictions {
		binary[i] = toBinaryPrediction(v)
	}

	m, err := metrics.CalculateMetrics(dataset.Labels, binary)
	if err != nil {
		return err
	}
	result.Metrics = m
	return nil
}

func toBinaryPrediction(value float64) int {
	if value >= 0.5 {
		return 1
	}
	return 0
}

func Status(ctx context.Context, store repository.EvaluationStore, evaluationID string) (*domain.EvaluationRun, error) {
	run, err := store.GetRun(ctx, evaluationID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrEvaluationNotFound
	}
	return run, nil
}

func Results(ctx context.Context, store repository.EvaluationStore, evaluationID string) ([]*domain.EvaluationResult, error) {
	return store.GetResults(ctx, evaluationID)
}
