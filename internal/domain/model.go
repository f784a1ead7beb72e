package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrModelNotFound        = errors.New("model not in registry")
	ErrModelActivation      = errors.New("model activation failed")
	ErrNoActiveModel        = errors.New("no active model")
	ErrNoEvaluationResult   = errors.New("no completed evaluation for model")
	ErrRetrainInProgress    = errors.New("retrain already in progress")
	ErrEvaluationNotFound   = errors.New("evaluation not found")
)

// Features are the inputs a Model scores: title/snippet/domain for one
// run result.
type Features struct {
	Title  string
	Snippet string
	Domain string
}

// Model is the contract every built-in scoring model implements. Fit is
// called once per evaluation/retrain pass; Predict returns a
// relevance-like score per input, which evaluation thresholds at 0.5.
type Model interface {
	Fit(ctx context.Context, features []Features, labels []int) error
	Predict(ctx context.Context, features []Features) ([]float64, error)
	MarshalState() ([]byte, error)
	UnmarshalState([]byte) error
}

// ModelEntry describes one registered model variant.
type ModelEntry struct {
	Identifier string
	Version    string
	IsDefault  bool
}

type EvaluationStatus string

const (
	EvaluationStatusRunning   EvaluationStatus = "running"
	EvaluationStatusCompleted EvaluationStatus = "completed"
)

type EvaluationRun struct {
	EvaluationID    string           `json:"evaluationId"`
	DatasetID       string           `json:"datasetId"`
	EvalWorkers     int              `json:"evalWorkers"`
	TotalModels     int              `json:"totalModels"`
	CompletedModels int              `json:"completedModels"`
	FailedModels    int              `json:"failedModels"`
	Status          EvaluationStatus `json:"status"`
	StartedAt       time.Time        `json:"startedAt"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
}

type ModelResultStatus string

const (
	ModelResultCompleted ModelResultStatus = "completed"
	ModelResultFailed    ModelResultStatus = "failed"
)

type EvaluationResult struct {
	EvaluationID string            `json:"evaluationId"`
	ModelID      string            `json:"modelId"`
	ModelVersion string            `json:"modelVersion"`
	DatasetID    string            `json:"datasetId"`
	Status       ModelResultStatus `json:"status"`
	Metrics      ClassificationMetrics `json:"metrics"`
	Error        string            `json:"error,omitempty"`
	DurationMS   int64             `json:"durationMs"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// ClassificationMetrics holds the evaluation metric bundle computed
// over a binary true/predicted label set.
type ClassificationMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Accuracy  float64 `json:"accuracy"`
}

type ActivationAction string

const (
	ActivationActionActivated ActivationAction = "activated"
	ActivationActionRollback  ActivationAction = "rollback"
)

type ActiveModel struct {
	ModelID      string    `json:"modelId"`
	ModelVersion string    `json:"modelVersion"`
	ActivatedBy  string    `json:"activatedBy"`
	ActivatedAt  time.Time `json:"activatedAt"`
}

type ActivationHistoryEntry struct {
	ID           int64            `json:"id"`
	ModelID      string           `json:"modelId"`
	ModelVersion string           `json:"modelVersion"`
	Action       ActivationAction `json:"action"`
	ActivatedBy  string           `json:"activatedBy"`
	CreatedAt    time.Time        `json:"createdAt"`
}

type RetrainStatus string

const (
	RetrainStatusCompleted RetrainStatus = "completed"
	RetrainStatusSkipped   RetrainStatus = "skipped"
	RetrainStatusFailed    RetrainStatus = "failed"
)

type RetrainJob struct {
	ID          string        `json:"id"`
	ModelID     string        `json:"modelId"`
	TriggeredBy string        `json:"triggeredBy"`
	Status      RetrainStatus `json:"status"`
	NewVersion  string        `json:"newVersion,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// ModelArtifact is the on-disk container written after a successful
// retrain pass: a self-describing JSON envelope rather than a Python
// pickle (see DESIGN.md Open Question 4).
type ModelArtifact struct {
	ModelID      string                `json:"modelId"`
	ModelVersion string                `json:"modelVersion"`
	TrainedAt    time.Time             `json:"trainedAt"`
	Metrics      ClassificationMetrics `json:"metrics"`
	State        []byte                `json:"state"`
}
