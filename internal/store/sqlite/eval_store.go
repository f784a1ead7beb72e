package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

type EvaluationStore struct {
	db *sql.DB
}

func NewEvaluationStore(db *sql.DB) *EvaluationStore {
	return &EvaluationStore{db: db}
}

func (s *EvaluationStore) CreateRun(ctx context.Context, run *domain.EvaluationRun) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO evaluation_runs
		(evaluation_id, dataset_id, eval_workers, total_models, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.EvaluationID, run.DatasetID, run.EvalWorkers, run.TotalModels,
		string(run.Status), formatTime(run.StartedAt))
	return err
}

func (s *EvaluationStore) UpdateProgress(ctx context.Context, evaluationID string, failedIncrement int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE evaluation_runs SET
		completed_models = completed_models + 1,
		failed_models = failed_models + ?
		WHERE evaluation_id = ?`, failedIncrement, evaluationID)
	return err
}

func (s *EvaluationStore) CompleteRun(ctx context.Context, evaluationID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE evaluation_runs SET status = ?, completed_at = ?
		WHERE evaluation_id = ?`, string(domain.EvaluationStatusCompleted), formatTime(time.Now()), evaluationID)
	return err
}

func (s *EvaluationStore) GetRun(ctx context.Context, evaluationID string) (*domain.EvaluationRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT evaluation_id, dataset_id, eval_workers, total_models,
		completed_models, failed_models, status, started_at, completed_at
		FROM evaluation_runs WHERE evaluation_id = ?`, evaluationID)

	var run domain.EvaluationRun
	var status string
	var startedAt string
	var completedAt sql.NullString
	err := row.Scan(&run.EvaluationID, &run.DatasetID, &run.EvalWorkers, &run.TotalModels,
		&run.CompletedModels, &run.FailedModels, &status, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Status = domain.EvaluationStatus(status)
	if t, ok := parseTime(sql.NullString{String: startedAt, Valid: true}); ok {
		run.StartedAt = t
	}
	if t, ok := parseTime(completedAt); ok {
		run.CompletedAt = &t
	}
	return &run, nil
}

func (s *EvaluationStore) StoreResult(ctx context.Context, result *domain.EvaluationResult) error {
	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO evaluation_results
		(evaluation_id, model_id, model_version, dataset_id, status, metrics_json, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.EvaluationID, result.ModelID, result.ModelVersion, result.DatasetID,
		string(result.Status), string(metricsJSON), result.Error, result.DurationMS, formatTime(result.CreatedAt))
	return err
}

func (s *EvaluationStore) GetResults(ctx context.Context, evaluationID string) ([]*domain.EvaluationResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT evaluation_id, model_id, model_version, dataset_id,
		status, metrics_json, error, duration_ms, created_at
		FROM evaluation_results WHERE evaluation_id = ? ORDER BY id ASC`, evaluationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvaluationResults(rows)
}

func (s *EvaluationStore) LatestCompletedResult(ctx context.Context, modelID string) (*domain.EvaluationResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT evaluation_id, model_id, model_version, dataset_id,
		status, metrics_json, error, duration_ms, created_at
		FROM evaluation_results WHERE model_id = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`, modelID, string(domain.ModelResultCompleted))
	result, err := scanEvaluationResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return result, err
}

func scanEvaluationResults(rows *sql.Rows) ([]*domain.EvaluationResult, error) {
	var out []*domain.EvaluationResult
	for rows.Next() {
		r, err := scanEvaluationResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanEvaluationResult(row rowScanner) (*domain.EvaluationResult, error) {
	var r domain.EvaluationResult
	var status, metricsJSON, createdAt string
	err := row.Scan(&r.EvaluationID, &r.ModelID, &r.ModelVersion, &r.DatasetID,
		&status, &metricsJSON, &r.Error, &r.DurationMS, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Status = domain.ModelResultStatus(status)
	if err := json.Unmarshal([]byte(metricsJSON), &r.Metrics); err != nil {
		return nil, err
	}
	if t, ok := parseTime(sql.NullString{String: createdAt, Valid: true}); ok {
		r.CreatedAt = t
	}
	return &r, nil
}

// ActivationStore

type ActivationStore struct {
	db *sql.DB
}

func NewActivationStore(db *sql.DB) *ActivationStore {
	return &ActivationStore{db: db}
}

func (s *ActivationStore) GetActive(ctx context.Context) (*domain.ActiveModel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT model_id, model_version, activated_by, activated_at
		FROM active_model WHERE id = 1`)
	var a domain.ActiveModel
	var activatedAt string
	err := row.Scan(&a.ModelID, &a.ModelVersion, &a.ActivatedBy, &activatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t, ok := parseTime(sql.NullString{String: activatedAt, Valid: true}); ok {
		a.ActivatedAt = t
	}
	return &a, nil
}

func (s *ActivationStore) SetActive(ctx context.Context, active *domain.ActiveModel) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO active_model (id, model_id, model_version, activated_by, activated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET model_id = excluded.model_id, model_version = excluded.model_version,
			activated_by = excluded.activated_by, activated_at = excluded.activated_at`,
		active.ModelID, active.ModelVersion, active.ActivatedBy, formatTime(active.ActivatedAt))
	return err
}

func (s *ActivationStore) AppendHistory(ctx context.Context, entry *domain.ActivationHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO activation_history
		(model_id, model_version, action, activated_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ModelID, entry.ModelVersion, string(entry.Action), entry.ActivatedBy, formatTime(entry.CreatedAt))
	return err
}

func (s *ActivationStore) LatestHistoryFor(ctx context.Context, modelID string) (*domain.ActivationHistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, model_id, model_version, action, activated_by, created_at
		FROM activation_history WHERE model_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, modelID)
	var e domain.ActivationHistoryEntry
	var action, createdAt string
	err := row.Scan(&e.ID, &e.ModelID, &e.ModelVersion, &action, &e.ActivatedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Action = domain.ActivationAction(action)
	if t, ok := parseTime(sql.NullString{String: createdAt, Valid: true}); ok {
		e.CreatedAt = t
	}
	return &e, nil
}

func (s *ActivationStore) ListHistory(ctx context.Context, limit int) ([]*domain.ActivationHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, model_id, model_version, action, activated_by, created_at
		FROM activation_history ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ActivationHistoryEntry
	for rows.Next() {
		var e domain.ActivationHistoryEntry
		var action, createdAt string
		if err := rows.Scan(&e.ID, &e.ModelID, &e.ModelVersion, &action, &e.ActivatedBy, &createdAt); err != nil {
			return nil, err
		}
		e.Action = domain.ActivationAction(action)
		if t, ok := parseTime(sql.NullString{String: createdAt, Valid: true}); ok {
			e.CreatedAt = t
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// RetrainStore

type RetrainStore struct {
	db *sql.DB
}

func NewRetrainStore(db *sql.DB) *RetrainStore {
	return &RetrainStore{db: db}
}

func (s *RetrainStore) CreateJob(ctx context.Context, job *domain.RetrainJob) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO retrain_jobs
		(id, model_id, triggered_by, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.ModelID, job.TriggeredBy, "running", formatTime(job.StartedAt))
	return err
}

func (s *RetrainStore) CompleteJob(ctx context.Context, job *domain.RetrainJob) error {
	var completedAt any
	if job.CompletedAt != nil {
		completedAt = formatTime(*job.CompletedAt)
	}
	_, err := s.db.ExecContext(ctx, `UPDATE retrain_jobs SET status = ?, new_version = ?, reason = ?, completed_at = ?
		WHERE id = ?`, string(job.Status), job.NewVersion, job.Reason, completedAt, job.ID)
	return err
}

func (s *RetrainStore) LastCompleted(ctx context.Context, modelID string) (*domain.RetrainJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, model_id, triggered_by, status, new_version, reason, started_at, completed_at
		FROM retrain_jobs WHERE model_id = ? AND status = ? ORDER BY completed_at DESC LIMIT 1`,
		modelID, string(domain.RetrainStatusCompleted))
	var job domain.RetrainJob
	var status, startedAt string
	var completedAt sql.NullString
	err := row.Scan(&job.ID, &job.ModelID, &job.TriggeredBy, &status, &job.NewVersion, &job.Reason, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	job.Status = domain.RetrainStatus(status)
	if t, ok := parseTime(sql.NullString{String: startedAt, Valid: true}); ok {
		job.StartedAt = t
	}
	if t, ok := parseTime(completedAt); ok {
		job.CompletedAt = &t
	}
	return &job, nil
}

func (s *RetrainStore) ListJobs(ctx context.Context, limit int) ([]*domain.RetrainJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, model_id, triggered_by, status, new_version, reason, started_at, completed_at
		FROM retrain_jobs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RetrainJob
	for rows.Next() {
		var job domain.RetrainJob
		var status, startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&job.ID, &job.ModelID, &job.TriggeredBy, &status, &job.NewVersion, &job.Reason, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		job.Status = domain.RetrainStatus(status)
		if t, ok := parseTime(sql.NullString{String: startedAt, Valid: true}); ok {
			job.StartedAt = t
		}
		if t, ok := parseTime(completedAt); ok {
			job.CompletedAt = &t
		}
		out = append(out, &job)
	}
	return out, rows.Err()
}
