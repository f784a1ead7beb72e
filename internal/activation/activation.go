// Package activation implements the Activation Service: flips which
// model version serves production scoring, and records a rollback-able
// history of every flip.
package activation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/mlmodel"
	"github.com/pjsousa/jobato-ml/internal/repository"
)

type Service struct {
	store    repository.ActivationStore
	evalStore repository.EvaluationStore
	registry *mlmodel.Registry

	mu sync.Mutex
}

func NewService(store repository.ActivationStore, evalStore repository.EvaluationStore, registry *mlmodel.Registry) *Service {
	return &Service{store: store, evalStore: evalStore, registry: registry}
}

// Activate flips the active model to modelID, requiring registry
// membership and a completed evaluation result for that model.
func (s *Service) Activate(ctx context.Context, modelID, activatedBy string) (*domain.ActiveModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registry.HasModel(modelID) {
		return nil, fmt.Errorf("%w: %s not registered", domain.ErrModelNotFound, modelID)
	}

	result, err := s.evalStore.LatestCompletedResult(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoEvaluationResult, modelID)
	}

	active := &domain.ActiveModel{
		ModelID:      modelID,
		ModelVersion: result.ModelVersion,
		ActivatedBy:  activatedBy,
		ActivatedAt:  time.Now(),
	}
	if err := s.store.SetActive(ctx, active); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelActivation, err)
	}
	if err := s.store.AppendHistory(ctx, &domain.ActivationHistoryEntry{
		ModelID:      modelID,
		ModelVersion: result.ModelVersion,
		Action:       domain.ActivationActionActivated,
		ActivatedBy:  activatedBy,
		CreatedAt:    active.ActivatedAt,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelActivation, err)
	}

	return active, nil
}

// Rollback re-activates the most recent prior history entry for
// modelID, requiring registry membership and a history row to exist.
func (s *Service) Rollback(ctx context.Context, modelID, activatedBy string) (*domain.ActiveModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registry.HasModel(modelID) {
		return nil, fmt.Errorf("%w: %s not registered", domain.ErrModelNotFound, modelID)
	}

	prior, err := s.store.LatestHistoryFor(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, fmt.Errorf("%w: no prior activation for %s", domain.ErrModelActivation, modelID)
	}

	active := &domain.ActiveModel{
		ModelID:      modelID,
		ModelVersion: prior.ModelVersion,
		ActivatedBy:  activatedBy,
		ActivatedAt:  time.Now(),
	}
	if err := s.store.SetActive(ctx, active); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelActivation, err)
	}
	if err := s.store.AppendHistory(ctx, &domain.ActivationHistoryEntry{
		ModelID:      modelID,
		ModelVersion: prior.ModelVersion,
		Action:       domain.ActivationActionRollback,
		ActivatedBy:  activatedBy,
		CreatedAt:    active.ActivatedAt,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelActivation, err)
	}

	return active, nil
}

func (s *Service) GetActive(ctx context.Context) (*domain.ActiveModel, error) {
	active, err := s.store.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, domain.ErrNoActiveModel
	}
	return active, nil
}
