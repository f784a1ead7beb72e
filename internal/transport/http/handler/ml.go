package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pjsousa/jobato-ml/internal/activation"
	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/evaluation"
	"github.com/pjsousa/jobato-ml/internal/mlmodel"
	"github.com/pjsousa/jobato-ml/internal/repository"
	"github.com/pjsousa/jobato-ml/internal/retrain"
)

// MLHandler exposes the model registry, evaluation engine, activation
// service, and retrain pipeline over HTTP.
type MLHandler struct {
	registry          *mlmodel.Registry
	evalStore         repository.EvaluationStore
	evalEngine        *evaluation.Pipeline
	activation        *activation.Service
	activationHistory repository.ActivationStore
	retrain           *retrain.Pipeline
	retrainHistory    repository.RetrainStore
	logger            *slog.Logger
}

func NewMLHandler(
	registry *mlmodel.Registry,
	evalStore repository.EvaluationStore,
	evalEngine *evaluation.Pipeline,
	activationSvc *activation.Service,
	activationStore repository.ActivationStore,
	retrainPipeline *retrain.Pipeline,
	retrainStore repository.RetrainStore,
	logger *slog.Logger,
) *MLHandler {
	return &MLHandler{
		registry:          registry,
		evalStore:         evalStore,
		evalEngine:        evalEngine,
		activation:        activationSvc,
		activationHistory: activationStore,
		retrain:           retrainPipeline,
		retrainHistory:    retrainStore,
		logger:            logger.With("component", "ml_handler"),
	}
}

// ListModels returns every registered model plus the currently active one.
func (h *MLHandler) ListModels(c *gin.Context) {
	entries := h.registry.GetAvailableModels()

	active, err := h.activation.GetActive(c.Request.Context())
	var activeModelID string
	if err == nil {
		activeModelID = active.ModelID
	} else if !errors.Is(err, domain.ErrNoActiveModel) {
		h.logger.Error("get active model", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"models":        entries,
		"activeModelId": activeModelID,
		"loadErrors":    h.registry.LoadErrors(),
	})
}

// CompareModels returns the latest completed evaluation result for
// every registered model, side by side.
func (h *MLHandler) CompareModels(c *gin.Context) {
	entries := h.registry.GetAvailableModels()
	results := make(map[string]*domain.EvaluationResult, len(entries))

	for _, entry := range entries {
		result, err := h.evalStore.LatestCompletedResult(c.Request.Context(), entry.Identifier)
		if err != nil {
			if !errors.Is(err, domain.ErrNoEvaluationResult) {
				h.logger.Error("latest completed result", "model_id", entry.Identifier, "error", err)
			}
			continue
		}
		results[entry.Identifier] = result
	}

	c.JSON(http.StatusOK, gin.H{"comparisons": results})
}

// TriggerEvaluation starts a new evaluation run across all registered
// models and returns immediately with its id.
func (h *MLHandler) TriggerEvaluation(c *gin.Context) {
	run, err := h.evalEngine.TriggerEvaluation(c.Request.Context())
	if err != nil {
		h.logger.Error("trigger evaluation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// EvaluationStatus returns the lifecycle status of a single evaluation run.
func (h *MLHandler) EvaluationStatus(c *gin.Context) {
	run, err := evaluation.Status(c.Request.Context(), h.evalStore, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrEvaluationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errEvaluationNotFound})
			return
		}
		h.logger.Error("evaluation status", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, run)
}

// EvaluationResults returns the per-model results of a completed run.
func (h *MLHandler) EvaluationResults(c *gin.Context) {
	results, err := evaluation.Results(c.Request.Context(), h.evalStore, c.Param("id"))
	if err != nil {
		h.logger.Error("evaluation results", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type activationRequest struct {
	ActivatedBy string `json:"activatedBy" binding:"required"`
}

// Activate promotes a model to active, requiring it to have a
// completed evaluation result on file.
func (h *MLHandler) Activate(c *gin.Context) {
	var req activationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active, err := h.activation.Activate(c.Request.Context(), c.Param("id"), req.ActivatedBy)
	if err != nil {
		h.respondActivationError(c, err)
		return
	}
	c.JSON(http.StatusOK, active)
}

// Rollback reactivates the most recent prior activation history entry
// for a model.
func (h *MLHandler) Rollback(c *gin.Context) {
	var req activationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active, err := h.activation.Rollback(c.Request.Context(), c.Param("id"), req.ActivatedBy)
	if err != nil {
		h.respondActivationError(c, err)
		return
	}
	c.JSON(http.StatusOK, active)
}

func (h *MLHandler) respondActivationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrModelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errModelNotFound})
	case errors.Is(err, domain.ErrNoEvaluationResult):
		c.JSON(http.StatusConflict, gin.H{"error": errNoEvaluation})
	case errors.Is(err, domain.ErrModelActivation):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("activation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

// ActiveModel returns the currently active model pointer.
func (h *MLHandler) ActiveModel(c *gin.Context) {
	active, err := h.activation.GetActive(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveModel) {
			c.JSON(http.StatusNotFound, gin.H{"error": errNoActiveModel})
			return
		}
		h.logger.Error("active model", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, active)
}

// ActivationHistory returns the most recent activate/rollback flips.
func (h *MLHandler) ActivationHistory(c *gin.Context) {
	history, err := h.activationHistory.ListHistory(c.Request.Context(), 50)
	if err != nil {
		h.logger.Error("activation history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

type retrainRequest struct {
	TriggeredBy string `json:"triggeredBy"`
}

// TriggerRetrain kicks off a manual retrain pass for the currently
// active model.
func (h *MLHandler) TriggerRetrain(c *gin.Context) {
	var req retrainRequest
	_ = c.ShouldBindJSON(&req)
	if req.TriggeredBy == "" {
		req.TriggeredBy = "manual"
	}

	job, err := h.retrain.RunOnce(c.Request.Context(), req.TriggeredBy)
	if err != nil {
		if errors.Is(err, domain.ErrRetrainInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": errRetrainRunning})
			return
		}
		h.logger.Error("trigger retrain", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, job)
}

// RetrainStatus reports whether a retrain pass is currently running
// and the most recent job record, if any.
func (h *MLHandler) RetrainStatus(c *gin.Context) {
	jobs, err := h.retrainHistory.ListJobs(c.Request.Context(), 1)
	if err != nil {
		h.logger.Error("retrain status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	var lastJob *domain.RetrainJob
	if len(jobs) > 0 {
		lastJob = jobs[0]
	}
	c.JSON(http.StatusOK, gin.H{"running": h.retrain.IsRunning(), "lastJob": lastJob})
}

// RetrainHistory returns the most recent retrain job records.
func (h *MLHandler) RetrainHistory(c *gin.Context) {
	jobs, err := h.retrainHistory.ListJobs(c.Request.Context(), 50)
	if err != nil {
		h.logger.Error("retrain history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
