package handler

const (
	errInternalServer   = "Internal server error"
	errModelNotFound    = "Model not in registry"
	errNoActiveModel    = "No active model"
	errNoEvaluation     = "No completed evaluation for model"
	errRetrainRunning   = "Retrain already in progress"
	errEvaluationNotFound = "Evaluation run not found"
)
