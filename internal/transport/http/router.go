package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pjsousa/jobato-ml/internal/health"
	"github.com/pjsousa/jobato-ml/internal/transport/http/handler"
	"github.com/pjsousa/jobato-ml/internal/transport/http/middleware"
)

func NewRouter(mlHandler *handler.MLHandler, checker *health.Checker, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics())

	readyHandler := func(c *gin.Context) {
		result := checker.Readiness(c.Request.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, result)
	}
	r.GET("/health", readyHandler)
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, checker.Liveness(c.Request.Context()))
	})
	r.GET("/health/ready", readyHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ml := r.Group("/ml")
	ml.GET("/models", mlHandler.ListModels)
	ml.GET("/models/comparisons", mlHandler.CompareModels)
	ml.GET("/models/active", mlHandler.ActiveModel)
	ml.GET("/models/history", mlHandler.ActivationHistory)
	ml.GET("/evaluations/:id", mlHandler.EvaluationStatus)
	ml.GET("/evaluations/:id/results", mlHandler.EvaluationResults)
	ml.GET("/retrain/status", mlHandler.RetrainStatus)
	ml.GET("/retrain/history", mlHandler.RetrainHistory)

	protected := ml.Group("", middleware.Auth(jwtKey))
	protected.POST("/evaluations", mlHandler.TriggerEvaluation)
	protected.POST("/models/:id/activate", mlHandler.Activate)
	protected.POST("/models/:id/rollback", mlHandler.Rollback)
	protected.POST("/retrain/trigger", mlHandler.TriggerRetrain)

	return r
}
