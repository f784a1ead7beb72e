package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/pjsousa/jobato-ml/config"
	"github.com/pjsousa/jobato-ml/internal/activation"
	"github.com/pjsousa/jobato-ml/internal/evaluation"
	"github.com/pjsousa/jobato-ml/internal/health"
	ctxlog "github.com/pjsousa/jobato-ml/internal/log"
	"github.com/pjsousa/jobato-ml/internal/metrics"
	"github.com/pjsousa/jobato-ml/internal/mlconfig"
	"github.com/pjsousa/jobato-ml/internal/mlmodel"
	"github.com/pjsousa/jobato-ml/internal/retrain"
	"github.com/pjsousa/jobato-ml/internal/runstore"
	"github.com/pjsousa/jobato-ml/internal/store/sqlite"
	httptransport "github.com/pjsousa/jobato-ml/internal/transport/http"
	"github.com/pjsousa/jobato-ml/internal/transport/http/handler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	if err := os.MkdirAll(cfg.DataDir+"/db", 0o755); err != nil {
		stop()
		log.Fatalf("data dir: %v", err)
	}

	evalDB, err := sqlite.Open(ctx, cfg.DataDir+"/db/evaluations.db", sqlite.EvaluationMigrations)
	if err != nil {
		stop()
		log.Fatalf("evaluations db: %v", err)
	}
	defer evalDB.Close()

	modelsCfg, err := mlconfig.LoadModels(cfg.ConfigDir)
	if err != nil {
		stop()
		log.Fatalf("mlconfig: %v", err)
	}
	registry := mlmodel.LoadFromConfig(modelsCfg)
	for _, loadErr := range registry.LoadErrors() {
		logger.Warn("model load error", "identifier", loadErr.Identifier, "error", loadErr.Err)
	}

	activationStore := sqlite.NewActivationStore(evalDB)
	evalStore := sqlite.NewEvaluationStore(evalDB)
	retrainStore := sqlite.NewRetrainStore(evalDB)

	activationSvc := activation.NewService(activationStore, evalStore, registry)

	runStore := runstore.New(cfg.DataDir)
	labelProvider := runstore.NewLabelProvider(runStore)

	mlCfg, err := mlconfig.LoadMLConfig(cfg.ConfigDir)
	if err != nil {
		logger.Warn("ml-config.yaml load failed, using env defaults", "error", err)
		mlCfg = mlconfig.MLConfig{EvalWorkers: cfg.EvalWorkers}
	}
	evalEngine := evaluation.NewPipeline(evalStore, registry, labelProvider, mlCfg.EvalWorkers, logger)

	retrainPipeline := retrain.NewPipeline(retrainStore, evalStore, registry, activationSvc, labelProvider, cfg.ArtifactDir, logger)

	mlHandler := handler.NewMLHandler(registry, evalStore, evalEngine, activationSvc, activationStore, retrainPipeline, retrainStore, logger)

	metrics.Register()
	checker := health.NewChecker(redisClient, cfg.DataDir+"/db", logger, prometheus.DefaultRegisterer)

	router := httptransport.NewRouter(mlHandler, checker, []byte(cfg.JWTSecret))

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
