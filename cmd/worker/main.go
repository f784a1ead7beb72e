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
	"github.com/pjsousa/jobato-ml/internal/cache"
	"github.com/pjsousa/jobato-ml/internal/dailysched"
	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/eventstream"
	"github.com/pjsousa/jobato-ml/internal/health"
	"github.com/pjsousa/jobato-ml/internal/htmlfetch"
	ctxlog "github.com/pjsousa/jobato-ml/internal/log"
	"github.com/pjsousa/jobato-ml/internal/metrics"
	"github.com/pjsousa/jobato-ml/internal/mlconfig"
	"github.com/pjsousa/jobato-ml/internal/mlmodel"
	"github.com/pjsousa/jobato-ml/internal/quota"
	"github.com/pjsousa/jobato-ml/internal/resolver"
	"github.com/pjsousa/jobato-ml/internal/retrain"
	"github.com/pjsousa/jobato-ml/internal/runstore"
	"github.com/pjsousa/jobato-ml/internal/runworker"
	"github.com/pjsousa/jobato-ml/internal/search"
	"github.com/pjsousa/jobato-ml/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	stream := eventstream.New(redisClient, cfg.RedisConsumerGroup)
	if err := stream.EnsureGroup(ctx); err != nil {
		stop()
		log.Fatalf("eventstream: ensure group: %v", err)
	}

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
	quotaStore := sqlite.NewQuotaStore(evalDB)

	activationSvc := activation.NewService(activationStore, evalStore, registry)

	runStore := runstore.New(cfg.DataDir)
	labelProvider := runstore.NewLabelProvider(runStore)

	quotaCfg, err := mlconfig.LoadQuota(cfg.ConfigDir)
	if err != nil {
		logger.Warn("quota.yaml load failed, using env defaults", "error", err)
		quotaCfg = mlconfig.QuotaConfig{
			DailyLimit:  cfg.DailyQuotaLimit,
			ResetPolicy: domain.ResetPolicy{TimeZone: cfg.QuotaTimeZone, ResetHour: cfg.QuotaResetHour},
		}
	}
	zone, err := time.LoadLocation(quotaCfg.ResetPolicy.TimeZone)
	if err != nil {
		logger.Warn("invalid quota timezone, falling back to UTC", "zone", quotaCfg.ResetPolicy.TimeZone, "error", err)
		zone = time.UTC
	}
	ledger := quota.NewLedger(quotaStore, zone, quotaCfg.ResetPolicy.ResetHour, quotaCfg.DailyLimit, cfg.SearchRatePerSecond)

	cacheCfg, err := mlconfig.LoadCache(cfg.ConfigDir)
	if err != nil {
		logger.Warn("cache.yaml load failed, using env defaults", "error", err)
		cacheCfg = mlconfig.CacheConfig{TTLHours: cfg.CacheTTLHours, RevisitThrottleDays: cfg.RevisitThrottleDays}
	}
	cacheService := cache.NewService(runStore, cache.Config{
		TTLHours:            cacheCfg.TTLHours,
		RevisitThrottleDays: cacheCfg.RevisitThrottleDays,
	}, logger)

	searchClient := search.Select(cfg.SearchProvider, cfg.BraveAPIKey, cfg.GoogleAPIKey, cfg.GoogleCX)
	urlResolver := resolver.New(logger)
	fetcher := htmlfetch.New(cfg.DataDir, logger)

	worker := runworker.New(
		stream,
		searchClient,
		urlResolver,
		fetcher,
		runStore,
		cacheService,
		ledger,
		registry,
		activationSvc,
		runworker.Config{Concurrency: cfg.RunWorkerConcurrency},
		logger,
	)
	go worker.Start(ctx)

	retrainPipeline := retrain.NewPipeline(retrainStore, evalStore, registry, activationSvc, labelProvider, cfg.ArtifactDir, logger)

	if cfg.RetrainEnabled {
		sched, err := dailysched.New(cfg.RetrainSchedule, zone, retrainPipeline, logger)
		if err != nil {
			stop()
			log.Fatalf("dailysched: %v", err)
		}
		go sched.Start(ctx)
		defer sched.Stop()
	}

	metrics.Register()
	checker := health.NewChecker(redisClient, cfg.DataDir+"/db", logger, prometheus.DefaultRegisterer)
	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("worker metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checker.Readiness(ctx)
			}
		}
	}()

	logger.Info("run worker started", "concurrency", cfg.RunWorkerConcurrency, "redis", cfg.RedisAddr)

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("worker shut down")
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
