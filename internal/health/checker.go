package health

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pinger is satisfied by *redis.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckResult represents the health of a single dependency.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResult is the top-level health response.
type HealthResult struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker verifies that all dependencies are reachable.
type Checker struct {
	db     Pinger
	dbDir  string
	logger *slog.Logger
	gauge  *prometheus.GaugeVec
}

// NewChecker creates a health checker and registers its Prometheus gauge.
// dbDir is the directory holding the current-db pointer file; pass "" to
// skip that check (e.g. in components that never open a run database).
func NewChecker(redisClient Pinger, dbDir string, logger *slog.Logger, reg prometheus.Registerer) *Checker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jobato_ml",
		Name:      "health_check_up",
		Help:      "Whether a dependency is reachable. 1 = up, 0 = down.",
	}, []string{"dependency"})
	reg.MustRegister(gauge)

	return &Checker{
		db:     redisClient,
		dbDir:  dbDir,
		logger: logger.With("component", "health"),
		gauge:  gauge,
	}
}

// Liveness returns a simple "up" response if the process is running.
func (c *Checker) Liveness(_ context.Context) HealthResult {
	return HealthResult{Status: "up"}
}

// Readiness pings every dependency and reports per-check status.
func (c *Checker) Readiness(ctx context.Context) HealthResult {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	result := HealthResult{
		Status: "up",
		Checks: make(map[string]CheckResult),
	}

	if err := c.db.Ping(checkCtx); err != nil {
		c.logger.Warn("redis health check failed", "error", err)
		result.Status = "down"
		result.Checks["redis"] = CheckResult{Status: "down", Error: err.Error()}
		c.gauge.WithLabelValues("redis").Set(0)
	} else {
		result.Checks["redis"] = CheckResult{Status: "up"}
		c.gauge.WithLabelValues("redis").Set(1)
	}

	if c.dbDir != "" {
		if _, err := os.Stat(c.dbDir); err != nil {
			c.logger.Warn("current-db directory unreachable", "error", err)
			result.Status = "down"
			result.Checks["current_db"] = CheckResult{Status: "down", Error: err.Error()}
			c.gauge.WithLabelValues("current_db").Set(0)
		} else {
			result.Checks["current_db"] = CheckResult{Status: "up"}
			c.gauge.WithLabelValues("current_db").Set(1)
		}
	}

	return result
}
