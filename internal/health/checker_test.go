package health_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/pjsousa/jobato-ml/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func newTestChecker(p health.Pinger) (*health.Checker, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	logger := slog.Default()
	return health.NewChecker(p, "", logger, reg), reg
}

func TestLiveness_AlwaysUp(t *testing.T) {
	c, _ := newTestChecker(&mockPinger{err: errors.New("redis down")})

	result := c.Liveness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	if result.Checks != nil {
		t.Fatalf("expected no checks, got %v", result.Checks)
	}
}

func TestReadiness_RedisUp(t *testing.T) {
	c, reg := newTestChecker(&mockPinger{})

	result := c.Readiness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	redisCheck, ok := result.Checks["redis"]
	if !ok {
		t.Fatal("missing redis check")
	}
	if redisCheck.Status != "up" {
		t.Fatalf("expected redis up, got %s", redisCheck.Status)
	}

	gauge := testGauge(t, reg, "jobato_ml_health_check_up", "redis")
	if gauge != 1 {
		t.Fatalf("expected gauge 1, got %f", gauge)
	}
}

func TestReadiness_RedisDown(t *testing.T) {
	c, reg := newTestChecker(&mockPinger{err: errors.New("connection refused")})

	result := c.Readiness(context.Background())
	if result.Status != "down" {
		t.Fatalf("expected status down, got %s", result.Status)
	}
	redisCheck := result.Checks["redis"]
	if redisCheck.Status != "down" {
		t.Fatalf("expected redis down, got %s", redisCheck.Status)
	}
	if redisCheck.Error == "" {
		t.Fatal("expected error message")
	}

	gauge := testGauge(t, reg, "jobato_ml_health_check_up", "redis")
	if gauge != 0 {
		t.Fatalf("expected gauge 0, got %f", gauge)
	}
}

func TestReadiness_CurrentDBDirMissing(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := health.NewChecker(&mockPinger{}, t.TempDir()+"/nonexistent", slog.Default(), reg)

	result := c.Readiness(context.Background())
	if result.Status != "down" {
		t.Fatalf("expected status down, got %s", result.Status)
	}
	if result.Checks["current_db"].Status != "down" {
		t.Fatalf("expected current_db down, got %s", result.Checks["current_db"].Status)
	}
}

func TestReadiness_CurrentDBDirPresent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := health.NewChecker(&mockPinger{}, t.TempDir(), slog.Default(), reg)

	result := c.Readiness(context.Background())
	if result.Status != "up" {
		t.Fatalf("expected status up, got %s", result.Status)
	}
	if result.Checks["current_db"].Status != "up" {
		t.Fatalf("expected current_db up, got %s", result.Checks["current_db"].Status)
	}
}

func testGauge(t *testing.T, reg *prometheus.Registry, name, depLabel string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "dependency" && lp.GetValue() == depLabel {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{dependency=%q} not found", name, depLabel)
	return 0
}

// Silence the unused import lint for testutil if we only use Gather above.
var _ = testutil.ToFloat64
