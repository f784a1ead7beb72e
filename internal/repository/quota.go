package repository

import "context"

// QuotaStore persists per-day, per-run external-call usage counters.
type QuotaStore interface {
	GetDailyUsage(ctx context.Context, day, runID string) (int, error)
	IncrementUsage(ctx context.Context, day, runID string, delta int) (int, error)
}
