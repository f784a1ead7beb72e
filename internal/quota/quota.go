// Package quota implements the daily quota ledger and the
// quota-aware, concurrency-bounded dispatch used when fanning out
// external calls for a run.
package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/repository"
)

// Ledger tracks and enforces the daily quota, serialized by a single
// process-wide mutex the way the original's threading.Lock did. It
// also rate-limits outbound search calls, independent of the
// per-dispatch concurrency cap, so a burst of concurrency doesn't
// translate into a burst against the external search provider.
type Ledger struct {
	store      repository.QuotaStore
	zone       *time.Location
	resetHour  int
	dailyLimit int
	limiter    *rate.Limiter

	mu sync.Mutex
}

func NewLedger(store repository.QuotaStore, zone *time.Location, resetHour, dailyLimit int, ratePerSecond float64) *Ledger {
	return &Ledger{
		store:      store,
		zone:       zone,
		resetHour:  resetHour,
		dailyLimit: dailyLimit,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}
}

func (l *Ledger) Day(moment time.Time) string {
	return domain.QuotaDayFor(moment, l.zone, l.resetHour)
}

// Remaining returns how many calls are still allowed for runID today.
func (l *Ledger) Remaining(ctx context.Context, runID string, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	used, err := l.store.GetDailyUsage(ctx, l.Day(now), runID)
	if err != nil {
		return 0, err
	}
	remaining := l.dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Increment records one unit of usage and returns the new total.
func (l *Ledger) Increment(ctx context.Context, runID string, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.store.IncrementUsage(ctx, l.Day(now), runID, 1)
}

// Dispatch runs work for up to quota-remaining items from inputs, with
// at most concurrencyLimit in flight. It increments the ledger before
// each call. work errors are collected but do not stop dispatch; once
// every dispatched item has finished they are returned joined with
// errors.Join. The outcome reflects whether the quota was exhausted
// before all inputs were processed.
func Dispatch[T any](
	ctx context.Context,
	ledger *Ledger,
	runID string,
	inputs []T,
	concurrencyLimit int,
	work func(ctx context.Context, input T) error,
) (domain.DispatchResult, error) {
	now := time.Now()
	remaining, err := ledger.Remaining(ctx, runID, now)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	toDispatch := len(inputs)
	quotaLimited := false
	if toDispatch > remaining {
		toDispatch = remaining
		quotaLimited = true
	}

	if concurrencyLimit < 1 {
		concurrencyLimit = 1
	}

	sem := make(chan struct{}, concurrencyLimit)
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var workErrs []error

	for i := 0; i < toDispatch; i++ {
		input := inputs[i]
		if _, err := ledger.Increment(ctx, runID, now); err != nil {
			return domain.DispatchResult{}, err
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(in T) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := ledger.limiter.Wait(ctx); err != nil {
				return
			}
			if err := work(ctx, in); err != nil {
				errMu.Lock()
				workErrs = append(workErrs, err)
				errMu.Unlock()
			}
		}(input)
	}
	wg.Wait()
	workErr := errors.Join(workErrs...)

	if quotaLimited {
		return domain.DispatchResult{
			Outcome:    domain.DispatchPartialQuota,
			Dispatched: toDispatch,
			Reason:     "quota-reached",
		}, workErr
	}
	return domain.DispatchResult{Outcome: domain.DispatchCompleted, Dispatched: toDispatch}, workErr
}
