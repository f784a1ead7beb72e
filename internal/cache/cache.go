// Package cache implements the cross-run result cache and the
// per-URL revisit throttle, both backed by scans over prior per-run
// SQLite databases.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

var collapseWhitespaceRe = regexp.MustCompile(`\s+`)

// PriorRunSource lists prior run databases newest-first and opens a
// read-only result repository against one of them.
type PriorRunSource interface {
	ListRunIDsByRecency(ctx context.Context) ([]string, error)
	OpenRunResults(ctx context.Context, runID string) (RunResultReader, func() error, error)
}

// RunResultReader is the narrow read surface cache needs from a run's
// result store.
type RunResultReader interface {
	ListByCacheKey(ctx context.Context, runID, cacheKey string) ([]*domain.RunResult, error)
	MaxLastSeenAt(ctx context.Context, normalizedURL string) (*domain.RunResult, error)
}

type Config struct {
	TTLHours            int
	RevisitThrottleDays int
}

type Service struct {
	source PriorRunSource
	cfg    Config
	logger *slog.Logger
}

func NewService(source PriorRunSource, cfg Config, logger *slog.Logger) *Service {
	return &Service{source: source, cfg: cfg, logger: logger.With("component", "cache")}
}

// GenerateCacheKey derives a stable key from query text and domain:
// md5(lower(collapse_ws(queryText)) | lower(domain)), so queries that
// differ only in case or incidental whitespace still hit the same
// cache bundle.
func GenerateCacheKey(queryText, domain string) string {
	normalizedQuery := strings.ToLower(collapseWhitespaceRe.ReplaceAllString(strings.TrimSpace(queryText), " "))
	normalizedDomain := strings.ToLower(strings.TrimSpace(domain))
	sum := md5.Sum([]byte(normalizedQuery + "|" + normalizedDomain))
	return hex.EncodeToString(sum[:])
}

// IsFresh reports whether a cached result is still valid: it is fresh
// while now is strictly before its expiresAt timestamp.
func IsFresh(expiresAt time.Time, now time.Time) bool {
	return now.Before(expiresAt)
}

// Lookup scans prior runs (newest first) for a fresh cache hit on
// cacheKey, replaying the canonical fields with a fresh cachedAt and
// cacheExpiresAt. Returns nil results on a miss.
func (s *Service) Lookup(ctx context.Context, cacheKey string, now time.Time) ([]*domain.RunResult, error) {
	runIDs, err := s.source.ListRunIDsByRecency(ctx)
	if err != nil {
		return nil, err
	}

	for _, runID := range runIDs {
		reader, closeFn, err := s.source.OpenRunResults(ctx, runID)
		if err != nil {
			s.logger.Warn("cache.open_error", "run_id", runID, "error", err)
			continue
		}

		results, err := reader.ListByCacheKey(ctx, runID, cacheKey)
		closeErr := closeFn()
		if closeErr != nil {
			s.logger.Warn("cache.close_error", "run_id", runID, "error", closeErr)
		}
		if err != nil {
			s.logger.Warn("cache.read_error", "run_id", runID, "error", err)
			continue
		}
		if len(results) == 0 {
			continue
		}

		first := results[0]
		if first.CacheExpiresAt == nil || !IsFresh(*first.CacheExpiresAt, now) {
			s.logger.Info("cache.expired", "run_id", runID, "cache_key", cacheKey)
			continue
		}

		s.logger.Info("cache.hit", "run_id", runID, "cache_key", cacheKey)
		expires := now.Add(time.Duration(s.cfg.TTLHours) * time.Hour)
		replayed := make([]*domain.RunResult, len(results))
		for i, r := range results {
			copy := *r
			copy.CachedAt = &now
			copy.CacheExpiresAt = &expires
			replayed[i] = &copy
		}
		return replayed, nil
	}

	s.logger.Info("cache.miss", "cache_key", cacheKey)
	return nil, nil
}

// IsRevisitAllowed scans prior runs for the max last_seen_at recorded
// for normalizedURL and enforces the revisit throttle: strictly before
// the cutoff is throttled, exactly at or after the cutoff is allowed.
func (s *Service) IsRevisitAllowed(ctx context.Context, normalizedURL string, now time.Time) (bool, error) {
	runIDs, err := s.source.ListRunIDsByRecency(ctx)
	if err != nil {
		return false, err
	}

	var maxSeen *time.Time
	for _, runID := range runIDs {
		reader, closeFn, err := s.source.OpenRunResults(ctx, runID)
		if err != nil {
			continue
		}
		result, err := reader.MaxLastSeenAt(ctx, normalizedURL)
		_ = closeFn()
		if err != nil || result == nil || result.LastSeenAt == nil {
			continue
		}
		if maxSeen == nil || result.LastSeenAt.After(*maxSeen) {
			maxSeen = result.LastSeenAt
		}
	}

	if maxSeen == nil {
		return true, nil
	}

	cutoff := maxSeen.Add(time.Duration(s.cfg.RevisitThrottleDays) * 24 * time.Hour)
	return !now.Before(cutoff), nil
}
