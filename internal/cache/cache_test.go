package cache

import (
	"context"
	"testing"
	"time"

	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	byCacheKey map[string][]*domain.RunResult
	maxSeen    map[string]*domain.RunResult
}

func (f *fakeReader) ListByCacheKey(ctx context.Context, runID, cacheKey string) ([]*domain.RunResult, error) {
	return f.byCacheKey[cacheKey], nil
}

func (f *fakeReader) MaxLastSeenAt(ctx context.Context, normalizedURL string) (*domain.RunResult, error) {
	return f.maxSeen[normalizedURL], nil
}

type fakeSource struct {
	runIDs  []string
	readers map[string]*fakeReader
}

func (f *fakeSource) ListRunIDsByRecency(ctx context.Context) ([]string, error) {
	return f.runIDs, nil
}

func (f *fakeSource) OpenRunResults(ctx context.Context, runID string) (RunResultReader, func() error, error) {
	return f.readers[runID], func() error { return nil }, nil
}

func TestGenerateCacheKey_Stable(t *testing.T) {
	a := GenerateCacheKey("golang engineer", "example.com")
	b := GenerateCacheKey("golang engineer", "example.com")
	require.Equal(t, a, b)
}

func TestGenerateCacheKey_CaseAndWhitespaceInsensitive(t *testing.T) {
	a := GenerateCacheKey("Golang  Engineer", "Example.COM")
	b := GenerateCacheKey("golang engineer", "example.com")
	require.Equal(t, a, b)
}

func TestGenerateCacheKey_DifferentInputsDiffer(t *testing.T) {
	a := GenerateCacheKey("golang engineer", "example.com")
	b := GenerateCacheKey("python engineer", "example.com")
	require.NotEqual(t, a, b)
}

func TestLookup_HitWhenFresh(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)
	reader := &fakeReader{byCacheKey: map[string][]*domain.RunResult{
		"key-1": {{ID: 1, CacheExpiresAt: &expires}},
	}}
	src := &fakeSource{runIDs: []string{"run-old"}, readers: map[string]*fakeReader{"run-old": reader}}
	svc := NewService(src, Config{TTLHours: 12, RevisitThrottleDays: 7}, testLogger())

	results, err := svc.Lookup(context.Background(), "key-1", now)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, now, *results[0].CachedAt)
}

func TestLookup_MissWhenExpired(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	reader := &fakeReader{byCacheKey: map[string][]*domain.RunResult{
		"key-1": {{ID: 1, CacheExpiresAt: &expired}},
	}}
	src := &fakeSource{runIDs: []string{"run-old"}, readers: map[string]*fakeReader{"run-old": reader}}
	svc := NewService(src, Config{TTLHours: 12, RevisitThrottleDays: 7}, testLogger())

	results, err := svc.Lookup(context.Background(), "key-1", now)
	require.NoError(t, err)
	require.Nil(t, results)
}

func TestIsRevisitAllowed_ThrottledBeforeCutoff(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	lastSeen := now.Add(-6 * 24 * time.Hour)
	reader := &fakeReader{maxSeen: map[string]*domain.RunResult{
		"https://example.com/a": {LastSeenAt: &lastSeen},
	}}
	src := &fakeSource{runIDs: []string{"run-old"}, readers: map[string]*fakeReader{"run-old": reader}}
	svc := NewService(src, Config{TTLHours: 12, RevisitThrottleDays: 7}, testLogger())

	allowed, err := svc.IsRevisitAllowed(context.Background(), "https://example.com/a", now)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestIsRevisitAllowed_AllowedAtExactCutoff(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	lastSeen := now.Add(-7 * 24 * time.Hour)
	reader := &fakeReader{maxSeen: map[string]*domain.RunResult{
		"https://example.com/a": {LastSeenAt: &lastSeen},
	}}
	src := &fakeSource{runIDs: []string{"run-old"}, readers: map[string]*fakeReader{"run-old": reader}}
	svc := NewService(src, Config{TTLHours: 12, RevisitThrottleDays: 7}, testLogger())

	allowed, err := svc.IsRevisitAllowed(context.Background(), "https://example.com/a", now)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestIsRevisitAllowed_NoPriorVisit(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{runIDs: nil, readers: map[string]*fakeReader{}}
	svc := NewService(src, Config{TTLHours: 12, RevisitThrottleDays: 7}, testLogger())

	allowed, err := svc.IsRevisitAllowed(context.Background(), "https://example.com/a", now)
	require.NoError(t, err)
	require.True(t, allowed)
}
