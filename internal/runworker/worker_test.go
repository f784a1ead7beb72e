package runworker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pjsousa/jobato-ml/internal/cache"
	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/eventstream"
	"github.com/pjsousa/jobato-ml/internal/resolver"
	"github.com/pjsousa/jobato-ml/internal/search"
)

func validEvent(t *testing.T, overrides map[string]string, inputs []domain.RunInput) eventstream.Event {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"runInputs": inputs})
	require.NoError(t, err)

	event := eventstream.Event{
		"eventId":      "evt-1",
		"eventType":    "run.requested",
		"eventVersion": "1",
		"occurredAt":   "2026-07-31T12:00:00Z",
		"runId":        "run-1",
		"payload":      string(payload),
	}
	for k, v := range overrides {
		event[k] = v
	}
	return event
}

func TestParseRunRequested_Valid(t *testing.T) {
	event := validEvent(t, nil, []domain.RunInput{
		{QueryText: "golang backend", Domain: "Example.COM", SearchQuery: "site:example.com golang"},
	})
	runID, inputs, err := parseRunRequested(event)
	require.NoError(t, err)
	require.Equal(t, "run-1", runID)
	require.Len(t, inputs, 1)
	require.Equal(t, "example.com", inputs[0].Domain)
}

func TestParseRunRequested_WrongEventType(t *testing.T) {
	event := validEvent(t, map[string]string{"eventType": "run.completed"}, []domain.RunInput{
		{QueryText: "q", Domain: "d.com", SearchQuery: "s"},
	})
	_, _, err := parseRunRequested(event)
	require.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestParseRunRequested_MissingRunID(t *testing.T) {
	event := validEvent(t, map[string]string{"runId": ""}, []domain.RunInput{
		{QueryText: "q", Domain: "d.com", SearchQuery: "s"},
	})
	_, _, err := parseRunRequested(event)
	require.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestParseRunRequested_NonIntegerEventVersion(t *testing.T) {
	event := validEvent(t, map[string]string{"eventVersion": "v1"}, []domain.RunInput{
		{QueryText: "q", Domain: "d.com", SearchQuery: "s"},
	})
	_, _, err := parseRunRequested(event)
	require.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestParseRunRequested_NonRFC3339OccurredAt(t *testing.T) {
	event := validEvent(t, map[string]string{"occurredAt": "2026-07-31 12:00:00"}, []domain.RunInput{
		{QueryText: "q", Domain: "d.com", SearchQuery: "s"},
	})
	_, _, err := parseRunRequested(event)
	require.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestParseRunRequested_OccurredAtMissingZSuffix(t *testing.T) {
	event := validEvent(t, map[string]string{"occurredAt": "2026-07-31T12:00:00+00:00"}, []domain.RunInput{
		{QueryText: "q", Domain: "d.com", SearchQuery: "s"},
	})
	_, _, err := parseRunRequested(event)
	require.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestParseRunRequested_MalformedPayload(t *testing.T) {
	event := validEvent(t, map[string]string{"payload": "not json"}, nil)
	_, _, err := parseRunRequested(event)
	require.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestParseRunRequested_EmptyRunInputs(t *testing.T) {
	event := validEvent(t, nil, nil)
	_, _, err := parseRunRequested(event)
	require.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestParseRunRequested_RunInputMissingRequiredField(t *testing.T) {
	event := validEvent(t, nil, []domain.RunInput{
		{QueryText: "", Domain: "d.com", SearchQuery: "s"},
	})
	_, _, err := parseRunRequested(event)
	require.ErrorIs(t, err, domain.ErrInvalidEvent)
}

type controlledSearchClient struct{ results []search.Result }

func (c controlledSearchClient) Search(ctx context.Context, query string) ([]search.Result, error) {
	return c.results, nil
}

type noopCacheSource struct{}

func (noopCacheSource) ListRunIDsByRecency(ctx context.Context) ([]string, error) { return nil, nil }
func (noopCacheSource) OpenRunResults(ctx context.Context, runID string) (cache.RunResultReader, func() error, error) {
	return nil, func() error { return nil }, nil
}

type throttleReader struct {
	normalizedURL string
	lastSeen      time.Time
}

func (r throttleReader) ListByCacheKey(ctx context.Context, runID, cacheKey string) ([]*domain.RunResult, error) {
	return nil, nil
}

func (r throttleReader) MaxLastSeenAt(ctx context.Context, normalizedURL string) (*domain.RunResult, error) {
	if normalizedURL != r.normalizedURL {
		return nil, nil
	}
	seen := r.lastSeen
	return &domain.RunResult{LastSeenAt: &seen}, nil
}

type throttleCacheSource struct {
	reader throttleReader
}

func (s throttleCacheSource) ListRunIDsByRecency(ctx context.Context) ([]string, error) {
	return []string{"run-old"}, nil
}

func (s throttleCacheSource) OpenRunResults(ctx context.Context, runID string) (cache.RunResultReader, func() error, error) {
	return s.reader, func() error { return nil }, nil
}

func newTestWorker(searchClient search.Client, cacheSvc *cache.Service, res *resolver.Resolver) *Worker {
	return &Worker{
		searchClient: searchClient,
		resolver:     res,
		fetcher:      fakeFetcher{},
		cacheService: cacheSvc,
		logger:       testLogger(),
	}
}

func TestProcessInput_RevisitThrottlePersistsSkipReason(t *testing.T) {
	normalized := "https://example.com/a"
	lastSeen := time.Now().Add(-1 * time.Hour) // well within the 7-day throttle window
	cacheSvc := cache.NewService(throttleCacheSource{reader: throttleReader{normalizedURL: normalized, lastSeen: lastSeen}}, cache.Config{TTLHours: 24, RevisitThrottleDays: 7}, testLogger())
	client := controlledSearchClient{results: []search.Result{{URL: "https://example.com/a", Title: "t", Snippet: "s"}}}
	w := newTestWorker(client, cacheSvc, resolver.New(testLogger()))

	items, issuedCall, skipped404, err := w.processInput(context.Background(), "run-1", domain.RunInput{
		QueryText: "q", Domain: "example.com", SearchQuery: "s",
	})
	require.NoError(t, err)
	require.True(t, issuedCall)
	require.Equal(t, 0, skipped404)
	require.Len(t, items, 1)
	require.Equal(t, "revisit_throttle", items[0].SkipReason)
	require.Empty(t, items[0].FetchError)
}

func TestProcessInput_NormalizationErrorIsPersisted(t *testing.T) {
	cacheSvc := cache.NewService(noopCacheSource{}, cache.Config{TTLHours: 24, RevisitThrottleDays: 7}, testLogger())
	client := controlledSearchClient{results: []search.Result{{URL: "chrome://settings", Title: "t", Snippet: "s"}}}
	w := newTestWorker(client, cacheSvc, resolver.New(testLogger()))

	items, issuedCall, skipped404, err := w.processInput(context.Background(), "run-1", domain.RunInput{
		QueryText: "q", Domain: "example.com", SearchQuery: "s",
	})
	require.NoError(t, err)
	require.True(t, issuedCall)
	require.Equal(t, 0, skipped404)
	require.Len(t, items, 1)
	require.NotEmpty(t, items[0].NormalizationError)
	require.Empty(t, items[0].NormalizedURL)
}

func TestProcessInput_404IsSkippedNotPersisted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cacheSvc := cache.NewService(noopCacheSource{}, cache.Config{TTLHours: 24, RevisitThrottleDays: 7}, testLogger())
	client := controlledSearchClient{results: []search.Result{{URL: srv.URL, Title: "t", Snippet: "s"}}}
	w := newTestWorker(client, cacheSvc, resolver.New(testLogger()))

	items, issuedCall, skipped404, err := w.processInput(context.Background(), "run-1", domain.RunInput{
		QueryText: "q", Domain: "example.com", SearchQuery: "s",
	})
	require.NoError(t, err)
	require.True(t, issuedCall)
	require.Equal(t, 1, skipped404)
	require.Empty(t, items)
}

func TestProcessInput_CacheHitReplaysWithoutIssuingCall(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	cachedResult := &domain.RunResult{ID: 99, CacheExpiresAt: &expires, Title: "cached"}

	hitSource := cacheHitSource{cacheKey: cache.GenerateCacheKey("q", "example.com"), result: cachedResult}
	cacheSvc := cache.NewService(hitSource, cache.Config{TTLHours: 24, RevisitThrottleDays: 7}, testLogger())
	client := controlledSearchClient{} // would fail the test if Search is invoked
	w := newTestWorker(client, cacheSvc, resolver.New(testLogger()))

	items, issuedCall, skipped404, err := w.processInput(context.Background(), "run-1", domain.RunInput{
		QueryText: "q", Domain: "example.com", SearchQuery: "s",
	})
	require.NoError(t, err)
	require.False(t, issuedCall)
	require.Equal(t, 0, skipped404)
	require.Len(t, items, 1)
	require.Equal(t, "cached", items[0].Title)
}

type cacheHitReader struct {
	cacheKey string
	result   *domain.RunResult
}

func (r cacheHitReader) ListByCacheKey(ctx context.Context, runID, cacheKey string) ([]*domain.RunResult, error) {
	if cacheKey != r.cacheKey {
		return nil, nil
	}
	return []*domain.RunResult{r.result}, nil
}

func (r cacheHitReader) MaxLastSeenAt(ctx context.Context, normalizedURL string) (*domain.RunResult, error) {
	return nil, nil
}

type cacheHitSource struct {
	cacheKey string
	result   *domain.RunResult
}

func (s cacheHitSource) ListRunIDsByRecency(ctx context.Context) ([]string, error) {
	return []string{"run-old"}, nil
}

func (s cacheHitSource) OpenRunResults(ctx context.Context, runID string) (cache.RunResultReader, func() error, error) {
	return cacheHitReader{cacheKey: s.cacheKey, result: s.result}, func() error { return nil }, nil
}
