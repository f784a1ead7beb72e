package runworker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pjsousa/jobato-ml/internal/activation"
	"github.com/pjsousa/jobato-ml/internal/cache"
	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/eventstream"
	"github.com/pjsousa/jobato-ml/internal/mlmodel"
	"github.com/pjsousa/jobato-ml/internal/quota"
	"github.com/pjsousa/jobato-ml/internal/repository"
	"github.com/pjsousa/jobato-ml/internal/resolver"
	"github.com/pjsousa/jobato-ml/internal/search"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memQuotaStore struct {
	usage map[string]int
}

func (m *memQuotaStore) GetDailyUsage(ctx context.Context, day, runID string) (int, error) {
	return m.usage[day], nil
}

func (m *memQuotaStore) IncrementUsage(ctx context.Context, day, runID string, delta int) (int, error) {
	if m.usage == nil {
		m.usage = map[string]int{}
	}
	m.usage[day] += delta
	return m.usage[day], nil
}

type memRunStore struct {
	repo     repository.RunResultRepository
	promoted []string
}

func (m *memRunStore) OpenRun(ctx context.Context, runID string) (repository.RunResultRepository, string, func() error, error) {
	return m.repo, "/tmp/" + runID + ".db", func() error { return nil }, nil
}

func (m *memRunStore) PromoteCurrent(ctx context.Context, dbPath string) error {
	m.promoted = append(m.promoted, dbPath)
	return nil
}

type fakeRunRepo struct {
	inserted []*domain.RunResult
}

func (f *fakeRunRepo) Insert(ctx context.Context, r *domain.RunResult) (*domain.RunResult, error) {
	f.inserted = append(f.inserted, r)
	return r, nil
}

func (f *fakeRunRepo) InsertBatch(ctx context.Context, results []*domain.RunResult) ([]*domain.RunResult, error) {
	f.inserted = append(f.inserted, results...)
	return results, nil
}

func (f *fakeRunRepo) ListNonDuplicate(ctx context.Context, runID string) ([]*domain.RunResult, error) {
	return f.inserted, nil
}

func (f *fakeRunRepo) ListByCacheKey(ctx context.Context, runID, cacheKey string) ([]*domain.RunResult, error) {
	return nil, nil
}

func (f *fakeRunRepo) MaxLastSeenAt(ctx context.Context, normalizedURL string) (*domain.RunResult, error) {
	return nil, nil
}

func (f *fakeRunRepo) ListScoredSince(ctx context.Context, since string) ([]*domain.RunResult, error) {
	return nil, nil
}

func (f *fakeRunRepo) UpdateDedupeFields(ctx context.Context, results []*domain.RunResult) error {
	return nil
}

func (f *fakeRunRepo) UpdateScores(ctx context.Context, results []*domain.RunResult) error {
	return nil
}

type emptyActivationStore struct{}

func (emptyActivationStore) SetActive(ctx context.Context, m *domain.ActiveModel) error { return nil }
func (emptyActivationStore) GetActive(ctx context.Context) (*domain.ActiveModel, error) {
	return nil, domain.ErrNoActiveModel
}
func (emptyActivationStore) AppendHistory(ctx context.Context, e *domain.ActivationHistoryEntry) error {
	return nil
}
func (emptyActivationStore) LatestHistoryFor(ctx context.Context, modelID string) (*domain.ActivationHistoryEntry, error) {
	return nil, domain.ErrModelNotFound
}
func (emptyActivationStore) ListHistory(ctx context.Context, limit int) ([]*domain.ActivationHistoryEntry, error) {
	return nil, nil
}

type emptyEvalStore struct{}

func (emptyEvalStore) CreateRun(ctx context.Context, r *domain.EvaluationRun) error { return nil }
func (emptyEvalStore) UpdateProgress(ctx context.Context, evaluationID string, failedIncrement int) error {
	return nil
}
func (emptyEvalStore) CompleteRun(ctx context.Context, evaluationID string) error {
	return nil
}
func (emptyEvalStore) GetRun(ctx context.Context, evaluationID string) (*domain.EvaluationRun, error) {
	return nil, domain.ErrEvaluationNotFound
}
func (emptyEvalStore) StoreResult(ctx context.Context, r *domain.EvaluationResult) error { return nil }
func (emptyEvalStore) GetResults(ctx context.Context, evaluationID string) ([]*domain.EvaluationResult, error) {
	return nil, nil
}
func (emptyEvalStore) LatestCompletedResult(ctx context.Context, modelID string) (*domain.EvaluationResult, error) {
	return nil, domain.ErrNoEvaluationResult
}

func TestWorker_ProcessesRunRequestedEvent(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	stream := eventstream.New(client, "run-worker-test")
	require.NoError(t, stream.EnsureGroup(context.Background()))

	payload, err := json.Marshal(map[string]any{
		"runInputs": []map[string]string{
			{"queryText": "golang backend", "domain": "example.com", "searchQuery": "site:example.com golang backend"},
		},
	})
	require.NoError(t, err)

	_, err = stream.Publish(context.Background(), eventstream.Event{
		"eventId":      "11111111-1111-1111-1111-111111111111",
		"eventType":    "run.requested",
		"eventVersion": "1",
		"occurredAt":   "2026-07-31T12:00:00Z",
		"runId":        "run-1",
		"payload":      string(payload),
	})
	require.NoError(t, err)

	repo := &fakeRunRepo{}
	registry := mlmodel.LoadFromConfig(mlmodel.Config{})
	activationSvc := activation.NewService(emptyActivationStore{}, emptyEvalStore{}, registry)

	w := New(
		stream,
		search.NewMockClient(),
		resolver.New(testLogger()),
		fakeFetcher{},
		&memRunStore{repo: repo},
		cache.NewService(fakeCacheSource{}, cache.Config{TTLHours: 24, RevisitThrottleDays: 7}, testLogger()),
		quota.NewLedger(&memQuotaStore{}, time.UTC, 0, 1000, 1000),
		registry,
		activationSvc,
		Config{Concurrency: 2},
		testLogger(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := stream.ReadNext(ctx, "tester", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	w.handle(context.Background(), messages[0])

	require.Len(t, repo.inserted, 1)
	require.Equal(t, "run-1", repo.inserted[0].RunID)
}

type fakeFetcher struct{}

func (fakeFetcher) FetchAndExtract(ctx context.Context, runID, rawURL string) (string, string, error, error) {
	return "/tmp/fake.html", "visible text", nil, nil
}

type fakeCacheSource struct{}

func (fakeCacheSource) ListRunIDsByRecency(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (fakeCacheSource) OpenRunResults(ctx context.Context, runID string) (cache.RunResultReader, func() error, error) {
	return nil, func() error { return nil }, nil
}
