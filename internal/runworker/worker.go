// Package runworker consumes run.requested events off the event
// stream and executes the full per-run ingestion pipeline: quota-aware
// dispatch over the event's runInputs, cache/throttle checks, resolve,
// fetch+extract, dedupe, score, persist — then publishes run.completed
// or run.failed.
package runworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pjsousa/jobato-ml/internal/activation"
	"github.com/pjsousa/jobato-ml/internal/cache"
	"github.com/pjsousa/jobato-ml/internal/dedupe"
	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/eventstream"
	"github.com/pjsousa/jobato-ml/internal/metrics"
	"github.com/pjsousa/jobato-ml/internal/mlmodel"
	"github.com/pjsousa/jobato-ml/internal/quota"
	"github.com/pjsousa/jobato-ml/internal/repository"
	"github.com/pjsousa/jobato-ml/internal/resolver"
	"github.com/pjsousa/jobato-ml/internal/scoring"
	"github.com/pjsousa/jobato-ml/internal/search"
	"github.com/pjsousa/jobato-ml/internal/urlnorm"
)

const eventTypeRunRequested = "run.requested"
const eventTypeRunCompleted = "run.completed"
const eventTypeRunFailed = "run.failed"
const eventVersion = 1

// RunStore opens (creating + migrating) the per-run SQLite database
// and returns its result repository plus the DB path.
type RunStore interface {
	OpenRun(ctx context.Context, runID string) (repository.RunResultRepository, string, func() error, error)
	PromoteCurrent(ctx context.Context, dbPath string) error
}

type Worker struct {
	id           string
	stream       *eventstream.Stream
	searchClient search.Client
	resolver     *resolver.Resolver
	fetcher      fetcher
	runStore     RunStore
	cacheService *cache.Service
	ledger       *quota.Ledger
	registry     *mlmodel.Registry
	activation   *activation.Service
	concurrency  int
	logger       *slog.Logger
}

type fetcher interface {
	FetchAndExtract(ctx context.Context, runID, rawURL string) (htmlPath, visibleText string, fetchErr, extractErr error)
}

type Config struct {
	Concurrency int
}

func New(
	stream *eventstream.Stream,
	searchClient search.Client,
	res *resolver.Resolver,
	htmlFetcher fetcher,
	runStore RunStore,
	cacheService *cache.Service,
	ledger *quota.Ledger,
	registry *mlmodel.Registry,
	activationSvc *activation.Service,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	hostname, _ := os.Hostname()
	return &Worker{
		id:           fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		stream:       stream,
		searchClient: searchClient,
		resolver:     res,
		fetcher:      htmlFetcher,
		runStore:     runStore,
		cacheService: cacheService,
		ledger:       ledger,
		registry:     registry,
		activation:   activationSvc,
		concurrency:  cfg.Concurrency,
		logger:       logger.With("component", "run_worker"),
	}
}

// Start blocks, consuming run.requested events until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("run_worker.started", "worker_id", w.id)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("run_worker.shutdown")
			return
		default:
		}

		messages, err := w.stream.ReadNext(ctx, w.id, 10)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("run_worker.read_error", "error", err)
			time.Sleep(time.Second)
			continue
		}

		var wg sync.WaitGroup
		for _, msg := range messages {
			wg.Add(1)
			go func(m eventstream.Message) {
				defer wg.Done()
				w.handle(ctx, m)
			}(msg)
		}
		wg.Wait()
	}
}

func (w *Worker) handle(ctx context.Context, msg eventstream.Message) {
	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	started := time.Now()
	runID, inputs, err := parseRunRequested(msg.Event)
	if err != nil {
		w.logger.Warn("run_worker.bad_event", "id", msg.ID, "error", err)
		_ = w.stream.Ack(ctx, msg.ID)
		return
	}

	run := &domain.Run{ID: runID, Inputs: inputs, Status: domain.RunStatusRunning, StartedAt: started}

	err = w.executeRun(ctx, run)
	completedAt := time.Now()
	run.CompletedAt = &completedAt

	outcome := "completed"
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Reason = err.Error()
		run.ErrorCode = classifyError(err)
		outcome = "failed"
		w.publishFailed(ctx, run)
	} else {
		if run.Status == "" {
			run.Status = domain.RunStatusCompleted
		}
		outcome = string(run.Status)
		w.publishCompleted(ctx, run)
	}

	metrics.RunDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	metrics.RunsCompletedTotal.WithLabelValues(outcome).Inc()

	if ackErr := w.stream.Ack(ctx, msg.ID); ackErr != nil {
		w.logger.Error("run_worker.ack_failed", "id", msg.ID, "error", ackErr)
	}
}

// classifyError maps an ingestion failure to the run.failed errorCode
// enum: network-class failures (search/resolve/fetch/timeout) surface
// as NETWORK_ERROR, everything else as INGESTION_ERROR.
func classifyError(err error) string {
	if errors.Is(err, domain.ErrNetworkFailure) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrorCodeNetwork
	}
	return domain.ErrorCodeIngestion
}

func (w *Worker) executeRun(ctx context.Context, run *domain.Run) error {
	repo, dbPath, closeFn, err := w.runStore.OpenRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("open run db: %w", err)
	}
	defer closeFn()
	run.DBPath = dbPath

	var mu sync.Mutex
	var persisted []*domain.RunResult

	dispatchResult, err := quota.Dispatch(ctx, w.ledger, run.ID, run.Inputs, w.concurrency, func(ctx context.Context, input domain.RunInput) error {
		items, issuedCall, skipped404, perr := w.processInput(ctx, run.ID, input)
		mu.Lock()
		if issuedCall {
			run.IssuedCalls++
		}
		run.Skipped404 += skipped404
		if perr != nil {
			mu.Unlock()
			w.logger.Warn("run_worker.input_failed", "run_id", run.ID, "query_text", input.QueryText, "domain", input.Domain, "error", perr)
			return perr
		}
		if len(items) == 0 {
			run.ZeroResults = append(run.ZeroResults, domain.ZeroResult{
				QueryText: input.QueryText, Domain: input.Domain, OccurredAt: time.Now().UTC(),
			})
		} else {
			persisted = append(persisted, items...)
			if issuedCall {
				run.NewJobsCount += len(items)
			}
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	if len(persisted) > 0 {
		if _, err := repo.InsertBatch(ctx, persisted); err != nil {
			return fmt.Errorf("persist run items: %w", err)
		}
	}
	run.PersistedResults = len(persisted)

	nonDuplicate, err := repo.ListNonDuplicate(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list non duplicate: %w", err)
	}
	outcome := dedupe.Run(nonDuplicate, dedupe.DefaultSimilarityThreshold)
	if err := repo.UpdateDedupeFields(ctx, nonDuplicate); err != nil {
		return fmt.Errorf("update dedupe fields: %w", err)
	}
	w.logger.Info("run_worker.dedupe_complete", "run_id", run.ID, "duplicates", outcome.DuplicatesFound, "canonical", outcome.CanonicalCount)

	canonical, err := repo.ListNonDuplicate(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list non duplicate for scoring: %w", err)
	}
	// Score via the currently active model, falling back to baseline
	// when there's no active model, it's not in the registry, or
	// Predict fails — scoring must always run (spec: "or baseline").
	var model domain.Model
	modelVersion := scoring.BaselineVersion
	if active, aErr := w.activation.GetActive(ctx); aErr == nil {
		if m := w.registry.GetModel(active.ModelID); m != nil {
			model = m
			if entry, ok := w.registry.GetEntry(active.ModelID); ok {
				modelVersion = entry.Version
			} else {
				modelVersion = active.ModelVersion
			}
		}
	}
	if err := scoring.Score(ctx, model, modelVersion, canonical, time.Now(), w.logger); err != nil {
		w.logger.Warn("run_worker.scoring_failed", "run_id", run.ID, "error", err)
	} else if err := repo.UpdateScores(ctx, canonical); err != nil {
		w.logger.Warn("run_worker.update_scores_failed", "run_id", run.ID, "error", err)
	}
	for _, r := range canonical {
		if r.RelevanceScore != nil && *r.RelevanceScore > 0 {
			run.RelevantCount++
		}
	}

	run.ItemCount = len(persisted)
	if dispatchResult.Outcome == domain.DispatchPartialQuota {
		run.Status = domain.RunStatusPartial
		run.Reason = dispatchResult.Reason
		metrics.QuotaExhaustedTotal.Inc()
	} else {
		run.Status = domain.RunStatusCompleted
	}

	if err := w.runStore.PromoteCurrent(ctx, dbPath); err != nil {
		w.logger.Error("run_worker.promote_current_failed", "run_id", run.ID, "error", err)
	}
	return nil
}

// processInput drives one RunInput through cache probe → search →
// (per result) normalize → revisit-throttle → resolve → fetch+extract.
// Every outcome except a resolver 404 is persisted, carrying whatever
// error/skip-reason field applies, matching the spec's "never silently
// drop a candidate" error-handling rules. issuedCall reports whether an
// actual search-provider call was made (false on a cache hit).
func (w *Worker) processInput(ctx context.Context, runID string, input domain.RunInput) (items []*domain.RunResult, issuedCall bool, skipped404 int, err error) {
	cacheKey := cache.GenerateCacheKey(input.QueryText, input.Domain)

	if cached, cerr := w.cacheService.Lookup(ctx, cacheKey, time.Now()); cerr == nil && len(cached) > 0 {
		replayed := make([]*domain.RunResult, len(cached))
		for i, c := range cached {
			replay := *c
			replay.ID = 0
			replay.RunID = runID
			replay.QueryID = input.QueryID
			replay.QueryText = input.QueryText
			replay.SearchQuery = input.SearchQuery
			replayed[i] = &replay
		}
		return replayed, false, 0, nil
	}

	results, serr := w.searchClient.Search(ctx, input.SearchQuery)
	issuedCall = true
	if serr != nil {
		return nil, issuedCall, 0, fmt.Errorf("%w: %s", domain.ErrNetworkFailure, serr.Error())
	}

	now := time.Now()
	for _, r := range results {
		item := &domain.RunResult{
			RunID:       runID,
			QueryID:     input.QueryID,
			QueryText:   input.QueryText,
			SearchQuery: input.SearchQuery,
			Domain:      input.Domain,
			RawURL:      r.URL,
			Title:       r.Title,
			Snippet:     r.Snippet,
			CacheKey:    cacheKey,
			CreatedAt:   now,
		}

		normalized, nerr := urlnorm.Normalize(r.URL)
		if nerr != nil {
			item.NormalizationError = nerr.Error()
			items = append(items, item)
			continue
		}
		item.NormalizedURL = normalized

		allowed, rerr := w.cacheService.IsRevisitAllowed(ctx, normalized, now)
		if rerr != nil {
			w.logger.Warn("run_worker.revisit_check_failed", "url", normalized, "error", rerr)
		}
		if rerr == nil && !allowed {
			item.SkipReason = "revisit_throttle"
			item.LastSeenAt = &now
			items = append(items, item)
			continue
		}

		resolved, resErr := w.resolver.Resolve(ctx, r.URL)
		if resErr != nil {
			item.FetchError = resErr.Error()
			item.LastSeenAt = &now
			items = append(items, item)
			continue
		}
		if resolved.StatusCode == http.StatusNotFound {
			skipped404++
			continue
		}
		item.FinalURL = resolved.FinalURL

		htmlPath, visibleText, fetchErr, extractErr := w.fetcher.FetchAndExtract(ctx, runID, resolved.FinalURL)
		if fetchErr != nil {
			item.FetchError = fetchErr.Error()
		} else {
			item.RawHTMLPath = htmlPath
			if extractErr != nil {
				item.ExtractError = extractErr.Error()
			} else {
				item.VisibleText = visibleText
			}
		}

		item.LastSeenAt = &now
		items = append(items, item)
	}

	return items, issuedCall, skipped404, nil
}

// parseRunRequested validates the event metadata the spec requires
// (eventType, integer eventVersion, RFC3339-Z occurredAt, runId) and
// unmarshals payload.runInputs, rejecting any entry missing a required
// field.
func parseRunRequested(event eventstream.Event) (runID string, inputs []domain.RunInput, err error) {
	if event["eventType"] != eventTypeRunRequested {
		return "", nil, fmt.Errorf("%w: unexpected eventType %q", domain.ErrInvalidEvent, event["eventType"])
	}
	runID = event["runId"]
	if runID == "" {
		return "", nil, fmt.Errorf("%w: missing runId", domain.ErrInvalidEvent)
	}
	if _, verr := strconv.Atoi(event["eventVersion"]); verr != nil {
		return "", nil, fmt.Errorf("%w: invalid eventVersion %q", domain.ErrInvalidEvent, event["eventVersion"])
	}
	occurredAt := event["occurredAt"]
	if _, terr := time.Parse(time.RFC3339, occurredAt); terr != nil || !strings.HasSuffix(occurredAt, "Z") {
		return "", nil, fmt.Errorf("%w: invalid occurredAt %q", domain.ErrInvalidEvent, occurredAt)
	}

	var payload struct {
		RunInputs []domain.RunInput `json:"runInputs"`
	}
	if jerr := json.Unmarshal([]byte(event["payload"]), &payload); jerr != nil {
		return "", nil, fmt.Errorf("%w: invalid payload: %s", domain.ErrInvalidEvent, jerr.Error())
	}
	if len(payload.RunInputs) == 0 {
		return "", nil, fmt.Errorf("%w: payload has no runInputs", domain.ErrInvalidEvent)
	}
	for i, in := range payload.RunInputs {
		if strings.TrimSpace(in.QueryText) == "" || strings.TrimSpace(in.Domain) == "" || strings.TrimSpace(in.SearchQuery) == "" {
			return "", nil, fmt.Errorf("%w: runInputs[%d] missing a required field", domain.ErrInvalidEvent, i)
		}
		payload.RunInputs[i].Domain = strings.ToLower(strings.TrimSpace(in.Domain))
	}

	return runID, payload.RunInputs, nil
}

func (w *Worker) publishCompleted(ctx context.Context, run *domain.Run) {
	payload, err := json.Marshal(map[string]any{
		"status":           string(run.Status),
		"issuedCalls":      run.IssuedCalls,
		"persistedResults": run.PersistedResults,
		"newJobsCount":     run.NewJobsCount,
		"relevantCount":    run.RelevantCount,
		"skipped404":       run.Skipped404,
		"zeroResults":      run.ZeroResults,
	})
	if err != nil {
		w.logger.Error("run_worker.marshal_completed_failed", "run_id", run.ID, "error", err)
		return
	}

	_, err = w.stream.Publish(ctx, eventstream.Event{
		"eventId":      uuid.NewString(),
		"eventType":    eventTypeRunCompleted,
		"eventVersion": strconv.Itoa(eventVersion),
		"occurredAt":   formatEventTime(time.Now()),
		"runId":        run.ID,
		"payload":      string(payload),
	})
	if err != nil {
		w.logger.Error("run_worker.publish_completed_failed", "run_id", run.ID, "error", err)
	}
}

func (w *Worker) publishFailed(ctx context.Context, run *domain.Run) {
	payload, err := json.Marshal(map[string]any{
		"errorCode": run.ErrorCode,
		"message":   truncateMessage(run.Reason, 100),
	})
	if err != nil {
		w.logger.Error("run_worker.marshal_failed_failed", "run_id", run.ID, "error", err)
		return
	}

	_, err = w.stream.Publish(ctx, eventstream.Event{
		"eventId":      uuid.NewString(),
		"eventType":    eventTypeRunFailed,
		"eventVersion": strconv.Itoa(eventVersion),
		"occurredAt":   formatEventTime(time.Now()),
		"runId":        run.ID,
		"payload":      string(payload),
	})
	if err != nil {
		w.logger.Error("run_worker.publish_failed_failed", "run_id", run.ID, "error", err)
	}
}

func formatEventTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func truncateMessage(msg string, max int) string {
	if len(msg) <= max {
		return msg
	}
	return msg[:max]
}
