package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

type RunResultRepository struct {
	db *sql.DB
}

func NewRunResultRepository(db *sql.DB) *RunResultRepository {
	return &RunResultRepository{db: db}
}

const runItemColumns = `id, run_id, query_id, query_text, search_query, domain, raw_url, final_url,
	normalized_url, title, snippet, visible_text, raw_html_path, fetch_error, extract_error,
	normalization_error, skip_reason, relevance_score, score_version, scored_at, is_duplicate,
	is_hidden, canonical_id, duplicate_count, cache_key, cached_at, cache_expires_at, last_seen_at,
	created_at`

func (r *RunResultRepository) Insert(ctx context.Context, result *domain.RunResult) (*domain.RunResult, error) {
	results, err := r.InsertBatch(ctx, []*domain.RunResult{result})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (r *RunResultRepository) InsertBatch(ctx context.Context, results []*domain.RunResult) ([]*domain.RunResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_items (run_id, query_id, query_text, search_query, domain, raw_url, final_url,
			normalized_url, title, snippet, visible_text, raw_html_path, fetch_error, extract_error,
			normalization_error, skip_reason, cache_key, last_seen_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, res := range results {
		createdAt := now
		if !res.CreatedAt.IsZero() {
			createdAt = res.CreatedAt
		}
		var lastSeenAt any
		if res.LastSeenAt != nil {
			lastSeenAt = formatTime(*res.LastSeenAt)
		}
		out, err := stmt.ExecContext(ctx, res.RunID, res.QueryID, res.QueryText, res.SearchQuery,
			res.Domain, res.RawURL, res.FinalURL, res.NormalizedURL, res.Title, res.Snippet,
			res.VisibleText, res.RawHTMLPath, res.FetchError, res.ExtractError,
			res.NormalizationError, res.SkipReason, res.CacheKey, lastSeenAt, formatTime(createdAt))
		if err != nil {
			return nil, fmt.Errorf("insert run item: %w", err)
		}
		id, err := out.LastInsertId()
		if err != nil {
			return nil, err
		}
		res.ID = id
		res.CreatedAt = createdAt
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *RunResultRepository) ListNonDuplicate(ctx context.Context, runID string) ([]*domain.RunResult, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+runItemColumns+` FROM run_items
		WHERE run_id = ? AND (is_duplicate = 0 OR is_duplicate IS NULL)`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRunResults(rows)
}

func (r *RunResultRepository) ListByCacheKey(ctx context.Context, runID, cacheKey string) ([]*domain.RunResult, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+runItemColumns+` FROM run_items
		WHERE run_id = ? AND cache_key = ?`, runID, cacheKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRunResults(rows)
}

func (r *RunResultRepository) MaxLastSeenAt(ctx context.Context, normalizedURL string) (*domain.RunResult, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runItemColumns+` FROM run_items
		WHERE normalized_url = ? AND last_seen_at IS NOT NULL
		ORDER BY last_seen_at DESC LIMIT 1`, normalizedURL)
	result, err := scanRunResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return result, err
}

func (r *RunResultRepository) ListScoredSince(ctx context.Context, since string) ([]*domain.RunResult, error) {
	query := `SELECT ` + runItemColumns + ` FROM run_items
		WHERE relevance_score IS NOT NULL AND (is_duplicate = 0 OR is_duplicate IS NULL)`
	args := []any{}
	if since != "" {
		query += ` AND scored_at > ?`
		args = append(args, since)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRunResults(rows)
}

func (r *RunResultRepository) UpdateDedupeFields(ctx context.Context, results []*domain.RunResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE run_items SET is_duplicate = ?, is_hidden = ?,
		canonical_id = ?, duplicate_count = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, res := range results {
		if _, err := stmt.ExecContext(ctx, res.IsDuplicate, res.IsHidden, res.CanonicalID, res.DuplicateCount, res.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *RunResultRepository) UpdateScores(ctx context.Context, results []*domain.RunResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE run_items SET relevance_score = ?, score_version = ?, scored_at = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, res := range results {
		var scoredAt any
		if res.ScoredAt != nil {
			scoredAt = formatTime(*res.ScoredAt)
		}
		if _, err := stmt.ExecContext(ctx, res.RelevanceScore, res.ScoreVersion, scoredAt, res.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunResults(rows *sql.Rows) ([]*domain.RunResult, error) {
	var out []*domain.RunResult
	for rows.Next() {
		r, err := scanRunResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRunResult(row rowScanner) (*domain.RunResult, error) {
	var r domain.RunResult
	var scoredAt, cachedAt, cacheExpiresAt, lastSeenAt, createdAt sql.NullString
	var canonicalID sql.NullInt64
	var relevanceScore sql.NullFloat64
	var isDuplicate, isHidden int

	err := row.Scan(
		&r.ID, &r.RunID, &r.QueryID, &r.QueryText, &r.SearchQuery, &r.Domain, &r.RawURL, &r.FinalURL,
		&r.NormalizedURL, &r.Title, &r.Snippet, &r.VisibleText, &r.RawHTMLPath, &r.FetchError,
		&r.ExtractError, &r.NormalizationError, &r.SkipReason, &relevanceScore, &r.ScoreVersion,
		&scoredAt, &isDuplicate, &isHidden, &canonicalID, &r.DuplicateCount, &r.CacheKey, &cachedAt,
		&cacheExpiresAt, &lastSeenAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	r.IsDuplicate = isDuplicate != 0
	r.IsHidden = isHidden != 0
	if relevanceScore.Valid {
		v := relevanceScore.Float64
		r.RelevanceScore = &v
	}
	if canonicalID.Valid {
		v := canonicalID.Int64
		r.CanonicalID = &v
	}
	if t, ok := parseTime(scoredAt); ok {
		r.ScoredAt = &t
	}
	if t, ok := parseTime(cachedAt); ok {
		r.CachedAt = &t
	}
	if t, ok := parseTime(cacheExpiresAt); ok {
		r.CacheExpiresAt = &t
	}
	if t, ok := parseTime(lastSeenAt); ok {
		r.LastSeenAt = &t
	}
	if t, ok := parseTime(createdAt); ok {
		r.CreatedAt = t
	}

	return &r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
