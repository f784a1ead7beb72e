package sqlite

import (
	"context"
	"database/sql"
	"errors"
)

type QuotaStore struct {
	db *sql.DB
}

func NewQuotaStore(db *sql.DB) *QuotaStore {
	return &QuotaStore{db: db}
}

func (s *QuotaStore) GetDailyUsage(ctx context.Context, day, runID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT count FROM quota_usage WHERE day = ? AND run_id = ?`, day, runID)
	var count int
	err := row.Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

func (s *QuotaStore) IncrementUsage(ctx context.Context, day, runID string, delta int) (int, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO quota_usage (day, run_id, count) VALUES (?, ?, ?)
		ON CONFLICT(day, run_id) DO UPDATE SET count = count + excluded.count`, day, runID, delta)
	if err != nil {
		return 0, err
	}
	return s.GetDailyUsage(ctx, day, runID)
}
