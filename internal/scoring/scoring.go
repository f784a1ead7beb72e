// Package scoring applies the currently active model to a run's
// unscored, non-duplicate results.
package scoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

// BaselineVersion is the score_version written when no model is
// selected, or the selected model's Predict call fails.
const BaselineVersion = "baseline"

// Score runs model.Predict over results and writes RelevanceScore,
// ScoreVersion and ScoredAt onto each, mutating in place. Predicted
// scores are clamped to [-1, 1]. modelVersion is the version string to
// record when the model predicts successfully: the registry-reported
// version for the selected model, or the requested override identifier
// when it isn't registry-backed. A nil model, or a Predict error,
// falls every result back to the baseline score of 0.0 with
// ScoreVersion = "baseline" rather than leaving the rows unscored.
func Score(ctx context.Context, model domain.Model, modelVersion string, results []*domain.RunResult, now time.Time, logger *slog.Logger) error {
	if len(results) == 0 {
		return nil
	}

	if model == nil {
		applyBaseline(results, now)
		return nil
	}

	features := make([]domain.Features, len(results))
	for i, r := range results {
		features[i] = domain.Features{Title: r.Title, Snippet: r.Snippet, Domain: r.Domain}
	}

	scores, err := model.Predict(ctx, features)
	if err != nil {
		if logger != nil {
			logger.Warn("scoring.predict_failed", "error", err)
		}
		applyBaseline(results, now)
		return nil
	}

	for i, r := range results {
		score := clamp(scores[i])
		r.RelevanceScore = &score
		at := now
		r.ScoredAt = &at
		r.ScoreVersion = modelVersion
	}
	return nil
}

func applyBaseline(results []*domain.RunResult, now time.Time) {
	for _, r := range results {
		score := 0.0
		r.RelevanceScore = &score
		at := now
		r.ScoredAt = &at
		r.ScoreVersion = BaselineVersion
	}
}

func clamp(v float64) float64 {
	switch {
	case v < -1:
		return -1
	case v > 1:
		return 1
	default:
		return v
	}
}
