// Package dedupe implements the two-phase duplicate detection pass run
// over a single run's results: exact normalized-URL grouping followed
// by n-gram Jaccard similarity over the remainder.
package dedupe

import (
	"regexp"
	"strings"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

const DefaultSimilarityThreshold = 0.90

var whitespaceRe = regexp.MustCompile(`\s+`)

// Outcome reports what the dedupe pass found.
type Outcome struct {
	DuplicatesFound  int
	CanonicalCount   int
	ExactDuplicates  int
	SimilarDuplicates int
}

// Run mutates results in place, setting IsDuplicate/IsHidden/CanonicalID
// /DuplicateCount, and returns a summary. Results must all belong to the
// same run and should exclude items already marked duplicate.
func Run(results []*domain.RunResult, similarityThreshold float64) Outcome {
	if len(results) == 0 {
		return Outcome{}
	}

	urlGroups := groupByNormalizedURL(results)
	exactDuplicates := processURLGroups(urlGroups)

	exactIDs := make(map[int64]bool, len(exactDuplicates))
	for _, r := range exactDuplicates {
		exactIDs[r.ID] = true
	}
	remaining := make([]*domain.RunResult, 0, len(results))
	for _, r := range results {
		if !exactIDs[r.ID] {
			remaining = append(remaining, r)
		}
	}

	similarDuplicates := findSimilarDuplicates(remaining, similarityThreshold)

	total := len(exactDuplicates) + len(similarDuplicates)
	return Outcome{
		DuplicatesFound:   total,
		CanonicalCount:    len(results) - total,
		ExactDuplicates:   len(exactDuplicates),
		SimilarDuplicates: len(similarDuplicates),
	}
}

func groupByNormalizedURL(results []*domain.RunResult) map[string][]*domain.RunResult {
	groups := make(map[string][]*domain.RunResult)
	for _, r := range results {
		if r.NormalizedURL == "" {
			continue
		}
		groups[r.NormalizedURL] = append(groups[r.NormalizedURL], r)
	}
	return groups
}

func processURLGroups(groups map[string][]*domain.RunResult) []*domain.RunResult {
	var duplicates []*domain.RunResult
	for _, group := range groups {
		if len(group) <= 1 {
			continue
		}

		canonical := group[0]
		for _, r := range group[1:] {
			if r.ID < canonical.ID {
				canonical = r
			}
		}

		groupDuplicates := make([]*domain.RunResult, 0, len(group)-1)
		for _, r := range group {
			if r.ID != canonical.ID {
				groupDuplicates = append(groupDuplicates, r)
			}
		}

		canonical.DuplicateCount = len(groupDuplicates)
		canonical.IsDuplicate = false
		canonical.IsHidden = false

		for _, dup := range groupDuplicates {
			canonicalID := canonical.ID
			dup.CanonicalID = &canonicalID
			dup.IsDuplicate = true
			dup.IsHidden = true
			duplicates = append(duplicates, dup)
		}
	}
	return duplicates
}

func findSimilarDuplicates(results []*domain.RunResult, threshold float64) []*domain.RunResult {
	if len(results) < 2 {
		return nil
	}

	signatures := make(map[int64]map[string]struct{}, len(results))
	for _, r := range results {
		text := comparableText(r)
		if text != "" {
			signatures[r.ID] = ngramSignature(text, 3)
		}
	}

	processed := make(map[int64]bool)
	var duplicates []*domain.RunResult

	for i, r1 := range results {
		if processed[r1.ID] {
			continue
		}
		sig1, ok := signatures[r1.ID]
		if !ok || len(sig1) == 0 {
			continue
		}

		var similar []*domain.RunResult
		for _, r2 := range results[i+1:] {
			if processed[r2.ID] {
				continue
			}
			sig2, ok := signatures[r2.ID]
			if !ok || len(sig2) == 0 {
				continue
			}
			if jaccardSimilarity(sig1, sig2) >= threshold {
				similar = append(similar, r2)
				processed[r2.ID] = true
			}
		}

		if len(similar) > 0 {
			r1.DuplicateCount = len(similar)
			r1.IsDuplicate = false
			r1.IsHidden = false
			for _, dup := range similar {
				canonicalID := r1.ID
				dup.CanonicalID = &canonicalID
				dup.IsDuplicate = true
				dup.IsHidden = true
				duplicates = append(duplicates, dup)
			}
		}
	}

	return duplicates
}

func comparableText(r *domain.RunResult) string {
	parts := make([]string, 0, 3)
	if r.Title != "" {
		parts = append(parts, r.Title)
	}
	if r.Snippet != "" {
		parts = append(parts, r.Snippet)
	}
	if r.VisibleText != "" {
		parts = append(parts, r.VisibleText)
	}
	return strings.Join(parts, " ")
}

func ngramSignature(text string, n int) map[string]struct{} {
	normalized := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
	words := strings.Fields(normalized)
	signature := make(map[string]struct{})
	for i := 0; i+n <= len(words); i++ {
		signature[strings.Join(words[i:i+n], " ")] = struct{}{}
	}
	return signature
}

func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}
