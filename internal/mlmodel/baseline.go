package mlmodel

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

func init() {
	Register("baseline-bow", "v1", func() domain.Model { return &bagOfWordsModel{} })
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// bagOfWordsModel is a Naive-Bayes-style bag-of-words classifier over
// title+snippet+domain text, the built-in replacement for the
// original's scikit-learn model. It keeps per-class word frequencies
// and scores new text by log-likelihood ratio, squashed through a
// sigmoid into a [0,1] relevance score.
type bagOfWordsModel struct {
	wordCountsPos map[string]int
	wordCountsNeg map[string]int
	totalPos      int
	totalNeg      int
	priorPos      float64
	vocabSize     int
}

type bagOfWordsState struct {
	WordCountsPos map[string]int `json:"wordCountsPos"`
	WordCountsNeg map[string]int `json:"wordCountsNeg"`
	TotalPos      int            `json:"totalPos"`
	TotalNeg      int            `json:"totalNeg"`
	PriorPos      float64        `json:"priorPos"`
	VocabSize     int            `json:"vocabSize"`
}

func tokenize(f domain.Features) []string {
	text := strings.ToLower(f.Title + " " + f.Snippet + " " + f.Domain)
	return tokenRe.FindAllString(text, -1)
}

func (m *bagOfWordsModel) Fit(ctx context.Context, features []domain.Features, labels []int) error {
	wordCountsPos := map[string]int{}
	wordCountsNeg := map[string]int{}
	totalPos, totalNeg := 0, 0
	vocab := map[string]struct{}{}

	for i, f := range features {
		tokens := tokenize(f)
		for _, tok := range tokens {
			vocab[tok] = struct{}{}
			if labels[i] == 1 {
				wordCountsPos[tok]++
				totalPos++
			} else {
				wordCountsNeg[tok]++
				totalNeg++
			}
		}
	}

	positives := 0
	for _, l := range labels {
		if l == 1 {
			positives++
		}
	}

	m.wordCountsPos = wordCountsPos
	m.wordCountsNeg = wordCountsNeg
	m.totalPos = totalPos
	m.totalNeg = totalNeg
	m.vocabSize = len(vocab)
	if len(labels) > 0 {
		m.priorPos = float64(positives) / float64(len(labels))
	} else {
		m.priorPos = 0.5
	}
	return nil
}

func (m *bagOfWordsModel) Predict(ctx context.Context, features []domain.Features) ([]float64, error) {
	scores := make([]float64, len(features))
	for i, f := range features {
		scores[i] = m.scoreOne(f)
	}
	return scores, nil
}

func (m *bagOfWordsModel) scoreOne(f domain.Features) float64 {
	vocab := m.vocabSize
	if vocab == 0 {
		vocab = 1
	}

	logLikelihoodRatio := math.Log(safePrior(m.priorPos)) - math.Log(safePrior(1-m.priorPos))
	for _, tok := range tokenize(f) {
		pPos := float64(m.wordCountsPos[tok]+1) / float64(m.totalPos+vocab)
		pNeg := float64(m.wordCountsNeg[tok]+1) / float64(m.totalNeg+vocab)
		logLikelihoodRatio += math.Log(pPos) - math.Log(pNeg)
	}

	return 1.0 / (1.0 + math.Exp(-logLikelihoodRatio))
}

func safePrior(p float64) float64 {
	if p <= 0 {
		return 1e-6
	}
	if p >= 1 {
		return 1 - 1e-6
	}
	return p
}

func (m *bagOfWordsModel) MarshalState() ([]byte, error) {
	return json.Marshal(bagOfWordsState{
		WordCountsPos: m.wordCountsPos,
		WordCountsNeg: m.wordCountsNeg,
		TotalPos:      m.totalPos,
		TotalNeg:      m.totalNeg,
		PriorPos:      m.priorPos,
		VocabSize:     m.vocabSize,
	})
}

func (m *bagOfWordsModel) UnmarshalState(data []byte) error {
	var state bagOfWordsState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	m.wordCountsPos = state.WordCountsPos
	m.wordCountsNeg = state.WordCountsNeg
	m.totalPos = state.TotalPos
	m.totalNeg = state.TotalNeg
	m.priorPos = state.PriorPos
	m.vocabSize = state.VocabSize
	return nil
}
