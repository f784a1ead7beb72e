package mlmodel

import (
	"context"
	"encoding/json"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

func init() {
	Register("keyword-heuristic", "v1", func() domain.Model { return &keywordHeuristicModel{} })
}

// keywordHeuristicModel scores relevance by the fraction of a row's
// tokens that appear in the fitted "positive" keyword set. It needs no numeric
// optimization, just a keyword set learned from the positively labeled
// fit examples, making it a useful low-variance baseline to compare
// bagOfWordsModel against during evaluation.
type keywordHeuristicModel struct {
	keywords map[string]struct{}
}

type keywordHeuristicState struct {
	Keywords []string `json:"keywords"`
}

func (m *keywordHeuristicModel) Fit(ctx context.Context, features []domain.Features, labels []int) error {
	keywords := map[string]struct{}{}
	for i, f := range features {
		if labels[i] != 1 {
			continue
		}
		for _, tok := range tokenize(f) {
			keywords[tok] = struct{}{}
		}
	}
	m.keywords = keywords
	return nil
}

func (m *keywordHeuristicModel) Predict(ctx context.Context, features []domain.Features) ([]float64, error) {
	scores := make([]float64, len(features))
	for i, f := range features {
		tokens := tokenize(f)
		if len(tokens) == 0 {
			scores[i] = 0
			continue
		}
		hits := 0
		for _, tok := range tokens {
			if _, ok := m.keywords[tok]; ok {
				hits++
			}
		}
		scores[i] = float64(hits) / float64(len(tokens))
	}
	return scores, nil
}

func (m *keywordHeuristicModel) MarshalState() ([]byte, error) {
	keywords := make([]string, 0, len(m.keywords))
	for k := range m.keywords {
		keywords = append(keywords, k)
	}
	return json.Marshal(keywordHeuristicState{Keywords: keywords})
}

func (m *keywordHeuristicModel) UnmarshalState(data []byte) error {
	var state keywordHeuristicState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	keywords := make(map[string]struct{}, len(state.Keywords))
	for _, k := range state.Keywords {
		keywords[k] = struct{}{}
	}
	m.keywords = keywords
	return nil
}
