package metrics

import (
	"errors"

	"github.com/pjsousa/jobato-ml/internal/domain"
)

var ErrLabelMismatch = errors.New("metrics: labels and predictions must be equal length and binary")

// CalculateMetrics computes precision/recall/F1/accuracy from binary
// truth and prediction vectors. Both slices must be equal length and
// contain only 0/1 values.
func CalculateMetrics(labels, predictions []int) (domain.ClassificationMetrics, error) {
	if len(labels) != len(predictions) || len(labels) == 0 {
		return domain.ClassificationMetrics{}, ErrLabelMismatch
	}

	var truePos, trueNeg, falsePos, falseNeg int
	for i := range labels {
		if labels[i] != 0 && labels[i] != 1 {
			return domain.ClassificationMetrics{}, ErrLabelMismatch
		}
		if predictions[i] != 0 && predictions[i] != 1 {
			return domain.ClassificationMetrics{}, ErrLabelMismatch
		}

		switch {
		case labels[i] == 1 && predictions[i] == 1:
			truePos++
		case labels[i] == 0 && predictions[i] == 0:
			trueNeg++
		case labels[i] == 0 && predictions[i] == 1:
			falsePos++
		case labels[i] == 1 && predictions[i] == 0:
			falseNeg++
		}
	}

	precision := safeDivide(float64(truePos), float64(truePos+falsePos))
	recall := safeDivide(float64(truePos), float64(truePos+falseNeg))
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	accuracy := safeDivide(float64(truePos+trueNeg), float64(len(labels)))

	return domain.ClassificationMetrics{
		Precision: precision,
		Recall:    recall,
		F1:        f1,
		Accuracy:  accuracy,
	}, nil
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
