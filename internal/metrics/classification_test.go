package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateMetrics(t *testing.T) {
	labels := []int{1, 1, 0, 0}
	predictions := []int{1, 0, 0, 1}

	got, err := CalculateMetrics(labels, predictions)
	require.NoError(t, err)
	require.Equal(t, 0.5, got.Precision)
	require.Equal(t, 0.5, got.Recall)
	require.InDelta(t, 0.5, got.F1, 1e-9)
	require.Equal(t, 0.5, got.Accuracy)
}

func TestCalculateMetrics_MismatchedLength(t *testing.T) {
	_, err := CalculateMetrics([]int{1, 0}, []int{1})
	require.ErrorIs(t, err, ErrLabelMismatch)
}

func TestCalculateMetrics_NonBinary(t *testing.T) {
	_, err := CalculateMetrics([]int{2}, []int{1})
	require.ErrorIs(t, err, ErrLabelMismatch)
}
