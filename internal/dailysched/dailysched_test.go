package dailysched

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_RejectsNonStrictForms(t *testing.T) {
	cases := []string{
		"*/5 3 * * *",
		"0-30 3 * * *",
		"0,30 3 * * *",
		"30 3 1 * *",
		"30 3 * * 1",
		"not a cron",
	}
	for _, expr := range cases {
		_, err := New(expr, time.UTC, nil, testLogger())
		require.Error(t, err, expr)
	}
}

func TestNew_AcceptsStrictDailyForm(t *testing.T) {
	s, err := New("30 3 * * *", time.UTC, nil, testLogger())
	require.NoError(t, err)
	require.NotNil(t, s.schedule)
}

func TestValidateStrictDailyForm(t *testing.T) {
	require.NoError(t, validateStrictDailyForm("0 9 * * *"))
	require.Error(t, validateStrictDailyForm("0 9 * * 1-5"))
}
