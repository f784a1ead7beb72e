package mlmodel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromConfig_SelectsDefault(t *testing.T) {
	reg := LoadFromConfig(Config{
		Models: []ConfigEntry{
			{Identifier: "baseline-bow"},
			{Identifier: "keyword-heuristic", IsDefault: true},
		},
		DefaultModel: "keyword-heuristic",
	})

	require.True(t, reg.HasModel("baseline-bow"))
	require.True(t, reg.HasModel("keyword-heuristic"))

	def, ok := reg.GetDefaultModel()
	require.True(t, ok)
	require.Equal(t, "keyword-heuristic", def.Identifier)

	require.Len(t, reg.GetAvailableModels(), 2)
}

func TestLoadFromConfig_UnknownIdentifierRecordsLoadError(t *testing.T) {
	reg := LoadFromConfig(Config{
		Models: []ConfigEntry{{Identifier: "does-not-exist"}},
	})

	require.False(t, reg.HasModel("does-not-exist"))
	require.Len(t, reg.LoadErrors(), 1)
}
