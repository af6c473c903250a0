package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTablesAreValid(t *testing.T) {
	tables, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 70, tables.Scoring.Thresholds.Hot)
	assert.Equal(t, 40, tables.Scoring.Thresholds.Warm)
	require.Len(t, tables.Scoring.CapitalBands, 3)
	assert.Equal(t, 1000.0, tables.Scoring.CapitalBands[0].MinUSD, "bands sorted by descending minimum")
	assert.Len(t, tables.Catalog.Accounts, 4)

	raw, ok := tables.Catalog.Find("raw spreads")
	require.True(t, ok)
	assert.Equal(t, 3.5, raw.CommissionPerSideUSD)
}

func TestParseRejectsBrokenTables(t *testing.T) {
	base := string(defaultTables)

	cases := map[string]string{
		"missing experience level": strings.Replace(base, "    experienced: 30\n", "", 1),
		"inverted thresholds":      strings.Replace(base, "    hot: 70\n", "    hot: 30\n", 1),
		"negative price":           strings.Replace(base, "stt_per_second_usd: 0.0001", "stt_per_second_usd: -1", 1),
		"unknown field":            base + "\nsurprise: true\n",
		"no zero capital band":     strings.Replace(base, "- { min_usd: 0, points: 10 }", "- { min_usd: 50, points: 10 }", 1),
		"decreasing experience":    strings.Replace(base, "    beginner: 15\n", "    beginner: 40\n", 1),
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotEqual(t, base, doc, "fixture did not change the document")
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	doc := strings.Replace(string(defaultTables), "    hot: 70\n", "    hot: 80\n", 1)
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	tables, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 80, tables.Scoring.Thresholds.Hot)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
