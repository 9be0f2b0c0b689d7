package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdingsflow/models"
)

func TestPeriodFromFilename(t *testing.T) {
	cases := []struct {
		name string
		want models.Period
		ok   bool
	}{
		{"2024-QTR3.tsv", models.Period{Year: 2024, Quarter: 3}, true},
		{"/data/index/2019-QTR1.tsv", models.Period{Year: 2019, Quarter: 1}, true},
		{"2024-QTR5.tsv", models.Period{}, false},
		{"notes.tsv", models.Period{}, false},
		{"2024-QTR3", models.Period{}, false},
	}
	for _, c := range cases {
		got, ok := PeriodFromFilename(c.name)
		assert.Equal(t, c.ok, ok, c.name)
		assert.Equal(t, c.want, got, c.name)
	}
}

func TestDiscoverIndexFilesOrdersByPeriod(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"2024-QTR1.tsv", "2023-QTR4.tsv", "2023-QTR10.tsv", "readme.tsv", "2024-QTR2.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "2022-QTR1.tsv"), 0o755))

	files, err := DiscoverIndexFiles(dir, ".tsv")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, models.Period{Year: 2023, Quarter: 4}, files[0].Period)
	assert.Equal(t, models.Period{Year: 2024, Quarter: 1}, files[1].Period)

	latest, ok, err := LatestIndexFile(dir, ".tsv")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "2024-QTR1.tsv"), latest.Path)
}

func TestLatestIndexFileEmptyDir(t *testing.T) {
	_, ok, err := LatestIndexFile(t.TempDir(), ".tsv")
	require.NoError(t, err)
	assert.False(t, ok)
}
