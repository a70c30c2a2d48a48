package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPredictor/internal/domain/models"
	"StockPredictor/internal/services/dataload"
)

func TestPredictFlagsDefaultSource(t *testing.T) {
	p, err := predictFlags{symbol: "aapl", source: models.SourceSample}.params()
	require.NoError(t, err)
	assert.Equal(t, "aapl", p.Symbol)
	assert.Equal(t, models.SourceSample, p.Source)
	assert.Empty(t, p.File)
}

func TestPredictFlagsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,price,volume\n2024-01-02,100,10\n"), 0o600))

	p, err := predictFlags{symbol: "MSFT", source: models.SourceSample, file: path}.params()
	require.NoError(t, err)
	assert.Equal(t, models.SourceFile, p.Source)
	assert.Equal(t, dataload.FormatCSV, p.Format)
	assert.NotEmpty(t, p.File)
}

func TestPredictFlagsRejectsUnknownExtension(t *testing.T) {
	_, err := predictFlags{symbol: "MSFT", file: "series.txt"}.params()
	assert.ErrorIs(t, err, dataload.ErrParse)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "predict")
	assert.Contains(t, names, "import")
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
