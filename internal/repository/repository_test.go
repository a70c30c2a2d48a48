package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPredictor/internal/domain/models"
	"StockPredictor/pkg/cache"
)

func TestCacheJobStore_PutGet(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheJobStore(mc, time.Minute)
	ctx := context.Background()

	job := &models.Job{ID: "j1", Status: models.JobPending, Symbol: "AAPL", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Put(ctx, job))

	got, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, got.Status)
	assert.Equal(t, "AAPL", got.Symbol)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.Error(t, store.Put(ctx, &models.Job{}))
}

func TestBuildInsert(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	points := []models.HistoricalPoint{
		{Date: day, Price: 10, Volume: 5, Close: models.Float64(10)},
		{Price: 11},
		{Date: day.AddDate(0, 0, 1), Price: 12, Volume: 6},
	}
	q, args := buildInsert("db.daily_series", "AAPL", points)

	assert.True(t, strings.HasPrefix(q, "INSERT INTO db.daily_series (symbol, date"))
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?)"))
	require.Len(t, args, 16)
	assert.Equal(t, "AAPL", args[0])
	assert.Nil(t, args[4])
	assert.Equal(t, 10.0, args[7])

	q, args = buildInsert("t", "X", []models.HistoricalPoint{{Price: 1}})
	assert.Empty(t, q)
	assert.Nil(t, args)
}
