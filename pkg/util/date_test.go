package util

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{" 2024-01-05 ", "2024/01/05", "01/05/2024", "2024-01-05 00:00:00"} {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, day, got, in)
	}

	got, ok := ParseDate("2024-10-10T12:10:10+02:00")
	require.True(t, ok)
	assert.Equal(t, "2024-10-10T10:10:10Z", got.Format(time.RFC3339))

	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok = ParseDate(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestParseDateInvalid(t *testing.T) {
	for _, in := range []string{"", "soon", "13/45/2024", "-5"} {
		_, ok := ParseDate(in)
		assert.False(t, ok, in)
	}
}

func TestParseNumbers(t *testing.T) {
	assert.Equal(t, 12.5, ParseFloatNaN(" 12.5"))
	assert.True(t, math.IsNaN(ParseFloatNaN("abc")))
	assert.Equal(t, int64(2500000), ParseVolume("2500000"))
	assert.Equal(t, int64(2500000), ParseVolume("2500000.7"))
	assert.Equal(t, int64(0), ParseVolume(""))
	assert.Equal(t, 7, ParseIntDefault("x", 7))
	assert.Equal(t, 3, ParseIntDefault("3", 7))
}
