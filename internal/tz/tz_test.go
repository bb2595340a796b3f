package tz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISONaiveIsUTC(t *testing.T) {
	naive, err := ParseISO("2026-02-13T10:00:00")
	require.NoError(t, err)
	explicit, err := ParseISO("2026-02-13T10:00:00Z")
	require.NoError(t, err)

	a := Normalize(naive, nil)
	b := Normalize(explicit, nil)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Location(), b.Location())
	assert.Equal(t, ExchangeZone, a.Location().String())
	assert.Equal(t, 5, a.Hour())
}

func TestParseISONanoseconds(t *testing.T) {
	ts, err := ParseISO("1990-01-01T12:37:36.425451499-05:00")
	require.NoError(t, err)
	assert.Equal(t, 425451499, ts.Nanosecond())

	ny := Normalize(ts, nil)
	assert.Equal(t, 12, ny.Hour())
	assert.Equal(t, 37, ny.Minute())
}

func TestNormalizeCustomZone(t *testing.T) {
	loc, err := Load("US/Eastern")
	require.NoError(t, err)

	ts := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	got := Normalize(ts, loc)
	assert.Equal(t, "US/Eastern", got.Location().String())
	assert.Equal(t, ts.In(loc).Hour(), got.Hour())
	assert.True(t, got.Equal(ts))
}

func TestLoadDefaultsToExchange(t *testing.T) {
	loc, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Exchange(), loc)

	_, err = Load("Mars/Olympus")
	assert.Error(t, err)
}

func TestParseISOInvalid(t *testing.T) {
	_, err := ParseISO("")
	assert.Error(t, err)
	_, err = ParseISO("yesterday")
	assert.Error(t, err)
}
