package main

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/couchcryptid/lightning-data-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFeed(t *testing.T) {
	window := domain.DefaultWindow(fixtureNow)
	feed := generateFeed(rand.New(rand.NewPCG(1, 1)), window, 10)

	require.NoError(t, feed.Validate())
	records, err := domain.Reassemble(feed)
	require.NoError(t, err)
	require.Len(t, records, 10)

	rows, err := domain.NewStoredRows(records)
	require.NoError(t, err)
	for i, row := range rows {
		ts := time.Unix(row.Epoch, 0).UTC()
		assert.False(t, ts.Before(window.Start), "row %d before window", i)
		assert.False(t, ts.After(window.End), "row %d after window", i)
		if i > 0 {
			assert.GreaterOrEqual(t, row.Epoch, rows[i-1].Epoch, "rows are time ordered")
		}
	}
}

func TestGenerateFeed_Deterministic(t *testing.T) {
	window := domain.DefaultWindow(fixtureNow)
	a := generateFeed(rand.New(rand.NewPCG(7, 7)), window, 5)
	b := generateFeed(rand.New(rand.NewPCG(7, 7)), window, 5)
	assert.Equal(t, a, b)
}
