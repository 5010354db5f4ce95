package marketdata

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

func TestAvgPrice(t *testing.T) {
	trades := []domain.Trade{
		{Price: 100, Size: 1},
		{Price: 110, Size: 3},
	}
	got, err := AvgPrice(trades)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("107.5").Equal(got), "got %s", got)

	_, err = AvgPrice(nil)
	assert.ErrorIs(t, err, domain.ErrNoMarketData)
}

func TestCumulativeVWAP(t *testing.T) {
	trades := []domain.Trade{
		{Price: 100, Size: 0},
		{Price: 100, Size: 2},
		{Price: 130, Size: 1},
	}
	got, err := CumulativeVWAP(trades)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, decimal.NewFromInt(100).Equal(got[0].VWAP))
	assert.True(t, decimal.NewFromInt(110).Equal(got[1].VWAP))

	_, err = CumulativeVWAP([]domain.Trade{{Price: 100}})
	assert.ErrorIs(t, err, domain.ErrNoMarketData)
}
