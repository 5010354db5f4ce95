package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

var t0 = time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)

func quote(sec int, bid, ask int64) domain.Quote {
	return domain.Quote{
		Symbol:    "FOO",
		Bid:       bid,
		BidSize:   10,
		HasBid:    bid > 0,
		Ask:       ask,
		AskSize:   20,
		HasAsk:    ask > 0,
		QuoteTime: t0.Add(time.Duration(sec) * time.Second),
	}
}

func withTrade(q domain.Quote, sec int, price, size int64) domain.Quote {
	q.HasTrade = true
	q.Last = price
	q.LastSize = size
	q.LastTrade = t0.Add(time.Duration(sec) * time.Second)
	return q
}

func TestAggregator_SpreadSeriesOrderedAndDeduped(t *testing.T) {
	a := NewAggregator(0)
	a.AppendQuote(quote(3, 100, 104))
	a.AppendQuote(quote(1, 98, 101))
	a.AppendQuote(quote(2, 99, 103))
	a.AppendQuote(quote(2, 99, 102)) // same timestamp, newest wins

	got := a.SpreadSeries(0)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1].Time.Before(got[i].Time))
	}
	assert.Equal(t, int64(3), got[0].Spread)
	assert.Equal(t, int64(3), got[1].Spread)
	assert.Equal(t, int64(102), got[1].Ask)
	assert.Equal(t, int64(4), got[2].Spread)
}

func TestAggregator_SpreadSeriesExcludesOneSided(t *testing.T) {
	a := NewAggregator(0)
	a.AppendQuote(quote(1, 100, 0))
	a.AppendQuote(quote(2, 0, 105))
	a.AppendQuote(quote(3, 0, 0))
	a.AppendQuote(quote(4, 100, 105))

	got := a.SpreadSeries(0)
	require.Len(t, got, 1)
	assert.Equal(t, t0.Add(4*time.Second), got[0].Time)
}

func TestAggregator_SpreadSeriesLimit(t *testing.T) {
	a := NewAggregator(0)
	for i := 1; i <= 10; i++ {
		a.AppendQuote(quote(i, 100, 101))
	}

	got := a.SpreadSeries(3)
	require.Len(t, got, 3)
	assert.Equal(t, t0.Add(8*time.Second), got[0].Time)
	assert.Equal(t, t0.Add(10*time.Second), got[2].Time)

	assert.Len(t, a.SpreadSeries(50), 10)
}

func TestAggregator_MaxPointsTrimsOldest(t *testing.T) {
	a := NewAggregator(4)
	for i := 1; i <= 9; i++ {
		a.AppendQuote(quote(i, 100, 101))
	}
	got := a.SpreadSeries(0)
	require.Len(t, got, 4)
	assert.Equal(t, t0.Add(6*time.Second), got[0].Time)
}

func TestAggregator_LatestTrade(t *testing.T) {
	a := NewAggregator(0)

	_, ok := a.LatestTrade()
	assert.False(t, ok)

	a.AppendQuote(quote(1, 100, 101)) // no trade
	_, ok = a.LatestTrade()
	assert.False(t, ok)

	a.AppendQuote(withTrade(quote(2, 0, 0), 2, 150, 5))
	a.AppendQuote(withTrade(quote(3, 100, 101), 1, 140, 5)) // older trade arriving late

	tr, ok := a.LatestTrade()
	require.True(t, ok)
	assert.Equal(t, int64(150), tr.Price)
	assert.Len(t, a.TradeSeries(0), 2)
	assert.Len(t, a.SpreadSeries(0), 2, "trade pointer is independent of the spread series")
}

func TestAggregator_TradeRepeatedOnTapeKeptOnce(t *testing.T) {
	a := NewAggregator(0)
	for i := 1; i <= 5; i++ {
		a.AppendQuote(withTrade(quote(i, 100, 101), 1, 150, 5))
	}
	assert.Len(t, a.TradeSeries(0), 1)
}

func TestAggregator_SecondsWithoutTrading(t *testing.T) {
	a := NewAggregator(0)

	_, err := a.SecondsWithoutTrading()
	assert.ErrorIs(t, err, domain.ErrNoMarketData)

	a.AppendQuote(withTrade(quote(10, 100, 101), 4, 150, 5))
	a.AppendQuote(quote(30, 100, 101))

	secs, err := a.SecondsWithoutTrading()
	require.NoError(t, err)
	assert.InDelta(t, 26.0, secs, 1e-9)
}

func TestAggregator_SeriesAreCopies(t *testing.T) {
	a := NewAggregator(0)
	a.AppendQuote(quote(1, 100, 101))

	got := a.SpreadSeries(0)
	got[0].Bid = 1

	assert.Equal(t, int64(100), a.SpreadSeries(0)[0].Bid)
}
