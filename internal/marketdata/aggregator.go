// Package marketdata turns the raw ticker tape into a time-ordered
// bid/ask/spread series and a last-trade series.
package marketdata

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// DefaultMaxPoints bounds each series when no explicit cap is given.
const DefaultMaxPoints = 10000

// Aggregator is safe for one writer and many concurrent readers.
type Aggregator struct {
	mu        sync.RWMutex
	spread    []domain.SpreadPoint
	trades    []domain.Trade
	lastQuote *domain.Quote
	maxPoints int
}

// NewAggregator creates an Aggregator keeping at most maxPoints entries per
// series. A non-positive maxPoints uses DefaultMaxPoints.
func NewAggregator(maxPoints int) *Aggregator {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Aggregator{maxPoints: maxPoints}
}

// AppendQuote records one validated quote. Two-sided quotes extend the
// spread series; trade-bearing quotes extend the trade series. Both series
// stay time-ascending with one entry per timestamp, the newest arrival
// winning.
func (a *Aggregator) AppendQuote(q domain.Quote) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lastQuote == nil || !q.QuoteTime.Before(a.lastQuote.QuoteTime) {
		qc := q
		a.lastQuote = &qc
	}

	if q.TwoSided() {
		a.spread = upsertByTime(a.spread, domain.SpreadPoint{
			Time:    q.QuoteTime,
			Bid:     q.Bid,
			BidSize: q.BidSize,
			Ask:     q.Ask,
			AskSize: q.AskSize,
			Spread:  q.Ask - q.Bid,
		}, func(p domain.SpreadPoint) time.Time { return p.Time })
		a.spread = trimFront(a.spread, a.maxPoints)
	}

	if tr, ok := q.Trade(); ok {
		a.trades = upsertByTime(a.trades, tr, func(t domain.Trade) time.Time { return t.Time })
		a.trades = trimFront(a.trades, a.maxPoints)
	}
}

// SpreadSeries returns a copy of the spread series, capped to the most
// recent limit entries when limit is positive.
func (a *Aggregator) SpreadSeries(limit int) []domain.SpreadPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return tail(a.spread, limit)
}

// TradeSeries returns a copy of the last-trade series, capped like
// SpreadSeries.
func (a *Aggregator) TradeSeries(limit int) []domain.Trade {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return tail(a.trades, limit)
}

// LatestTrade returns the freshest trade seen, or false if none has been.
func (a *Aggregator) LatestTrade() (domain.Trade, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.trades) == 0 {
		return domain.Trade{}, false
	}
	return a.trades[len(a.trades)-1], true
}

// LatestQuote returns the quote with the newest quote time.
func (a *Aggregator) LatestQuote() (domain.Quote, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastQuote == nil {
		return domain.Quote{}, false
	}
	return *a.lastQuote, true
}

// SecondsWithoutTrading is the gap between the newest quote and the newest
// trade.
func (a *Aggregator) SecondsWithoutTrading() (float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.lastQuote == nil || len(a.trades) == 0 {
		return 0, fmt.Errorf("marketdata: seconds without trading: %w", domain.ErrNoMarketData)
	}
	return a.lastQuote.QuoteTime.Sub(a.trades[len(a.trades)-1].Time).Seconds(), nil
}

func upsertByTime[T any](s []T, v T, at func(T) time.Time) []T {
	t := at(v)
	n := len(s)
	if n == 0 || at(s[n-1]).Before(t) {
		return append(s, v)
	}
	i := sort.Search(n, func(i int) bool { return !at(s[i]).Before(t) })
	if i < n && at(s[i]).Equal(t) {
		s[i] = v
		return s
	}
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func trimFront[T any](s []T, limit int) []T {
	if len(s) <= limit {
		return s
	}
	drop := len(s) - limit
	out := make([]T, limit, limit+limit/4)
	copy(out, s[drop:])
	return out
}

func tail[T any](s []T, limit int) []T {
	start := 0
	if limit > 0 && len(s) > limit {
		start = len(s) - limit
	}
	out := make([]T, len(s)-start)
	copy(out, s[start:])
	return out
}
