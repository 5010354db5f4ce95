package marketdata

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// VWAPPoint is one step of a cumulative VWAP series, in minor units.
type VWAPPoint struct {
	Time time.Time       `json:"time"`
	VWAP decimal.Decimal `json:"vwap"`
}

// AvgPrice returns the size-weighted average trade price.
func AvgPrice(trades []domain.Trade) (decimal.Decimal, error) {
	var size int64
	notional := decimal.Zero
	for _, t := range trades {
		size += t.Size
		notional = notional.Add(decimal.NewFromInt(t.Price).Mul(decimal.NewFromInt(t.Size)))
	}
	if size == 0 {
		return decimal.Zero, fmt.Errorf("marketdata: avg price: %w", domain.ErrNoMarketData)
	}
	return notional.Div(decimal.NewFromInt(size)), nil
}

// CumulativeVWAP returns the running VWAP after each trade. Leading trades
// with zero size are skipped until volume accumulates.
func CumulativeVWAP(trades []domain.Trade) ([]VWAPPoint, error) {
	var size int64
	notional := decimal.Zero
	out := make([]VWAPPoint, 0, len(trades))
	for _, t := range trades {
		size += t.Size
		notional = notional.Add(decimal.NewFromInt(t.Price).Mul(decimal.NewFromInt(t.Size)))
		if size == 0 {
			continue
		}
		out = append(out, VWAPPoint{Time: t.Time, VWAP: notional.Div(decimal.NewFromInt(size))})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("marketdata: cumulative vwap: %w", domain.ErrNoMarketData)
	}
	return out, nil
}
