package book

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// ComputePnL marks pos to lastTrade. A nil lastTrade means no trade has been
// seen yet and the valuation fails with domain.ErrNoMarketData. A flat
// position reports zero amounts with Flat set.
func ComputePnL(pos domain.Position, lastTrade *domain.Trade) (domain.PnL, error) {
	if pos.Flat() {
		return domain.PnL{
			MarketValue:   decimal.Zero,
			Cash:          decimal.Zero,
			NetAssetValue: decimal.Zero,
			Flat:          true,
		}, nil
	}
	if lastTrade == nil {
		return domain.PnL{}, fmt.Errorf("book: pnl: %w", domain.ErrNoMarketData)
	}

	qty := decimal.NewFromInt(pos.SignedQty)
	mv := qty.Mul(decimal.NewFromInt(lastTrade.Price)).Div(hundred)
	// CostAcc is exact; qty*basis would reintroduce the division's rounding.
	cash := pos.CostAcc.Neg()
	if pos.CostAcc.IsZero() {
		cash = qty.Mul(pos.CostBasis).Neg()
	}

	return domain.PnL{
		MarketValue:   mv,
		Cash:          cash,
		NetAssetValue: cash.Add(mv),
	}, nil
}
