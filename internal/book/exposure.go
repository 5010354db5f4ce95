package book

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// ComputeExposure totals the unfilled quantity of open orders per side and
// weights each side's limit price by that unfilled quantity.
func ComputeExposure(snaps []domain.OrderSnapshot) domain.BookExposure {
	var buy, sell sideAcc
	for _, s := range snaps {
		if !s.Open {
			continue
		}
		unfilled := s.Unfilled()
		if unfilled <= 0 {
			continue
		}
		switch s.Direction {
		case domain.DirectionBuy:
			buy.add(unfilled, s.Price)
		case domain.DirectionSell:
			sell.add(unfilled, s.Price)
		}
	}
	return domain.BookExposure{Buy: buy.exposure(), Sell: sell.exposure()}
}

type sideAcc struct {
	qty      int64
	notional decimal.Decimal
}

func (a *sideAcc) add(qty, price int64) {
	a.qty += qty
	a.notional = a.notional.Add(decimal.NewFromInt(qty).Mul(decimal.NewFromInt(price)))
}

func (a sideAcc) exposure() domain.Exposure {
	if a.qty == 0 {
		return domain.Exposure{WeightedLimitPrice: decimal.Zero}
	}
	return domain.Exposure{
		OpenQty:            a.qty,
		WeightedLimitPrice: a.notional.Div(decimal.NewFromInt(a.qty)),
	}
}
