// Package book derives position, exposure and mark-to-market valuation from
// a point-in-time copy of the order ledger.
package book

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ComputePosition sums every partial fill of every snapshot as a signed
// running average. Buys and sells net against each other, so the basis is
// the realized cost of the current position rather than a trade VWAP.
func ComputePosition(snaps []domain.OrderSnapshot) domain.Position {
	var qty int64
	cost := decimal.Zero

	for _, s := range snaps {
		sign := s.Direction.Sign()
		for _, f := range s.Fills {
			signed := sign * f.Qty
			qty += signed
			cost = cost.Add(decimal.NewFromInt(signed).Mul(decimal.NewFromInt(f.Price)).Div(hundred))
		}
	}

	pos := domain.Position{SignedQty: qty, CostAcc: cost, CostBasis: decimal.Zero}
	if qty != 0 {
		pos.CostBasis = cost.Div(decimal.NewFromInt(qty))
	}
	return pos
}
