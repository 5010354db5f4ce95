package domain

import "github.com/shopspring/decimal"

// Position is the net holding derived from every fill in the ledger.
// CostBasis is per unit in major currency units and is meaningless when
// SignedQty is zero.
type Position struct {
	SignedQty int64           `json:"signedQty"`
	CostBasis decimal.Decimal `json:"costBasis"`
	// CostAcc is the signed running cost in major units.
	CostAcc decimal.Decimal `json:"costAcc"`
}

// Flat reports whether there is no net position.
func (p Position) Flat() bool {
	return p.SignedQty == 0
}

// Exposure is the outstanding unfilled quantity on one side.
// WeightedLimitPrice is in minor units.
type Exposure struct {
	OpenQty            int64           `json:"openQty"`
	WeightedLimitPrice decimal.Decimal `json:"weightedLimitPrice"`
}

// BookExposure splits exposure by side.
type BookExposure struct {
	Buy  Exposure `json:"buy"`
	Sell Exposure `json:"sell"`
}

// PnL is a mark-to-market valuation in major units. Flat is set when the
// position carries no open risk, in which case the amounts are zero.
type PnL struct {
	MarketValue   decimal.Decimal `json:"marketValue"`
	Cash          decimal.Decimal `json:"cash"`
	NetAssetValue decimal.Decimal `json:"netAssetValue"`
	Flat          bool            `json:"flat"`
}
