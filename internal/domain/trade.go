package domain

import "time"

// Quote is a validated ticker-tape message. Prices are in minor units.
// Missing sides are flagged rather than zero-filled.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Bid       int64     `json:"bid"`
	BidSize   int64     `json:"bidSize"`
	HasBid    bool      `json:"hasBid"`
	Ask       int64     `json:"ask"`
	AskSize   int64     `json:"askSize"`
	HasAsk    bool      `json:"hasAsk"`
	Last      int64     `json:"last"`
	LastSize  int64     `json:"lastSize"`
	HasTrade  bool      `json:"hasTrade"`
	QuoteTime time.Time `json:"quoteTime"`
	LastTrade time.Time `json:"lastTrade"`
}

// TwoSided reports whether the quote carries both a bid and an ask.
func (q Quote) TwoSided() bool {
	return q.HasBid && q.HasAsk
}

// Trade returns the trade carried by the quote, if any.
func (q Quote) Trade() (Trade, bool) {
	if !q.HasTrade {
		return Trade{}, false
	}
	return Trade{Time: q.LastTrade, Price: q.Last, Size: q.LastSize}, true
}

// Trade is the last execution printed on the tape.
type Trade struct {
	Time  time.Time `json:"time"`
	Price int64     `json:"price"`
	Size  int64     `json:"size"`
}

// SpreadPoint is one row of the bid/ask/spread series.
type SpreadPoint struct {
	Time    time.Time `json:"time"`
	Bid     int64     `json:"bid"`
	BidSize int64     `json:"bidSize"`
	Ask     int64     `json:"ask"`
	AskSize int64     `json:"askSize"`
	Spread  int64     `json:"spread"`
}
