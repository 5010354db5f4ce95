package domain

import "time"

// PriceLevel is a single price+qty entry in the venue order book.
type PriceLevel struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
	IsBuy bool  `json:"isBuy"`
}

// OrderBook is a polled snapshot of the venue depth for one symbol.
type OrderBook struct {
	Venue     string       `json:"venue"`
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"ts"`
}

// FeedStatus describes the liveness of one inbound feed.
type FeedStatus struct {
	Name       string     `json:"name"`
	Live       bool       `json:"live"`
	Stale      bool       `json:"stale"`
	StaleSince *time.Time `json:"staleSince,omitempty"`
	LastEvent  time.Time  `json:"lastEvent"`
	Buffered   int        `json:"buffered"`
}
