package domain

import (
	"fmt"
	"time"
)

// Direction is the side of an order.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Sign returns +1 for buys and -1 for sells.
func (d Direction) Sign() int64 {
	if d == DirectionBuy {
		return 1
	}
	return -1
}

// OrderType is the venue execution policy.
type OrderType string

const (
	OrderTypeLimit             OrderType = "limit"
	OrderTypeMarket            OrderType = "market"
	OrderTypeFillOrKill        OrderType = "fill-or-kill"
	OrderTypeImmediateOrCancel OrderType = "immediate-or-cancel"
)

// Valid reports whether t is one of the four venue order types.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeLimit, OrderTypeMarket, OrderTypeFillOrKill, OrderTypeImmediateOrCancel:
		return true
	}
	return false
}

// PartialFill is one execution against an order. Price is in minor units.
type PartialFill struct {
	Qty        int64     `json:"qty"`
	Price      int64     `json:"price"`
	SequenceID int64     `json:"sequenceId,omitempty"`
	Timestamp  time.Time `json:"ts,omitempty"`
}

// OrderSnapshot is the full state of one order as last observed. Snapshots
// are always replaced wholesale, never merged field by field.
type OrderSnapshot struct {
	ID          string        `json:"id"`
	Account     string        `json:"account,omitempty"`
	Venue       string        `json:"venue,omitempty"`
	Symbol      string        `json:"symbol,omitempty"`
	Direction   Direction     `json:"direction"`
	OrderType   OrderType     `json:"orderType,omitempty"`
	OriginalQty int64         `json:"originalQty"`
	TotalFilled int64         `json:"totalFilled"`
	Price       int64         `json:"price"`
	Open        bool          `json:"open"`
	Fills       []PartialFill `json:"fills"`
	Timestamp   time.Time     `json:"ts"`
	// SequenceID is the highest fill-feed sequence seen for this order. Orders
	// first learned from a submission or the bulk listing start at zero, and
	// a listing that replaces a feed snapshot keeps the feed's sequence.
	SequenceID int64 `json:"sequenceId"`
}

// Unfilled returns the quantity still working on the order.
func (s OrderSnapshot) Unfilled() int64 {
	return s.OriginalQty - s.TotalFilled
}

// Validate checks the structural invariants of a snapshot. Violations wrap
// ErrMalformedEvent.
func (s OrderSnapshot) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing order id", ErrMalformedEvent)
	}
	if !s.Direction.Valid() {
		return fmt.Errorf("%w: order %s: unknown direction %q", ErrMalformedEvent, s.ID, s.Direction)
	}
	if s.OriginalQty < 0 || s.TotalFilled < 0 {
		return fmt.Errorf("%w: order %s: negative quantity", ErrMalformedEvent, s.ID)
	}
	if s.TotalFilled > s.OriginalQty {
		return fmt.Errorf("%w: order %s: totalFilled %d exceeds originalQty %d",
			ErrMalformedEvent, s.ID, s.TotalFilled, s.OriginalQty)
	}
	return nil
}

// Clone returns a deep copy so callers can never alias ledger-owned fills.
func (s OrderSnapshot) Clone() OrderSnapshot {
	out := s
	if s.Fills != nil {
		out.Fills = make([]PartialFill, len(s.Fills))
		copy(out.Fills, s.Fills)
	}
	return out
}

// FillEvent is one notification from the executions feed. It is consumed
// once by the deduplicator and then discarded.
type FillEvent struct {
	SequenceID int64         `json:"sequenceId"`
	Order      OrderSnapshot `json:"order"`
	ReceivedAt time.Time     `json:"receivedAt"`
}

// OrderID returns the id of the order the event describes.
func (e FillEvent) OrderID() string {
	return e.Order.ID
}

// OrderRequest is a buy/sell submission to the venue. Price is in minor
// units and is ignored for market orders.
type OrderRequest struct {
	Account   string    `json:"account"`
	Venue     string    `json:"venue"`
	Stock     string    `json:"stock"`
	Price     int64     `json:"price,omitempty"`
	Qty       int64     `json:"qty"`
	Direction Direction `json:"direction"`
	OrderType OrderType `json:"orderType"`
}

// Validate rejects requests that must never reach the gateway.
func (r OrderRequest) Validate() error {
	if r.Qty <= 0 {
		return fmt.Errorf("%w: qty must be positive, got %d", ErrInvalidOrder, r.Qty)
	}
	if !r.Direction.Valid() {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidOrder, r.Direction)
	}
	if !r.OrderType.Valid() {
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, r.OrderType)
	}
	if r.OrderType != OrderTypeMarket && r.Price <= 0 {
		return fmt.Errorf("%w: price is required for %s orders", ErrInvalidOrder, r.OrderType)
	}
	if r.Price < 0 {
		return fmt.Errorf("%w: negative price", ErrInvalidOrder)
	}
	return nil
}
