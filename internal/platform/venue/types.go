package venue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// flexID unmarshals an order id sent either as a JSON number or a string.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	*f = flexID(s)
	return nil
}

// --------------------------------------------------------------------------
// REST DTOs
// --------------------------------------------------------------------------

// envelope is the common {ok, error} wrapper of every venue response.
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// APIFill is one execution inside an order record.
type APIFill struct {
	Price      int64     `json:"price"`
	Qty        int64     `json:"qty"`
	SequenceID int64     `json:"sequenceId,omitempty"`
	TS         time.Time `json:"ts"`
}

// APIOrder is an order record as returned by submission, status, cancel and
// listing endpoints, and as embedded in execution notifications.
type APIOrder struct {
	OK          bool      `json:"ok"`
	Error       string    `json:"error,omitempty"`
	ID          flexID    `json:"id"`
	Account     string    `json:"account"`
	Venue       string    `json:"venue"`
	Symbol      string    `json:"symbol"`
	Direction   string    `json:"direction"`
	OrderType   string    `json:"orderType"`
	OriginalQty int64     `json:"originalQty"`
	Qty         int64     `json:"qty"`
	Price       int64     `json:"price"`
	TotalFilled int64     `json:"totalFilled"`
	Open        bool      `json:"open"`
	Fills       []APIFill `json:"fills"`
	TS          time.Time `json:"ts"`
}

// ToDomainSnapshot converts the wire order into a ledger snapshot. Structural
// checks are left to OrderSnapshot.Validate so every source shares one rule.
func (a *APIOrder) ToDomainSnapshot() domain.OrderSnapshot {
	snap := domain.OrderSnapshot{
		ID:          string(a.ID),
		Account:     a.Account,
		Venue:       a.Venue,
		Symbol:      a.Symbol,
		Direction:   domain.Direction(a.Direction),
		OrderType:   domain.OrderType(a.OrderType),
		OriginalQty: a.OriginalQty,
		TotalFilled: a.TotalFilled,
		Price:       a.Price,
		Open:        a.Open,
		Timestamp:   a.TS,
	}
	if len(a.Fills) > 0 {
		snap.Fills = make([]domain.PartialFill, 0, len(a.Fills))
		for _, f := range a.Fills {
			snap.Fills = append(snap.Fills, domain.PartialFill{
				Qty:        f.Qty,
				Price:      f.Price,
				SequenceID: f.SequenceID,
				Timestamp:  f.TS,
			})
		}
	}
	return snap
}

// APIOrderList is the bulk listing response.
type APIOrderList struct {
	OK     bool       `json:"ok"`
	Error  string     `json:"error,omitempty"`
	Venue  string     `json:"venue"`
	Orders []APIOrder `json:"orders"`
}

// APIQuote is the quote body. Sides the venue has no interest on are omitted
// rather than zeroed, hence the pointers.
type APIQuote struct {
	Symbol    string     `json:"symbol"`
	Venue     string     `json:"venue"`
	Bid       *int64     `json:"bid,omitempty"`
	BidSize   *int64     `json:"bidSize,omitempty"`
	Ask       *int64     `json:"ask,omitempty"`
	AskSize   *int64     `json:"askSize,omitempty"`
	Last      *int64     `json:"last,omitempty"`
	LastSize  *int64     `json:"lastSize,omitempty"`
	LastTrade *time.Time `json:"lastTrade,omitempty"`
	QuoteTime time.Time  `json:"quoteTime"`
}

// ToDomainQuote flags each side as present only when it carries a positive
// price.
func (q *APIQuote) ToDomainQuote() domain.Quote {
	out := domain.Quote{
		Symbol:    q.Symbol,
		QuoteTime: q.QuoteTime,
	}
	if q.Bid != nil && *q.Bid > 0 {
		out.HasBid = true
		out.Bid = *q.Bid
		out.BidSize = deref(q.BidSize)
	}
	if q.Ask != nil && *q.Ask > 0 {
		out.HasAsk = true
		out.Ask = *q.Ask
		out.AskSize = deref(q.AskSize)
	}
	if q.Last != nil && *q.Last > 0 && q.LastTrade != nil && !q.LastTrade.IsZero() {
		out.HasTrade = true
		out.Last = *q.Last
		out.LastSize = deref(q.LastSize)
		out.LastTrade = *q.LastTrade
	}
	return out
}

// APIQuoteResponse is the flat REST quote response.
type APIQuoteResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	APIQuote
}

// APILevel is one order book level.
type APILevel struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
	IsBuy bool  `json:"isBuy"`
}

// APIOrderBook is the depth snapshot for a symbol.
type APIOrderBook struct {
	OK     bool       `json:"ok"`
	Error  string     `json:"error,omitempty"`
	Venue  string     `json:"venue"`
	Symbol string     `json:"symbol"`
	Bids   []APILevel `json:"bids"`
	Asks   []APILevel `json:"asks"`
	TS     time.Time  `json:"ts"`
}

// ToDomainOrderBook converts the wire book.
func (b *APIOrderBook) ToDomainOrderBook() domain.OrderBook {
	return domain.OrderBook{
		Venue:     b.Venue,
		Symbol:    b.Symbol,
		Bids:      toLevels(b.Bids),
		Asks:      toLevels(b.Asks),
		Timestamp: b.TS,
	}
}

func toLevels(in []APILevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, l := range in {
		out = append(out, domain.PriceLevel{Price: l.Price, Qty: l.Qty, IsBuy: l.IsBuy})
	}
	return out
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// ExecutionMessage is one frame of the executions stream.
type ExecutionMessage struct {
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	SequenceID int64     `json:"sequenceId"`
	Account    string    `json:"account"`
	Venue      string    `json:"venue"`
	Symbol     string    `json:"symbol"`
	Order      *APIOrder `json:"order"`
	Price      int64     `json:"price"`
	Filled     int64     `json:"filled"`
	FilledAt   time.Time `json:"filledAt"`
}

// TickerMessage is one frame of the ticker tape.
type TickerMessage struct {
	OK    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
	Quote *APIQuote `json:"quote"`
}

// DecodeExecution parses and validates one executions frame. Frames the
// venue flagged as failed, or that lack an order body or sequence number,
// are rejected with domain.ErrMalformedEvent. A missing order id is not
// rejected here; it is dropped and logged during reconciliation.
func DecodeExecution(raw []byte, receivedAt time.Time) (domain.FillEvent, error) {
	var msg ExecutionMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.FillEvent{}, fmt.Errorf("%w: decode execution: %v", domain.ErrMalformedEvent, err)
	}
	if !msg.OK {
		return domain.FillEvent{}, fmt.Errorf("%w: execution not ok: %s", domain.ErrMalformedEvent, msg.Error)
	}
	if msg.Order == nil {
		return domain.FillEvent{}, fmt.Errorf("%w: execution without order", domain.ErrMalformedEvent)
	}
	if msg.SequenceID <= 0 {
		return domain.FillEvent{}, fmt.Errorf("%w: execution for order %s without sequenceId",
			domain.ErrMalformedEvent, msg.Order.ID)
	}
	snap := msg.Order.ToDomainSnapshot()
	snap.SequenceID = msg.SequenceID
	return domain.FillEvent{
		SequenceID: msg.SequenceID,
		Order:      snap,
		ReceivedAt: receivedAt,
	}, nil
}

// DecodeQuote parses and validates one ticker tape frame.
func DecodeQuote(raw []byte) (domain.Quote, error) {
	var msg TickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Quote{}, fmt.Errorf("%w: decode quote: %v", domain.ErrMalformedEvent, err)
	}
	if !msg.OK {
		return domain.Quote{}, fmt.Errorf("%w: quote not ok: %s", domain.ErrMalformedEvent, msg.Error)
	}
	if msg.Quote == nil || msg.Quote.QuoteTime.IsZero() {
		return domain.Quote{}, fmt.Errorf("%w: quote without quoteTime", domain.ErrMalformedEvent)
	}
	return msg.Quote.ToDomainQuote(), nil
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
