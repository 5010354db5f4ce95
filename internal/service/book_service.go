package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/fillbook/internal/book"
	"github.com/alanyoungcy/fillbook/internal/domain"
	"github.com/alanyoungcy/fillbook/internal/ledger"
	"github.com/alanyoungcy/fillbook/internal/marketdata"
)

// DepthSource fetches the venue's order book.
type DepthSource interface {
	OrderBook(ctx context.Context) (domain.OrderBook, error)
}

// OwnBook is the trader's own view: position plus resting exposure.
type OwnBook struct {
	Position domain.Position     `json:"position"`
	Exposure domain.BookExposure `json:"exposure"`
	Open     int                 `json:"openOrders"`
	Orders   int                 `json:"orders"`
}

// BookService answers position, exposure and PnL queries. Every answer is
// recomputed from one point-in-time copy of the ledger.
type BookService struct {
	ledger *ledger.Ledger
	agg    *marketdata.Aggregator
	depth  DepthSource
}

// NewBookService creates a BookService. depth may be nil.
func NewBookService(l *ledger.Ledger, agg *marketdata.Aggregator, depth DepthSource) *BookService {
	return &BookService{ledger: l, agg: agg, depth: depth}
}

// Position returns the net position.
func (s *BookService) Position() domain.Position {
	return book.ComputePosition(s.ledger.All())
}

// Exposure returns resting quantity per side.
func (s *BookService) Exposure() domain.BookExposure {
	return book.ComputeExposure(s.ledger.All())
}

// OwnBook returns position and exposure computed from the same snapshot.
func (s *BookService) OwnBook() OwnBook {
	all := s.ledger.All()
	open := 0
	for _, snap := range all {
		if snap.Open {
			open++
		}
	}
	return OwnBook{
		Position: book.ComputePosition(all),
		Exposure: book.ComputeExposure(all),
		Open:     open,
		Orders:   len(all),
	}
}

// PnL marks the position to the latest trade. It fails with
// domain.ErrNoMarketData until a trade has been seen.
func (s *BookService) PnL() (domain.PnL, error) {
	pos := s.Position()
	var last *domain.Trade
	if tr, ok := s.agg.LatestTrade(); ok {
		last = &tr
	}
	pnl, err := book.ComputePnL(pos, last)
	if err != nil {
		return domain.PnL{}, fmt.Errorf("book_service: pnl: %w", err)
	}
	return pnl, nil
}

// Depth fetches the venue order book.
func (s *BookService) Depth(ctx context.Context) (domain.OrderBook, error) {
	if s.depth == nil {
		return domain.OrderBook{}, fmt.Errorf("book_service: depth: %w", domain.ErrNoMarketData)
	}
	ob, err := s.depth.OrderBook(ctx)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("book_service: depth: %w", err)
	}
	return ob, nil
}
