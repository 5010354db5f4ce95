package feed

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// DefaultPollInterval is how often the bulk listing is refreshed.
const DefaultPollInterval = 3 * time.Second

// Lister fetches every order of the account on the instrument.
type Lister interface {
	ListOrders(ctx context.Context) ([]domain.OrderSnapshot, error)
}

// Listing is one complete bulk listing. Generation increases by one per
// successful poll.
type Listing struct {
	Orders     []domain.OrderSnapshot
	FetchedAt  time.Time
	Generation uint64
}

// ListingPoller refreshes the bulk order listing on a timer. Each poll
// replaces the previous listing with a single atomic swap.
type ListingPoller struct {
	lister   Lister
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	latest atomic.Pointer[Listing]
	gen    atomic.Uint64
}

// NewListingPoller creates a poller. A non-positive interval uses
// DefaultPollInterval.
func NewListingPoller(lister Lister, interval time.Duration, logger *slog.Logger) *ListingPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &ListingPoller{
		lister:   lister,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "listing_poller")),
	}
}

// Run polls immediately and then every interval until ctx is cancelled.
func (p *ListingPoller) Run(ctx context.Context) error {
	p.logger.Info("listing poller started", slog.Duration("interval", p.interval))
	defer p.logger.Info("listing poller stopped")

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll fetches one listing. Failures are logged and leave the previous
// listing in place.
func (p *ListingPoller) Poll(ctx context.Context) {
	orders, err := p.lister.ListOrders(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("list orders failed", slog.String("error", err.Error()))
		}
		return
	}
	p.latest.Store(&Listing{
		Orders:     orders,
		FetchedAt:  p.now(),
		Generation: p.gen.Add(1),
	})
}

// Latest returns the most recent listing, or false before the first
// successful poll. The returned orders must not be modified.
func (p *ListingPoller) Latest() (Listing, bool) {
	l := p.latest.Load()
	if l == nil {
		return Listing{}, false
	}
	return *l, true
}
