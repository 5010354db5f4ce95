package app

import (
	"log/slog"

	"github.com/alanyoungcy/fillbook/internal/config"
	"github.com/alanyoungcy/fillbook/internal/domain"
	"github.com/alanyoungcy/fillbook/internal/feed"
	"github.com/alanyoungcy/fillbook/internal/ledger"
	"github.com/alanyoungcy/fillbook/internal/marketdata"
	"github.com/alanyoungcy/fillbook/internal/platform/venue"
	"github.com/alanyoungcy/fillbook/internal/reconcile"
	"github.com/alanyoungcy/fillbook/internal/service"
)

// engine is the in-process state for one account on one instrument, plus
// the services that read and write it.
type engine struct {
	fills  *feed.Log[domain.FillEvent]
	quotes *feed.Log[domain.Quote]
	ledger *ledger.Ledger
	agg    *marketdata.Aggregator

	fillFeed  *feed.WSFeed[domain.FillEvent]
	quoteFeed *feed.WSFeed[domain.Quote]
	listing   *feed.ListingPoller

	reconcile *service.ReconcileService
	orders    *service.OrderService
	books     *service.BookService
}

func newEngine(cfg *config.Config, deps *Dependencies, readOnly bool, logger *slog.Logger) *engine {
	v := cfg.Venue
	e := &engine{
		fills:  feed.NewLog[domain.FillEvent]("executions", cfg.Reconcile.FillStaleAfter.Duration),
		quotes: feed.NewLog[domain.Quote]("tickertape", cfg.Reconcile.QuoteStaleAfter.Duration),
		ledger: ledger.New(),
		agg:    marketdata.NewAggregator(cfg.Reconcile.SpreadLimit),
	}

	e.fillFeed = feed.NewFillFeed(e.fills,
		venue.ExecutionsURL(v.WSURL, v.Account, v.Venue, v.Stock), v.APIKey, logger)
	e.quoteFeed = feed.NewQuoteFeed(e.quotes,
		venue.TickerTapeURL(v.WSURL, v.Account, v.Venue, v.Stock), v.APIKey, logger)
	e.listing = feed.NewListingPoller(deps.Venue, v.PollInterval.Duration, logger)

	e.reconcile = service.NewReconcileService(service.ReconcileDeps{
		Fills:      e.fills,
		Quotes:     e.quotes,
		Listing:    e.listing,
		Dedup:      reconcile.New(logger),
		Ledger:     e.ledger,
		Aggregator: e.agg,
		Store:      deps.SnapshotStore,
		Prices:     deps.PriceCache,
		Bus:        deps.SignalBus,
		Notifier:   deps.Notifier,
		Symbol:     v.Stock,
	}, cfg.Reconcile.Interval.Duration, logger)

	e.orders = service.NewOrderService(
		deps.Venue, e.ledger, deps.SnapshotStore, deps.RateLimiter,
		deps.SignalBus, deps.AuditStore, deps.Notifier,
		service.OrderConfig{
			Account:       v.Account,
			Venue:         v.Venue,
			Stock:         v.Stock,
			RatePerSecond: v.OrderRate,
			ReadOnly:      readOnly,
		},
		logger,
	)
	e.books = service.NewBookService(e.ledger, e.agg, deps.Venue)
	return e
}
