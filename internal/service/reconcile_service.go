package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/fillbook/internal/domain"
	"github.com/alanyoungcy/fillbook/internal/feed"
	"github.com/alanyoungcy/fillbook/internal/ledger"
	"github.com/alanyoungcy/fillbook/internal/marketdata"
	"github.com/alanyoungcy/fillbook/internal/reconcile"
)

// ListingSource exposes the most recent bulk order listing.
type ListingSource interface {
	Latest() (feed.Listing, bool)
}

// ReconcileDeps groups the collaborators of ReconcileService. Store, Prices,
// Bus, Notifier and Listing may be nil.
type ReconcileDeps struct {
	Fills      *feed.Log[domain.FillEvent]
	Quotes     *feed.Log[domain.Quote]
	Listing    ListingSource
	Dedup      *reconcile.Deduplicator
	Ledger     *ledger.Ledger
	Aggregator *marketdata.Aggregator
	Store      domain.SnapshotStore
	Prices     domain.PriceCache
	Bus        domain.SignalBus
	Notifier   Notifier
	Symbol     string
}

// PassResult summarises one reconciliation pass.
type PassResult struct {
	Events  int
	Dedup   reconcile.Stats
	Applied []domain.OrderSnapshot
	Merged  []domain.OrderSnapshot
	Quotes  int
	Trade   *domain.Trade
}

// Changed returns every snapshot the pass wrote into the ledger.
func (r PassResult) Changed() []domain.OrderSnapshot {
	out := make([]domain.OrderSnapshot, 0, len(r.Applied)+len(r.Merged))
	out = append(out, r.Applied...)
	return append(out, r.Merged...)
}

// ReconcileService is the only writer of feed-derived state. Each pass drains
// new fills and quotes, folds in a fresh bulk listing if one arrived, and
// pushes the changes to the sinks.
type ReconcileService struct {
	deps     ReconcileDeps
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	fillCursor  int
	quoteCursor int
	listingGen  uint64
	lastTrade   time.Time
	stale       map[string]bool
}

// NewReconcileService creates a ReconcileService running a pass every
// interval.
func NewReconcileService(deps ReconcileDeps, interval time.Duration, logger *slog.Logger) *ReconcileService {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	// Feeds start out disconnected; only a later drop counts as a transition.
	stale := map[string]bool{deps.Fills.Name(): true}
	if deps.Quotes != nil {
		stale[deps.Quotes.Name()] = true
	}
	return &ReconcileService{
		deps:     deps,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "reconcile_service")),
		stale:    stale,
	}
}

// Run executes passes until ctx is cancelled.
func (s *ReconcileService) Run(ctx context.Context) error {
	s.logger.Info("reconciliation loop started", slog.Duration("interval", s.interval))
	defer s.logger.Info("reconciliation loop stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Pass(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("reconciliation pass incomplete", slog.String("error", err.Error()))
			}
		}
	}
}

// Pass runs one reconciliation step. Local recoverable problems (malformed
// events) are logged and skipped; the returned error only reports sink
// failures, after the ledger has already been updated.
func (s *ReconcileService) Pass(ctx context.Context) (PassResult, error) {
	var res PassResult

	// Fills.
	events, cur := s.deps.Fills.Since(s.fillCursor)
	s.fillCursor = cur
	s.deps.Fills.Compact(cur)
	res.Events = len(events)
	if len(events) > 0 {
		changed, stats := s.deps.Dedup.Apply(events)
		res.Dedup = stats
		applied, err := s.deps.Ledger.UpsertBatch(sortedSnapshots(changed))
		if err != nil {
			s.logger.Warn("ledger rejected snapshots", slog.String("error", err.Error()))
		}
		res.Applied = applied
	}

	// Bulk listing.
	if s.deps.Listing != nil {
		if l, ok := s.deps.Listing.Latest(); ok && l.Generation != s.listingGen {
			s.listingGen = l.Generation
			merged, err := s.deps.Ledger.MergeListing(l.Orders)
			if err != nil {
				s.logger.Warn("listing entries rejected", slog.String("error", err.Error()))
			}
			res.Merged = merged
		}
	}

	// Quotes.
	if s.deps.Quotes != nil {
		quotes, qcur := s.deps.Quotes.Since(s.quoteCursor)
		s.quoteCursor = qcur
		s.deps.Quotes.Compact(qcur)
		for _, q := range quotes {
			s.deps.Aggregator.AppendQuote(q)
		}
		res.Quotes = len(quotes)
		if tr, ok := s.deps.Aggregator.LatestTrade(); ok && tr.Time.After(s.lastTrade) {
			s.lastTrade = tr.Time
			res.Trade = &tr
		}
	}

	err := s.sink(ctx, res)
	s.checkFeeds(ctx)

	if n := len(res.Applied) + len(res.Merged); n > 0 || res.Dedup.Malformed > 0 {
		s.logger.Debug("reconciliation pass",
			slog.Int("events", res.Events),
			slog.Int("accepted", res.Dedup.Accepted),
			slog.Int("superseded", res.Dedup.Superseded),
			slog.Int("malformed", res.Dedup.Malformed),
			slog.Int("applied", len(res.Applied)),
			slog.Int("merged", len(res.Merged)),
			slog.Uint64("ledger_version", s.deps.Ledger.Version()),
		)
	}
	return res, err
}

// FeedStatus reports the fill and quote feeds as of now.
func (s *ReconcileService) FeedStatus() []domain.FeedStatus {
	now := s.now()
	out := []domain.FeedStatus{s.deps.Fills.Status(now)}
	if s.deps.Quotes != nil {
		out = append(out, s.deps.Quotes.Status(now))
	}
	return out
}

func (s *ReconcileService) sink(ctx context.Context, res PassResult) error {
	var sinkErr error

	if changed := res.Changed(); len(changed) > 0 {
		if s.deps.Store != nil {
			if err := s.deps.Store.UpsertBatch(ctx, changed); err != nil {
				sinkErr = fmt.Errorf("reconcile_service: persist snapshots: %w", err)
			}
		}
		update := map[string]any{
			"event":   "ledger_update",
			"version": s.deps.Ledger.Version(),
			"orders":  changed,
		}
		publish(ctx, s.deps.Bus, s.logger, domain.ChannelLedger, update)
		if s.deps.Bus != nil {
			appendStream(ctx, s.deps.Bus, s.logger, domain.StreamLedger, update)
		}
	}

	if res.Trade != nil {
		if s.deps.Prices != nil {
			if err := s.deps.Prices.SetTrade(ctx, s.deps.Symbol, *res.Trade); err != nil && sinkErr == nil {
				sinkErr = fmt.Errorf("reconcile_service: cache trade: %w", err)
			}
		}
		publish(ctx, s.deps.Bus, s.logger, domain.ChannelTrade, map[string]any{
			"event":  "trade",
			"symbol": s.deps.Symbol,
			"trade":  res.Trade,
		})
	}
	return sinkErr
}

// checkFeeds alerts once per transition into and out of staleness.
func (s *ReconcileService) checkFeeds(ctx context.Context) {
	for _, st := range s.FeedStatus() {
		was := s.stale[st.Name]
		if st.Stale == was {
			continue
		}
		s.stale[st.Name] = st.Stale
		if st.Stale {
			since := "never connected"
			if st.StaleSince != nil {
				since = st.StaleSince.UTC().Format(time.RFC3339)
			}
			s.logger.Error("feed stale",
				slog.String("feed", st.Name),
				slog.Bool("live", st.Live),
				slog.String("stale_since", since),
			)
			notify(ctx, s.deps.Notifier, s.logger, "feed_stale", "Feed stale",
				fmt.Sprintf("%s %s since %s", st.Name, domain.ErrFeedStale, since))
		} else {
			s.logger.Info("feed recovered", slog.String("feed", st.Name))
		}
		publish(ctx, s.deps.Bus, s.logger, domain.ChannelStatus, map[string]any{
			"event": "feed_status",
			"feed":  st,
		})
	}
}

func sortedSnapshots(m map[string]domain.OrderSnapshot) []domain.OrderSnapshot {
	out := make([]domain.OrderSnapshot, 0, len(m))
	for _, snap := range m {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
