// Package reaper cancels open orders that have been working for longer than
// a configured age.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// lockKey serialises reaping across processes sharing one account.
const lockKey = "reaper"

// Canceller issues cancellations to the venue.
type Canceller interface {
	CancelOrder(ctx context.Context, id string) (domain.OrderSnapshot, error)
}

// Book is the ledger view the reaper scans and updates with cancel results.
type Book interface {
	Open() []domain.OrderSnapshot
	RecordSubmitted(snap domain.OrderSnapshot) error
}

// Notifier receives an alert per reaped order.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// SelectStale returns the ids of open orders whose timestamp is strictly
// older than now minus threshold, sorted by id. Orders without a timestamp
// are never selected.
func SelectStale(snaps []domain.OrderSnapshot, now time.Time, threshold time.Duration) []string {
	var ids []string
	for _, s := range snaps {
		if !s.Open || s.Timestamp.IsZero() {
			continue
		}
		if now.Sub(s.Timestamp) > threshold {
			ids = append(ids, s.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Config controls the reaper loop.
type Config struct {
	Threshold time.Duration
	Interval  time.Duration
}

// Reaper scans the ledger on a ticker and cancels stale orders. Cancels are
// fire-and-forget: a failure is logged and the order is reconsidered on the
// next scan only if the ledger still shows it open.
type Reaper struct {
	book      Book
	canceller Canceller
	locks     domain.LockManager
	notifier  Notifier
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Reaper. locks and notifier may be nil.
func New(book Book, canceller Canceller, locks domain.LockManager, notifier Notifier, cfg Config, logger *slog.Logger) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Reaper{
		book:      book,
		canceller: canceller,
		locks:     locks,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "reaper")),
	}
}

// Run reaps every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.Info("reaper started",
		slog.Duration("threshold", r.cfg.Threshold),
		slog.Duration("interval", r.cfg.Interval),
	)
	defer r.logger.Info("reaper stopped")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ReapOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("reap pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ReapOnce selects stale orders and issues a cancel for each. It returns
// the selected ids whether or not their cancels succeeded.
func (r *Reaper) ReapOnce(ctx context.Context) ([]string, error) {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, lockKey, r.cfg.Interval)
		if errors.Is(err, domain.ErrLockHeld) {
			r.logger.Debug("reaper lock held elsewhere, skipping pass")
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reaper: acquire lock: %w", err)
		}
		defer unlock()
	}

	now := r.now()
	ids := SelectStale(r.book.Open(), now, r.cfg.Threshold)
	for _, id := range ids {
		r.cancel(ctx, id)
	}
	return ids, nil
}

func (r *Reaper) cancel(ctx context.Context, id string) {
	snap, err := r.canceller.CancelOrder(ctx, id)
	switch {
	case errors.Is(err, domain.ErrOrderClosed):
		r.logger.Info("order closed before cancel", slog.String("order_id", id))
		return
	case err != nil:
		r.logger.Warn("cancel failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := r.book.RecordSubmitted(snap); err != nil {
		r.logger.Warn("record cancel result failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}
	r.logger.Info("order reaped",
		slog.String("order_id", id),
		slog.Int64("total_filled", snap.TotalFilled),
		slog.Int64("original_qty", snap.OriginalQty),
	)
	if r.notifier != nil {
		msg := fmt.Sprintf("order %s cancelled after %s (%d/%d filled)",
			id, r.cfg.Threshold, snap.TotalFilled, snap.OriginalQty)
		if err := r.notifier.Notify(ctx, "order_reaped", "Order reaped", msg); err != nil {
			r.logger.Debug("notify failed", slog.String("error", err.Error()))
		}
	}
}
