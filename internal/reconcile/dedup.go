// Package reconcile collapses the raw, duplicate-laden executions feed into
// one authoritative snapshot per order id.
package reconcile

import (
	"log/slog"
	"sync"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// Stats counts what happened to the events of one Apply call.
type Stats struct {
	Accepted   int
	Superseded int
	Malformed  int
}

// Deduplicator keeps, per order id, the snapshot carried by the event with the
// strictly highest sequence id. Events with an equal or lower sequence id are
// ignored, which makes duplicate delivery and out-of-order arrival harmless.
// It is safe for concurrent use.
type Deduplicator struct {
	mu     sync.Mutex
	latest map[string]domain.OrderSnapshot
	logger *slog.Logger
}

// New creates an empty Deduplicator.
func New(logger *slog.Logger) *Deduplicator {
	return &Deduplicator{
		latest: make(map[string]domain.OrderSnapshot),
		logger: logger.With(slog.String("component", "dedup")),
	}
}

// Apply folds events into the per-order state and returns the snapshots that
// changed during this call, keyed by order id. Feeding a log in one call or
// in any number of consecutive chunks yields the same final state.
func (d *Deduplicator) Apply(events []domain.FillEvent) (map[string]domain.OrderSnapshot, Stats) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var stats Stats
	changed := make(map[string]domain.OrderSnapshot)

	for _, ev := range events {
		snap := ev.Order.Clone()
		snap.SequenceID = ev.SequenceID

		if err := snap.Validate(); err != nil {
			stats.Malformed++
			d.logger.Warn("skipping malformed fill event",
				slog.Int64("sequence_id", ev.SequenceID),
				slog.String("order_id", ev.OrderID()),
				slog.String("error", err.Error()),
			)
			continue
		}

		if cur, ok := d.latest[snap.ID]; ok && ev.SequenceID <= cur.SequenceID {
			stats.Superseded++
			continue
		}

		d.latest[snap.ID] = snap
		changed[snap.ID] = snap
		stats.Accepted++
	}

	return changed, stats
}

// Latest returns a copy of the current per-order state.
func (d *Deduplicator) Latest() map[string]domain.OrderSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]domain.OrderSnapshot, len(d.latest))
	for id, snap := range d.latest {
		out[id] = snap.Clone()
	}
	return out
}

// Len returns the number of distinct orders seen.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.latest)
}

// Reconcile is the stateless form: it scans the whole log from the start and
// returns one snapshot per order id.
func Reconcile(events []domain.FillEvent, logger *slog.Logger) map[string]domain.OrderSnapshot {
	d := New(logger)
	d.Apply(events)
	return d.latest
}
