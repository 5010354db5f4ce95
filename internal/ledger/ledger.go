// Package ledger holds the latest snapshot of every order for the traded
// instrument. Writers build a new copy of the table and publish it with a
// single pointer swap, so readers always see a complete batch or none of it.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

type state struct {
	orders    map[string]domain.OrderSnapshot
	submitted map[string]domain.OrderSnapshot
	version   uint64
}

func (s *state) clone() *state {
	next := &state{
		orders:    make(map[string]domain.OrderSnapshot, len(s.orders)),
		submitted: make(map[string]domain.OrderSnapshot, len(s.submitted)),
		version:   s.version + 1,
	}
	for id, snap := range s.orders {
		next.orders[id] = snap
	}
	for id, snap := range s.submitted {
		next.submitted[id] = snap
	}
	return next
}

// Ledger is the single shared order table. Reads are lock-free.
type Ledger struct {
	writeMu sync.Mutex
	cur     atomic.Pointer[state]
}

// New returns an empty Ledger.
func New() *Ledger {
	l := &Ledger{}
	l.cur.Store(&state{
		orders:    map[string]domain.OrderSnapshot{},
		submitted: map[string]domain.OrderSnapshot{},
	})
	return l
}

// Upsert stores snap if its sequence id is strictly higher than the stored
// one for the same order. It reports whether the ledger changed.
func (l *Ledger) Upsert(snap domain.OrderSnapshot) (bool, error) {
	applied, err := l.UpsertBatch([]domain.OrderSnapshot{snap})
	return len(applied) > 0, err
}

// UpsertBatch applies every valid snapshot under last-sequence-wins and
// publishes the result as one atomic swap. A newer snapshot that is behind
// the stored one (the bulk listing got there first) only advances the stored
// sequence id. Invalid snapshots are skipped and reported in the returned
// error; the valid ones are still applied.
func (l *Ledger) UpsertBatch(snaps []domain.OrderSnapshot) ([]domain.OrderSnapshot, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var errs []error
	var applied []domain.OrderSnapshot
	var advanced bool
	next := l.cur.Load().clone()

	for _, snap := range snaps {
		if err := snap.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("ledger: upsert: %w", err))
			continue
		}
		if cur, ok := next.orders[snap.ID]; ok {
			if snap.SequenceID <= cur.SequenceID {
				continue
			}
			if Ahead(cur, snap) {
				cur.SequenceID = snap.SequenceID
				next.orders[snap.ID] = cur
				advanced = true
				continue
			}
		}
		snap = snap.Clone()
		next.orders[snap.ID] = snap
		next.pruneSubmitted(snap)
		applied = append(applied, snap)
	}

	if len(applied) > 0 || advanced {
		l.cur.Store(next)
	}
	return applied, errors.Join(errs...)
}

// MergeListing folds a bulk order listing into the ledger. A listed snapshot
// only replaces the stored one when it is strictly further along, so an old
// listing can never roll back state learned from the executions feed. The
// replacement inherits the stored sequence id; an order first seen in a
// listing is stored at sequence zero.
func (l *Ledger) MergeListing(snaps []domain.OrderSnapshot) ([]domain.OrderSnapshot, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var errs []error
	var applied []domain.OrderSnapshot
	next := l.cur.Load().clone()

	for _, snap := range snaps {
		if err := snap.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("ledger: merge listing: %w", err))
			continue
		}
		cur, ok := next.orders[snap.ID]
		if ok {
			if !Ahead(snap, cur) {
				continue
			}
			snap.SequenceID = cur.SequenceID
		} else {
			if sub, isSub := next.submitted[snap.ID]; isSub && !Ahead(snap, sub) {
				continue
			}
			snap.SequenceID = 0
		}
		snap = snap.Clone()
		next.orders[snap.ID] = snap
		next.pruneSubmitted(snap)
		applied = append(applied, snap)
	}

	if len(applied) > 0 {
		l.cur.Store(next)
	}
	return applied, errors.Join(errs...)
}

// RecordSubmitted remembers an order accepted by the gateway that may not yet
// have appeared on the executions feed.
func (l *Ledger) RecordSubmitted(snap domain.OrderSnapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("ledger: record submitted: %w", err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	next := l.cur.Load().clone()
	if cur, ok := next.orders[snap.ID]; ok && !Ahead(snap, cur) {
		return nil
	}
	next.submitted[snap.ID] = snap.Clone()
	l.cur.Store(next)
	return nil
}

// Get returns the snapshot for id.
func (l *Ledger) Get(id string) (domain.OrderSnapshot, bool) {
	s := l.cur.Load()
	snap, ok := s.view(id)
	if !ok {
		return domain.OrderSnapshot{}, false
	}
	return snap.Clone(), true
}

// All returns a point-in-time copy of every order, sorted by id.
func (l *Ledger) All() []domain.OrderSnapshot {
	s := l.cur.Load()

	out := make([]domain.OrderSnapshot, 0, len(s.orders)+len(s.submitted))
	for id := range s.orders {
		snap, _ := s.view(id)
		out = append(out, snap.Clone())
	}
	for id, snap := range s.submitted {
		if _, ok := s.orders[id]; !ok {
			out = append(out, snap.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Open returns a copy of every open order, sorted by id.
func (l *Ledger) Open() []domain.OrderSnapshot {
	all := l.All()
	out := all[:0]
	for _, snap := range all {
		if snap.Open {
			out = append(out, snap)
		}
	}
	return out
}

// Len returns the number of distinct orders.
func (l *Ledger) Len() int {
	s := l.cur.Load()
	n := len(s.orders)
	for id := range s.submitted {
		if _, ok := s.orders[id]; !ok {
			n++
		}
	}
	return n
}

// Version increases on every published change.
func (l *Ledger) Version() uint64 {
	return l.cur.Load().version
}

// view resolves one id across the feed table and the submission record.
func (s *state) view(id string) (domain.OrderSnapshot, bool) {
	snap, ok := s.orders[id]
	sub, isSub := s.submitted[id]
	switch {
	case ok && isSub && Ahead(sub, snap):
		return sub, true
	case ok:
		return snap, true
	case isSub:
		return sub, true
	}
	return domain.OrderSnapshot{}, false
}

func (s *state) pruneSubmitted(snap domain.OrderSnapshot) {
	if sub, ok := s.submitted[snap.ID]; ok && !Ahead(sub, snap) {
		delete(s.submitted, snap.ID)
	}
}

// Ahead reports whether a is strictly further along than b. Progress is
// measured by filled quantity first; at equal fill a closed order is ahead
// of an open one.
func Ahead(a, b domain.OrderSnapshot) bool {
	if a.TotalFilled != b.TotalFilled {
		return a.TotalFilled > b.TotalFilled
	}
	return b.Open && !a.Open
}
