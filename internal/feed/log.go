// Package feed owns the inbound streams: an append-only log per WebSocket
// feed, the reconnecting listeners that write to those logs, and the poller
// that refreshes the bulk order listing.
package feed

import (
	"sync"
	"time"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// Log is an append-only buffer with one writer (the feed listener) and any
// number of readers. Readers address entries by an absolute cursor that
// stays valid across reconnects and compaction.
type Log[T any] struct {
	name       string
	staleAfter time.Duration

	mu        sync.RWMutex
	items     []T
	base      int // absolute index of items[0]
	live      bool
	liveSince time.Time
	downSince time.Time
	lastEvent time.Time
}

// NewLog creates an empty, non-live log. A feed that has been connected but
// silent for longer than staleAfter is reported stale; zero disables that
// check.
func NewLog[T any](name string, staleAfter time.Duration) *Log[T] {
	return &Log[T]{name: name, staleAfter: staleAfter}
}

// Name returns the feed name used in status reports.
func (l *Log[T]) Name() string { return l.name }

// Append adds one entry received at the given time.
func (l *Log[T]) Append(v T, at time.Time) {
	l.mu.Lock()
	l.items = append(l.items, v)
	if at.After(l.lastEvent) {
		l.lastEvent = at
	}
	l.mu.Unlock()
}

// Since returns a copy of every entry at or after cursor, and the cursor to
// pass next time. A cursor older than the compacted prefix starts from the
// oldest retained entry.
func (l *Log[T]) Since(cursor int) ([]T, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	end := l.base + len(l.items)
	start := cursor - l.base
	if start < 0 {
		start = 0
	}
	if start >= len(l.items) {
		return nil, end
	}
	out := make([]T, len(l.items)-start)
	copy(out, l.items[start:])
	return out, end
}

// Snapshot returns a copy of every retained entry.
func (l *Log[T]) Snapshot() []T {
	out, _ := l.Since(0)
	return out
}

// Compact drops entries before cursor. Readers holding an older cursor
// simply resume from the oldest retained entry.
func (l *Log[T]) Compact(cursor int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	drop := cursor - l.base
	if drop <= 0 {
		return
	}
	if drop > len(l.items) {
		drop = len(l.items)
	}
	rest := make([]T, len(l.items)-drop)
	copy(rest, l.items[drop:])
	l.items = rest
	l.base += drop
}

// Len returns the number of retained entries.
func (l *Log[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// SetLive records a connect (true) or a disconnect (false). Buffered
// entries are untouched either way.
func (l *Log[T]) SetLive(live bool, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if live == l.live {
		return
	}
	l.live = live
	if live {
		l.liveSince = at
		l.downSince = time.Time{}
	} else {
		l.downSince = at
	}
}

// Status reports liveness and staleness as of now.
func (l *Log[T]) Status(now time.Time) domain.FeedStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := domain.FeedStatus{
		Name:      l.name,
		Live:      l.live,
		LastEvent: l.lastEvent,
		Buffered:  len(l.items),
	}
	switch {
	case !l.live:
		since := l.downSince
		if since.IsZero() {
			since = l.lastEvent
		}
		st.Stale = true
		if !since.IsZero() {
			st.StaleSince = &since
		}
	case l.staleAfter > 0:
		ref := l.lastEvent
		if l.liveSince.After(ref) {
			ref = l.liveSince
		}
		if !ref.IsZero() && now.Sub(ref) > l.staleAfter {
			since := ref
			st.Stale = true
			st.StaleSince = &since
		}
	}
	return st
}
