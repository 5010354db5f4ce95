package reconcile

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(seq int64, id string, filled int64, open bool, fills ...domain.PartialFill) domain.FillEvent {
	return domain.FillEvent{
		SequenceID: seq,
		Order: domain.OrderSnapshot{
			ID:          id,
			Direction:   domain.DirectionBuy,
			OriginalQty: 10,
			TotalFilled: filled,
			Price:       100,
			Open:        open,
			Fills:       fills,
		},
	}
}

func TestReconcile_KeepsHighestSequence(t *testing.T) {
	testCases := []struct {
		desc   string
		events []domain.FillEvent
		want   map[string]int64 // order id -> sequence kept
	}{
		{
			desc:   "forward order",
			events: []domain.FillEvent{event(1, "A", 0, true), event(2, "A", 10, false)},
			want:   map[string]int64{"A": 2},
		},
		{
			desc:   "reverse order",
			events: []domain.FillEvent{event(2, "A", 10, false), event(1, "A", 0, true)},
			want:   map[string]int64{"A": 2},
		},
		{
			desc:   "duplicate delivery",
			events: []domain.FillEvent{event(3, "A", 5, true), event(3, "A", 5, true), event(3, "A", 5, true)},
			want:   map[string]int64{"A": 3},
		},
		{
			desc: "independent orders",
			events: []domain.FillEvent{
				event(1, "A", 0, true), event(2, "B", 4, true), event(5, "A", 6, true), event(4, "B", 2, true),
			},
			want: map[string]int64{"A": 5, "B": 4},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := Reconcile(tc.events, discardLogger())
			require.Len(t, got, len(tc.want))
			for id, seq := range tc.want {
				assert.Equal(t, seq, got[id].SequenceID, "order %s", id)
			}
		})
	}
}

func TestReconcile_EqualSequenceKeepsFirst(t *testing.T) {
	first := event(7, "A", 3, true)
	second := event(7, "A", 9, true)

	got := Reconcile([]domain.FillEvent{first, second}, discardLogger())
	assert.Equal(t, int64(3), got["A"].TotalFilled)
}

func TestReconcile_SkipsMalformed(t *testing.T) {
	missingID := event(1, "", 0, true)
	overfilled := event(2, "B", 11, true)
	good := event(3, "C", 1, true)

	d := New(discardLogger())
	changed, stats := d.Apply([]domain.FillEvent{missingID, overfilled, good})

	assert.Equal(t, 2, stats.Malformed)
	assert.Equal(t, 1, stats.Accepted)
	require.Len(t, changed, 1)
	assert.Contains(t, changed, "C")
}

func TestDeduplicator_Idempotent(t *testing.T) {
	events := []domain.FillEvent{
		event(1, "A", 0, true),
		event(2, "A", 10, false, domain.PartialFill{Qty: 10, Price: 100, SequenceID: 2}),
		event(3, "B", 2, true, domain.PartialFill{Qty: 2, Price: 99, SequenceID: 3}),
	}

	d := New(discardLogger())
	d.Apply(events)
	first := d.Latest()

	changed, stats := d.Apply(events)
	assert.Empty(t, changed)
	assert.Equal(t, len(events), stats.Superseded)
	assert.Equal(t, first, d.Latest())
}

func TestDeduplicator_IncrementalMatchesBatch(t *testing.T) {
	events := []domain.FillEvent{
		event(4, "A", 4, true),
		event(1, "B", 0, true),
		event(2, "A", 1, true),
		event(6, "B", 10, false),
		event(5, "C", 3, true),
		event(3, "C", 1, true),
	}

	batch := Reconcile(events, discardLogger())

	for chunk := 1; chunk <= len(events); chunk++ {
		d := New(discardLogger())
		for i := 0; i < len(events); i += chunk {
			end := min(i+chunk, len(events))
			d.Apply(events[i:end])
		}
		assert.Equal(t, batch, d.Latest(), "chunk size %d", chunk)
	}
}

func TestDeduplicator_LatestIsCopy(t *testing.T) {
	d := New(discardLogger())
	d.Apply([]domain.FillEvent{event(1, "A", 1, true, domain.PartialFill{Qty: 1, Price: 100})})

	got := d.Latest()
	snap := got["A"]
	snap.Fills[0].Qty = 999

	assert.Equal(t, int64(1), d.Latest()["A"].Fills[0].Qty)
}
