package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

func snap(id string, seq, filled int64, open bool) domain.OrderSnapshot {
	return domain.OrderSnapshot{
		ID:          id,
		Direction:   domain.DirectionBuy,
		OriginalQty: 10,
		TotalFilled: filled,
		Price:       100,
		Open:        open,
		SequenceID:  seq,
	}
}

func TestLedger_UpsertLastSequenceWins(t *testing.T) {
	l := New()

	changed, err := l.Upsert(snap("A", 2, 5, true))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = l.Upsert(snap("A", 1, 0, true))
	require.NoError(t, err)
	assert.False(t, changed, "lower sequence must be discarded")

	changed, err = l.Upsert(snap("A", 2, 9, true))
	require.NoError(t, err)
	assert.False(t, changed, "equal sequence must be discarded")

	got, ok := l.Get("A")
	require.True(t, ok)
	assert.Equal(t, int64(5), got.TotalFilled)

	changed, err = l.Upsert(snap("A", 3, 10, false))
	require.NoError(t, err)
	assert.True(t, changed)

	got, _ = l.Get("A")
	assert.Equal(t, int64(10), got.TotalFilled)
	assert.False(t, got.Open)
}

func TestLedger_UpsertBatchRejectsMalformed(t *testing.T) {
	l := New()

	bad := snap("B", 1, 11, true)
	applied, err := l.UpsertBatch([]domain.OrderSnapshot{snap("A", 1, 1, true), bad})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)
	require.Len(t, applied, 1)
	assert.Equal(t, "A", applied[0].ID)

	_, ok := l.Get("B")
	assert.False(t, ok)
}

func TestLedger_AllIsCopy(t *testing.T) {
	l := New()
	s := snap("A", 1, 1, true)
	s.Fills = []domain.PartialFill{{Qty: 1, Price: 100}}
	_, err := l.Upsert(s)
	require.NoError(t, err)

	all := l.All()
	all[0].Fills[0].Qty = 50
	all[0].TotalFilled = 7

	got, _ := l.Get("A")
	assert.Equal(t, int64(1), got.Fills[0].Qty)
	assert.Equal(t, int64(1), got.TotalFilled)
}

func TestLedger_BatchIsAtomicForReaders(t *testing.T) {
	l := New()
	ids := []string{"A", "B", "C", "D", "E"}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for k := int64(1); k <= 10; k++ {
			batch := make([]domain.OrderSnapshot, 0, len(ids))
			for _, id := range ids {
				batch = append(batch, snap(id, k, k, true))
			}
			_, err := l.UpsertBatch(batch)
			assert.NoError(t, err)
		}
	}()

	for i := 0; i < 2000; i++ {
		all := l.All()
		if len(all) == 0 {
			continue
		}
		require.Len(t, all, len(ids))
		for _, s := range all {
			require.Equal(t, all[0].TotalFilled, s.TotalFilled, "reader observed a partial batch")
		}
	}
	wg.Wait()
}

func TestLedger_MergeListingNeverRollsBack(t *testing.T) {
	testCases := []struct {
		desc       string
		stored     domain.OrderSnapshot
		listed     domain.OrderSnapshot
		wantFilled int64
		wantOpen   bool
	}{
		{"older listing ignored", snap("A", 5, 8, true), snap("A", 0, 3, true), 8, true},
		{"same progress ignored", snap("A", 5, 8, true), snap("A", 0, 8, true), 8, true},
		{"further fill applied", snap("A", 5, 8, true), snap("A", 0, 10, false), 10, false},
		{"closure at same fill applied", snap("A", 5, 4, true), snap("A", 0, 4, false), 4, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			l := New()
			_, err := l.Upsert(tc.stored)
			require.NoError(t, err)

			_, err = l.MergeListing([]domain.OrderSnapshot{tc.listed})
			require.NoError(t, err)

			got, ok := l.Get("A")
			require.True(t, ok)
			assert.Equal(t, tc.wantFilled, got.TotalFilled)
			assert.Equal(t, tc.wantOpen, got.Open)
			assert.Equal(t, tc.stored.SequenceID, got.SequenceID)
		})
	}
}

func TestLedger_MergeListingKeepsSequenceSpace(t *testing.T) {
	l := New()
	_, err := l.Upsert(snap("A", 5, 2, true))
	require.NoError(t, err)
	_, err = l.MergeListing([]domain.OrderSnapshot{snap("A", 0, 6, true)})
	require.NoError(t, err)

	changed, err := l.Upsert(snap("A", 4, 1, true))
	require.NoError(t, err)
	assert.False(t, changed, "a stale feed event must not undo the listing")

	changed, err = l.Upsert(snap("A", 6, 7, true))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestLedger_LateFillBehindListingIsHeld(t *testing.T) {
	l := New()
	_, err := l.Upsert(snap("A", 5, 2, true))
	require.NoError(t, err)
	_, err = l.MergeListing([]domain.OrderSnapshot{snap("A", 0, 10, false)})
	require.NoError(t, err)

	changed, err := l.Upsert(snap("A", 6, 4, true))
	require.NoError(t, err)
	assert.False(t, changed)

	got, ok := l.Get("A")
	require.True(t, ok)
	assert.Equal(t, int64(10), got.TotalFilled)
	assert.False(t, got.Open)
	assert.Equal(t, int64(6), got.SequenceID)
	assert.Empty(t, l.Open())

	changed, err = l.Upsert(snap("A", 6, 10, false))
	require.NoError(t, err)
	assert.False(t, changed, "sequence 6 was already consumed")
}

func TestLedger_ListingOnlyOrderStartsAtSequenceZero(t *testing.T) {
	l := New()
	listed := snap("B", 9, 3, true)
	_, err := l.MergeListing([]domain.OrderSnapshot{listed})
	require.NoError(t, err)

	got, ok := l.Get("B")
	require.True(t, ok)
	assert.Equal(t, int64(0), got.SequenceID)

	changed, err := l.Upsert(snap("B", 1, 5, true))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestLedger_SubmittedVisibleUntilFeedCatchesUp(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordSubmitted(snap("S", 0, 0, true)))

	got, ok := l.Get("S")
	require.True(t, ok)
	assert.True(t, got.Open)
	assert.Len(t, l.All(), 1)
	assert.Len(t, l.Open(), 1)

	_, err := l.Upsert(snap("S", 1, 10, false))
	require.NoError(t, err)

	got, _ = l.Get("S")
	assert.Equal(t, int64(10), got.TotalFilled)
	assert.Equal(t, 1, l.Len())
	assert.Empty(t, l.Open())
}

func TestLedger_SubmittedAheadOfFeedWins(t *testing.T) {
	l := New()
	_, err := l.Upsert(snap("S", 1, 2, true))
	require.NoError(t, err)

	require.NoError(t, l.RecordSubmitted(snap("S", 0, 10, false)))

	got, _ := l.Get("S")
	assert.Equal(t, int64(10), got.TotalFilled)
	assert.Len(t, l.All(), 1)
}

func TestAhead(t *testing.T) {
	assert.True(t, Ahead(snap("A", 0, 3, true), snap("A", 0, 2, true)))
	assert.False(t, Ahead(snap("A", 0, 2, true), snap("A", 0, 3, false)))
	assert.True(t, Ahead(snap("A", 0, 2, false), snap("A", 0, 2, true)))
	assert.False(t, Ahead(snap("A", 0, 2, true), snap("A", 0, 2, true)))
}

func TestLedger_VersionAdvancesOnlyOnChange(t *testing.T) {
	l := New()
	v0 := l.Version()

	_, _ = l.Upsert(snap("A", 1, 0, true))
	v1 := l.Version()
	assert.Greater(t, v1, v0)

	_, _ = l.Upsert(snap("A", 1, 0, true))
	assert.Equal(t, v1, l.Version())
}
