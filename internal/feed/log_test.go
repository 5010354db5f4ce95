package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)

func TestLog_SinceAndCompact(t *testing.T) {
	l := NewLog[int]("fills", 0)
	for i := 0; i < 5; i++ {
		l.Append(i, t0)
	}

	got, cur := l.Since(0)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, 5, cur)

	got, cur = l.Since(cur)
	assert.Empty(t, got)
	assert.Equal(t, 5, cur)

	l.Append(5, t0)
	l.Compact(3)
	assert.Equal(t, 3, l.Len())

	got, cur = l.Since(5)
	assert.Equal(t, []int{5}, got)
	assert.Equal(t, 6, cur)

	got, _ = l.Since(0)
	assert.Equal(t, []int{3, 4, 5}, got, "stale cursor resumes from oldest retained")
}

func TestLog_SinceReturnsCopy(t *testing.T) {
	l := NewLog[int]("fills", 0)
	l.Append(1, t0)
	got, _ := l.Since(0)
	got[0] = 99
	assert.Equal(t, []int{1}, l.Snapshot())
}

func TestLog_Status(t *testing.T) {
	l := NewLog[int]("quotes", 10*time.Second)

	st := l.Status(t0)
	assert.False(t, st.Live)
	assert.True(t, st.Stale)
	assert.Nil(t, st.StaleSince)

	l.SetLive(true, t0)
	st = l.Status(t0.Add(5 * time.Second))
	assert.True(t, st.Live)
	assert.False(t, st.Stale)

	st = l.Status(t0.Add(11 * time.Second))
	assert.True(t, st.Stale, "connected but silent")
	require.NotNil(t, st.StaleSince)
	assert.Equal(t, t0, *st.StaleSince)

	l.Append(1, t0.Add(20*time.Second))
	st = l.Status(t0.Add(21 * time.Second))
	assert.False(t, st.Stale)
	assert.Equal(t, 1, st.Buffered)

	down := t0.Add(30 * time.Second)
	l.SetLive(false, down)
	st = l.Status(t0.Add(31 * time.Second))
	assert.False(t, st.Live)
	assert.True(t, st.Stale)
	require.NotNil(t, st.StaleSince)
	assert.Equal(t, down, *st.StaleSince)
	assert.Equal(t, 1, st.Buffered, "buffer survives disconnect")
}

func TestLog_ConcurrentReadersSeeWholeEntries(t *testing.T) {
	l := NewLog[[]int]("fills", 0)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			l.Append([]int{i, i}, t0)
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cur := 0
			for cur < 1000 {
				var batch [][]int
				batch, cur = l.Since(cur)
				for _, e := range batch {
					assert.Equal(t, e[0], e[1])
				}
			}
		}()
	}
	wg.Wait()
}
