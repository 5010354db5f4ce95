package feed

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fillbook/internal/domain"
	"github.com/alanyoungcy/fillbook/internal/platform/venue"
	"github.com/alanyoungcy/fillbook/internal/reconcile"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// executionsServer serves one batch of frames per connection and then drops
// the connection.
func executionsServer(t *testing.T, batches [][]string) (*httptest.Server, *int32) {
	t.Helper()
	var conns int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&conns, 1)) - 1
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if n < len(batches) {
			for _, frame := range batches[n] {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
			}
			return
		}
		// Last connection stays open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

const (
	frameSeq1 = `{"ok":true,"sequenceId":1,"order":{"id":"A","direction":"buy","originalQty":10,"totalFilled":0,"price":100,"open":true,"fills":[]}}`
	frameSeq2 = `{"ok":true,"sequenceId":2,"order":{"id":"A","direction":"buy","originalQty":10,"totalFilled":10,"price":100,"open":false,"fills":[{"qty":10,"price":100,"sequenceId":2}]}}`
)

func TestFillFeed_CarriesBufferAcrossReconnect(t *testing.T) {
	// Second connection replays seq 1 after a reconnect and delivers a junk frame.
	srv, conns := executionsServer(t, [][]string{
		{frameSeq2},
		{`not json`, frameSeq1},
	})

	log := NewLog[domain.FillEvent]("fills", 0)
	f := NewFillFeed(log, "ws"+strings.TrimPrefix(srv.URL, "http"), "", discardLogger())
	f.minDelay = 10 * time.Millisecond
	f.maxDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(ctx) }()

	require.Eventually(t, func() bool {
		return log.Len() == 2 && atomic.LoadInt32(conns) >= 3 && log.Status(time.Now()).Live
	}, 5*time.Second, 10*time.Millisecond)

	events := log.Snapshot()
	assert.Equal(t, int64(2), events[0].SequenceID)
	assert.Equal(t, int64(1), events[1].SequenceID)

	// Arrival order is 2 then 1; dedup still keeps seq 2.
	got := reconcile.Reconcile(events, discardLogger())
	require.Contains(t, got, "A")
	assert.Equal(t, int64(10), got["A"].TotalFilled)
	assert.False(t, got["A"].Open)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop")
	}
	assert.False(t, log.Status(time.Now()).Live)
}

type fakeConn struct {
	connectErr error
	done       chan struct{}
}

func (c *fakeConn) Connect(context.Context) error { return c.connectErr }
func (c *fakeConn) Done() <-chan struct{}         { return c.done }
func (c *fakeConn) Err() error                    { return nil }
func (c *fakeConn) Close() error                  { return nil }

func TestWSFeed_CloseStopsRetrying(t *testing.T) {
	var dials int32
	log := NewLog[domain.Quote]("quotes", 0)
	dial := func(venue.MessageHandler) Conn {
		atomic.AddInt32(&dials, 1)
		return &fakeConn{connectErr: domain.ErrWSDisconnect, done: make(chan struct{})}
	}
	decode := func(raw []byte, _ time.Time) (domain.Quote, error) { return venue.DecodeQuote(raw) }
	f := NewWSFeed(log, dial, decode, discardLogger())
	f.minDelay = time.Millisecond
	f.maxDelay = 2 * time.Millisecond

	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(context.Background()) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&dials) >= 3 }, 5*time.Second, time.Millisecond)
	f.Close()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop")
	}
	assert.False(t, log.Status(time.Now()).Live)
}
