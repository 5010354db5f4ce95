package venue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

func TestStreamURLs(t *testing.T) {
	base := "wss://api.example.test/ob/api/ws/"
	assert.Equal(t, "wss://api.example.test/ob/api/ws/EXB123/venues/TESTEX/executions/stocks/FOOBAR",
		ExecutionsURL(base, "EXB123", "TESTEX", "FOOBAR"))
	assert.Equal(t, "wss://api.example.test/ob/api/ws/EXB123/venues/TESTEX/tickertape/stocks/FOOBAR",
		TickerTapeURL(base, "EXB123", "TESTEX", "FOOBAR"))
}

func TestWSClient_DeliversFramesThenReportsDisconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get(AuthHeader))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"n":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"n":2}`))
		_ = conn.Close()
	}))
	defer srv.Close()

	var (
		mu  sync.Mutex
		got []string
	)
	c := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http"), "secret", func(raw []byte) {
		mu.Lock()
		got = append(got, string(raw))
		mu.Unlock()
	})
	require.NoError(t, c.Connect(context.Background()))

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection never reported done")
	}
	assert.ErrorIs(t, c.Err(), domain.ErrWSDisconnect)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`}, got)
}

func TestWSClient_CloseIsClean(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http"), "", nil)
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("close did not stop the read loop")
	}
	assert.NoError(t, c.Err())
	assert.ErrorIs(t, c.Connect(context.Background()), domain.ErrWSDisconnect)
}
