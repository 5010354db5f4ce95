package venue

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// ExecutionsURL is the fills stream for one account and stock.
func ExecutionsURL(wsBase, account, venue, stock string) string {
	return fmt.Sprintf("%s/%s/venues/%s/executions/stocks/%s",
		strings.TrimRight(wsBase, "/"), url.PathEscape(account), url.PathEscape(venue), url.PathEscape(stock))
}

// TickerTapeURL is the quote stream for one account and stock.
func TickerTapeURL(wsBase, account, venue, stock string) string {
	return fmt.Sprintf("%s/%s/venues/%s/tickertape/stocks/%s",
		strings.TrimRight(wsBase, "/"), url.PathEscape(account), url.PathEscape(venue), url.PathEscape(stock))
}

// MessageHandler receives each raw frame in arrival order.
type MessageHandler func(raw []byte)

// WSClient is a single connection to one venue stream. It does not
// reconnect on its own; the owner watches Done and dials a fresh client.
type WSClient struct {
	wsURL  string
	header http.Header
	conn   *websocket.Conn

	mu     sync.RWMutex
	closed bool
	err    error

	handler MessageHandler

	// done is closed when the read loop exits for any reason.
	done     chan struct{}
	doneOnce sync.Once
}

// NewWSClient creates a client for the given stream URL. apiKey may be empty
// for public streams.
func NewWSClient(wsURL, apiKey string, handler MessageHandler) *WSClient {
	h := http.Header{}
	if apiKey != "" {
		h.Set(AuthHeader, apiKey)
	}
	return &WSClient{
		wsURL:   wsURL,
		header:  h,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("venue/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, w.header)
	if err != nil {
		return fmt.Errorf("venue/ws: connect: %w", err)
	}

	w.conn = conn

	// Set up pong handler for keep-alive.
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)

	return nil
}

// Done is closed once the connection has dropped or been closed.
func (w *WSClient) Done() <-chan struct{} {
	return w.done
}

// Err returns the read error that ended the connection, if any.
func (w *WSClient) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.err
}

// Close shuts down the WebSocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.conn != nil {
		// Send a close message to the server.
		w.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	w.finish(nil)
	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

func (w *WSClient) finish(err error) {
	w.doneOnce.Do(func() {
		w.err = err
		close(w.done)
	})
}

// readLoop delivers frames to the handler until the connection fails.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			if w.closed {
				w.finish(nil)
			} else {
				w.finish(fmt.Errorf("venue/ws: read: %w: %v", domain.ErrWSDisconnect, err))
			}
			w.mu.Unlock()
			return
		}
		if w.handler != nil {
			w.handler(message)
		}
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			if w.closed {
				w.mu.Unlock()
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
