// Package venue is the REST and WebSocket client for the trading venue. All
// wire shapes are decoded into explicit types and validated before they
// reach the domain.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// AuthHeader carries the API key on every authenticated request.
const AuthHeader = "X-Starfighter-Authorization"

// Config identifies the account and instrument the client trades.
type Config struct {
	BaseURL string
	APIKey  string
	Account string
	Venue   string
	Stock   string
	Timeout time.Duration
}

// Client is the REST client for the venue order gateway.
type Client struct {
	baseURL    string
	apiKey     string
	account    string
	venue      string
	stock      string
	httpClient *http.Client
}

// NewClient creates a new venue REST client.
//
// cfg.BaseURL is the API root, e.g. "https://api.stockfighter.io/ob/api".
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		account: cfg.Account,
		venue:   cfg.Venue,
		stock:   cfg.Stock,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Account returns the configured trading account.
func (c *Client) Account() string { return c.account }

// Venue returns the configured venue.
func (c *Client) Venue() string { return c.venue }

// Stock returns the configured symbol.
func (c *Client) Stock() string { return c.stock }

// Heartbeat checks that the API itself is up.
func (c *Client) Heartbeat(ctx context.Context) error {
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/heartbeat", nil, &env); err != nil {
		return fmt.Errorf("venue: heartbeat: %w", err)
	}
	if !env.OK {
		return fmt.Errorf("venue: heartbeat: api down: %s", env.Error)
	}
	return nil
}

// VenueHeartbeat checks that the configured venue is up.
func (c *Client) VenueHeartbeat(ctx context.Context) error {
	var env envelope
	path := fmt.Sprintf("/venues/%s/heartbeat", url.PathEscape(c.venue))
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return fmt.Errorf("venue: venue heartbeat %s: %w", c.venue, err)
	}
	if !env.OK {
		return fmt.Errorf("venue: venue heartbeat %s: venue down: %s", c.venue, env.Error)
	}
	return nil
}

// PlaceOrder validates and submits an order. The request is rejected with
// domain.ErrInvalidOrder before any I/O when its parameters are bad, and a
// venue refusal comes back as *domain.GatewayError.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderSnapshot, error) {
	if err := req.Validate(); err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("venue: place order: %w", err)
	}
	body := req
	if body.OrderType == domain.OrderTypeMarket {
		body.Price = 0
	}

	path := fmt.Sprintf("/venues/%s/stocks/%s/orders", url.PathEscape(req.Venue), url.PathEscape(req.Stock))
	var order APIOrder
	if err := c.do(ctx, http.MethodPost, path, body, &order); err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("venue: place order: %w", err)
	}
	if !order.OK {
		return domain.OrderSnapshot{}, &domain.GatewayError{Op: "venue: place order", Reason: order.Error}
	}
	return c.acceptedSnapshot(&order, "place order")
}

// CancelOrder cancels a working order. The venue answers with the order's
// final state. Cancelling an order that already closed yields
// domain.ErrOrderClosed.
func (c *Client) CancelOrder(ctx context.Context, id string) (domain.OrderSnapshot, error) {
	if id == "" {
		return domain.OrderSnapshot{}, fmt.Errorf("venue: cancel order: %w: empty order id", domain.ErrInvalidOrder)
	}
	var order APIOrder
	if err := c.do(ctx, http.MethodDelete, c.orderPath(id), nil, &order); err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("venue: cancel order %s: %w", id, err)
	}
	if !order.OK {
		if isClosedReason(order.Error) {
			return domain.OrderSnapshot{}, fmt.Errorf("venue: cancel order %s: %w", id, domain.ErrOrderClosed)
		}
		return domain.OrderSnapshot{}, &domain.GatewayError{Op: "venue: cancel order " + id, Reason: order.Error}
	}
	return c.acceptedSnapshot(&order, "cancel order")
}

// OrderStatus fetches the current state of one order.
func (c *Client) OrderStatus(ctx context.Context, id string) (domain.OrderSnapshot, error) {
	if id == "" {
		return domain.OrderSnapshot{}, fmt.Errorf("venue: order status: %w: empty order id", domain.ErrInvalidOrder)
	}
	var order APIOrder
	if err := c.do(ctx, http.MethodGet, c.orderPath(id), nil, &order); err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("venue: order status %s: %w", id, err)
	}
	if !order.OK {
		return domain.OrderSnapshot{}, &domain.GatewayError{Op: "venue: order status " + id, Reason: order.Error}
	}
	return c.acceptedSnapshot(&order, "order status")
}

// ListOrders returns every order of the account on the configured stock.
// Entries failing validation are dropped; the rest are returned.
func (c *Client) ListOrders(ctx context.Context) ([]domain.OrderSnapshot, error) {
	path := fmt.Sprintf("/venues/%s/accounts/%s/stocks/%s/orders",
		url.PathEscape(c.venue), url.PathEscape(c.account), url.PathEscape(c.stock))

	var list APIOrderList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("venue: list orders: %w", err)
	}
	if !list.OK {
		return nil, &domain.GatewayError{Op: "venue: list orders", Reason: list.Error}
	}

	out := make([]domain.OrderSnapshot, 0, len(list.Orders))
	for i := range list.Orders {
		snap := list.Orders[i].ToDomainSnapshot()
		if snap.Symbol == "" {
			snap.Symbol = c.stock
		}
		if snap.Validate() != nil {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Quote fetches the current quote for the configured stock.
func (c *Client) Quote(ctx context.Context) (domain.Quote, error) {
	path := fmt.Sprintf("/venues/%s/stocks/%s/quote", url.PathEscape(c.venue), url.PathEscape(c.stock))
	var resp APIQuoteResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("venue: quote: %w", err)
	}
	if !resp.OK {
		return domain.Quote{}, &domain.GatewayError{Op: "venue: quote", Reason: resp.Error}
	}
	return resp.APIQuote.ToDomainQuote(), nil
}

// OrderBook fetches the depth snapshot for the configured stock.
func (c *Client) OrderBook(ctx context.Context) (domain.OrderBook, error) {
	path := fmt.Sprintf("/venues/%s/stocks/%s", url.PathEscape(c.venue), url.PathEscape(c.stock))
	var book APIOrderBook
	if err := c.do(ctx, http.MethodGet, path, nil, &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("venue: order book: %w", err)
	}
	if !book.OK {
		return domain.OrderBook{}, &domain.GatewayError{Op: "venue: order book", Reason: book.Error}
	}
	return book.ToDomainOrderBook(), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) orderPath(id string) string {
	return fmt.Sprintf("/venues/%s/stocks/%s/orders/%s",
		url.PathEscape(c.venue), url.PathEscape(c.stock), url.PathEscape(id))
}

func (c *Client) acceptedSnapshot(order *APIOrder, op string) (domain.OrderSnapshot, error) {
	snap := order.ToDomainSnapshot()
	if snap.Symbol == "" {
		snap.Symbol = c.stock
	}
	if err := snap.Validate(); err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("venue: %s: %w", op, err)
	}
	return snap, nil
}

// do builds, sends, and decodes a request. Non-2xx responses are mapped to
// domain errors by checkHTTPStatus.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(AuthHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
// A 4xx carrying the venue's {ok:false, error} body is a gateway refusal.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	var env envelope
	_ = json.Unmarshal(body, &env)

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	}
	if statusCode < 500 && env.Error != "" {
		if isClosedReason(env.Error) {
			return fmt.Errorf("%w: %s", domain.ErrOrderClosed, env.Error)
		}
		return &domain.GatewayError{Op: fmt.Sprintf("HTTP %d", statusCode), Reason: env.Error}
	}
	return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
}

func isClosedReason(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "already closed") || strings.Contains(r, "already cancelled") ||
		strings.Contains(r, "already filled") || strings.Contains(r, "not open")
}
