package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/fillbook/internal/domain"
	"github.com/alanyoungcy/fillbook/internal/ledger"
	"github.com/alanyoungcy/fillbook/internal/marketdata"
	"github.com/alanyoungcy/fillbook/internal/server/handler"
	"github.com/alanyoungcy/fillbook/internal/service"
)

type fakeGateway struct {
	placed   domain.OrderSnapshot
	placeErr error
}

func (g *fakeGateway) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderSnapshot, error) {
	if g.placeErr != nil {
		return domain.OrderSnapshot{}, g.placeErr
	}
	return g.placed, nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, id string) (domain.OrderSnapshot, error) {
	snap := g.placed
	snap.ID = id
	snap.Open = false
	return snap, nil
}

func (g *fakeGateway) OrderStatus(_ context.Context, id string) (domain.OrderSnapshot, error) {
	return domain.OrderSnapshot{}, fmt.Errorf("venue: order status %s: %w", id, domain.ErrNotFound)
}

type staticFeeds []domain.FeedStatus

func (f staticFeeds) FeedStatus() []domain.FeedStatus { return f }

type fixture struct {
	ledger *ledger.Ledger
	agg    *marketdata.Aggregator
	gw     *fakeGateway
	h      http.Handler
}

func newFixture(t *testing.T, cfg Config, readOnly bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		ledger: ledger.New(),
		agg:    marketdata.NewAggregator(100),
		gw: &fakeGateway{placed: domain.OrderSnapshot{
			ID: "B", Direction: domain.DirectionSell, OrderType: domain.OrderTypeLimit,
			OriginalQty: 5, Price: 160, Open: true,
		}},
	}
	orders := service.NewOrderService(f.gw, f.ledger, nil, nil, nil, nil, nil,
		service.OrderConfig{Account: "EXB123", Venue: "TESTEX", Stock: "FOOBAR", ReadOnly: readOnly}, logger)
	books := service.NewBookService(f.ledger, f.agg, nil)

	srv := NewServer(cfg, Handlers{
		Health:     handler.NewHealthHandler(nil, logger),
		Status:     handler.NewStatusHandler("trade", readOnly, staticFeeds{{Name: "executions", Live: true}}),
		Orders:     handler.NewOrderHandler(orders, logger),
		Book:       handler.NewBookHandler(books, logger),
		MarketData: handler.NewMarketDataHandler(f.agg, books, logger),
	}, nil, nil, logger)
	f.h = srv.Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedFilledBuy(t *testing.T) {
	t.Helper()
	_, err := f.ledger.Upsert(domain.OrderSnapshot{
		ID: "A", Direction: domain.DirectionBuy, OriginalQty: 10, TotalFilled: 10, Price: 100,
		Fills: []domain.PartialFill{{Qty: 10, Price: 100, SequenceID: 1}}, SequenceID: 1,
	})
	require.NoError(t, err)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPositionAndPnL(t *testing.T) {
	f := newFixture(t, Config{}, false)
	f.seedFilledBuy(t)

	rec := f.do(t, http.MethodGet, "/api/position", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pos := decode[domain.Position](t, rec)
	assert.Equal(t, int64(10), pos.SignedQty)
	assert.True(t, decimal.NewFromInt(1).Equal(pos.CostBasis))

	rec = f.do(t, http.MethodGet, "/api/pnl", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	now := time.Now()
	f.agg.AppendQuote(domain.Quote{
		Symbol: "FOOBAR", Bid: 140, HasBid: true, Ask: 160, HasAsk: true,
		Last: 150, LastSize: 3, HasTrade: true, LastTrade: now, QuoteTime: now,
	})

	rec = f.do(t, http.MethodGet, "/api/pnl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pnl := decode[domain.PnL](t, rec)
	assert.True(t, decimal.NewFromInt(5).Equal(pnl.NetAssetValue))

	rec = f.do(t, http.MethodGet, "/api/book", "")
	require.Equal(t, http.StatusOK, rec.Code)
	own := decode[service.OwnBook](t, rec)
	assert.Equal(t, 1, own.Orders)
	assert.Equal(t, 0, own.Open)
}

func TestMarketDataRoutes(t *testing.T) {
	f := newFixture(t, Config{}, false)

	rec := f.do(t, http.MethodGet, "/api/marketdata/trade", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/marketdata/quote", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/marketdata/vwap", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	f.agg.AppendQuote(domain.Quote{Bid: 99, HasBid: true, Ask: 101, HasAsk: true, Last: 100, LastSize: 1, HasTrade: true, LastTrade: t0, QuoteTime: t0})
	f.agg.AppendQuote(domain.Quote{Bid: 109, HasBid: true, Ask: 112, HasAsk: true, Last: 110, LastSize: 3, HasTrade: true, LastTrade: t0.Add(time.Second), QuoteTime: t0.Add(time.Second)})

	rec = f.do(t, http.MethodGet, "/api/marketdata/spread?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	spread := decode[struct {
		Points []domain.SpreadPoint `json:"points"`
	}](t, rec)
	require.Len(t, spread.Points, 1)
	assert.Equal(t, int64(3), spread.Points[0].Spread)

	rec = f.do(t, http.MethodGet, "/api/marketdata/vwap", "")
	require.Equal(t, http.StatusOK, rec.Code)
	vwap := decode[struct {
		AvgPrice decimal.Decimal `json:"avgPrice"`
	}](t, rec)
	assert.True(t, decimal.RequireFromString("107.5").Equal(vwap.AvgPrice))

	rec = f.do(t, http.MethodGet, "/api/marketdata/trade", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/marketdata/quote", "")
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[domain.Quote](t, rec)
	assert.Equal(t, int64(109), q.Bid)
	assert.Equal(t, int64(112), q.Ask)

	rec = f.do(t, http.MethodGet, "/api/marketdata/depth", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrderRoutes(t *testing.T) {
	f := newFixture(t, Config{}, false)

	rec := f.do(t, http.MethodPost, "/api/orders", `{"qty":0,"price":160,"direction":"sell"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders", `{"qty":5,"price":160,"direction":"sell","account":"X"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = f.do(t, http.MethodPost, "/api/orders", `{"qty":5,"price":160,"direction":"sell"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "B", decode[domain.OrderSnapshot](t, rec).ID)

	rec = f.do(t, http.MethodGet, "/api/orders/B", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/exposure", "")
	require.Equal(t, http.StatusOK, rec.Code)
	exp := decode[domain.BookExposure](t, rec)
	assert.Equal(t, int64(5), exp.Sell.OpenQty)

	rec = f.do(t, http.MethodDelete, "/api/orders/B", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[domain.OrderSnapshot](t, rec).Open)

	rec = f.do(t, http.MethodGet, "/api/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Orders []domain.OrderSnapshot `json:"orders"`
	}](t, rec)
	assert.Len(t, list.Orders, 1)
}

func TestGatewayRejectionIs502(t *testing.T) {
	f := newFixture(t, Config{}, false)
	f.gw.placeErr = &domain.GatewayError{Op: "place order", Reason: "insufficient funds"}

	rec := f.do(t, http.MethodPost, "/api/orders", `{"qty":5,"price":160,"direction":"sell"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient funds")
}

func TestReadOnlyRejectsSubmission(t *testing.T) {
	f := newFixture(t, Config{}, true)

	rec := f.do(t, http.MethodPost, "/api/orders", `{"qty":5,"price":160,"direction":"sell"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/orders/B", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[map[string]any](t, rec)
	assert.Equal(t, true, st["readOnly"])
	assert.Equal(t, true, st["healthy"])
}

func TestAuthGuardsAPI(t *testing.T) {
	f := newFixture(t, Config{APIKey: "k"}, false)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/orders", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/orders", "", "X-API-Key", "k").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/health", "").Code)
}
