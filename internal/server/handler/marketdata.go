package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/fillbook/internal/domain"
	"github.com/alanyoungcy/fillbook/internal/marketdata"
)

const maxSeriesLimit = 5000

// MarketData is the read side of the quote aggregator.
type MarketData interface {
	SpreadSeries(limit int) []domain.SpreadPoint
	TradeSeries(limit int) []domain.Trade
	LatestTrade() (domain.Trade, bool)
	LatestQuote() (domain.Quote, bool)
	SecondsWithoutTrading() (float64, error)
}

// DepthService fetches the venue order book on demand.
type DepthService interface {
	Depth(ctx context.Context) (domain.OrderBook, error)
}

// MarketDataHandler serves the aggregated ticker data.
type MarketDataHandler struct {
	md     MarketData
	depth  DepthService
	logger *slog.Logger
}

// NewMarketDataHandler creates a MarketDataHandler. depth may be nil.
func NewMarketDataHandler(md MarketData, depth DepthService, logger *slog.Logger) *MarketDataHandler {
	return &MarketDataHandler{md: md, depth: depth, logger: logger}
}

// GetSpread returns the bid/ask/spread series, oldest first.
// GET /api/marketdata/spread?limit=N
func (h *MarketDataHandler) GetSpread(w http.ResponseWriter, r *http.Request) {
	points := h.md.SpreadSeries(parseLimit(r, maxSeriesLimit))
	if points == nil {
		points = []domain.SpreadPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points})
}

// GetTrade returns the latest trade and how long the tape has been quiet.
// GET /api/marketdata/trade
func (h *MarketDataHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	tr, ok := h.md.LatestTrade()
	if !ok {
		writeError(w, http.StatusConflict, domain.ErrNoMarketData.Error())
		return
	}
	resp := map[string]any{"trade": tr}
	if idle, err := h.md.SecondsWithoutTrading(); err == nil {
		resp["secondsWithoutTrading"] = idle
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetQuote returns the newest ticker quote.
// GET /api/marketdata/quote
func (h *MarketDataHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q, ok := h.md.LatestQuote()
	if !ok {
		writeError(w, http.StatusConflict, domain.ErrNoMarketData.Error())
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// GetVWAP returns the size-weighted average of the trade series and,
// with ?series=1, the running VWAP.
// GET /api/marketdata/vwap
func (h *MarketDataHandler) GetVWAP(w http.ResponseWriter, r *http.Request) {
	trades := h.md.TradeSeries(parseLimit(r, maxSeriesLimit))
	avg, err := marketdata.AvgPrice(trades)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to compute vwap")
		return
	}
	resp := map[string]any{"avgPrice": avg, "trades": len(trades)}
	if r.URL.Query().Get("series") == "1" {
		series, err := marketdata.CumulativeVWAP(trades)
		if err != nil {
			writeServiceError(w, r, h.logger, err, "failed to compute vwap")
			return
		}
		resp["series"] = series
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDepth proxies the venue order book.
// GET /api/marketdata/depth
func (h *MarketDataHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	if h.depth == nil {
		writeError(w, http.StatusNotFound, "depth not available")
		return
	}
	ob, err := h.depth.Depth(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch depth")
		return
	}
	writeJSON(w, http.StatusOK, ob)
}
