package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// DefaultTradeTTL bounds how long a mirrored trade survives without refresh.
const DefaultTradeTTL = 10 * time.Minute

// PriceCache implements domain.PriceCache. The latest trade per symbol lives
// in a hash at "trade:{symbol}" with fields price, size and ts (Unix nanos).
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache. A non-positive ttl uses DefaultTradeTTL.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultTradeTTL
	}
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func tradeKey(symbol string) string {
	return "trade:" + symbol
}

// SetTrade stores trade as the latest for symbol and refreshes the TTL.
func (pc *PriceCache) SetTrade(ctx context.Context, symbol string, trade domain.Trade) error {
	key := tradeKey(symbol)

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, tradeFields(trade))
	pipe.Expire(ctx, key, pc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set trade %s: %w", symbol, err)
	}
	return nil
}

// GetTrade returns the latest trade for symbol, or domain.ErrNotFound.
func (pc *PriceCache) GetTrade(ctx context.Context, symbol string) (domain.Trade, error) {
	vals, err := pc.rdb.HGetAll(ctx, tradeKey(symbol)).Result()
	if err != nil {
		return domain.Trade{}, fmt.Errorf("redis: get trade %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.Trade{}, domain.ErrNotFound
	}
	trade, err := parseTrade(vals)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("redis: get trade %s: %w", symbol, err)
	}
	return trade, nil
}

func tradeFields(t domain.Trade) map[string]any {
	return map[string]any{
		"price": strconv.FormatInt(t.Price, 10),
		"size":  strconv.FormatInt(t.Size, 10),
		"ts":    strconv.FormatInt(t.Time.UnixNano(), 10),
	}
}

func parseTrade(vals map[string]string) (domain.Trade, error) {
	var t domain.Trade
	for _, f := range []string{"price", "size", "ts"} {
		if _, ok := vals[f]; !ok {
			return domain.Trade{}, fmt.Errorf("field %s: %w", f, domain.ErrNotFound)
		}
	}
	price, err := strconv.ParseInt(vals["price"], 10, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("parse price: %w", err)
	}
	size, err := strconv.ParseInt(vals["size"], 10, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("parse size: %w", err)
	}
	ts, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Trade{}, fmt.Errorf("parse ts: %w", err)
	}
	t.Price, t.Size, t.Time = price, size, time.Unix(0, ts).UTC()
	return t, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
