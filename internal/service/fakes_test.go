package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderSnapshot, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.OrderSnapshot), args.Error(1)
}

func (m *mockGateway) CancelOrder(ctx context.Context, id string) (domain.OrderSnapshot, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.OrderSnapshot), args.Error(1)
}

func (m *mockGateway) OrderStatus(ctx context.Context, id string) (domain.OrderSnapshot, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.OrderSnapshot), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, event, title, message string) error {
	return m.Called(ctx, event, title, message).Error(0)
}

type published struct {
	channel string
	payload []byte
}

// memBus records publishes and satisfies domain.SignalBus.
type memBus struct {
	mu   sync.Mutex
	msgs []published
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, published{channel, payload})
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (b *memBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	return b.Publish(ctx, stream, payload)
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *memBus) on(channel string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, m := range b.msgs {
		if m.channel == channel {
			out = append(out, m)
		}
	}
	return out
}

// memStore satisfies domain.SnapshotStore.
type memStore struct {
	mu    sync.Mutex
	snaps map[string]domain.OrderSnapshot
	calls int
}

func newMemStore() *memStore { return &memStore{snaps: map[string]domain.OrderSnapshot{}} }

func (s *memStore) UpsertBatch(_ context.Context, snaps []domain.OrderSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	for _, snap := range snaps {
		s.snaps[snap.ID] = snap
	}
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (domain.OrderSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[id]
	if !ok {
		return domain.OrderSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (s *memStore) List(context.Context, domain.ListOpts) ([]domain.OrderSnapshot, error) {
	return nil, nil
}

// memPrices satisfies domain.PriceCache.
type memPrices struct {
	mu     sync.Mutex
	trades map[string]domain.Trade
}

func (p *memPrices) SetTrade(_ context.Context, symbol string, tr domain.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.trades == nil {
		p.trades = map[string]domain.Trade{}
	}
	p.trades[symbol] = tr
	return nil
}

func (p *memPrices) GetTrade(_ context.Context, symbol string) (domain.Trade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tr, ok := p.trades[symbol]
	if !ok {
		return domain.Trade{}, domain.ErrNotFound
	}
	return tr, nil
}

type memAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type stubLimiter struct{ allow bool }

func (l stubLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return l.allow, nil
}
func (l stubLimiter) Wait(context.Context, string) error { return nil }

var (
	_ domain.SignalBus     = (*memBus)(nil)
	_ domain.SnapshotStore = (*memStore)(nil)
	_ domain.PriceCache    = (*memPrices)(nil)
	_ domain.AuditStore    = (*memAudit)(nil)
	_ domain.RateLimiter   = stubLimiter{}
)
