package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/fillbook/internal/domain"
	"github.com/alanyoungcy/fillbook/internal/ledger"
)

// Gateway submits, cancels and looks up orders at the venue.
type Gateway interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderSnapshot, error)
	CancelOrder(ctx context.Context, id string) (domain.OrderSnapshot, error)
	OrderStatus(ctx context.Context, id string) (domain.OrderSnapshot, error)
}

// OrderConfig identifies what the service trades and how fast.
type OrderConfig struct {
	Account string
	Venue   string
	Stock   string
	// RatePerSecond caps submissions per account; zero disables the check.
	RatePerSecond int
	ReadOnly      bool
}

// OrderService handles the order lifecycle from request to ledger entry.
type OrderService struct {
	gateway   Gateway
	ledger    *ledger.Ledger
	snapshots domain.SnapshotStore
	limiter   domain.RateLimiter
	bus       domain.SignalBus
	audit     domain.AuditStore
	notifier  Notifier
	cfg       OrderConfig
	logger    *slog.Logger
}

// NewOrderService creates an OrderService. snapshots, limiter, bus, audit and
// notifier may be nil.
func NewOrderService(
	gateway Gateway,
	l *ledger.Ledger,
	snapshots domain.SnapshotStore,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier Notifier,
	cfg OrderConfig,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		gateway:   gateway,
		ledger:    l,
		snapshots: snapshots,
		limiter:   limiter,
		bus:       bus,
		audit:     audit,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "order_service")),
	}
}

// Buy submits a buy order for the configured instrument.
func (s *OrderService) Buy(ctx context.Context, qty, price int64, typ domain.OrderType) (domain.OrderSnapshot, error) {
	return s.Submit(ctx, domain.OrderRequest{Qty: qty, Price: price, Direction: domain.DirectionBuy, OrderType: typ})
}

// Sell submits a sell order for the configured instrument.
func (s *OrderService) Sell(ctx context.Context, qty, price int64, typ domain.OrderType) (domain.OrderSnapshot, error) {
	return s.Submit(ctx, domain.OrderRequest{Qty: qty, Price: price, Direction: domain.DirectionSell, OrderType: typ})
}

// Submit validates req, sends it to the gateway, and records the accepted
// order. Invalid requests never reach the gateway. A venue refusal is
// returned as *domain.GatewayError and is not retried.
func (s *OrderService) Submit(ctx context.Context, req domain.OrderRequest) (domain.OrderSnapshot, error) {
	if s.cfg.ReadOnly {
		return domain.OrderSnapshot{}, fmt.Errorf("order_service: submit: %w", domain.ErrReadOnly)
	}
	req.Account, req.Venue, req.Stock = s.cfg.Account, s.cfg.Venue, s.cfg.Stock
	if err := req.Validate(); err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("order_service: submit: %w", err)
	}

	if s.limiter != nil && s.cfg.RatePerSecond > 0 {
		allowed, err := s.limiter.Allow(ctx, "orders:"+s.cfg.Account, s.cfg.RatePerSecond, time.Second)
		if err != nil {
			return domain.OrderSnapshot{}, fmt.Errorf("order_service: rate limiter: %w", err)
		}
		if !allowed {
			return domain.OrderSnapshot{}, fmt.Errorf("order_service: submit: %w", domain.ErrRateLimited)
		}
	}

	ref := uuid.NewString()
	snap, err := s.gateway.PlaceOrder(ctx, req)
	if err != nil {
		s.rejected(ctx, ref, req, err)
		return domain.OrderSnapshot{}, fmt.Errorf("order_service: submit: %w", err)
	}

	if err := s.ledger.RecordSubmitted(snap); err != nil {
		// The venue accepted it; the executions feed will bring it in.
		s.logger.WarnContext(ctx, "record submitted order failed",
			slog.String("order_id", snap.ID),
			slog.String("error", err.Error()),
		)
	}
	s.persist(ctx, snap)

	publish(ctx, s.bus, s.logger, domain.ChannelOrders, map[string]any{
		"event":     "order_placed",
		"order_id":  snap.ID,
		"ref":       ref,
		"direction": snap.Direction,
		"qty":       snap.OriginalQty,
		"price":     snap.Price,
		"open":      snap.Open,
	})
	s.auditLog(ctx, "order_placed", map[string]any{
		"order_id":   snap.ID,
		"ref":        ref,
		"direction":  string(req.Direction),
		"order_type": string(req.OrderType),
		"qty":        req.Qty,
		"price":      req.Price,
		"filled":     snap.TotalFilled,
	})

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", snap.ID),
		slog.String("ref", ref),
		slog.String("direction", string(req.Direction)),
		slog.Int64("qty", req.Qty),
		slog.Int64("price", req.Price),
	)
	return snap, nil
}

// Cancel cancels an order at the venue and records its final state.
// Cancelling an order that has already closed is not an error: the ledger's
// current snapshot is returned.
func (s *OrderService) Cancel(ctx context.Context, id string) (domain.OrderSnapshot, error) {
	if s.cfg.ReadOnly {
		return domain.OrderSnapshot{}, fmt.Errorf("order_service: cancel: %w", domain.ErrReadOnly)
	}

	snap, err := s.gateway.CancelOrder(ctx, id)
	if errors.Is(err, domain.ErrOrderClosed) {
		s.logger.InfoContext(ctx, "cancel on closed order ignored", slog.String("order_id", id))
		return s.Get(ctx, id)
	}
	if err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("order_service: cancel %s: %w", id, err)
	}

	if err := s.ledger.RecordSubmitted(snap); err != nil {
		s.logger.WarnContext(ctx, "record cancelled order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}
	s.persist(ctx, snap)

	publish(ctx, s.bus, s.logger, domain.ChannelOrders, map[string]any{
		"event":    "order_cancelled",
		"order_id": id,
		"filled":   snap.TotalFilled,
	})
	s.auditLog(ctx, "order_cancelled", map[string]any{
		"order_id": id,
		"filled":   snap.TotalFilled,
	})
	s.logger.InfoContext(ctx, "order cancelled", slog.String("order_id", id))
	return snap, nil
}

// Get returns one order. Orders the ledger has not seen yet are looked up at
// the venue and remembered.
func (s *OrderService) Get(ctx context.Context, id string) (domain.OrderSnapshot, error) {
	if snap, ok := s.ledger.Get(id); ok {
		return snap, nil
	}
	snap, err := s.gateway.OrderStatus(ctx, id)
	if err != nil {
		return domain.OrderSnapshot{}, fmt.Errorf("order_service: get %s: %w", id, err)
	}
	if err := s.ledger.RecordSubmitted(snap); err != nil {
		s.logger.WarnContext(ctx, "record looked-up order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}
	return snap, nil
}

// List returns every order in the ledger.
func (s *OrderService) List() []domain.OrderSnapshot {
	return s.ledger.All()
}

// ReadOnly reports whether submissions are disabled.
func (s *OrderService) ReadOnly() bool {
	return s.cfg.ReadOnly
}

func (s *OrderService) rejected(ctx context.Context, ref string, req domain.OrderRequest, err error) {
	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) {
		s.logger.ErrorContext(ctx, "order submission failed",
			slog.String("ref", ref),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.WarnContext(ctx, "order rejected by gateway",
		slog.String("ref", ref),
		slog.String("reason", gwErr.Reason),
	)
	s.auditLog(ctx, "order_rejected", map[string]any{
		"ref":       ref,
		"direction": string(req.Direction),
		"qty":       req.Qty,
		"price":     req.Price,
		"reason":    gwErr.Reason,
	})
	notify(ctx, s.notifier, s.logger, "order_rejected", "Order rejected",
		fmt.Sprintf("%s %d @ %d rejected: %s", req.Direction, req.Qty, req.Price, gwErr.Reason))
}

func (s *OrderService) persist(ctx context.Context, snap domain.OrderSnapshot) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.UpsertBatch(ctx, []domain.OrderSnapshot{snap}); err != nil {
		s.logger.WarnContext(ctx, "persist order failed",
			slog.String("order_id", snap.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *OrderService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
