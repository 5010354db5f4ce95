package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrMalformedEvent  = errors.New("malformed event")
	ErrNoMarketData    = errors.New("no market data yet")
	ErrInvalidOrder    = errors.New("invalid order parameters")
	ErrGatewayRejected = errors.New("rejected by gateway")
	ErrOrderClosed     = errors.New("order already closed")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrWSDisconnect    = errors.New("websocket disconnected")
	ErrFeedStale       = errors.New("feed stale")
	ErrLockHeld        = errors.New("lock already held")
	ErrReadOnly        = errors.New("read-only mode")
)

// GatewayError is returned when the venue accepted the request but refused
// the order. Reason is the venue's own message.
type GatewayError struct {
	Op     string
	Reason string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrGatewayRejected, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrGatewayRejected).
func (e *GatewayError) Unwrap() error {
	return ErrGatewayRejected
}
