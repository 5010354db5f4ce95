package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// SnapshotStore is the external sink fed by ledger snapshots. The core never
// reads positions back from it.
type SnapshotStore interface {
	UpsertBatch(ctx context.Context, snaps []OrderSnapshot) error
	GetByID(ctx context.Context, id string) (OrderSnapshot, error)
	List(ctx context.Context, opts ListOpts) ([]OrderSnapshot, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
