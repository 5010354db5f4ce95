package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/fillbook/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. It is a
// write-mostly sink: the ledger never reads positions back from it.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// upsertSnapshotSQL replaces a stored row wholesale unless the stored row has
// already made more fill progress.
const upsertSnapshotSQL = `
	INSERT INTO order_snapshots (
		id, account, venue, symbol, direction, order_type,
		original_qty, total_filled, price, open, fills,
		sequence_id, order_ts, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11,
		$12, $13, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		account      = EXCLUDED.account,
		venue        = EXCLUDED.venue,
		symbol       = EXCLUDED.symbol,
		direction    = EXCLUDED.direction,
		order_type   = EXCLUDED.order_type,
		original_qty = EXCLUDED.original_qty,
		total_filled = EXCLUDED.total_filled,
		price        = EXCLUDED.price,
		open         = EXCLUDED.open,
		fills        = EXCLUDED.fills,
		sequence_id  = EXCLUDED.sequence_id,
		order_ts     = EXCLUDED.order_ts,
		updated_at   = NOW()
	WHERE order_snapshots.total_filled <= EXCLUDED.total_filled`

// UpsertBatch writes every snapshot in one round trip.
func (s *SnapshotStore) UpsertBatch(ctx context.Context, snaps []domain.OrderSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, snap := range snaps {
		fills := snap.Fills
		if fills == nil {
			fills = []domain.PartialFill{}
		}
		fillsJSON, err := json.Marshal(fills)
		if err != nil {
			return fmt.Errorf("postgres: marshal fills for %s: %w", snap.ID, err)
		}
		var ts *time.Time
		if !snap.Timestamp.IsZero() {
			t := snap.Timestamp
			ts = &t
		}
		batch.Queue(upsertSnapshotSQL,
			snap.ID, snap.Account, snap.Venue, snap.Symbol,
			string(snap.Direction), string(snap.OrderType),
			snap.OriginalQty, snap.TotalFilled, snap.Price, snap.Open, fillsJSON,
			snap.SequenceID, ts,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, snap := range snaps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert snapshot %s: %w", snap.ID, err)
		}
	}
	return nil
}

const snapshotSelectCols = `id, account, venue, symbol, direction, order_type,
	original_qty, total_filled, price, open, fills, sequence_id, order_ts`

func scanSnapshot(scanner interface{ Scan(dest ...any) error }) (domain.OrderSnapshot, error) {
	var snap domain.OrderSnapshot
	var direction, orderType string
	var fillsJSON []byte
	var ts *time.Time

	err := scanner.Scan(
		&snap.ID, &snap.Account, &snap.Venue, &snap.Symbol,
		&direction, &orderType,
		&snap.OriginalQty, &snap.TotalFilled, &snap.Price, &snap.Open,
		&fillsJSON, &snap.SequenceID, &ts,
	)
	if err != nil {
		return domain.OrderSnapshot{}, err
	}
	snap.Direction = domain.Direction(direction)
	snap.OrderType = domain.OrderType(orderType)
	if ts != nil {
		snap.Timestamp = *ts
	}
	if len(fillsJSON) > 0 {
		if err := json.Unmarshal(fillsJSON, &snap.Fills); err != nil {
			return domain.OrderSnapshot{}, fmt.Errorf("unmarshal fills: %w", err)
		}
	}
	return snap, nil
}

// GetByID retrieves one stored snapshot.
func (s *SnapshotStore) GetByID(ctx context.Context, id string) (domain.OrderSnapshot, error) {
	query := `SELECT ` + snapshotSelectCols + ` FROM order_snapshots WHERE id = $1`
	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderSnapshot{}, fmt.Errorf("postgres: get snapshot %s: %w", id, err)
	}
	return snap, nil
}

// List returns stored snapshots, most recently updated first.
func (s *SnapshotStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.OrderSnapshot, error) {
	query, args := withListOpts(
		`SELECT `+snapshotSelectCols+` FROM order_snapshots WHERE 1=1`, nil, "updated_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list snapshots rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)
