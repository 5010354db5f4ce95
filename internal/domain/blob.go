package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver writes point-in-time copies of ledger and market state to cold
// storage. Each call returns the object path it wrote.
type Archiver interface {
	ArchiveLedger(ctx context.Context, at time.Time, snaps []OrderSnapshot) (string, error)
	ArchiveSpread(ctx context.Context, at time.Time, points []SpreadPoint) (string, error)
}
